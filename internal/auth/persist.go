package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"greenline/backend/internal/state"
)

// SessionStateKey is the state key holding the persisted session.
const SessionStateKey = "auth.session"

// SaveSession persists s; a nil s removes the persisted session.
func SaveSession(ctx context.Context, st state.Store, s *Session) error {
	if s == nil {
		return st.Delete(ctx, SessionStateKey)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("auth: encode session: %w", err)
	}
	return st.Set(ctx, SessionStateKey, string(b))
}

// LoadSession returns the persisted session, or nil when none is stored.
func LoadSession(ctx context.Context, st state.Store) (*Session, error) {
	raw, ok, err := st.Get(ctx, SessionStateKey)
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("auth: decode session: %w", err)
	}
	return &s, nil
}
