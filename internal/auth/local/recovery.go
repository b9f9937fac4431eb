package local

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"greenline/backend/internal/auth"
	"greenline/backend/internal/security"
	"greenline/backend/internal/store"
	userdomain "greenline/backend/internal/user/domain"
)

// ErrInvalidResetToken is returned by VerifyRecovery for unknown, used or expired tokens.
var ErrInvalidResetToken = errors.New("auth: invalid or expired password reset token")

// ResetPasswordForEmail records a single-use reset token for the account and hands the link to the
// ResetSender. Unknown emails succeed silently so callers cannot probe for accounts.
func (p *Provider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	email = userdomain.NormalizeEmail(email)
	if err := userdomain.ValidateEmail(email); err != nil {
		return err
	}
	u, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		p.log.Debug("auth: password reset for unknown email")
		return nil
	}
	token, err := security.RandomToken(32)
	if err != nil {
		return err
	}
	if _, err := p.client.Insert(ctx, store.RelationPasswordResets, store.Row{
		"email":       email,
		"token_hash":  security.HashToken(token),
		"redirect_to": redirectTo,
		"expires_at":  p.now().UTC().Add(p.resetTTL),
	}); err != nil {
		return err
	}
	if p.sendReset == nil {
		return nil
	}
	if err := p.sendReset(ctx, email, resetLink(redirectTo, token)); err != nil {
		return fmt.Errorf("auth: send reset link: %w", err)
	}
	return nil
}

// VerifyRecovery consumes a reset token and signs its account in, emitting PASSWORD_RECOVERY.
// The caller then sets the new password through UpdateUser.
func (p *Provider) VerifyRecovery(ctx context.Context, token string) (*auth.Session, error) {
	row, err := store.First(ctx, p.client, store.RelationPasswordResets,
		store.Where(store.Eq("token_hash", security.HashToken(token)), store.Eq("used_at", nil)))
	if errors.Is(err, store.ErrNoRows) {
		return nil, ErrInvalidResetToken
	}
	if err != nil {
		return nil, err
	}
	if !p.now().Before(row.Time("expires_at")) {
		return nil, ErrInvalidResetToken
	}
	if _, err := p.client.Update(ctx, store.RelationPasswordResets, store.Row{"used_at": p.now().UTC()},
		store.Eq("id", row.String("id")), store.Eq("used_at", nil)); err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, ErrInvalidResetToken
		}
		return nil, err
	}
	u, err := p.users.GetByEmail(ctx, row.String("email"))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidResetToken
	}
	s, err := p.startSession(ctx, u)
	if err != nil {
		return nil, err
	}
	p.log.Info("auth: password recovery session started", zap.String("user_id", u.ID))
	p.notifier.Notify(ctx, auth.EventPasswordRecovery, s)
	return s, nil
}

func resetLink(redirectTo, token string) string {
	u, err := url.Parse(redirectTo)
	if err != nil || redirectTo == "" {
		return "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
