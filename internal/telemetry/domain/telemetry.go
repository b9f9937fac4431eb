package domain

import "time"

// Event is one telemetry event (optionally org- and user-scoped) exported as a log record.
type Event struct {
	OrgID     string
	UserID    string
	SessionID string
	EventType string
	Source    string
	Metadata  []byte // JSON
	CreatedAt time.Time
}
