package domain

import "time"

// AuditLog represents an audit event. OrgID and UserID are empty for events outside a tenant or
// before sign-in.
type AuditLog struct {
	ID        string
	OrgID     string
	UserID    string
	Action    string
	Resource  string
	Metadata  map[string]string
	CreatedAt time.Time
}
