// Package store defines the remote store contract consumed by the core: named relations reached
// through select/insert/update/delete calls plus a generic remote procedure call. Backends live in
// subpackages (memstore, postgres, postgrest); middleware in this package adds timeouts and tracing.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNoRows is returned by Update when no row matched the filters, and by repositories for single-row lookups.
	ErrNoRows = errors.New("store: no rows")
	// ErrNotConfigured is returned by every call of the NotConfigured client.
	ErrNotConfigured = errors.New("store: backend is not configured; set DATABASE_URL or SUPABASE_URL")
)

// Relation names used by the core.
const (
	RelationOrganizations       = "organizations"
	RelationOrganizationMembers = "organization_members"
	RelationInvitations         = "organization_invitations"
	RelationRoleDefinitions     = "role_definitions"
	RelationRolePermissions     = "role_permissions"
	RelationClients             = "clients"
	RelationQuotes              = "quotes"
	RelationQuoteItems          = "quote_items"
	RelationFolders             = "folders"
	RelationDocuments           = "documents"
	RelationDocumentVersions    = "document_versions"
	RelationDocumentActivity    = "document_activity"
	RelationDocumentPermissions = "document_permissions"
	RelationUsers               = "users"
	RelationIdentities          = "identities"
	RelationAuthSessions        = "auth_sessions"
	RelationPasswordResets      = "password_reset_requests"
	RelationAuditLogs           = "audit_logs"
)

// Client is the remote store. Every call either returns its result or an error; implementations
// never panic on remote failure.
type Client interface {
	// Select returns the rows of relation matching q.
	Select(ctx context.Context, relation string, q Query) ([]Row, error)
	// Insert stores row and returns the stored representation (including generated columns).
	Insert(ctx context.Context, relation string, row Row) (Row, error)
	// Update applies patch to rows matching filters and returns the first updated row, or ErrNoRows.
	Update(ctx context.Context, relation string, patch Row, filters ...Filter) (Row, error)
	// Delete removes rows matching filters.
	Delete(ctx context.Context, relation string, filters ...Filter) error
	// RPC invokes the named remote procedure with named arguments.
	RPC(ctx context.Context, name string, args map[string]any) (any, error)
}

// First runs q with Limit 1 and returns the single row, or ErrNoRows.
func First(ctx context.Context, c Client, relation string, q Query) (Row, error) {
	q.Limit = 1
	rows, err := c.Select(ctx, relation, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows[0], nil
}

// NotConfigured returns a Client whose every call fails with ErrNotConfigured. Used when backend
// settings are missing so the application can still start.
func NotConfigured() Client {
	return notConfigured{}
}

type notConfigured struct{}

func (notConfigured) Select(context.Context, string, Query) ([]Row, error) {
	return nil, ErrNotConfigured
}

func (notConfigured) Insert(context.Context, string, Row) (Row, error) {
	return nil, ErrNotConfigured
}

func (notConfigured) Update(context.Context, string, Row, ...Filter) (Row, error) {
	return nil, ErrNotConfigured
}

func (notConfigured) Delete(context.Context, string, ...Filter) error {
	return ErrNotConfigured
}

func (notConfigured) RPC(context.Context, string, map[string]any) (any, error) {
	return nil, ErrNotConfigured
}
