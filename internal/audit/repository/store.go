package repository

import (
	"context"

	"greenline/backend/internal/audit/domain"
	"greenline/backend/internal/store"
)

type StoreRepository struct {
	client store.Client
}

// NewStoreRepository returns an audit log repository over the remote store.
func NewStoreRepository(c store.Client) *StoreRepository {
	return &StoreRepository{client: c}
}

func (r *StoreRepository) ListByOrg(ctx context.Context, orgID string, limit int) ([]*domain.AuditLog, error) {
	q := store.Where(store.Eq("organization_id", orgID)).OrderBy(store.Desc("created_at"))
	q.Limit = limit
	rows, err := r.client.Select(ctx, store.RelationAuditLogs, q)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.AuditLog, len(rows))
	for i, row := range rows {
		out[i] = &domain.AuditLog{
			ID:        row.String("id"),
			OrgID:     row.String("organization_id"),
			UserID:    row.String("user_id"),
			Action:    row.String("action"),
			Resource:  row.String("resource"),
			Metadata:  metadata(row["metadata"]),
			CreatedAt: row.Time("created_at"),
		}
	}
	return out, nil
}

// Create persists a. Empty org and user ids are stored as null.
func (r *StoreRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	row := store.Row{
		"action":          a.Action,
		"resource":        a.Resource,
		"organization_id": nullable(a.OrgID),
		"user_id":         nullable(a.UserID),
		"created_at":      a.CreatedAt,
	}
	if a.ID != "" {
		row["id"] = a.ID
	}
	if len(a.Metadata) > 0 {
		row["metadata"] = a.Metadata
	}
	_, err := r.client.Insert(ctx, store.RelationAuditLogs, row)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func metadata(v any) map[string]string {
	switch m := v.(type) {
	case map[string]string:
		return m
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, x := range m {
			if s, ok := x.(string); ok {
				out[k] = s
			}
		}
		return out
	default:
		return nil
	}
}
