package repository

import (
	"context"
	"fmt"

	"greenline/backend/internal/role/domain"
	"greenline/backend/internal/store"
)

// SeedDefaults inserts the built-in role definitions and grants that are missing and returns the
// role id for each name. Existing definitions are left untouched, grants included.
func SeedDefaults(ctx context.Context, c store.Client) (map[domain.Name]string, error) {
	r := NewStoreRepository(c)
	ids := make(map[domain.Name]string, len(domain.Defaults))
	for _, d := range domain.Defaults {
		existing, err := r.GetRoleByName(ctx, d.Name)
		if err != nil {
			return nil, fmt.Errorf("lookup role %s: %w", d.Name, err)
		}
		if existing != nil {
			ids[d.Name] = existing.ID
			continue
		}
		row, err := c.Insert(ctx, store.RelationRoleDefinitions, store.Row{
			"name":         string(d.Name),
			"display_name": d.DisplayName,
		})
		if err != nil {
			return nil, fmt.Errorf("insert role %s: %w", d.Name, err)
		}
		id := row.String("id")
		ids[d.Name] = id
		for _, g := range d.Grants {
			if _, err := c.Insert(ctx, store.RelationRolePermissions, store.Row{
				"role_id":  id,
				"resource": g[0],
				"action":   g[1],
			}); err != nil {
				return nil, fmt.Errorf("insert grant %s:%s for %s: %w", g[0], g[1], d.Name, err)
			}
		}
	}
	return ids, nil
}
