package repository

import (
	"context"
	"errors"
	"fmt"

	"greenline/backend/internal/money"
	"greenline/backend/internal/quote/domain"
	"greenline/backend/internal/store"
)

// QuoteNumberRPC is the remote procedure returning the next quote number.
const QuoteNumberRPC = "generate_quote_number"

type StoreRepository struct {
	client store.Client
}

// NewStoreRepository returns a quote repository over the remote store.
func NewStoreRepository(c store.Client) *StoreRepository {
	return &StoreRepository{client: c}
}

func (r *StoreRepository) ListQuotesByOrg(ctx context.Context, orgID string) ([]*domain.Quote, error) {
	rows, err := r.client.Select(ctx, store.RelationQuotes,
		store.Where(store.Eq("organization_id", orgID)).OrderBy(store.Desc("created_at")))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Quote, len(rows))
	for i, row := range rows {
		out[i] = rowToQuote(row)
	}
	return out, nil
}

// GetQuote returns the organization's quote for id, or nil if not found.
func (r *StoreRepository) GetQuote(ctx context.Context, orgID, id string) (*domain.Quote, error) {
	row, err := store.First(ctx, r.client, store.RelationQuotes,
		store.Where(store.Eq("id", id), store.Eq("organization_id", orgID)))
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToQuote(row), nil
}

func (r *StoreRepository) CreateQuote(ctx context.Context, q *domain.Quote) (*domain.Quote, error) {
	row := store.Row{
		"organization_id": q.OrgID,
		"client_name":     q.ClientName,
		"client_email":    q.ClientEmail,
		"client_phone":    q.ClientPhone,
		"client_address":  q.ClientAddress,
		"quote_number":    q.QuoteNumber,
		"status":          string(q.Status),
		"tax_rate":        money.Float(q.TaxRate),
		"created_by":      q.CreatedBy,
	}
	if q.ClientID != "" {
		row["client_id"] = q.ClientID
	}
	if q.ProjectName != "" {
		row["project_name"] = q.ProjectName
	} else {
		row["project_name"] = nil
	}
	stored, err := r.client.Insert(ctx, store.RelationQuotes, row)
	if err != nil {
		return nil, err
	}
	return rowToQuote(stored), nil
}

// UpdateTotals writes every derived field of the organization's quote in a single update. It
// returns nil if the quote is not found.
func (r *StoreRepository) UpdateTotals(ctx context.Context, orgID, id string, t domain.Totals) (*domain.Quote, error) {
	return r.update(ctx, orgID, id, store.Row{
		"plants_cost":    money.Float(t.Plants),
		"materials_cost": money.Float(t.Materials),
		"labor_cost":     money.Float(t.Labor),
		"other_cost":     money.Float(t.Other),
		"subtotal":       money.Float(t.Subtotal),
		"tax_amount":     money.Float(t.Tax),
		"total_amount":   money.Float(t.Total),
	})
}

// UpdateStatus sets the status of the organization's quote. It returns nil if the quote is not found.
func (r *StoreRepository) UpdateStatus(ctx context.Context, orgID, id string, s domain.Status) (*domain.Quote, error) {
	return r.update(ctx, orgID, id, store.Row{"status": string(s)})
}

func (r *StoreRepository) update(ctx context.Context, orgID, id string, patch store.Row) (*domain.Quote, error) {
	row, err := r.client.Update(ctx, store.RelationQuotes, patch, store.Eq("id", id), store.Eq("organization_id", orgID))
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToQuote(row), nil
}

func (r *StoreRepository) NextQuoteNumber(ctx context.Context) (string, error) {
	v, err := r.client.RPC(ctx, QuoteNumberRPC, nil)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%s returned %T", QuoteNumberRPC, v)
	}
	return s, nil
}

func (r *StoreRepository) ListItems(ctx context.Context, quoteID string) ([]*domain.Item, error) {
	rows, err := r.client.Select(ctx, store.RelationQuoteItems,
		store.Where(store.Eq("quote_id", quoteID)).OrderBy(store.Asc("created_at")))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Item, len(rows))
	for i, row := range rows {
		out[i] = rowToItem(row)
	}
	return out, nil
}

// GetItem returns the item for id, or nil if not found.
func (r *StoreRepository) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	row, err := store.First(ctx, r.client, store.RelationQuoteItems, store.Where(store.Eq("id", id)))
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToItem(row), nil
}

func (r *StoreRepository) CreateItem(ctx context.Context, it *domain.Item) (*domain.Item, error) {
	stored, err := r.client.Insert(ctx, store.RelationQuoteItems, store.Row{
		"quote_id":    it.QuoteID,
		"item_type":   string(it.Type),
		"item_name":   it.Name,
		"description": it.Description,
		"quantity":    money.Float(it.Quantity),
		"unit_price":  money.Float(it.UnitPrice),
		"total_price": money.Float(it.TotalPrice),
	})
	if err != nil {
		return nil, err
	}
	return rowToItem(stored), nil
}

func (r *StoreRepository) UpdateItem(ctx context.Context, id string, u domain.ItemUpdate) (*domain.Item, error) {
	patch := store.Row{}
	if u.Type != nil {
		patch["item_type"] = string(*u.Type)
	}
	if u.Name != nil {
		patch["item_name"] = *u.Name
	}
	if u.Description != nil {
		patch["description"] = *u.Description
	}
	if u.Quantity != nil {
		patch["quantity"] = money.Float(*u.Quantity)
	}
	if u.UnitPrice != nil {
		patch["unit_price"] = money.Float(*u.UnitPrice)
	}
	if u.TotalPrice != nil {
		patch["total_price"] = money.Float(*u.TotalPrice)
	}
	row, err := r.client.Update(ctx, store.RelationQuoteItems, patch, store.Eq("id", id))
	if err != nil {
		return nil, err
	}
	return rowToItem(row), nil
}

func (r *StoreRepository) DeleteItem(ctx context.Context, id string) error {
	return r.client.Delete(ctx, store.RelationQuoteItems, store.Eq("id", id))
}

// GetClient returns the organization's client for id, or nil if not found.
func (r *StoreRepository) GetClient(ctx context.Context, orgID, id string) (*domain.Client, error) {
	row, err := store.First(ctx, r.client, store.RelationClients,
		store.Where(store.Eq("id", id), store.Eq("organization_id", orgID)))
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.Client{
		ID:      row.String("id"),
		Name:    row.String("name"),
		Email:   row.String("email"),
		Phone:   row.String("phone"),
		Address: row.String("address"),
		City:    row.String("city"),
		State:   row.String("state"),
		ZipCode: row.String("zip_code"),
	}, nil
}

func rowToQuote(row store.Row) *domain.Quote {
	return &domain.Quote{
		ID:            row.String("id"),
		OrgID:         row.String("organization_id"),
		ClientID:      row.String("client_id"),
		ClientName:    row.String("client_name"),
		ClientEmail:   row.String("client_email"),
		ClientPhone:   row.String("client_phone"),
		ClientAddress: row.String("client_address"),
		QuoteNumber:   row.String("quote_number"),
		Status:        domain.Status(row.String("status")),
		ProjectName:   row.String("project_name"),
		TaxRate:       money.FromFloat(row.Float("tax_rate")),
		PlantsCost:    money.FromFloat(row.Float("plants_cost")),
		MaterialsCost: money.FromFloat(row.Float("materials_cost")),
		LaborCost:     money.FromFloat(row.Float("labor_cost")),
		OtherCost:     money.FromFloat(row.Float("other_cost")),
		Subtotal:      money.FromFloat(row.Float("subtotal")),
		TaxAmount:     money.FromFloat(row.Float("tax_amount")),
		TotalAmount:   money.FromFloat(row.Float("total_amount")),
		CreatedBy:     row.String("created_by"),
		CreatedAt:     row.Time("created_at"),
	}
}

func rowToItem(row store.Row) *domain.Item {
	return &domain.Item{
		ID:          row.String("id"),
		QuoteID:     row.String("quote_id"),
		Type:        domain.ItemType(row.String("item_type")),
		Name:        row.String("item_name"),
		Description: row.String("description"),
		Quantity:    money.FromFloat(row.Float("quantity")),
		UnitPrice:   money.FromFloat(row.Float("unit_price")),
		TotalPrice:  money.FromFloat(row.Float("total_price")),
		CreatedAt:   row.Time("created_at"),
	}
}
