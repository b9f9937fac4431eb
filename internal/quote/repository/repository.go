package repository

import (
	"context"

	"greenline/backend/internal/quote/domain"
)

// Repository defines persistence for quotes, their items and the clients they are written for.
type Repository interface {
	// ListQuotesByOrg returns the organization's quotes, newest first.
	ListQuotesByOrg(ctx context.Context, orgID string) ([]*domain.Quote, error)
	// GetQuote, UpdateTotals and UpdateStatus only see quotes of orgID; a quote of another
	// organization is reported as not found (nil).
	GetQuote(ctx context.Context, orgID, id string) (*domain.Quote, error)
	CreateQuote(ctx context.Context, q *domain.Quote) (*domain.Quote, error)
	UpdateTotals(ctx context.Context, orgID, id string, t domain.Totals) (*domain.Quote, error)
	UpdateStatus(ctx context.Context, orgID, id string, s domain.Status) (*domain.Quote, error)
	// NextQuoteNumber asks the store for the next number in the quote sequence.
	NextQuoteNumber(ctx context.Context) (string, error)

	// ListItems returns the quote's items, oldest first.
	ListItems(ctx context.Context, quoteID string) ([]*domain.Item, error)
	GetItem(ctx context.Context, id string) (*domain.Item, error)
	CreateItem(ctx context.Context, it *domain.Item) (*domain.Item, error)
	UpdateItem(ctx context.Context, id string, u domain.ItemUpdate) (*domain.Item, error)
	DeleteItem(ctx context.Context, id string) error

	GetClient(ctx context.Context, orgID, id string) (*domain.Client, error)
}
