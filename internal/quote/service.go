// Package quote is the quote aggregation engine: it keeps the current organization's quotes and
// the open quote's items, and recomputes a quote's derived totals after every item mutation.
package quote

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"greenline/backend/internal/audit"
	"greenline/backend/internal/quote/domain"
	"greenline/backend/internal/quote/repository"
)

var (
	ErrNoOrganization = errors.New("quote: no organization selected")
	ErrNoUser         = errors.New("quote: not signed in")
	ErrClientRequired = errors.New("quote: client is required")
	ErrQuoteNotFound  = errors.New("quote: quote not found")
	ErrItemNotFound   = errors.New("quote: item not found")
	// ErrUnknownItemType rejects items outside the plant, material, labor and other categories.
	ErrUnknownItemType = errors.New("quote: unknown item type")
	ErrInvalidStatus   = errors.New("quote: invalid status")
	// ErrRecomputeTotals marks an item mutation that was stored while the quote totals were not
	// updated. The quote keeps its previous totals until the next successful recompute.
	ErrRecomputeTotals = errors.New("quote: item saved but totals were not recomputed")
)

// Organizations reports the organization quotes are scoped to.
type Organizations interface {
	CurrentOrganizationID() string
}

// Users reports the signed-in user.
type Users interface {
	CurrentUserID() string
}

// NewQuote is the input of CreateQuote.
type NewQuote struct {
	ClientID    string
	ProjectName string
	TaxRate     decimal.Decimal
}

// NewItem is the input of AddItem. A zero Quantity is stored as 1.
type NewItem struct {
	Type        domain.ItemType
	Name        string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Service is the quote aggregation engine.
type Service struct {
	repo  repository.Repository
	orgs  Organizations
	users Users
	audit audit.AuditLogger
	log   *zap.Logger
	now   func() time.Time

	mu      sync.RWMutex
	quotes  []*domain.Quote
	current *domain.Quote
	items   []*domain.Item
	loading bool
	err     string
}

// NewService returns a Service. auditLogger and logger may be nil.
func NewService(repo repository.Repository, orgs Organizations, users Users, auditLogger audit.AuditLogger, logger *zap.Logger) *Service {
	if auditLogger == nil {
		auditLogger = audit.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, orgs: orgs, users: users, audit: auditLogger, log: logger, now: time.Now}
}

// LoadQuotes fetches the current organization's quotes, newest first. Without a current
// organization it does nothing.
func (s *Service) LoadQuotes(ctx context.Context) error {
	orgID := s.orgs.CurrentOrganizationID()
	if orgID == "" {
		return nil
	}
	s.begin()
	defer s.end()

	quotes, err := s.repo.ListQuotesByOrg(ctx, orgID)
	if err != nil {
		s.log.Warn("quote: list failed", zap.String("org_id", orgID), zap.Error(err))
		return s.fail(fmt.Errorf("load quotes: %w", err))
	}
	s.mu.Lock()
	s.quotes = quotes
	s.mu.Unlock()
	return nil
}

// LoadQuoteByID fetches one of the current organization's quotes with its items and makes it the
// current quote.
func (s *Service) LoadQuoteByID(ctx context.Context, id string) (*domain.Quote, error) {
	orgID := s.orgs.CurrentOrganizationID()
	if orgID == "" {
		return nil, s.fail(ErrNoOrganization)
	}
	s.begin()
	defer s.end()

	q, err := s.repo.GetQuote(ctx, orgID, id)
	if err != nil {
		s.log.Warn("quote: get failed", zap.String("quote_id", id), zap.Error(err))
		return nil, s.fail(fmt.Errorf("load quote: %w", err))
	}
	if q == nil {
		return nil, s.fail(ErrQuoteNotFound)
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		s.log.Warn("quote: list items failed", zap.String("quote_id", id), zap.Error(err))
		return nil, s.fail(fmt.Errorf("load quote items: %w", err))
	}
	s.mu.Lock()
	s.current = q
	s.items = items
	s.mu.Unlock()
	return q, nil
}

// CreateQuote creates a draft quote for one of the current organization's clients. The client's
// contact details are copied onto the quote.
func (s *Service) CreateQuote(ctx context.Context, in NewQuote) (*domain.Quote, error) {
	orgID := s.orgs.CurrentOrganizationID()
	if orgID == "" {
		return nil, s.fail(ErrNoOrganization)
	}
	userID := s.users.CurrentUserID()
	if userID == "" {
		return nil, s.fail(ErrNoUser)
	}
	if in.ClientID == "" {
		return nil, s.fail(ErrClientRequired)
	}
	s.begin()
	defer s.end()

	client, err := s.repo.GetClient(ctx, orgID, in.ClientID)
	if err != nil {
		s.log.Warn("quote: client lookup failed", zap.String("org_id", orgID), zap.String("client_id", in.ClientID), zap.Error(err))
		return nil, s.fail(fmt.Errorf("load client: %w", err))
	}
	if client == nil {
		return nil, s.fail(fmt.Errorf("%w: client %s not found", ErrClientRequired, in.ClientID))
	}

	created, err := s.repo.CreateQuote(ctx, &domain.Quote{
		OrgID:         orgID,
		ClientID:      client.ID,
		ClientName:    client.Name,
		ClientEmail:   client.Email,
		ClientPhone:   client.Phone,
		ClientAddress: client.FullAddress(),
		QuoteNumber:   s.nextNumber(ctx),
		Status:        domain.StatusDraft,
		ProjectName:   in.ProjectName,
		TaxRate:       in.TaxRate,
		CreatedBy:     userID,
	})
	if err != nil {
		s.log.Warn("quote: create failed", zap.String("org_id", orgID), zap.Error(err))
		return nil, s.fail(fmt.Errorf("create quote: %w", err))
	}
	s.mu.Lock()
	s.quotes = append([]*domain.Quote{created}, s.quotes...)
	s.mu.Unlock()
	return created, nil
}

func (s *Service) nextNumber(ctx context.Context) string {
	n, err := s.repo.NextQuoteNumber(ctx)
	if err != nil {
		tmp := fmt.Sprintf("TMP-%d", s.now().UnixMilli())
		s.log.Warn("quote: number generation failed; using temporary number", zap.String("quote_number", tmp), zap.Error(err))
		return tmp
	}
	return n
}

// UpdateQuoteStatus moves a quote to status.
func (s *Service) UpdateQuoteStatus(ctx context.Context, id string, status domain.Status) (*domain.Quote, error) {
	if !status.Valid() {
		return nil, s.fail(fmt.Errorf("%w: %q", ErrInvalidStatus, status))
	}
	orgID := s.orgs.CurrentOrganizationID()
	if orgID == "" {
		return nil, s.fail(ErrNoOrganization)
	}
	s.begin()
	defer s.end()

	q, err := s.repo.UpdateStatus(ctx, orgID, id, status)
	if err != nil {
		s.log.Warn("quote: status update failed", zap.String("quote_id", id), zap.Error(err))
		return nil, s.fail(fmt.Errorf("update quote status: %w", err))
	}
	if q == nil {
		return nil, s.fail(ErrQuoteNotFound)
	}
	s.replace(q)
	s.audit.LogEvent(ctx, q.OrgID, s.users.CurrentUserID(), audit.ActionQuoteStatus, "quote",
		map[string]string{"quote_id": q.ID, "status": string(status)})
	return q, nil
}

// AddItem stores a line item and recomputes the quote's totals.
func (s *Service) AddItem(ctx context.Context, quoteID string, in NewItem) (*domain.Item, error) {
	if !in.Type.Valid() {
		return nil, s.fail(fmt.Errorf("%w: %q", ErrUnknownItemType, in.Type))
	}
	qty := in.Quantity
	if qty.IsZero() {
		qty = decimal.NewFromInt(1)
	}
	orgID := s.orgs.CurrentOrganizationID()
	if orgID == "" {
		return nil, s.fail(ErrNoOrganization)
	}
	s.begin()
	defer s.end()

	if _, err := s.scopedQuote(ctx, orgID, quoteID); err != nil {
		return nil, s.fail(err)
	}
	it, err := s.repo.CreateItem(ctx, &domain.Item{
		QuoteID:     quoteID,
		Type:        in.Type,
		Name:        in.Name,
		Description: in.Description,
		Quantity:    qty,
		UnitPrice:   in.UnitPrice,
		TotalPrice:  domain.LineTotal(qty, in.UnitPrice),
	})
	if err != nil {
		s.log.Warn("quote: add item failed", zap.String("quote_id", quoteID), zap.Error(err))
		return nil, s.fail(fmt.Errorf("add item: %w", err))
	}
	s.mu.Lock()
	if s.current != nil && s.current.ID == quoteID {
		s.items = append(s.items, it)
	}
	s.mu.Unlock()
	return it, s.recompute(ctx, orgID, quoteID)
}

// UpdateItem applies u to an item and recomputes the quote's totals. When the quantity or unit
// price changes, the total price is derived from the new pair; a TotalPrice in u is ignored.
func (s *Service) UpdateItem(ctx context.Context, id string, u domain.ItemUpdate) (*domain.Item, error) {
	if u.Type != nil && !u.Type.Valid() {
		return nil, s.fail(fmt.Errorf("%w: %q", ErrUnknownItemType, *u.Type))
	}
	orgID := s.orgs.CurrentOrganizationID()
	if orgID == "" {
		return nil, s.fail(ErrNoOrganization)
	}
	s.begin()
	defer s.end()

	prev, err := s.item(ctx, orgID, id)
	if err != nil {
		return nil, s.fail(err)
	}
	u.TotalPrice = nil
	if u.Quantity != nil || u.UnitPrice != nil {
		qty, price := prev.Quantity, prev.UnitPrice
		if u.Quantity != nil {
			qty = *u.Quantity
		}
		if u.UnitPrice != nil {
			price = *u.UnitPrice
		}
		total := domain.LineTotal(qty, price)
		u.TotalPrice = &total
	}

	it, err := s.repo.UpdateItem(ctx, id, u)
	if err != nil {
		s.log.Warn("quote: update item failed", zap.String("item_id", id), zap.Error(err))
		return nil, s.fail(fmt.Errorf("update item: %w", err))
	}
	s.mu.Lock()
	if i := slices.IndexFunc(s.items, func(x *domain.Item) bool { return x.ID == id }); i >= 0 {
		s.items[i] = it
	}
	s.mu.Unlock()
	return it, s.recompute(ctx, orgID, prev.QuoteID)
}

// DeleteItem removes an item and recomputes the quote's totals.
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	orgID := s.orgs.CurrentOrganizationID()
	if orgID == "" {
		return s.fail(ErrNoOrganization)
	}
	s.begin()
	defer s.end()

	prev, err := s.item(ctx, orgID, id)
	if err != nil {
		return s.fail(err)
	}
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		s.log.Warn("quote: delete item failed", zap.String("item_id", id), zap.Error(err))
		return s.fail(fmt.Errorf("delete item: %w", err))
	}
	s.mu.Lock()
	s.items = slices.DeleteFunc(s.items, func(x *domain.Item) bool { return x.ID == id })
	s.mu.Unlock()
	return s.recompute(ctx, orgID, prev.QuoteID)
}

// item returns the item for id, cached or fetched, after checking that its quote belongs to orgID.
// Items of other organizations' quotes are reported as not found.
func (s *Service) item(ctx context.Context, orgID, id string) (*domain.Item, error) {
	s.mu.RLock()
	i := slices.IndexFunc(s.items, func(x *domain.Item) bool { return x.ID == id })
	var cached *domain.Item
	if i >= 0 {
		cached = s.items[i]
	}
	s.mu.RUnlock()
	it := cached
	if it == nil {
		var err error
		if it, err = s.repo.GetItem(ctx, id); err != nil {
			s.log.Warn("quote: get item failed", zap.String("item_id", id), zap.Error(err))
			return nil, fmt.Errorf("load item: %w", err)
		}
		if it == nil {
			return nil, ErrItemNotFound
		}
	}
	if _, err := s.scopedQuote(ctx, orgID, it.QuoteID); err != nil {
		if errors.Is(err, ErrQuoteNotFound) {
			s.log.Warn("quote: item outside the current organization", zap.String("org_id", orgID), zap.String("item_id", id))
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return it, nil
}

// scopedQuote returns quote id when it belongs to orgID, from the detail cache or the store.
func (s *Service) scopedQuote(ctx context.Context, orgID, id string) (*domain.Quote, error) {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	if cur != nil && cur.ID == id && cur.OrgID == orgID {
		return cur, nil
	}
	q, err := s.repo.GetQuote(ctx, orgID, id)
	if err != nil {
		s.log.Warn("quote: get failed", zap.String("quote_id", id), zap.Error(err))
		return nil, fmt.Errorf("load quote: %w", err)
	}
	if q == nil {
		return nil, ErrQuoteNotFound
	}
	return q, nil
}

func (s *Service) recompute(ctx context.Context, orgID, quoteID string) error {
	if err := s.recomputeTotals(ctx, orgID, quoteID); err != nil {
		return s.fail(fmt.Errorf("%w: %w", ErrRecomputeTotals, err))
	}
	return nil
}

// RecomputeTotals derives the quote's category costs, subtotal, tax and total from its stored
// items and writes them in one update. Running it again with unchanged items writes the same
// totals.
func (s *Service) RecomputeTotals(ctx context.Context, quoteID string) error {
	orgID := s.orgs.CurrentOrganizationID()
	if orgID == "" {
		return s.fail(ErrNoOrganization)
	}
	s.begin()
	defer s.end()
	return s.recomputeTotals(ctx, orgID, quoteID)
}

func (s *Service) recomputeTotals(ctx context.Context, orgID, quoteID string) error {
	q, err := s.scopedQuote(ctx, orgID, quoteID)
	if err != nil {
		return s.fail(err)
	}

	items, err := s.repo.ListItems(ctx, quoteID)
	if err != nil {
		s.log.Warn("quote: list items failed", zap.String("quote_id", quoteID), zap.Error(err))
		return s.fail(fmt.Errorf("load quote items: %w", err))
	}
	vals := make([]domain.Item, len(items))
	for i, it := range items {
		vals[i] = *it
	}
	updated, err := s.repo.UpdateTotals(ctx, orgID, quoteID, domain.ComputeTotals(vals, q.TaxRate))
	if err != nil {
		s.log.Error("quote: totals update failed", zap.String("quote_id", quoteID), zap.Error(err))
		return s.fail(fmt.Errorf("update totals: %w", err))
	}
	if updated == nil {
		return s.fail(ErrQuoteNotFound)
	}
	s.replace(updated)
	s.mu.Lock()
	if s.current != nil && s.current.ID == quoteID {
		s.items = items
	}
	s.mu.Unlock()
	return nil
}

// replace swaps q into the list and detail caches.
func (s *Service) replace(q *domain.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.quotes, func(x *domain.Quote) bool { return x.ID == q.ID }); i >= 0 {
		s.quotes[i] = q
	}
	if s.current != nil && s.current.ID == q.ID {
		s.current = q
	}
}

// ClearCurrentQuote drops the current quote and its items.
func (s *Service) ClearCurrentQuote() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.items = nil
}

// Reset drops every cached quote. It is called when the current organization changes.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes = nil
	s.current = nil
	s.items = nil
	s.err = ""
}

// Quotes returns the cached quote list.
func (s *Service) Quotes() []*domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.quotes)
}

func (s *Service) CurrentQuote() *domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Items returns the current quote's items, oldest first.
func (s *Service) Items() []*domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the message of the last failed operation, or "" when it succeeded.
func (s *Service) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Service) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
}

func (s *Service) end() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

func (s *Service) fail(err error) error {
	s.mu.Lock()
	s.err = err.Error()
	s.mu.Unlock()
	return err
}
