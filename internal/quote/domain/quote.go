package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"greenline/backend/internal/money"
)

// Status is the lifecycle state of a quote.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusAccepted, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// ItemType is the cost category of a line item.
type ItemType string

const (
	ItemPlant    ItemType = "plant"
	ItemMaterial ItemType = "material"
	ItemLabor    ItemType = "labor"
	ItemOther    ItemType = "other"
)

// Valid reports whether t is one of the four cost categories.
func (t ItemType) Valid() bool {
	switch t {
	case ItemPlant, ItemMaterial, ItemLabor, ItemOther:
		return true
	}
	return false
}

// Client is the customer a quote is written for.
type Client struct {
	ID      string
	Name    string
	Email   string
	Phone   string
	Address string
	City    string
	State   string
	ZipCode string
}

// FullAddress joins the non-empty address parts with ", ".
func (c Client) FullAddress() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{c.Address, c.City, c.State, c.ZipCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Quote is a priced offer to a client. Cost fields are derived from its items; see ComputeTotals.
type Quote struct {
	ID            string
	OrgID         string
	ClientID      string
	ClientName    string
	ClientEmail   string
	ClientPhone   string
	ClientAddress string
	QuoteNumber   string
	Status        Status
	ProjectName   string
	TaxRate       decimal.Decimal
	PlantsCost    decimal.Decimal
	MaterialsCost decimal.Decimal
	LaborCost     decimal.Decimal
	OtherCost     decimal.Decimal
	Subtotal      decimal.Decimal
	TaxAmount     decimal.Decimal
	TotalAmount   decimal.Decimal
	CreatedBy     string
	CreatedAt     time.Time
}

// Totals returns the derived fields currently held by q.
func (q *Quote) Totals() Totals {
	return Totals{
		Plants:    q.PlantsCost,
		Materials: q.MaterialsCost,
		Labor:     q.LaborCost,
		Other:     q.OtherCost,
		Subtotal:  q.Subtotal,
		Tax:       q.TaxAmount,
		Total:     q.TotalAmount,
	}
}

// Item is one line of a quote. TotalPrice always equals LineTotal(Quantity, UnitPrice).
type Item struct {
	ID          string
	QuoteID     string
	Type        ItemType
	Name        string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
	CreatedAt   time.Time
}

// LineTotal is round2(quantity * unitPrice).
func LineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return money.Round2(quantity.Mul(unitPrice))
}

// Totals are the aggregate fields of a quote.
type Totals struct {
	Plants    decimal.Decimal
	Materials decimal.Decimal
	Labor     decimal.Decimal
	Other     decimal.Decimal
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal
}

// Equal reports whether t and o hold the same amounts.
func (t Totals) Equal(o Totals) bool {
	return t.Plants.Equal(o.Plants) && t.Materials.Equal(o.Materials) && t.Labor.Equal(o.Labor) &&
		t.Other.Equal(o.Other) && t.Subtotal.Equal(o.Subtotal) && t.Tax.Equal(o.Tax) && t.Total.Equal(o.Total)
}

// ComputeTotals buckets items by type and derives subtotal, tax and total. Each bucket is rounded
// after every item is added. Items whose type is not one of the four categories count as other.
func ComputeTotals(items []Item, taxRate decimal.Decimal) Totals {
	var t Totals
	for _, it := range items {
		switch it.Type {
		case ItemPlant:
			t.Plants = money.Round2(t.Plants.Add(it.TotalPrice))
		case ItemMaterial:
			t.Materials = money.Round2(t.Materials.Add(it.TotalPrice))
		case ItemLabor:
			t.Labor = money.Round2(t.Labor.Add(it.TotalPrice))
		default:
			t.Other = money.Round2(t.Other.Add(it.TotalPrice))
		}
	}
	t.Subtotal = money.Round2(t.Plants.Add(t.Materials).Add(t.Labor).Add(t.Other))
	t.Tax = money.Percent(t.Subtotal, taxRate)
	t.Total = money.Round2(t.Subtotal.Add(t.Tax))
	return t
}

// ItemUpdate is a partial update of a line item. Nil fields are left unchanged.
type ItemUpdate struct {
	Type        *ItemType
	Name        *string
	Description *string
	Quantity    *decimal.Decimal
	UnitPrice   *decimal.Decimal
	TotalPrice  *decimal.Decimal
}
