package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"

	roledomain "greenline/backend/internal/role/domain"
)

// Org represents an organization/tenant.
type Org struct {
	ID                 string
	Name               string
	Slug               string
	OwnerID            string
	SubscriptionTier   Tier
	SubscriptionStatus SubscriptionStatus
	CreatedAt          time.Time
}

type Tier string

const TierSolo Tier = "solo"

type SubscriptionStatus string

const (
	StatusTrialing SubscriptionStatus = "trialing"
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases name and replaces every run of characters outside [a-z0-9] with "-".
func Slugify(name string) string {
	return nonSlug.ReplaceAllString(strings.ToLower(name), "-")
}

// Validate validates the organization for creation and fills defaults (slug, tier, status).
// Returns an error describing the first validation failure.
func (o *Org) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return errors.New("name is required")
	}
	if o.OwnerID == "" {
		return errors.New("owner is required")
	}
	if o.Slug == "" {
		o.Slug = Slugify(o.Name)
	}
	if o.SubscriptionTier == "" {
		o.SubscriptionTier = TierSolo
	}
	if o.SubscriptionStatus == "" {
		o.SubscriptionStatus = StatusTrialing
	}
	return nil
}

// WithRole is an organization as seen by one member: the organization plus that member's role.
type WithRole struct {
	Org
	Role roledomain.Name
}

// Update is a partial update of an organization. Nil fields are left unchanged.
type Update struct {
	Name               *string
	Slug               *string
	SubscriptionTier   *Tier
	SubscriptionStatus *SubscriptionStatus
}

// Empty reports whether u changes nothing.
func (u Update) Empty() bool {
	return u.Name == nil && u.Slug == nil && u.SubscriptionTier == nil && u.SubscriptionStatus == nil
}

// Apply returns a copy of o with u applied.
func (u Update) Apply(o Org) Org {
	if u.Name != nil {
		o.Name = *u.Name
	}
	if u.Slug != nil {
		o.Slug = *u.Slug
	}
	if u.SubscriptionTier != nil {
		o.SubscriptionTier = *u.SubscriptionTier
	}
	if u.SubscriptionStatus != nil {
		o.SubscriptionStatus = *u.SubscriptionStatus
	}
	return o
}
