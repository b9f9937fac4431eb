package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Acme Landscaping", "acme-landscaping"},
		{"Green & Co.", "green-co-"},
		{"  spaced  out ", "-spaced-out-"},
		{"ALLCAPS123", "allcaps123"},
		{"Ünïcode Gärden", "-n-code-g-rden"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestOrgValidate(t *testing.T) {
	o := &Org{Name: "Acme Landscaping", OwnerID: "u1"}
	require.NoError(t, o.Validate())
	assert.Equal(t, "acme-landscaping", o.Slug)
	assert.Equal(t, TierSolo, o.SubscriptionTier)
	assert.Equal(t, StatusTrialing, o.SubscriptionStatus)

	assert.Error(t, (&Org{Name: " ", OwnerID: "u1"}).Validate())
	assert.Error(t, (&Org{Name: "Acme"}).Validate())
}

func TestUpdateApply(t *testing.T) {
	name := "Renamed"
	status := StatusActive
	u := Update{Name: &name, SubscriptionStatus: &status}
	assert.False(t, u.Empty())
	assert.True(t, Update{}.Empty())

	got := u.Apply(Org{ID: "o1", Name: "Old", Slug: "old", SubscriptionStatus: StatusTrialing})
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "old", got.Slug)
	assert.Equal(t, StatusActive, got.SubscriptionStatus)
}
