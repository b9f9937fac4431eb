package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrantSet(t *testing.T) {
	s := NewGrantSet([]Permission{
		{RoleID: "r", Resource: ResourceQuotes, Action: ActionRead},
		{RoleID: "r", Resource: ResourceDocuments, Action: ActionRead},
	})
	assert.True(t, s.Has(ResourceQuotes, ActionRead))
	assert.True(t, s.Has("documents", "read"))
	assert.False(t, s.Has(ResourceQuotes, ActionDelete))
	assert.False(t, GrantSet(nil).Has(ResourceQuotes, ActionRead))
	assert.Equal(t, "quotes:read", Grant("quotes", "read"))
}
