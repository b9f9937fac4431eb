package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	roledomain "greenline/backend/internal/role/domain"
)

func TestInvitationValidate(t *testing.T) {
	inv := &Invitation{OrgID: "o1", Email: "  Pat@Example.COM "}
	require.NoError(t, inv.Validate())
	assert.Equal(t, "pat@example.com", inv.Email)
	assert.Equal(t, roledomain.Member, inv.Role)
	assert.Equal(t, InvitationPending, inv.Status)

	assert.Error(t, (&Invitation{Email: "not-an-email"}).Validate())
	assert.Error(t, (&Invitation{}).Validate())
}
