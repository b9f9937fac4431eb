package domain

import "time"

// Identity links a user to a sign-in method: a local password or an OAuth account.
type Identity struct {
	ID           string
	UserID       string
	Provider     IdentityProvider
	ProviderID   string // email for local identities, the provider's subject otherwise
	PasswordHash string // empty if not local
	CreatedAt    time.Time
}

type IdentityProvider string

const (
	IdentityProviderLocal  IdentityProvider = "local"
	IdentityProviderGoogle IdentityProvider = "google"
	IdentityProviderGitHub IdentityProvider = "github"
)
