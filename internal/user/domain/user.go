package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// User is an account of the local auth provider.
type User struct {
	ID        string
	Email     string
	FullName  string
	CreatedAt time.Time
}

// NormalizeEmail trims and lower-cases email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail reports whether email is a plain address (no display name).
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return errors.New("invalid email format")
	}
	return nil
}

// Validate normalizes and validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	u.Email = NormalizeEmail(u.Email)
	u.FullName = strings.TrimSpace(u.FullName)
	return ValidateEmail(u.Email)
}
