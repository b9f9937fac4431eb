package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token is malformed, expired, or issued for someone else.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims are the claims of a session access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	SessionID string `json:"session_id"`
	Use       string `json:"token_use"`
}

// RefreshClaims are the claims of a session refresh token.
type RefreshClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
	Use       string `json:"token_use"`
}

const (
	useAccess  = "access"
	useRefresh = "refresh"
)

// Issued is a signed token with its id and expiry.
type Issued struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// TokenProvider issues and validates session JWTs signed with RS256 or ES256.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenProvider returns a TokenProvider signing with privateKey. issuer and audience are set on
// issued claims and required on validation.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// AccessTTL is the lifetime of issued access tokens.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL is the lifetime of issued refresh tokens.
func (p *TokenProvider) RefreshTTL() time.Duration { return p.refreshTTL }

func (p *TokenProvider) registered(subject string, ttl time.Duration) (jwt.RegisteredClaims, error) {
	jti, err := generateJTI()
	if err != nil {
		return jwt.RegisteredClaims{}, err
	}
	now := p.now().UTC()
	return jwt.RegisteredClaims{
		ID:        jti,
		Subject:   subject,
		Issuer:    p.issuer,
		Audience:  jwt.ClaimStrings{p.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}, nil
}

// IssueAccess issues a short-lived access token for userID within sessionID.
func (p *TokenProvider) IssueAccess(sessionID, userID, email string) (Issued, error) {
	rc, err := p.registered(userID, p.accessTTL)
	if err != nil {
		return Issued{}, err
	}
	token, err := p.sign(AccessClaims{RegisteredClaims: rc, Email: email, SessionID: sessionID, Use: useAccess})
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: token, ID: rc.ID, ExpiresAt: rc.ExpiresAt.Time}, nil
}

// IssueRefresh issues a long-lived refresh token bound to sessionID.
func (p *TokenProvider) IssueRefresh(sessionID, userID string) (Issued, error) {
	rc, err := p.registered(userID, p.refreshTTL)
	if err != nil {
		return Issued{}, err
	}
	token, err := p.sign(RefreshClaims{RegisteredClaims: rc, SessionID: sessionID, Use: useRefresh})
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: token, ID: rc.ID, ExpiresAt: rc.ExpiresAt.Time}, nil
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	return jwt.NewWithClaims(method, claims).SignedString(p.privateKey)
}

func (p *TokenProvider) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	}, jwt.WithIssuer(p.issuer), jwt.WithTimeFunc(p.now))
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	aud, err := claims.GetAudience()
	if err != nil || !slices.Contains(aud, p.audience) {
		return ErrInvalidToken
	}
	return nil
}

// ValidateAccess checks signature, expiry, issuer and audience of an access token.
func (p *TokenProvider) ValidateAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := p.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Use != useAccess {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateRefresh checks signature, expiry, issuer and audience of a refresh token.
func (p *TokenProvider) ValidateRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := p.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Use != useRefresh || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
