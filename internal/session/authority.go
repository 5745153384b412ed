package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every verification failure: bad signature,
// malformed payload, missing user id, or expiry. Callers cannot tell the
// causes apart.
var ErrInvalidToken = errors.New("invalid session token")

// DefaultTokenTTL is the session lifetime when none is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Payload is the identity carried by a verified session token. Sessions are
// entirely implicit in the token; there is no server-side session table.
type Payload struct {
	UserID    string
	Email     string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Authority issues and verifies signed, time-bound session tokens.
type Authority struct {
	secret []byte
	ttl    time.Duration
}

// NewAuthority constructs an authority signing with the shared secret.
func NewAuthority(secret string, ttl time.Duration) *Authority {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Authority{secret: []byte(secret), ttl: ttl}
}

type sessionClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Issue mints an HMAC-SHA256 signed token for the user.
func (a *Authority) Issue(userID, email, name string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		UserID: userID,
		Email:  email,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, structure, and expiry. Any failure yields
// ErrInvalidToken; there is no partial-trust state.
func (a *Authority) Verify(token string) (*Payload, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	payload := &Payload{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Name:      claims.Name,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		payload.IssuedAt = claims.IssuedAt.Time
	}
	return payload, nil
}

// TokenTTL reports the configured session lifetime.
func (a *Authority) TokenTTL() time.Duration {
	return a.ttl
}
