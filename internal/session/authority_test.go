package session

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	a := NewAuthority("test-secret", time.Hour)
	token, err := a.Issue("42", "a@b.com", "A")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}

	payload, err := a.Verify(token)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if payload.UserID != "42" || payload.Email != "a@b.com" || payload.Name != "A" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if !payload.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", payload.ExpiresAt)
	}
	if payload.IssuedAt.IsZero() {
		t.Fatalf("expected issued-at to be set")
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	a := NewAuthority("test-secret", time.Hour)
	token, err := a.Issue("42", "a@b.com", "A")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	last := token[len(token)-1]
	flip := byte('A')
	if last == 'A' {
		flip = 'B'
	}
	tampered := token[:len(token)-1] + string(flip)
	if _, err := a.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	a := NewAuthority("test-secret", time.Hour)
	b := NewAuthority("other-secret", time.Hour)
	token, err := b.Issue("42", "a@b.com", "A")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := a.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	a := NewAuthority("test-secret", time.Millisecond)
	token, err := a.Issue("42", "a@b.com", "A")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := a.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestVerifyMissingUserID(t *testing.T) {
	secret := []byte("test-secret")
	claims := jwt.MapClaims{
		"email": "a@b.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}

	a := NewAuthority("test-secret", time.Hour)
	if _, err := a.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for missing userId, got %v", err)
	}
}

func TestVerifyEmptyToken(t *testing.T) {
	a := NewAuthority("test-secret", time.Hour)
	if _, err := a.Verify(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}
