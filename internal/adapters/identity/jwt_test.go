package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
)

var uma = domain.Actor{ID: "user-u", Username: "uma", Role: domain.RoleUser}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	v, err := NewVerifier("s3cret")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	token, err := v.Issue(uma, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	subject, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject != uma.ID {
		t.Fatalf("expected %s, got %s", uma.ID, subject)
	}
	claims, err := v.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Username != "uma" || claims.Role != "user" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	v, _ := NewVerifier("s3cret")
	other, _ := NewVerifier("different")

	foreign, err := other.Issue(uma, time.Hour)
	if err != nil {
		t.Fatalf("issue foreign: %v", err)
	}

	v.now = func() time.Time { return time.Now().UTC().Add(-2 * time.Hour) }
	expired, err := v.Issue(uma, time.Hour)
	if err != nil {
		t.Fatalf("issue expired: %v", err)
	}
	v.now = func() time.Time { return time.Now().UTC() }

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   uma.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatalf("sign wrong issuer: %v", err)
	}

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"foreign":      foreign,
		"expired":      expired,
		"wrong issuer": wrongIssuer,
	} {
		if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected invalid token, got %v", name, err)
		}
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	if _, err := NewVerifier("  "); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
