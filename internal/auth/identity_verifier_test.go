package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var verifierTestNow = time.Unix(1700000600, 0).UTC()

func newTestVerifier(t *testing.T) *IdentityVerifier {
	t.Helper()

	verifier, err := NewIdentityVerifier(IdentityVerifierConfig{
		SigningSecret: []byte("identity-secret"),
		Issuer:        "credtrack-identity",
		Clock:         func() time.Time { return verifierTestNow },
	})
	if err != nil {
		t.Fatalf("failed to construct verifier: %v", err)
	}
	return verifier
}

func signIdentityToken(t *testing.T, secret []byte, claims IdentityClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestNewIdentityVerifierValidatesConfig(t *testing.T) {
	_, err := NewIdentityVerifier(IdentityVerifierConfig{Issuer: "credtrack-identity"})
	if !errors.Is(err, ErrMissingIdentitySigningKey) {
		t.Fatalf("expected ErrMissingIdentitySigningKey, got %v", err)
	}

	_, err = NewIdentityVerifier(IdentityVerifierConfig{SigningSecret: []byte("x"), Issuer: "   "})
	if !errors.Is(err, ErrMissingIdentityIssuer) {
		t.Fatalf("expected ErrMissingIdentityIssuer, got %v", err)
	}
}

func TestValidateIdentityTokenReturnsClaims(t *testing.T) {
	verifier := newTestVerifier(t)

	signed := signIdentityToken(t, []byte("identity-secret"), IdentityClaims{
		UserEmail:       "user@example.com",
		UserDisplayName: "Example User",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "credtrack-identity",
			IssuedAt:  jwt.NewNumericDate(verifierTestNow),
			ExpiresAt: jwt.NewNumericDate(verifierTestNow.Add(time.Hour)),
		},
	})

	claims, err := verifier.ValidateToken(signed)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.UserEmail != "user@example.com" || claims.UserDisplayName != "Example User" {
		t.Fatalf("unexpected profile claims %+v", claims)
	}
}

func TestValidateIdentityTokenRejectsBlank(t *testing.T) {
	verifier := newTestVerifier(t)

	if _, err := verifier.ValidateToken("   "); !errors.Is(err, ErrMissingIdentityToken) {
		t.Fatalf("expected ErrMissingIdentityToken, got %v", err)
	}
}

func TestValidateIdentityTokenRejectsExpired(t *testing.T) {
	verifier := newTestVerifier(t)

	signed := signIdentityToken(t, []byte("identity-secret"), IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "credtrack-identity",
			ExpiresAt: jwt.NewNumericDate(verifierTestNow.Add(-time.Minute)),
		},
	})

	if _, err := verifier.ValidateToken(signed); !errors.Is(err, ErrExpiredIdentityToken) {
		t.Fatalf("expected ErrExpiredIdentityToken, got %v", err)
	}
}

func TestValidateIdentityTokenRejectsWrongSecret(t *testing.T) {
	verifier := newTestVerifier(t)

	signed := signIdentityToken(t, []byte("wrong-secret"), IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "credtrack-identity",
			ExpiresAt: jwt.NewNumericDate(verifierTestNow.Add(time.Hour)),
		},
	})

	if _, err := verifier.ValidateToken(signed); !errors.Is(err, ErrInvalidIdentityToken) {
		t.Fatalf("expected ErrInvalidIdentityToken, got %v", err)
	}
}

func TestValidateIdentityTokenRejectsWrongIssuer(t *testing.T) {
	verifier := newTestVerifier(t)

	signed := signIdentityToken(t, []byte("identity-secret"), IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(verifierTestNow.Add(time.Hour)),
		},
	})

	if _, err := verifier.ValidateToken(signed); !errors.Is(err, ErrInvalidIdentityToken) {
		t.Fatalf("expected ErrInvalidIdentityToken, got %v", err)
	}
}

func TestValidateIdentityTokenRejectsMissingSubject(t *testing.T) {
	verifier := newTestVerifier(t)

	signed := signIdentityToken(t, []byte("identity-secret"), IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "credtrack-identity",
			ExpiresAt: jwt.NewNumericDate(verifierTestNow.Add(time.Hour)),
		},
	})

	if _, err := verifier.ValidateToken(signed); !errors.Is(err, ErrMissingIdentitySubject) {
		t.Fatalf("expected ErrMissingIdentitySubject, got %v", err)
	}
}
