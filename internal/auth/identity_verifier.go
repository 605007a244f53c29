package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingIdentitySigningKey = errors.New("identity verifier: signing key required")
	ErrMissingIdentityIssuer     = errors.New("identity verifier: issuer required")
	ErrMissingIdentityToken      = errors.New("identity verifier: token required")
	ErrInvalidIdentityToken      = errors.New("identity verifier: invalid token")
	ErrExpiredIdentityToken      = errors.New("identity verifier: token expired")
	ErrMissingIdentitySubject    = errors.New("identity verifier: subject required")
)

// IdentityClaims mirrors the JWT payload emitted by the identity provider.
type IdentityClaims struct {
	UserEmail       string `json:"user_email"`
	UserDisplayName string `json:"user_display_name"`
	jwt.RegisteredClaims
}

// IdentityVerifierConfig describes how to validate identity-provider JWTs.
type IdentityVerifierConfig struct {
	SigningSecret []byte
	Issuer        string
	Clock         func() time.Time
}

// IdentityVerifier validates HS256 JWTs issued by the identity provider.
type IdentityVerifier struct {
	signingSecret []byte
	issuer        string
	clock         func() time.Time
}

// NewIdentityVerifier constructs a verifier with the provided configuration.
func NewIdentityVerifier(cfg IdentityVerifierConfig) (*IdentityVerifier, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingIdentitySigningKey
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, ErrMissingIdentityIssuer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &IdentityVerifier{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		clock:         clock,
	}, nil
}

// ValidateToken validates the supplied JWT string and returns the parsed claims.
func (v *IdentityVerifier) ValidateToken(tokenString string) (IdentityClaims, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return IdentityClaims{}, ErrMissingIdentityToken
	}

	claims := &IdentityClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidIdentityToken, t.Method.Alg())
			}
			return v.signingSecret, nil
		},
		jwt.WithTimeFunc(v.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return IdentityClaims{}, ErrExpiredIdentityToken
		}
		return IdentityClaims{}, fmt.Errorf("%w: %v", ErrInvalidIdentityToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return IdentityClaims{}, ErrInvalidIdentityToken
	}
	if claims.Issuer != v.issuer {
		return IdentityClaims{}, ErrInvalidIdentityToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return IdentityClaims{}, ErrMissingIdentitySubject
	}
	return *claims, nil
}
