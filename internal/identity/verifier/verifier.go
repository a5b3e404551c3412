// Package verifier checks the signed identity assertion (ID token) produced by
// the external phone-OTP provider and extracts the stable subject and the
// verified phone number.
package verifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "sixd/pkg/domain-errors"
	"sixd/pkg/requestcontext"
)

// Assertion is a verified identity.
type Assertion struct {
	Subject     string
	PhoneNumber string
}

type Config struct {
	Issuer   string
	Audience string
	// HMACSecret verifies HS256 assertions. Ignored when RSAPublicKeyPEM is set.
	HMACSecret string
	// RSAPublicKeyPEM verifies RS256 assertions.
	RSAPublicKeyPEM string
	// Leeway tolerates clock skew with the provider.
	Leeway time.Duration
}

type claims struct {
	PhoneNumber string `json:"phone_number"`
	jwt.RegisteredClaims
}

// Verifier validates provider assertions.
type Verifier struct {
	key      any
	methods  []string
	issuer   string
	audience string
	leeway   time.Duration
}

func New(cfg Config) (*Verifier, error) {
	v := &Verifier{issuer: cfg.Issuer, audience: cfg.Audience, leeway: cfg.Leeway}
	switch {
	case strings.TrimSpace(cfg.RSAPublicKeyPEM) != "":
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.RSAPublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse identity provider key: %w", err)
		}
		v.key = key
		v.methods = []string{jwt.SigningMethodRS256.Alg()}
	case cfg.HMACSecret != "":
		v.key = []byte(cfg.HMACSecret)
		v.methods = []string{jwt.SigningMethodHS256.Alg()}
	default:
		return nil, fmt.Errorf("identity provider verification key is required")
	}
	return v, nil
}

// Verify validates raw and returns the asserted identity.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Assertion, error) {
	now := requestcontext.Now(ctx)
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(*jwt.Token) (any, error) { return v.key, nil }, opts...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid identity assertion")
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid identity assertion")
	}
	if strings.TrimSpace(c.Subject) == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "identity assertion has no subject")
	}
	if strings.TrimSpace(c.PhoneNumber) == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "identity assertion has no verified phone number")
	}
	return &Assertion{Subject: c.Subject, PhoneNumber: c.PhoneNumber}, nil
}
