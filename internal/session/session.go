// Package session issues and verifies the stateless bearer credential handed
// out after a successful login or registration.
package session

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	id "sixd/pkg/domain"
	dErrors "sixd/pkg/domain-errors"
	"sixd/pkg/requestcontext"
)

// DefaultTTL is how long an issued session stays valid.
const DefaultTTL = 7 * 24 * time.Hour

// MinSecretLength is the shortest master secret accepted for key derivation.
const MinSecretLength = 32

const keyInfo = "sixd session signing key v1"

// Claims are the session token claims.
type Claims struct {
	AccountID string `json:"account_id"`
	jwt.RegisteredClaims
}

// Token is an issued session.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
}

type Option func(*Issuer)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// DeriveKey expands the configured master secret into the HMAC signing key,
// so the raw secret never signs anything directly.
func DeriveKey(masterSecret []byte, salt string) ([]byte, error) {
	if len(masterSecret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterSecret, []byte(salt), []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return key, nil
}

// NewIssuer derives the signing key from masterSecret. The issuer name salts
// the derivation so deployments sharing a secret still sign differently.
func NewIssuer(masterSecret, issuer, audience string, opts ...Option) (*Issuer, error) {
	key, err := DeriveKey([]byte(masterSecret), issuer)
	if err != nil {
		return nil, err
	}
	i := &Issuer{
		signingKey: key,
		issuer:     issuer,
		audience:   audience,
		ttl:        DefaultTTL,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue signs a session for accountID valid from the request time.
func (i *Issuer) Issue(ctx context.Context, accountID id.AccountID) (*Token, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session requires an account")
	}
	now := requestcontext.Now(ctx)
	expiresAt := now.Add(i.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AccountID: accountID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    i.issuer,
			Audience:  []string{i.audience},
			ID:        uuid.NewString(),
		},
	})
	signed, err := tok.SignedString(i.signingKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session")
	}
	return &Token{Value: signed, ExpiresAt: expiresAt}, nil
}

// Verify returns the account bound to token. Every failure (bad signature,
// wrong algorithm, expiry, wrong issuer or audience, malformed claims) is the
// same InvalidSession error.
func (i *Issuer) Verify(ctx context.Context, token string) (id.AccountID, error) {
	now := requestcontext.Now(ctx)
	parsed, err := jwt.ParseWithClaims(token, &Claims{},
		func(*jwt.Token) (any, error) { return i.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return id.AccountID{}, invalid(err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return id.AccountID{}, invalid(nil)
	}
	accountID, err := id.ParseAccountID(claims.AccountID)
	if err != nil {
		return id.AccountID{}, invalid(err)
	}
	return accountID, nil
}

func invalid(cause error) error {
	return dErrors.Wrap(cause, dErrors.CodeInvalidSession, "invalid or expired session")
}
