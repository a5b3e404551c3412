package verifier

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "sixd/pkg/domain-errors"
	"sixd/pkg/requestcontext"
)

var t0 = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func assertionClaims(sub, phone string, exp time.Time) claims {
	return claims{
		PhoneNumber: phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "https://idp.example",
			Audience:  []string{"sixd"},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(t0),
		},
	}
}

func ctxAt(ts time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), ts)
}

func TestVerifyHMAC(t *testing.T) {
	v, err := New(Config{Issuer: "https://idp.example", Audience: "sixd", HMACSecret: "idp-secret"})
	require.NoError(t, err)

	sign := func(c claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("idp-secret"))
		require.NoError(t, err)
		return s
	}

	t.Run("valid assertion", func(t *testing.T) {
		a, err := v.Verify(ctxAt(t0), sign(assertionClaims("uid-1", "+252611234567", t0.Add(time.Hour))))
		require.NoError(t, err)
		assert.Equal(t, "uid-1", a.Subject)
		assert.Equal(t, "+252611234567", a.PhoneNumber)
	})

	t.Run("expired", func(t *testing.T) {
		_, err := v.Verify(ctxAt(t0.Add(2*time.Hour)), sign(assertionClaims("uid-1", "+252611234567", t0.Add(time.Hour))))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("missing phone", func(t *testing.T) {
		_, err := v.Verify(ctxAt(t0), sign(assertionClaims("uid-1", "", t0.Add(time.Hour))))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("missing subject", func(t *testing.T) {
		_, err := v.Verify(ctxAt(t0), sign(assertionClaims("", "+252611234567", t0.Add(time.Hour))))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		c := assertionClaims("uid-1", "+252611234567", t0.Add(time.Hour))
		c.Issuer = "https://evil.example"
		_, err := v.Verify(ctxAt(t0), sign(c))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestVerifyRSA(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := New(Config{Issuer: "https://idp.example", Audience: "sixd", RSAPublicKeyPEM: string(pemKey)})
	require.NoError(t, err)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, assertionClaims("uid-9", "+252611234567", t0.Add(time.Hour))).
		SignedString(key)
	require.NoError(t, err)

	a, err := v.Verify(ctxAt(t0), signed)
	require.NoError(t, err)
	assert.Equal(t, "uid-9", a.Subject)

	t.Run("rejects HMAC token signed with the public key", func(t *testing.T) {
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, assertionClaims("uid-9", "+252611234567", t0.Add(time.Hour))).
			SignedString(pemKey)
		require.NoError(t, err)
		_, err = v.Verify(ctxAt(t0), forged)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{RSAPublicKeyPEM: "not pem"})
	require.Error(t, err)
}
