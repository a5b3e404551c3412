package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("IDP_HMAC_SECRET", "provider-secret")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, devSessionSecret, cfg.Session.Secret)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.TrustedProxies)
	assert.Equal(t, 30, cfg.RateLimit.PublicLimit)
	assert.Equal(t, time.Minute, cfg.RateLimit.PublicWindow)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("IDP_HMAC_SECRET", "provider-secret")
	t.Setenv("KAFKA_BROKERS", " broker-1:9092, ,broker-2:9092 ")
	t.Setenv("TX_TIMEOUT", "2s")
	t.Setenv("PROFILE_VIEW_TTL", "not-a-duration")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.1")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.TxTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Redis.ViewTTL)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, cfg.TrustedProxies)
}

func TestFromEnvProductionRequiresSecrets(t *testing.T) {
	t.Setenv("IDP_HMAC_SECRET", "provider-secret")
	t.Setenv("ENVIRONMENT", "production")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "SESSION_SECRET")

	t.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestFromEnvRequiresProviderKey(t *testing.T) {
	t.Setenv("IDP_HMAC_SECRET", "")
	t.Setenv("IDP_RSA_PUBLIC_KEY", "")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "IDP_HMAC_SECRET")
}
