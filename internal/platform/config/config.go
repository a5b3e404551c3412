package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "sixd/pkg/platform/strings"
)

// Server captures process configuration. Empty DatabaseURL, Redis.URL or
// Kafka.Brokers select the in-memory implementation or disable the feature.
type Server struct {
	Addr             string
	Environment      string
	LogLevel         string
	AdminToken       string
	ShutdownTimeout  time.Duration
	TxTimeout        time.Duration
	RegionConfigPath string
	// TrustedProxies lists CIDRs whose forwarding headers name the client.
	// Empty means the socket peer is always the client.
	TrustedProxies []string

	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Session   SessionConfig
	Identity  IdentityProviderConfig
	RateLimit RateLimitConfig
}

type DatabaseConfig struct {
	URL                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	StatementTimeoutMS int
}

// RedisConfig configures the profile view cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ViewTTL      time.Duration
}

// KafkaConfig configures the audit outbox relay.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	Partitions    int32
	Replication   int16
	RelayInterval time.Duration
	RelayBatch    int
}

type SessionConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// IdentityProviderConfig verifies assertions from the phone-OTP provider.
type IdentityProviderConfig struct {
	Issuer          string
	Audience        string
	HMACSecret      string
	RSAPublicKeyPEM string
	Leeway          time.Duration
}

// RateLimitConfig throttles the unauthenticated endpoints per client IP.
// A zero limit disables throttling.
type RateLimitConfig struct {
	PublicLimit  int
	PublicWindow time.Duration
}

// devSessionSecret is only accepted outside production.
const devSessionSecret = "dev-session-secret-change-in-production-0000"

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:             envOrDefault("SIXD_ADDR", ":8080"),
		Environment:      envOrDefault("ENVIRONMENT", "development"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		AdminToken:       os.Getenv("ADMIN_TOKEN"),
		ShutdownTimeout:  envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		TxTimeout:        envDuration("TX_TIMEOUT", 5*time.Second),
		RegionConfigPath: os.Getenv("REGION_CONFIG_PATH"),
		TrustedProxies:   envCSV("TRUSTED_PROXIES"),
		Database: DatabaseConfig{
			URL:                os.Getenv("DATABASE_URL"),
			MaxOpenConns:       envInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:       envInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:    envDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			StatementTimeoutMS: envInt("DB_STATEMENT_TIMEOUT_MS", 5000),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			ViewTTL:      envDuration("PROFILE_VIEW_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:       envCSV("KAFKA_BROKERS"),
			Topic:         envOrDefault("KAFKA_AUDIT_TOPIC", "sixd.audit.v1"),
			Partitions:    int32(envInt("KAFKA_AUDIT_PARTITIONS", 6)),
			Replication:   int16(envInt("KAFKA_AUDIT_REPLICATION", 1)),
			RelayInterval: envDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			RelayBatch:    envInt("OUTBOX_BATCH_SIZE", 100),
		},
		Session: SessionConfig{
			Secret:   os.Getenv("SESSION_SECRET"),
			Issuer:   envOrDefault("SESSION_ISSUER", "sixd"),
			Audience: envOrDefault("SESSION_AUDIENCE", "sixd-app"),
			TTL:      envDuration("SESSION_TTL", 7*24*time.Hour),
		},
		Identity: IdentityProviderConfig{
			Issuer:          os.Getenv("IDP_ISSUER"),
			Audience:        os.Getenv("IDP_AUDIENCE"),
			HMACSecret:      os.Getenv("IDP_HMAC_SECRET"),
			RSAPublicKeyPEM: os.Getenv("IDP_RSA_PUBLIC_KEY"),
			Leeway:          envDuration("IDP_LEEWAY", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			PublicLimit:  envInt("RATE_LIMIT_PUBLIC", 30),
			PublicWindow: envDuration("RATE_LIMIT_PUBLIC_WINDOW", time.Minute),
		},
	}

	if cfg.Session.Secret == "" {
		if cfg.IsProduction() {
			return Server{}, fmt.Errorf("SESSION_SECRET is required in production")
		}
		cfg.Session.Secret = devSessionSecret
	}
	if cfg.Identity.HMACSecret == "" && cfg.Identity.RSAPublicKeyPEM == "" {
		return Server{}, fmt.Errorf("IDP_HMAC_SECRET or IDP_RSA_PUBLIC_KEY is required")
	}
	if cfg.IsProduction() && cfg.Database.URL == "" {
		return Server{}, fmt.Errorf("DATABASE_URL is required in production")
	}
	return cfg, nil
}

func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

func envOrDefault(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envDuration accepts Go duration strings such as "5s" or "168h".
func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envCSV(name string) []string {
	return platformstrings.SplitList(os.Getenv(name))
}
