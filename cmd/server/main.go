package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	addresscache "sixd/internal/address/cache"
	addresshandler "sixd/internal/address/handler"
	addressmetrics "sixd/internal/address/metrics"
	addressservice "sixd/internal/address/service"
	addressstore "sixd/internal/address/store"
	authhandler "sixd/internal/auth/handler"
	authservice "sixd/internal/auth/service"
	"sixd/internal/geo/region"
	identityhandler "sixd/internal/identity/handler"
	identitymetrics "sixd/internal/identity/metrics"
	identityservice "sixd/internal/identity/service"
	"sixd/internal/identity/store/account"
	"sixd/internal/identity/verifier"
	"sixd/internal/platform/config"
	"sixd/internal/platform/httpserver"
	"sixd/internal/platform/kafka"
	"sixd/internal/platform/logger"
	"sixd/internal/platform/metrics"
	"sixd/internal/platform/outbox"
	"sixd/internal/platform/postgres"
	"sixd/internal/platform/redis"
	"sixd/internal/ratelimit"
	"sixd/internal/session"
	httptransport "sixd/internal/transport/http"
	id "sixd/pkg/domain"
	"sixd/pkg/platform/audit"
	"sixd/pkg/platform/audit/publishers/compliance"
	auditmemory "sixd/pkg/platform/audit/store/memory"
	auditpostgres "sixd/pkg/platform/audit/store/postgres"
	"sixd/pkg/platform/middleware/metadata"
	txcontext "sixd/pkg/platform/tx"
)

// main wires dependencies and runs the HTTP server alongside the outbox relay
// until SIGINT or SIGTERM. Business logic lives in the internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("sixd exited with error", "error", err)
		os.Exit(1)
	}
}

// infra holds the storage-backed building blocks. Memory implementations are
// used when no database is configured.
type infra struct {
	db        *postgres.DB
	redis     *redis.Client
	tx        txcontext.Runner
	accounts  identityservice.Store
	addresses addressservice.Store
	audit     audit.Store
	outbox    *auditpostgres.Store
}

func buildInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	in := &infra{}

	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		in.tx = txcontext.NewShardedRunner(cfg.TxTimeout)
		in.accounts = account.NewInMemory()
		in.addresses = addressstore.NewInMemory()
		in.audit = auditmemory.NewInMemoryStore()
	} else {
		db, err := postgres.New(ctx, postgres.Config{
			URL:                cfg.Database.URL,
			MaxOpenConns:       cfg.Database.MaxOpenConns,
			MaxIdleConns:       cfg.Database.MaxIdleConns,
			ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
			StatementTimeoutMS: cfg.Database.StatementTimeoutMS,
		})
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		in.db = db
		in.tx = txcontext.NewPostgresRunner(db.DB, cfg.TxTimeout)
		in.accounts = account.NewPostgres(db.DB)
		in.addresses = addressstore.NewPostgres(db.DB)
		in.outbox = auditpostgres.New(db.DB)
		in.audit = in.outbox
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		// The view cache is optional; reads fall back to storage.
		log.Warn("redis unavailable, profile view cache disabled", "error", err)
	}
	in.redis = rc
	return in, nil
}

func (in *infra) close(log *slog.Logger) {
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			log.Warn("close redis", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			log.Warn("close database", "error", err)
		}
	}
}

func (in *infra) healthChecks() map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if in.db != nil {
		checks["database"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	return checks
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	bounds, err := region.LoadFile(cfg.RegionConfigPath)
	if err != nil {
		return err
	}
	regions, err := region.New(bounds)
	if err != nil {
		return fmt.Errorf("region config: %w", err)
	}

	in, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.close(log)

	publisher := compliance.New(in.audit,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics()),
	)

	// The address service is built after identity but identity renames must
	// evict cached views, so the listener resolves it lazily.
	var addresses *addressservice.Service
	identity := identityservice.New(in.accounts,
		identityservice.WithLogger(log),
		identityservice.WithAuditPublisher(publisher),
		identityservice.WithMetrics(identitymetrics.New()),
		identityservice.WithTx(in.tx),
		identityservice.WithChangeListener(func(ctx context.Context, accountID id.AccountID) {
			addresses.InvalidateView(ctx, accountID)
		}),
	)

	addrMetrics := addressmetrics.New()
	addrOpts := []addressservice.Option{
		addressservice.WithLogger(log),
		addressservice.WithAuditPublisher(publisher),
		addressservice.WithMetrics(addrMetrics),
		addressservice.WithTx(in.tx),
	}
	if in.redis != nil {
		addrOpts = append(addrOpts, addressservice.WithViewCache(addresscache.New(in.redis.Client,
			addresscache.WithTTL(cfg.Redis.ViewTTL),
			addresscache.WithLogger(log),
			addresscache.WithMetrics(addrMetrics),
		)))
	}
	addresses = addressservice.New(in.addresses, identity, regions, addrOpts...)

	sessions, err := session.NewIssuer(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.Audience,
		session.WithTTL(cfg.Session.TTL),
	)
	if err != nil {
		return fmt.Errorf("session issuer: %w", err)
	}
	assertions, err := verifier.New(verifier.Config{
		Issuer:          cfg.Identity.Issuer,
		Audience:        cfg.Identity.Audience,
		HMACSecret:      cfg.Identity.HMACSecret,
		RSAPublicKeyPEM: cfg.Identity.RSAPublicKeyPEM,
		Leeway:          cfg.Identity.Leeway,
	})
	if err != nil {
		return fmt.Errorf("identity verifier: %w", err)
	}
	signIn := authservice.New(assertions, identity, addresses, sessions,
		authservice.WithLogger(log),
		authservice.WithAuditPublisher(publisher),
		authservice.WithMetrics(metrics.New()),
		authservice.WithTx(in.tx),
	)

	limiter := newPublicLimiter(cfg.RateLimit, in, log)
	clientIP, err := metadata.NewResolver(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	addressHandler := addresshandler.New(addresses, log)
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:     log,
		Sessions:   sessions,
		AdminToken: cfg.AdminToken,
		Public: []httptransport.PublicRegistrar{
			authhandler.New(signIn, log),
			addressHandler,
		},
		Protected: []httptransport.RouteRegistrar{
			addressHandler,
			identityhandler.New(identity, log),
		},
		Health:      in.healthChecks(),
		PublicLimit: limiter.Handler,
		ClientIP:    clientIP,
	})
	srv := httpserver.New(cfg.Addr, router, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting sixd", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if mem, ok := limiter.store.(*ratelimit.InMemoryStore); ok {
		g.Go(func() error {
			mem.RunSweeper(gctx, cfg.RateLimit.PublicWindow)
			return nil
		})
	}
	if err := startRelay(gctx, g, cfg.Kafka, in.outbox, log); err != nil {
		return err
	}
	return g.Wait()
}

// publicLimiter pairs the middleware with its store so main can run the
// in-memory sweeper.
type publicLimiter struct {
	*ratelimit.Middleware
	store ratelimit.Store
}

// newPublicLimiter shares windows through Redis when it is available.
func newPublicLimiter(cfg config.RateLimitConfig, in *infra, log *slog.Logger) publicLimiter {
	var store ratelimit.Store = ratelimit.NewInMemoryStore()
	if in.redis != nil {
		store = ratelimit.NewRedisStore(in.redis.Client)
	}
	return publicLimiter{
		Middleware: ratelimit.NewMiddleware(store, cfg.PublicLimit, cfg.PublicWindow, log),
		store:      store,
	}
}

// startRelay runs the outbox relay when both the database outbox and Kafka
// brokers are configured.
func startRelay(ctx context.Context, g *errgroup.Group, cfg config.KafkaConfig, source *auditpostgres.Store, log *slog.Logger) error {
	if source == nil || len(cfg.Brokers) == 0 {
		log.Info("outbox relay disabled")
		return nil
	}
	producer, err := kafka.NewProducer(cfg.Brokers, cfg.Topic)
	if err != nil {
		return err
	}
	topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := producer.EnsureTopic(topicCtx, cfg.Partitions, cfg.Replication); err != nil {
		// Brokers may auto-create; the relay retries publishing either way.
		log.Warn("ensure audit topic", "topic", cfg.Topic, "error", err)
	}

	relay := outbox.NewRelay(source, producer, log, cfg.RelayInterval, cfg.RelayBatch)
	g.Go(func() error {
		defer producer.Close()
		log.Info("outbox relay started", "topic", cfg.Topic)
		return relay.Run(ctx)
	})
	return nil
}
