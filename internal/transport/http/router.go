// Package httptransport assembles the public HTTP surface: the shared
// middleware chain, public and session-protected route groups, health and
// metrics.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sixd/pkg/platform/httputil"
	"sixd/pkg/platform/middleware/admin"
	"sixd/pkg/platform/middleware/auth"
	"sixd/pkg/platform/middleware/metadata"
	"sixd/pkg/platform/middleware/request"
	"sixd/pkg/platform/middleware/requesttime"
)

// RouteRegistrar is implemented by module handlers.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// PublicRegistrar mounts routes that need no session.
type PublicRegistrar interface {
	RegisterPublic(r chi.Router)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps collects what NewRouter needs. Nil handlers are skipped.
type Deps struct {
	Logger     *slog.Logger
	Sessions   auth.SessionVerifier
	AdminToken string
	Public     []PublicRegistrar
	Protected  []RouteRegistrar
	Health     map[string]HealthCheck

	// ClientIP decides which proxies may name the client. Nil trusts none.
	ClientIP *metadata.Resolver

	// PublicLimit throttles the public routes. Nil disables throttling.
	PublicLimit func(http.Handler) http.Handler
}

const requestTimeout = 30 * time.Second

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recoverer(d.Logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(d.ClientIP.ClientMetadata)
	r.Use(request.Logger(d.Logger))
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Get("/healthz", healthHandler(d.Health))
	r.With(admin.RequireAdminToken(d.AdminToken, d.Logger)).Handle("/metrics", promhttp.Handler())

	r.Group(func(pub chi.Router) {
		if d.PublicLimit != nil {
			pub.Use(d.PublicLimit)
		}
		for _, h := range d.Public {
			h.RegisterPublic(pub)
		}
	})

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSession(d.Sessions, d.Logger))
		for _, h := range d.Protected {
			h.Register(pr)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	})
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = "unavailable"
				continue
			}
			body[name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}
