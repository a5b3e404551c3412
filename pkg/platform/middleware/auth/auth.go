// Package auth authenticates requests with the session bearer token.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "sixd/pkg/domain"
	dErrors "sixd/pkg/domain-errors"
	"sixd/pkg/platform/httputil"
	"sixd/pkg/requestcontext"
)

// SessionVerifier resolves a bearer token to the account it was issued for.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (id.AccountID, error)
}

const bearerPrefix = "Bearer "

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

// RequireSession rejects requests without a valid session and puts the
// account ID in context for the rest.
func RequireSession(verifier SessionVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := BearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing bearer token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidSession, "invalid or expired session"))
				return
			}

			accountID, err := verifier.Verify(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid session",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidSession, "invalid or expired session"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithAccountID(ctx, accountID)))
		})
	}
}
