package testutil

import (
	"net/http"

	id "sixd/pkg/domain"
	"sixd/pkg/requestcontext"
)

// WithAccountID adds an account ID to the request context, as the session
// middleware would for an authenticated request. Invalid IDs are ignored.
func WithAccountID(req *http.Request, accountID string) *http.Request {
	if parsed, err := id.ParseAccountID(accountID); err == nil {
		return req.WithContext(requestcontext.WithAccountID(req.Context(), parsed))
	}
	return req
}
