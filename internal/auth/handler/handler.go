package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	addresshandler "sixd/internal/address/handler"
	addressmodels "sixd/internal/address/models"
	authservice "sixd/internal/auth/service"
	dErrors "sixd/pkg/domain-errors"
	"sixd/pkg/platform/httputil"
	"sixd/pkg/requestcontext"
)

// Service defines the sign-in operations.
type Service interface {
	Login(ctx context.Context, rawAssertion, displayName string) (*authservice.Result, error)
	CompleteRegistration(ctx context.Context, rawAssertion, displayName string, data addressmodels.AddressData) (*authservice.Result, error)
}

// Handler serves the sign-in endpoints. Both are public; the provider
// assertion in the body is the credential.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the sign-in endpoints.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/v1/auth/login", h.HandleLogin)
	r.Post("/v1/auth/register", h.HandleRegister)
}

// SessionResponse is returned by both sign-in endpoints.
type SessionResponse struct {
	SessionToken string                          `json:"session_token"`
	TokenType    string                          `json:"token_type"`
	ExpiresAt    time.Time                       `json:"expires_at"`
	Created      bool                            `json:"account_created"`
	Profile      *addresshandler.ProfileResponse `json:"profile"`
}

func fromResult(res *authservice.Result) *SessionResponse {
	return &SessionResponse{
		SessionToken: res.Session.Value,
		TokenType:    "Bearer",
		ExpiresAt:    res.Session.ExpiresAt.UTC(),
		Created:      res.Created,
		Profile:      addresshandler.FromView(res.Profile),
	}
}

// HandleLogin handles POST /v1/auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Login(ctx, req.IDToken, req.DisplayName)
	if err != nil {
		h.writeFailure(ctx, w, requestID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromResult(res))
}

// HandleRegister handles POST /v1/auth/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.CompleteRegistration(ctx, req.IDToken, req.DisplayName, req.AddressData())
	if err != nil {
		h.writeFailure(ctx, w, requestID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromResult(res))
}

func (h *Handler) writeFailure(ctx context.Context, w http.ResponseWriter, requestID string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "sign-in failed",
			"request_id", requestID,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
