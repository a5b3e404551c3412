package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"sixd/internal/identity/models"
	id "sixd/pkg/domain"
	dErrors "sixd/pkg/domain-errors"
	"sixd/pkg/platform/httputil"
	"sixd/pkg/requestcontext"
)

// Service defines the identity operations exposed over HTTP.
type Service interface {
	Rename(ctx context.Context, accountID id.AccountID, displayName string) (*models.Account, error)
}

// Handler serves profile edits for the signed-in account.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the session-protected identity endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Put("/v1/me", h.HandleRename)
}

// RenameRequest is the body of PUT /v1/me.
type RenameRequest struct {
	DisplayName string `json:"display_name"`
}

// Validate implements httputil.Validatable.
func (r *RenameRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	name, err := models.NormalizeDisplayName(r.DisplayName)
	if err != nil {
		return err
	}
	r.DisplayName = name
	return nil
}

// AccountResponse is the JSON form of an account.
type AccountResponse struct {
	AccountID   string    `json:"account_id"`
	PhoneNumber string    `json:"phone_number"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func FromAccount(a *models.Account) *AccountResponse {
	return &AccountResponse{
		AccountID:   a.ID.String(),
		PhoneNumber: a.PhoneNumber,
		DisplayName: a.DisplayName,
		CreatedAt:   a.CreatedAt.UTC(),
		UpdatedAt:   a.UpdatedAt.UTC(),
	}
}

// HandleRename handles PUT /v1/me.
func (h *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	accountID := requestcontext.AccountID(ctx)
	if accountID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidSession, "invalid or expired session"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[RenameRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	account, err := h.service.Rename(ctx, accountID, strings.TrimSpace(req.DisplayName))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to rename account",
			"request_id", requestID,
			"account_id", accountID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromAccount(account))
}
