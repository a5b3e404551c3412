package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sixd/internal/address/models"
	id "sixd/pkg/domain"
	dErrors "sixd/pkg/domain-errors"
	"sixd/pkg/platform/httputil"
	"sixd/pkg/requestcontext"
)

// Service defines the address operations the handler needs.
type Service interface {
	Register(ctx context.Context, accountID id.AccountID, data models.AddressData) (*models.AddressRecord, error)
	Update(ctx context.Context, accountID id.AccountID, data models.AddressData) (*models.AddressRecord, error)
	Read(ctx context.Context, accountID id.AccountID) (*models.ProfileView, error)
	ReadHistory(ctx context.Context, accountID id.AccountID) ([]models.HistoryEntry, error)
	Preview(c id.Coordinate) (*models.CodePreview, error)
	CheckRegion(c id.Coordinate) error
}

// Handler wires address endpoints to the address service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the endpoints usable before sign-in.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/v1/codes/derive", h.HandleDerive)
	r.Post("/v1/regions/check", h.HandleRegionCheck)
}

// Register mounts the session-protected endpoints. The caller installs the
// session middleware.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/me", h.HandleGetProfile)
	r.Get("/v1/me/history", h.HandleGetHistory)
	r.Post("/v1/me/address", h.HandleRegister)
	r.Put("/v1/me/address", h.HandleUpdate)
}

// HandleGetProfile handles GET /v1/me.
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	accountID, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}

	view, err := h.service.Read(ctx, accountID)
	if err != nil {
		h.writeFailure(ctx, w, "failed to read profile", requestID, accountID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromView(view))
}

// HandleGetHistory handles GET /v1/me/history.
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	accountID, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}

	entries, err := h.service.ReadHistory(ctx, accountID)
	if err != nil {
		h.writeFailure(ctx, w, "failed to read address history", requestID, accountID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromHistory(entries))
}

// HandleRegister handles POST /v1/me/address.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	accountID, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[AddressRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.Register(ctx, accountID, req.Data())
	if err != nil {
		h.writeFailure(ctx, w, "address registration rejected", requestID, accountID, err)
		return
	}

	h.logger.InfoContext(ctx, "address registered via api",
		"request_id", requestID,
		"account_id", accountID,
		"code", record.Code,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromRecord(record))
}

// HandleUpdate handles PUT /v1/me/address.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	accountID, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[AddressRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.Update(ctx, accountID, req.Data())
	if err != nil {
		h.writeFailure(ctx, w, "address update rejected", requestID, accountID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(record))
}

// HandleDerive handles POST /v1/codes/derive.
func (h *Handler) HandleDerive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CoordinateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	preview, err := h.service.Preview(req.Coordinate())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPreview(preview))
}

// HandleRegionCheck handles POST /v1/regions/check.
func (h *Handler) HandleRegionCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CoordinateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	resp := RegionCheckResponse{Supported: true}
	if err := h.service.CheckRegion(req.Coordinate()); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeUnsupportedRegion) {
			httputil.WriteError(w, err)
			return
		}
		resp.Supported = false
		if de, ok := dErrors.As(err); ok {
			resp.Reason = de.Message
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) requireAccount(w http.ResponseWriter, ctx context.Context) (id.AccountID, bool) {
	accountID := requestcontext.AccountID(ctx)
	if accountID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidSession, "invalid or expired session"))
		return id.AccountID{}, false
	}
	return accountID, true
}

// writeFailure logs client rejections at warn and everything else at error.
func (h *Handler) writeFailure(ctx context.Context, w http.ResponseWriter, msg, requestID string, accountID id.AccountID, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestID,
		"account_id", accountID,
		"error", err,
	)
	httputil.WriteError(w, err)
}
