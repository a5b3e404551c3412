// Package service implements the address lifecycle: register once, update at
// most every 30 days, archive every superseded record.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sixd/internal/address/metrics"
	"sixd/internal/address/models"
	"sixd/internal/geo/codec"
	identitymodels "sixd/internal/identity/models"
	id "sixd/pkg/domain"
	dErrors "sixd/pkg/domain-errors"
	audit "sixd/pkg/platform/audit"
	"sixd/pkg/platform/middleware/device"
	"sixd/pkg/platform/sentinel"
	txcontext "sixd/pkg/platform/tx"
	"sixd/pkg/requestcontext"
)

// Store persists current addresses and their history.
//
// FindByAccountForUpdate locks the account's row until the surrounding
// transaction ends. Insert returns sentinel.ErrConflict when a record exists.
// ArchiveAndReplace writes the history entry and the new current record as
// one step.
type Store interface {
	FindByAccount(ctx context.Context, accountID id.AccountID) (*models.AddressRecord, error)
	FindByAccountForUpdate(ctx context.Context, accountID id.AccountID) (*models.AddressRecord, error)
	Insert(ctx context.Context, record *models.AddressRecord) error
	ArchiveAndReplace(ctx context.Context, archived models.HistoryEntry, next *models.AddressRecord) error
	ListHistory(ctx context.Context, accountID id.AccountID) ([]models.HistoryEntry, error)
}

// AccountReader loads the profile an address belongs to.
type AccountReader interface {
	Get(ctx context.Context, accountID id.AccountID) (*identitymodels.Account, error)
}

// RegionChecker decides whether a point is inside the supported country.
type RegionChecker interface {
	Check(c id.Coordinate) error
	IsSupported(c id.Coordinate) bool
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// ViewCache caches profile views. Implementations must call load on a miss
// and may share one load between concurrent callers.
type ViewCache interface {
	GetOrLoad(ctx context.Context, accountID id.AccountID, load func(ctx context.Context) (*models.ProfileView, error)) (*models.ProfileView, error)
	Invalidate(ctx context.Context, accountID id.AccountID) error
}

type Service struct {
	store    Store
	accounts AccountReader
	regions  RegionChecker
	tx       txcontext.Runner
	auditor  AuditPublisher
	cache    ViewCache
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTx sets the unit-of-work runner. Defaults to an in-memory sharded runner.
func WithTx(runner txcontext.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func WithViewCache(cache ViewCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func New(store Store, accounts AccountReader, regions RegionChecker, opts ...Option) *Service {
	s := &Service{
		store:    store,
		accounts: accounts,
		regions:  regions,
		tracer:   otel.Tracer("sixd/internal/address"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = txcontext.NewShardedRunner(0)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Resolve validates data and derives its 6D code. It is the gate every
// register and update passes before touching storage.
func (s *Service) Resolve(data models.AddressData) (models.AddressData, codec.Code, error) {
	data, err := data.Normalize()
	if err != nil {
		return models.AddressData{}, codec.Code{}, err
	}
	if err := s.regions.Check(data.Point); err != nil {
		return models.AddressData{}, codec.Code{}, err
	}
	code, err := codec.Derive(data.Point)
	if err != nil {
		return models.AddressData{}, codec.Code{}, err
	}
	return data, code, nil
}

// Preview derives the code and tier boxes for a point without storing anything.
func (s *Service) Preview(c id.Coordinate) (*models.CodePreview, error) {
	code, err := codec.Derive(c)
	if err != nil {
		return nil, err
	}
	boxes, err := codec.TierBoxes(c)
	if err != nil {
		return nil, err
	}
	return &models.CodePreview{Code: code, Boxes: boxes, Supported: s.regions.IsSupported(c)}, nil
}

// CheckRegion reports why a point is not registrable, or nil when it is.
func (s *Service) CheckRegion(c id.Coordinate) error {
	return s.regions.Check(c)
}

// Register stores the first address for an account.
func (s *Service) Register(ctx context.Context, accountID id.AccountID, data models.AddressData) (*models.AddressRecord, error) {
	const op = "register"
	ctx, span := s.startSpan(ctx, "address.Register", accountID)
	defer span.End()
	start := time.Now()

	data, code, err := s.Resolve(data)
	if err != nil {
		return nil, s.fail(ctx, span, op, err)
	}

	var record *models.AddressRecord
	ctx = txcontext.WithShardKey(ctx, accountID.String())
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.accounts.Get(txCtx, accountID); err != nil {
			return err
		}
		_, err := s.store.FindByAccountForUpdate(txCtx, accountID)
		switch {
		case err == nil:
			return alreadyRegistered()
		case !errors.Is(err, sentinel.ErrNotFound):
			return err
		}

		record = models.NewRecord(accountID, data, code, requestcontext.Now(txCtx))
		if err := s.store.Insert(txCtx, record); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return alreadyRegistered()
			}
			return err
		}
		return s.emit(txCtx, audit.EventAddressRegistered, accountID, record.Code, "")
	})
	if err != nil {
		return nil, s.fail(ctx, span, op, wrapInternal(err, "failed to register address"))
	}

	s.invalidate(ctx, accountID)
	s.logger.InfoContext(ctx, "address registered",
		"account_id", accountID,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementRegistered()
		s.metrics.ObserveLifecycle(op, start)
	}
	span.SetAttributes(attribute.String("sixd.code", record.Code))
	return record, nil
}

// Update replaces the current address once the cooldown has elapsed. The
// superseded record is archived with archived_at equal to the new
// registered_at, in the same transaction as the overwrite.
func (s *Service) Update(ctx context.Context, accountID id.AccountID, data models.AddressData) (*models.AddressRecord, error) {
	const op = "update"
	ctx, span := s.startSpan(ctx, "address.Update", accountID)
	defer span.End()
	start := time.Now()

	data, code, err := s.Resolve(data)
	if err != nil {
		return nil, s.fail(ctx, span, op, err)
	}

	var next *models.AddressRecord
	ctx = txcontext.WithShardKey(ctx, accountID.String())
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.store.FindByAccountForUpdate(txCtx, accountID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNoCurrentAddress, "no address registered for this account")
			}
			return err
		}

		now := requestcontext.Now(txCtx)
		if !current.CanUpdate(now) {
			return &models.CooldownError{NextEligibleAt: current.NextEligibleAt()}
		}

		next = models.NewRecord(accountID, data, code, now)
		if err := s.store.ArchiveAndReplace(txCtx, current.Archive(now), next); err != nil {
			return err
		}
		return s.emit(txCtx, audit.EventAddressUpdated, accountID, next.Code, "previous_code="+current.Code)
	})
	if err != nil {
		return nil, s.fail(ctx, span, op, wrapInternal(err, "failed to update address"))
	}

	s.invalidate(ctx, accountID)
	s.logger.InfoContext(ctx, "address updated",
		"account_id", accountID,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementUpdated()
		s.metrics.ObserveLifecycle(op, start)
	}
	span.SetAttributes(attribute.String("sixd.code", next.Code))
	return next, nil
}

// Read returns the account profile joined with its current address, which is
// nil when none is registered. Reads never change state.
func (s *Service) Read(ctx context.Context, accountID id.AccountID) (*models.ProfileView, error) {
	if s.cache == nil {
		return s.loadView(ctx, accountID)
	}
	return s.cache.GetOrLoad(ctx, accountID, func(ctx context.Context) (*models.ProfileView, error) {
		return s.loadView(ctx, accountID)
	})
}

func (s *Service) loadView(ctx context.Context, accountID id.AccountID) (*models.ProfileView, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	view := &models.ProfileView{
		AccountID:   account.ID,
		PhoneNumber: account.PhoneNumber,
		DisplayName: account.DisplayName,
		CreatedAt:   account.CreatedAt,
	}
	record, err := s.store.FindByAccount(ctx, accountID)
	switch {
	case err == nil:
		view.Address = record
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load address")
	}
	return view, nil
}

// HasAddress reports whether the account has a current address. It reads the
// store directly so it joins the caller's transaction.
func (s *Service) HasAddress(ctx context.Context, accountID id.AccountID) (bool, error) {
	_, err := s.store.FindByAccount(ctx, accountID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return false, nil
	default:
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load address")
	}
}

// ReadHistory lists superseded addresses, most recently archived first.
func (s *Service) ReadHistory(ctx context.Context, accountID id.AccountID) ([]models.HistoryEntry, error) {
	entries, err := s.store.ListHistory(ctx, accountID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load address history")
	}
	return entries, nil
}

// InvalidateView drops the cached profile view; used when the profile side changes.
func (s *Service) InvalidateView(ctx context.Context, accountID id.AccountID) {
	s.invalidate(ctx, accountID)
}

func (s *Service) invalidate(ctx context.Context, accountID id.AccountID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, accountID); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate profile view cache",
			"account_id", accountID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, accountID id.AccountID, subject, reason string) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.Emit(ctx, audit.Event{
		AccountID: accountID,
		Action:    string(event),
		Subject:   subject,
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
		Device:    device.Label(ctx),
		Timestamp: requestcontext.Now(ctx),
	})
}

func (s *Service) startSpan(ctx context.Context, name string, accountID id.AccountID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("sixd.account_id", accountID.String()),
	))
}

func (s *Service) fail(ctx context.Context, span trace.Span, op string, err error) error {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "address "+op+" failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	if s.metrics != nil {
		s.metrics.IncrementRejection(op, string(code))
	}
	return err
}

func alreadyRegistered() error {
	return dErrors.New(dErrors.CodeAlreadyRegistered, "an address is already registered; use update instead")
}

// wrapInternal passes coded errors through and wraps everything else.
func wrapInternal(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
