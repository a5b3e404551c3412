package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"sixd/internal/identity/metrics"
	"sixd/internal/identity/models"
	id "sixd/pkg/domain"
	dErrors "sixd/pkg/domain-errors"
	audit "sixd/pkg/platform/audit"
	"sixd/pkg/platform/sentinel"
	txcontext "sixd/pkg/platform/tx"
	"sixd/pkg/requestcontext"
)

// Store persists accounts. Create returns sentinel.ErrConflict when the
// external reference is already linked.
type Store interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	FindByExternalRef(ctx context.Context, externalRef string) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// ChangeListener is notified after an account's profile changed.
type ChangeListener func(ctx context.Context, accountID id.AccountID)

// Service links external identities to accounts and manages profiles.
type Service struct {
	store    Store
	tx       txcontext.Runner
	auditor  AuditPublisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	onChange []ChangeListener
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

func WithChangeListener(fn ChangeListener) Option {
	return func(s *Service) {
		s.onChange = append(s.onChange, fn)
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
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

// ResolveOrCreate returns the account linked to externalRef, creating it when
// absent. A supplied display name that differs from the stored one renames
// the account. Creation requires a display name.
func (s *Service) ResolveOrCreate(ctx context.Context, externalRef, phone string, profile *models.Profile) (*models.Account, bool, error) {
	start := time.Now()
	defer s.observeResolve(start)

	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return nil, false, dErrors.New(dErrors.CodeUnauthorized, "identity assertion has no subject")
	}
	var displayName string
	if profile != nil {
		displayName = strings.TrimSpace(profile.DisplayName)
	}

	existing, err := s.store.FindByExternalRef(ctx, externalRef)
	switch {
	case err == nil:
		if displayName == "" {
			return existing, false, nil
		}
		renamed, err := s.Rename(ctx, existing.ID, displayName)
		return renamed, false, err
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}

	if displayName == "" {
		return nil, false, dErrors.New(dErrors.CodeProfileIncomplete, "display name is required to create an account")
	}

	account, err := models.NewAccount(id.NewAccountID(), externalRef, phone, displayName, requestcontext.Now(ctx))
	if err != nil {
		return nil, false, err
	}

	ctx = txcontext.WithShardKey(ctx, externalRef)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, account); err != nil {
			return err
		}
		return s.emit(txCtx, audit.EventAccountCreated, account.ID, "")
	})
	if errors.Is(err, sentinel.ErrConflict) {
		// Lost a creation race for the same external ref. Inside a caller's
		// transaction the failed insert aborted it, so the caller must retry.
		if _, inTx := txcontext.From(ctx); inTx {
			return nil, false, dErrors.New(dErrors.CodeConflict, "account was created concurrently, retry")
		}
		winner, findErr := s.store.FindByExternalRef(ctx, externalRef)
		if findErr != nil {
			return nil, false, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to load account")
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, wrapInternal(err, "failed to create account")
	}

	s.logger.InfoContext(ctx, "account created",
		"account_id", account.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementAccountsCreated()
	}
	return account, true, nil
}

// Lookup returns the account linked to externalRef.
func (s *Service) Lookup(ctx context.Context, externalRef string) (*models.Account, error) {
	account, err := s.store.FindByExternalRef(ctx, strings.TrimSpace(externalRef))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return account, nil
}

// Get returns an account by ID.
func (s *Service) Get(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	account, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return account, nil
}

// Rename changes an account's display name.
func (s *Service) Rename(ctx context.Context, accountID id.AccountID, displayName string) (*models.Account, error) {
	var (
		result  *models.Account
		changed bool
	)
	ctx = txcontext.WithShardKey(ctx, accountID.String())
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		account, err := s.Get(txCtx, accountID)
		if err != nil {
			return err
		}
		changed, err = account.Rename(displayName, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		result = account
		if !changed {
			return nil
		}
		if err := s.store.Update(txCtx, account); err != nil {
			return err
		}
		return s.emit(txCtx, audit.EventAccountRenamed, account.ID, "")
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to rename account")
	}
	if changed {
		if s.metrics != nil {
			s.metrics.IncrementAccountsRenamed()
		}
		s.notify(ctx, accountID)
	}
	return result, nil
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, accountID id.AccountID, subject string) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.Emit(ctx, audit.Event{
		AccountID: accountID,
		Action:    string(event),
		Subject:   subject,
		RequestID: requestcontext.RequestID(ctx),
		Timestamp: requestcontext.Now(ctx),
	})
}

func (s *Service) notify(ctx context.Context, accountID id.AccountID) {
	for _, fn := range s.onChange {
		fn(ctx, accountID)
	}
}

func (s *Service) observeResolve(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveResolveOrCreate(start)
	}
}

// wrapInternal passes coded errors through and wraps everything else.
func wrapInternal(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
