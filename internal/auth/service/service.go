// Package service signs residents in: it verifies the phone-provider
// assertion, links it to an account, optionally registers the first address
// and issues a session.
package service

import (
	"context"
	"log/slog"
	"time"

	addressmodels "sixd/internal/address/models"
	"sixd/internal/geo/codec"
	identitymodels "sixd/internal/identity/models"
	"sixd/internal/identity/verifier"
	"sixd/internal/platform/metrics"
	"sixd/internal/session"
	id "sixd/pkg/domain"
	dErrors "sixd/pkg/domain-errors"
	audit "sixd/pkg/platform/audit"
	"sixd/pkg/platform/middleware/device"
	txcontext "sixd/pkg/platform/tx"
	"sixd/pkg/requestcontext"
)

type AssertionVerifier interface {
	Verify(ctx context.Context, raw string) (*verifier.Assertion, error)
}

type Accounts interface {
	Lookup(ctx context.Context, externalRef string) (*identitymodels.Account, error)
	ResolveOrCreate(ctx context.Context, externalRef, phone string, profile *identitymodels.Profile) (*identitymodels.Account, bool, error)
}

type Addresses interface {
	Resolve(data addressmodels.AddressData) (addressmodels.AddressData, codec.Code, error)
	Register(ctx context.Context, accountID id.AccountID, data addressmodels.AddressData) (*addressmodels.AddressRecord, error)
	HasAddress(ctx context.Context, accountID id.AccountID) (bool, error)
	Read(ctx context.Context, accountID id.AccountID) (*addressmodels.ProfileView, error)
	InvalidateView(ctx context.Context, accountID id.AccountID)
}

type Sessions interface {
	Issue(ctx context.Context, accountID id.AccountID) (*session.Token, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Result is a successful sign-in.
type Result struct {
	Session *session.Token
	Profile *addressmodels.ProfileView
	Created bool
}

type Service struct {
	verifier  AssertionVerifier
	accounts  Accounts
	addresses Addresses
	sessions  Sessions
	auditor   AuditPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tx        txcontext.Runner
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

// WithTx sets the runner that makes registration one unit of work. Pass the
// runner the identity and address services use so their work joins it.
func WithTx(runner txcontext.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func New(v AssertionVerifier, accounts Accounts, addresses Addresses, sessions Sessions, opts ...Option) *Service {
	s := &Service{
		verifier:  v,
		accounts:  accounts,
		addresses: addresses,
		sessions:  sessions,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = txcontext.NewShardedRunner(0)
	}
	return s
}

// Login signs in an existing resident, or creates the account when a display
// name is supplied. A profile without an address comes back with
// RegistrationComplete false.
func (s *Service) Login(ctx context.Context, rawAssertion, displayName string) (*Result, error) {
	defer s.observe(metrics.FlowLogin, time.Now())

	assertion, err := s.verify(ctx, rawAssertion)
	if err != nil {
		return nil, err
	}

	var profile *identitymodels.Profile
	if displayName != "" {
		profile = &identitymodels.Profile{DisplayName: displayName}
	}
	account, created, err := s.accounts.ResolveOrCreate(ctx, assertion.Subject, assertion.PhoneNumber, profile)
	if err != nil {
		s.rejected(ctx, err)
		return nil, err
	}
	return s.finish(ctx, metrics.FlowLogin, account.ID, created)
}

// CompleteRegistration creates or renames the account and registers its
// first address as one unit of work. The address is validated and an
// existing registration rejected before any account is written, since the
// in-memory stores cannot roll back.
func (s *Service) CompleteRegistration(ctx context.Context, rawAssertion, displayName string, data addressmodels.AddressData) (*Result, error) {
	defer s.observe(metrics.FlowRegister, time.Now())

	assertion, err := s.verify(ctx, rawAssertion)
	if err != nil {
		return nil, err
	}

	data, _, err = s.addresses.Resolve(data)
	if err != nil {
		s.rejected(ctx, err)
		return nil, err
	}

	var (
		account *identitymodels.Account
		created bool
	)
	regCtx := txcontext.WithShardKey(ctx, assertion.Subject)
	err = s.tx.RunInTx(regCtx, func(txCtx context.Context) error {
		if err := s.ensureUnregistered(txCtx, assertion.Subject); err != nil {
			return err
		}
		var err error
		account, created, err = s.accounts.ResolveOrCreate(txCtx, assertion.Subject, assertion.PhoneNumber,
			&identitymodels.Profile{DisplayName: displayName})
		if err != nil {
			return err
		}
		_, err = s.addresses.Register(txCtx, account.ID, data)
		return err
	})
	if err != nil {
		err = wrapInternal(err, "failed to complete registration")
		s.rejected(ctx, err)
		return nil, err
	}

	// The nested services invalidated before the outer commit; a reader in
	// between may have cached the old view.
	s.addresses.InvalidateView(ctx, account.ID)
	return s.finish(ctx, metrics.FlowRegister, account.ID, created)
}

// ensureUnregistered rejects sign-up for a resident who already has an
// address, before ResolveOrCreate can rename them.
func (s *Service) ensureUnregistered(ctx context.Context, externalRef string) error {
	existing, err := s.accounts.Lookup(ctx, externalRef)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil
		}
		return err
	}
	registered, err := s.addresses.HasAddress(ctx, existing.ID)
	if err != nil {
		return err
	}
	if registered {
		return dErrors.New(dErrors.CodeAlreadyRegistered, "an address is already registered; use update instead")
	}
	return nil
}

func (s *Service) verify(ctx context.Context, raw string) (*verifier.Assertion, error) {
	assertion, err := s.verifier.Verify(ctx, raw)
	if err != nil {
		s.rejected(ctx, err)
		s.emitBestEffort(ctx, audit.Event{
			Action:    string(audit.EventAuthFailed),
			Reason:    string(dErrors.CodeOf(err)),
			RequestID: requestcontext.RequestID(ctx),
			Device:    device.Label(ctx),
		})
		return nil, err
	}
	return assertion, nil
}

// finish issues the session. It fails closed: without a signed token and its
// audit record, no session is returned.
func (s *Service) finish(ctx context.Context, flow string, accountID id.AccountID, created bool) (*Result, error) {
	token, err := s.sessions.Issue(ctx, accountID)
	if err != nil {
		return nil, wrapInternal(err, "failed to issue session")
	}
	if s.auditor != nil {
		err := s.auditor.Emit(ctx, audit.Event{
			AccountID: accountID,
			Action:    string(audit.EventSessionIssued),
			RequestID: requestcontext.RequestID(ctx),
			Device:    device.Label(ctx),
		})
		if err != nil {
			return nil, wrapInternal(err, "failed to record session")
		}
	}

	view, err := s.addresses.Read(ctx, accountID)
	if err != nil {
		return nil, wrapInternal(err, "failed to load profile")
	}

	if s.metrics != nil {
		s.metrics.IncrementSessionsIssued(flow)
	}
	s.logger.InfoContext(ctx, "session issued",
		"request_id", requestcontext.RequestID(ctx),
		"flow", flow,
		"account_id", accountID,
		"account_created", created,
		"registration_complete", view.RegistrationComplete(),
	)
	return &Result{Session: token, Profile: view, Created: created}, nil
}

func (s *Service) observe(flow string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveSignIn(flow, start)
	}
}

func (s *Service) rejected(ctx context.Context, err error) {
	code := dErrors.CodeOf(err)
	if s.metrics != nil {
		s.metrics.IncrementAuthFailures(string(code))
	}
	s.logger.WarnContext(ctx, "sign-in rejected",
		"request_id", requestcontext.RequestID(ctx),
		"code", code,
		"error", err,
	)
}

func (s *Service) emitBestEffort(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to record sign-in failure",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func wrapInternal(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
