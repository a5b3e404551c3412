package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	addressmodels "sixd/internal/address/models"
	addressservice "sixd/internal/address/service"
	addressstore "sixd/internal/address/store"
	"sixd/internal/auth/service"
	"sixd/internal/geo/region"
	identity "sixd/internal/identity/service"
	"sixd/internal/identity/store/account"
	"sixd/internal/identity/verifier"
	"sixd/internal/session"
	id "sixd/pkg/domain"
	dErrors "sixd/pkg/domain-errors"
	audit "sixd/pkg/platform/audit"
	"sixd/pkg/platform/audit/publishers/compliance"
	auditmemory "sixd/pkg/platform/audit/store/memory"
	"sixd/pkg/requestcontext"
)

const (
	providerSecret = "provider-test-secret"
	sessionSecret  = "0123456789abcdef0123456789abcdef"
)

// =============================================================================
// Sign-in Test Suite
// =============================================================================
// Runs login and complete-registration over the real in-memory services so
// the ordering guarantees (validate address before creating the account,
// no session without audit) are exercised end to end.

type SignInSuite struct {
	suite.Suite
	service  *service.Service
	sessions *session.Issuer
	accounts *account.InMemory
	audit    *auditmemory.InMemoryStore
	ctx      context.Context
	now      time.Time
}

func TestSignInSuite(t *testing.T) {
	suite.Run(t, new(SignInSuite))
}

func (s *SignInSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.audit = auditmemory.NewInMemoryStore()
	publisher := compliance.New(s.audit, compliance.WithLogger(logger))

	v, err := verifier.New(verifier.Config{Issuer: "otp-provider", Audience: "sixd", HMACSecret: providerSecret})
	s.Require().NoError(err)
	s.sessions, err = session.NewIssuer(sessionSecret, "sixd", "sixd-app")
	s.Require().NoError(err)

	s.accounts = account.NewInMemory()
	ids := identity.New(s.accounts, identity.WithLogger(logger), identity.WithAuditPublisher(publisher))
	addrs := addressservice.New(addressstore.NewInMemory(), ids, region.Default(),
		addressservice.WithLogger(logger),
		addressservice.WithAuditPublisher(publisher),
	)
	s.service = service.New(v, ids, addrs, s.sessions,
		service.WithLogger(logger),
		service.WithAuditPublisher(publisher),
	)
}

func (s *SignInSuite) assertion(subject string) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":          subject,
		"phone_number": "+252611234567",
		"iss":          "otp-provider",
		"aud":          "sixd",
		"exp":          s.now.Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(providerSecret))
	s.Require().NoError(err)
	return signed
}

func (s *SignInSuite) mogadishu() addressmodels.AddressData {
	return addressmodels.AddressData{
		Point:    id.Coordinate{Lat: 2.0469, Lng: 45.3182},
		Region:   "Banaadir",
		City:     "Mogadishu",
		District: "Hodan",
	}
}

func (s *SignInSuite) TestLogin() {
	s.Run("new resident without a name must complete their profile", func() {
		_, err := s.service.Login(s.ctx, s.assertion("uid-new"), "")
		s.True(dErrors.HasCode(err, dErrors.CodeProfileIncomplete))
	})

	s.Run("new resident with a name gets a session and an incomplete profile", func() {
		res, err := s.service.Login(s.ctx, s.assertion("uid-named"), "Hodan Ali")
		s.Require().NoError(err)
		s.True(res.Created)
		s.False(res.Profile.RegistrationComplete())
		s.Equal(s.now.Add(session.DefaultTTL), res.Session.ExpiresAt)

		accountID, err := s.sessions.Verify(s.ctx, res.Session.Value)
		s.Require().NoError(err)
		s.Equal(res.Profile.AccountID, accountID)
	})

	s.Run("returning resident keeps the stored name", func() {
		res, err := s.service.Login(s.ctx, s.assertion("uid-named"), "")
		s.Require().NoError(err)
		s.False(res.Created)
		s.Equal("Hodan Ali", res.Profile.DisplayName)
	})

	s.Run("forged assertion is unauthorized and audited", func() {
		_, err := s.service.Login(s.ctx, "not-a-jwt", "Hodan Ali")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		recent, err := s.audit.ListRecent(s.ctx, 10)
		s.Require().NoError(err)
		var found bool
		for _, ev := range recent {
			if ev.Action == string(audit.EventAuthFailed) {
				found = true
			}
		}
		s.True(found)
	})
}

func (s *SignInSuite) TestCompleteRegistration() {
	s.Run("creates account and address in one call", func() {
		res, err := s.service.CompleteRegistration(s.ctx, s.assertion("uid-reg"), "Hodan Ali", s.mogadishu())
		s.Require().NoError(err)
		s.True(res.Created)
		s.True(res.Profile.RegistrationComplete())
		s.Equal("41-68-92", res.Profile.Address.Code)
	})

	s.Run("second registration for the same resident is rejected", func() {
		_, err := s.service.CompleteRegistration(s.ctx, s.assertion("uid-reg"), "Hodan Ali", s.mogadishu())
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRegistered))
	})

	s.Run("rejected re-registration keeps the stored name", func() {
		_, err := s.service.CompleteRegistration(s.ctx, s.assertion("uid-reg"), "Someone Else", s.mogadishu())
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRegistered))

		stored, err := s.accounts.FindByExternalRef(s.ctx, "uid-reg")
		s.Require().NoError(err)
		s.Equal("Hodan Ali", stored.DisplayName)
	})

	s.Run("existing account without an address completes and is renamed", func() {
		_, err := s.service.Login(s.ctx, s.assertion("uid-late"), "Hodan")
		s.Require().NoError(err)

		res, err := s.service.CompleteRegistration(s.ctx, s.assertion("uid-late"), "Hodan Ali", s.mogadishu())
		s.Require().NoError(err)
		s.False(res.Created)
		s.Equal("Hodan Ali", res.Profile.DisplayName)
		s.True(res.Profile.RegistrationComplete())
	})

	s.Run("unsupported address creates no account", func() {
		nairobi := s.mogadishu()
		nairobi.Point = id.Coordinate{Lat: -1.2921, Lng: 36.8219}
		_, err := s.service.CompleteRegistration(s.ctx, s.assertion("uid-abroad"), "Amina", nairobi)
		s.True(dErrors.HasCode(err, dErrors.CodeUnsupportedRegion))

		_, err = s.accounts.FindByExternalRef(s.ctx, "uid-abroad")
		s.Error(err)
	})
}
