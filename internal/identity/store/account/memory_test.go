package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sixd/internal/identity/models"
	id "sixd/pkg/domain"
	"sixd/pkg/platform/sentinel"
)

type AccountStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *AccountStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestAccountStoreSuite(t *testing.T) {
	suite.Run(t, new(AccountStoreSuite))
}

func (s *AccountStoreSuite) newAccount(ref string) *models.Account {
	acc, err := models.NewAccount(id.NewAccountID(), ref, "+252611234567", "Hodan", time.Now())
	s.Require().NoError(err)
	return acc
}

func (s *AccountStoreSuite) TestCreateAndFind() {
	acc := s.newAccount("idp|1")
	s.Require().NoError(s.store.Create(s.ctx, acc))

	byID, err := s.store.FindByID(s.ctx, acc.ID)
	s.Require().NoError(err)
	s.Equal(acc.ExternalRef, byID.ExternalRef)

	byRef, err := s.store.FindByExternalRef(s.ctx, "idp|1")
	s.Require().NoError(err)
	s.Equal(acc.ID, byRef.ID)

	_, err = s.store.FindByExternalRef(s.ctx, "idp|missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *AccountStoreSuite) TestExternalRefUnique() {
	s.Require().NoError(s.store.Create(s.ctx, s.newAccount("idp|1")))
	err := s.store.Create(s.ctx, s.newAccount("idp|1"))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *AccountStoreSuite) TestReturnsCopies() {
	acc := s.newAccount("idp|1")
	s.Require().NoError(s.store.Create(s.ctx, acc))

	found, err := s.store.FindByID(s.ctx, acc.ID)
	s.Require().NoError(err)
	found.DisplayName = "mutated"

	again, err := s.store.FindByID(s.ctx, acc.ID)
	s.Require().NoError(err)
	s.Equal("Hodan", again.DisplayName)
}

func (s *AccountStoreSuite) TestUpdate() {
	acc := s.newAccount("idp|1")
	s.Require().NoError(s.store.Create(s.ctx, acc))

	acc.DisplayName = "Hodan Ali"
	s.Require().NoError(s.store.Update(s.ctx, acc))

	found, err := s.store.FindByID(s.ctx, acc.ID)
	s.Require().NoError(err)
	s.Equal("Hodan Ali", found.DisplayName)

	s.ErrorIs(s.store.Update(s.ctx, s.newAccount("idp|2")), sentinel.ErrNotFound)
}
