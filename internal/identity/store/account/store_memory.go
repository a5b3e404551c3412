package account

import (
	"context"
	"sync"

	"sixd/internal/identity/models"
	id "sixd/pkg/domain"
	"sixd/pkg/platform/sentinel"
)

// InMemory stores accounts in process memory.
type InMemory struct {
	mu         sync.RWMutex
	byID       map[id.AccountID]*models.Account
	byExternal map[string]id.AccountID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:       make(map[id.AccountID]*models.Account),
		byExternal: make(map[string]id.AccountID),
	}
}

func (s *InMemory) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byExternal[account.ExternalRef]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.byID[account.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *account
	s.byID[account.ID] = &cp
	s.byExternal[account.ExternalRef] = account.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, accountID id.AccountID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.byID[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *InMemory) FindByExternalRef(_ context.Context, externalRef string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accountID, ok := s.byExternal[externalRef]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[accountID]
	return &cp, nil
}

// Update replaces the mutable profile fields.
func (s *InMemory) Update(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byID[account.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	acc.DisplayName = account.DisplayName
	acc.UpdatedAt = account.UpdatedAt
	return nil
}
