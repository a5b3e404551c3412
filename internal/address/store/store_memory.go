// Package store persists current addresses and their archived versions.
package store

import (
	"context"
	"sort"
	"sync"

	"sixd/internal/address/models"
	id "sixd/pkg/domain"
	"sixd/pkg/platform/sentinel"
)

// InMemory keeps addresses in process memory. Row locking is provided by the
// sharded tx runner; the mutex only guards the maps.
type InMemory struct {
	mu      sync.RWMutex
	current map[id.AccountID]models.AddressRecord
	history map[id.AccountID][]models.HistoryEntry
}

func NewInMemory() *InMemory {
	return &InMemory{
		current: make(map[id.AccountID]models.AddressRecord),
		history: make(map[id.AccountID][]models.HistoryEntry),
	}
}

func (s *InMemory) FindByAccount(_ context.Context, accountID id.AccountID) (*models.AddressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.current[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}

func (s *InMemory) FindByAccountForUpdate(ctx context.Context, accountID id.AccountID) (*models.AddressRecord, error) {
	return s.FindByAccount(ctx, accountID)
}

func (s *InMemory) Insert(_ context.Context, record *models.AddressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.current[record.AccountID]; ok {
		return sentinel.ErrConflict
	}
	s.current[record.AccountID] = *record
	return nil
}

func (s *InMemory) ArchiveAndReplace(_ context.Context, archived models.HistoryEntry, next *models.AddressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.current[next.AccountID]
	if !ok {
		return sentinel.ErrNotFound
	}
	// Guard against a stale read when called without the account's lock.
	if !cur.RegisteredAt.Equal(archived.RegisteredAt) {
		return sentinel.ErrInvalidState
	}
	s.history[next.AccountID] = append(s.history[next.AccountID], archived)
	s.current[next.AccountID] = *next
	return nil
}

func (s *InMemory) ListHistory(_ context.Context, accountID id.AccountID) ([]models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.HistoryEntry{}, s.history[accountID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ArchivedAt.After(out[j].ArchivedAt)
	})
	return out, nil
}
