// Package memory is the audit store used when no database is configured.
// Events are kept in append order; nothing is relayed to Kafka.
package memory

import (
	"context"
	"slices"
	"sync"

	id "sixd/pkg/domain"
	audit "sixd/pkg/platform/audit"
)

type InMemoryStore struct {
	mu  sync.RWMutex
	log []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, event)
	return nil
}

// ListByAccount returns the account's events oldest first.
func (s *InMemoryStore) ListByAccount(_ context.Context, accountID id.AccountID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, ev := range s.log {
		if ev.AccountID == accountID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// ListRecent returns up to limit events, newest first. Failed sign-ins carry
// no account, so this is the only way to read them back.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.log)
	if limit > 0 && limit < n {
		n = limit
	}
	out := slices.Clone(s.log[len(s.log)-n:])
	slices.Reverse(out)
	return out, nil
}
