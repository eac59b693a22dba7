// Package memory provides an in-memory audit store for tests and single-node
// deployments without a broker.
package memory

import (
	"context"
	"sync"

	"idem/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns events for an identity in append order. An empty identityID
// returns everything.
func (s *InMemoryStore) List(_ context.Context, identityID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Event
	for _, event := range s.events {
		if identityID == "" || event.IdentityID == identityID {
			out = append(out, event)
		}
	}
	return out, nil
}
