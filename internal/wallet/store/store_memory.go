// Package store provides credential custody persistence for the wallet.
package store

import (
	"context"
	"sync"

	"idem/internal/identity/models"
	"idem/pkg/platform/sentinel"
)

// InMemoryStore keeps credentials in a map with stable insertion order.
type InMemoryStore struct {
	mu          sync.RWMutex
	credentials map[string]models.Credential
	order       []string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{credentials: make(map[string]models.Credential)}
}

func (s *InMemoryStore) Save(_ context.Context, cred models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.credentials[cred.ID]; !exists {
		s.order = append(s.order, cred.ID)
	}
	s.credentials[cred.ID] = cred
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.credentials[id]
	if !ok {
		return models.Credential{}, sentinel.ErrNotFound
	}
	return cred, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Credential, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.credentials[id])
	}
	return out, nil
}
