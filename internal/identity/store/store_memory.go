// Package store provides identity record persistence. Both implementations
// are read-modify-write per call with no optimistic concurrency; racing
// writers lose updates, last write wins.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"idem/internal/identity/models"
	"idem/pkg/platform/sentinel"
)

// InMemoryStore keeps records in a map with stable insertion order for Load.
// It favors clarity over performance.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.IdentityRecord
	order   []string
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]models.IdentityRecord),
		now:     time.Now,
	}
}

func (s *InMemoryStore) Load(_ context.Context) ([]models.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.IdentityRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneRecord(s.records[id]))
	}
	return out, nil
}

func (s *InMemoryStore) Save(_ context.Context, records []models.IdentityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]models.IdentityRecord, len(records))
	s.order = s.order[:0]
	for _, record := range records {
		s.records[record.ID] = cloneRecord(record)
		s.order = append(s.order, record.ID)
	}
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, id string) (*models.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := cloneRecord(record)
	return &out, nil
}

// Add assigns the record id and creation time exactly once, at creation.
func (s *InMemoryStore) Add(_ context.Context, record models.IdentityRecord) (models.IdentityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.DateAdded.IsZero() {
		record.DateAdded = s.now().UTC()
	}
	if _, exists := s.records[record.ID]; exists {
		return models.IdentityRecord{}, sentinel.ErrConflict
	}

	s.records[record.ID] = cloneRecord(record)
	s.order = append(s.order, record.ID)
	return record, nil
}

func (s *InMemoryStore) Update(_ context.Context, id string, update models.IdentityUpdate) (*models.IdentityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	applyUpdate(&record, update)
	s.records[id] = cloneRecord(record)

	out := cloneRecord(record)
	return &out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	delete(s.records, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// applyUpdate mutates record with the update's non-nil fields. ID and
// DateAdded are never touched.
func applyUpdate(record *models.IdentityRecord, update models.IdentityUpdate) {
	if update.Name != nil {
		record.Name = *update.Name
	}
	if update.Email != nil {
		record.Email = *update.Email
	}
	if update.Phone != nil {
		record.Phone = *update.Phone
	}
	if update.IsVerified != nil {
		record.IsVerified = *update.IsVerified
	}
	if update.AdditionalData != nil {
		record.AdditionalData = update.AdditionalData
	}
}

func cloneRecord(record models.IdentityRecord) models.IdentityRecord {
	if record.AdditionalData != nil {
		data := make(map[string]any, len(record.AdditionalData))
		for k, v := range record.AdditionalData {
			data[k] = v
		}
		record.AdditionalData = data
	}
	return record
}
