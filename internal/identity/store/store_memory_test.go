package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"idem/internal/identity/models"
	"idem/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *MemoryStoreSuite) TestAdd() {
	ctx := context.Background()

	s.Run("assigns id and creation time once", func() {
		record, err := s.store.Add(ctx, models.IdentityRecord{Name: "Jane"})
		s.Require().NoError(err)
		s.NotEmpty(record.ID)
		s.False(record.DateAdded.IsZero())
	})

	s.Run("duplicate id conflicts", func() {
		record, err := s.store.Add(ctx, models.IdentityRecord{Name: "Bob"})
		s.Require().NoError(err)

		_, err = s.store.Add(ctx, models.IdentityRecord{ID: record.ID})
		s.True(errors.Is(err, sentinel.ErrConflict))
	})
}

func (s *MemoryStoreSuite) TestGetByID() {
	ctx := context.Background()

	s.Run("missing record returns not found", func() {
		_, err := s.store.GetByID(ctx, "missing")
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})

	s.Run("returns an isolated copy", func() {
		record, err := s.store.Add(ctx, models.IdentityRecord{
			Name:           "Jane",
			AdditionalData: map[string]any{"dept": "Eng"},
		})
		s.Require().NoError(err)

		got, err := s.store.GetByID(ctx, record.ID)
		s.Require().NoError(err)
		got.AdditionalData["dept"] = "mutated"

		again, err := s.store.GetByID(ctx, record.ID)
		s.Require().NoError(err)
		s.Equal("Eng", again.AdditionalData["dept"])
	})
}

func (s *MemoryStoreSuite) TestUpdate() {
	ctx := context.Background()

	s.Run("partial update leaves other fields alone", func() {
		record, err := s.store.Add(ctx, models.IdentityRecord{Name: "Jane", Email: "jane@x.com"})
		s.Require().NoError(err)

		verified := true
		updated, err := s.store.Update(ctx, record.ID, models.IdentityUpdate{IsVerified: &verified})
		s.Require().NoError(err)
		s.True(updated.IsVerified)
		s.Equal("Jane", updated.Name)
		s.Equal("jane@x.com", updated.Email)
		s.Equal(record.DateAdded, updated.DateAdded)
	})

	s.Run("unknown id returns not found", func() {
		_, err := s.store.Update(ctx, "missing", models.IdentityUpdate{})
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})
}

func (s *MemoryStoreSuite) TestDelete() {
	ctx := context.Background()

	record, err := s.store.Add(ctx, models.IdentityRecord{Name: "Jane"})
	s.Require().NoError(err)

	deleted, err := s.store.Delete(ctx, record.ID)
	s.Require().NoError(err)
	s.True(deleted)

	deleted, err = s.store.Delete(ctx, record.ID)
	s.Require().NoError(err)
	s.False(deleted)
}

func (s *MemoryStoreSuite) TestLoadSave() {
	ctx := context.Background()

	first, err := s.store.Add(ctx, models.IdentityRecord{Name: "First"})
	s.Require().NoError(err)
	second, err := s.store.Add(ctx, models.IdentityRecord{Name: "Second"})
	s.Require().NoError(err)

	records, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(first.ID, records[0].ID)
	s.Equal(second.ID, records[1].ID)

	// Save replaces the full set.
	s.Require().NoError(s.store.Save(ctx, records[:1]))
	records, err = s.store.Load(ctx)
	s.Require().NoError(err)
	s.Len(records, 1)
}
