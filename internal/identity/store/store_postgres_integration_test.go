//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"idem/internal/identity/models"
	"idem/internal/identity/store"
	"idem/pkg/platform/sentinel"
	"idem/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "identities"))
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()

	record, err := s.store.Add(ctx, models.IdentityRecord{
		Name:   "Jane Doe",
		Email:  "jane@x.com",
		QRData: `{"name":"Jane Doe"}`,
		AdditionalData: map[string]any{
			"did":  "did:example:jane",
			"dept": "Eng",
		},
	})
	s.Require().NoError(err)
	s.NotEmpty(record.ID)

	got, err := s.store.GetByID(ctx, record.ID)
	s.Require().NoError(err)
	s.Equal("Jane Doe", got.Name)
	s.Equal("did:example:jane", got.AdditionalData["did"])
}

func (s *PostgresStoreSuite) TestUpdatePreservesCreation() {
	ctx := context.Background()

	record, err := s.store.Add(ctx, models.IdentityRecord{Name: "Jane"})
	s.Require().NoError(err)

	verified := true
	updated, err := s.store.Update(ctx, record.ID, models.IdentityUpdate{
		IsVerified: &verified,
		AdditionalData: map[string]any{
			"credentials": []map[string]any{
				{"id": "vc-1", "issuer": "did:example:issuer", "issuanceDate": "2026-08-01T00:00:00Z"},
			},
		},
	})
	s.Require().NoError(err)
	s.True(updated.IsVerified)
	s.Equal(record.ID, updated.ID)
	s.True(record.DateAdded.Equal(updated.DateAdded))
}

func (s *PostgresStoreSuite) TestNotFoundAndDelete() {
	ctx := context.Background()

	_, err := s.store.GetByID(ctx, "missing")
	s.True(errors.Is(err, sentinel.ErrNotFound))

	record, err := s.store.Add(ctx, models.IdentityRecord{Name: "Jane"})
	s.Require().NoError(err)

	deleted, err := s.store.Delete(ctx, record.ID)
	s.Require().NoError(err)
	s.True(deleted)

	deleted, err = s.store.Delete(ctx, record.ID)
	s.Require().NoError(err)
	s.False(deleted)
}

func (s *PostgresStoreSuite) TestSaveReplacesSet() {
	ctx := context.Background()

	_, err := s.store.Add(ctx, models.IdentityRecord{Name: "First"})
	s.Require().NoError(err)
	second, err := s.store.Add(ctx, models.IdentityRecord{Name: "Second"})
	s.Require().NoError(err)

	s.Require().NoError(s.store.Save(ctx, []models.IdentityRecord{second}))

	records, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(second.ID, records[0].ID)
}
