//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"idem/internal/identity/models"
	"idem/internal/wallet/store"
	"idem/pkg/platform/sentinel"
	"idem/pkg/testutil/containers"
)

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	redis := containers.NewRedisContainer(t)
	s := store.NewRedisStore(redis.Client)
	ctx := context.Background()

	cred := models.Credential{
		ID:           "vc-redis-1",
		Context:      []string{"https://www.w3.org/2018/credentials/v1"},
		Type:         []string{models.CredentialTag},
		Issuer:       "did:example:issuer",
		IssuanceDate: "2026-08-01T00:00:00Z",
		CredentialSubject: map[string]any{
			"id":   "did:example:subject",
			"name": "Jane",
		},
	}

	require.NoError(t, s.Save(ctx, cred))

	got, err := s.Get(ctx, "vc-redis-1")
	require.NoError(t, err)
	require.Equal(t, "did:example:issuer", got.Issuer)
	require.Equal(t, "Jane", got.CredentialSubject["name"])

	_, err = s.Get(ctx, "vc-missing")
	require.True(t, errors.Is(err, sentinel.ErrNotFound))

	creds, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, creds, 1)
}
