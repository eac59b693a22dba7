package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"idem/internal/identity/models"
	"idem/pkg/platform/sentinel"
)

const (
	credentialKeyPrefix = "wallet:cred:"
	credentialIndexKey  = "wallet:creds"
)

// RedisStore persists credentials as JSON values with a set index of ids, so
// multiple instances can share one credential custody backend.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, cred models.Credential) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, credentialKeyPrefix+cred.ID, payload, 0)
	pipe.SAdd(ctx, credentialIndexKey, cred.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (models.Credential, error) {
	payload, err := s.client.Get(ctx, credentialKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Credential{}, sentinel.ErrNotFound
		}
		return models.Credential{}, fmt.Errorf("get credential: %w", err)
	}

	var cred models.Credential
	if err := json.Unmarshal(payload, &cred); err != nil {
		return models.Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	return cred, nil
}

func (s *RedisStore) List(ctx context.Context) ([]models.Credential, error) {
	ids, err := s.client.SMembers(ctx, credentialIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list credential ids: %w", err)
	}

	creds := make([]models.Credential, 0, len(ids))
	for _, id := range ids {
		cred, err := s.Get(ctx, id)
		if err != nil {
			// Index entries may briefly outlive deleted values.
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, nil
}
