package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"file.share/internal/crypto"
	"file.share/internal/models"
	"github.com/redis/go-redis/v9"
)

var _ SecretStore = (*RedisSecretStore)(nil)

const secretKey = "secret:operator"

type RedisSecretStore struct {
	client *redis.Client
}

func NewRedisSecretStore(client *redis.Client) *RedisSecretStore {
	return &RedisSecretStore{client: client}
}

func (s *RedisSecretStore) IsSet(ctx context.Context) (bool, error) {
	n, err := s.client.Exists(ctx, secretKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read secret: %w", err)
	}
	return n > 0, nil
}

func (s *RedisSecretStore) SetOnce(ctx context.Context, password string) error {
	data, err := newSecret(password)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, secretKey, data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}
	if !ok {
		return ErrAlreadySet
	}
	return nil
}

func (s *RedisSecretStore) Change(ctx context.Context, oldPassword, newPassword string) error {
	txf := func(tx *redis.Tx) error {
		current, err := readSecret(ctx, tx)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrSecretUnset
		}

		ok, err := crypto.VerifyPassword(oldPassword, current.Hash)
		if err != nil {
			return fmt.Errorf("verifying stored password: %w", err)
		}
		if !ok {
			return ErrWrongPassword
		}

		data, err := newSecret(newPassword)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, secretKey, data, 0)
			return nil
		})
		return err
	}

	return watchRetry(ctx, s.client, txf, secretKey)
}

func (s *RedisSecretStore) Verify(ctx context.Context, candidate string) (bool, error) {
	current, err := readSecret(ctx, s.client)
	if err != nil {
		return false, err
	}
	if current == nil {
		crypto.BurnVerify(candidate)
		return false, nil
	}

	ok, err := crypto.VerifyPassword(candidate, current.Hash)
	if err != nil {
		return false, fmt.Errorf("verifying stored password: %w", err)
	}
	return ok, nil
}

// Close is a no-op; the client belongs to whoever called NewRedisClient.
func (s *RedisSecretStore) Close() error {
	return nil
}

func newSecret(password string) ([]byte, error) {
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return json.Marshal(models.SecretRecord{Hash: hash, UpdatedAt: time.Now().UTC()})
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readSecret(ctx context.Context, c getter) (*models.SecretRecord, error) {
	data, err := c.Get(ctx, secretKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	var rec models.SecretRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding secret: %w", err)
	}
	return &rec, nil
}
