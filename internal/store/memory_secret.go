package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"file.share/internal/crypto"
	"file.share/internal/models"
)

var _ SecretStore = (*MemorySecretStore)(nil)

// MemorySecretStore holds the password hash in memory, optionally mirrored
// to a JSON file with the same atomic write as MemoryRegistry.
type MemorySecretStore struct {
	path   string
	secret *models.SecretRecord
	mu     sync.RWMutex
}

func NewMemorySecretStore(path string) (*MemorySecretStore, error) {
	s := &MemorySecretStore{path: path}

	if path == "" {
		return s, nil
	}

	if err := ensureDir(path); err != nil {
		return nil, err
	}

	var rec models.SecretRecord
	if err := readJSON(path, &rec); err != nil {
		return nil, err
	}
	if rec.Hash != "" {
		s.secret = &rec
	}

	return s, nil
}

func (s *MemorySecretStore) IsSet(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.secret != nil, nil
}

func (s *MemorySecretStore) SetOnce(ctx context.Context, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.secret != nil {
		return ErrAlreadySet
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}

	s.secret = &models.SecretRecord{Hash: hash, UpdatedAt: time.Now().UTC()}
	if err := s.flush(); err != nil {
		s.secret = nil
		return err
	}

	return nil
}

func (s *MemorySecretStore) Change(ctx context.Context, oldPassword, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.secret == nil {
		return ErrSecretUnset
	}

	ok, err := crypto.VerifyPassword(oldPassword, s.secret.Hash)
	if err != nil {
		return fmt.Errorf("verifying stored password: %w", err)
	}
	if !ok {
		return ErrWrongPassword
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return err
	}

	prev := s.secret
	s.secret = &models.SecretRecord{Hash: hash, UpdatedAt: time.Now().UTC()}
	if err := s.flush(); err != nil {
		s.secret = prev
		return err
	}

	return nil
}

func (s *MemorySecretStore) Verify(ctx context.Context, candidate string) (bool, error) {
	s.mu.RLock()
	secret := s.secret
	s.mu.RUnlock()

	if secret == nil {
		crypto.BurnVerify(candidate)
		return false, nil
	}

	ok, err := crypto.VerifyPassword(candidate, secret.Hash)
	if err != nil {
		return false, fmt.Errorf("verifying stored password: %w", err)
	}
	return ok, nil
}

func (s *MemorySecretStore) Close() error {
	return nil
}

// flush must be called with mu held.
func (s *MemorySecretStore) flush() error {
	if s.path == "" {
		return nil
	}
	return writeJSON(s.path, s.secret)
}
