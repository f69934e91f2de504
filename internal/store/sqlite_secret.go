package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"file.share/internal/crypto"
)

var _ SecretStore = (*SQLiteSecretStore)(nil)

// SQLiteSecretStore keeps the password hash in the single-row
// operator_secret table.
type SQLiteSecretStore struct {
	db *sqlx.DB
}

func NewSQLiteSecretStore(db *sqlx.DB) *SQLiteSecretStore {
	return &SQLiteSecretStore{db: db}
}

func (s *SQLiteSecretStore) IsSet(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM operator_secret WHERE id = 1`); err != nil {
		return false, fmt.Errorf("failed to read secret: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteSecretStore) SetOnce(ctx context.Context, password string) error {
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO operator_secret (id, hash, updated_at)
		VALUES (1, ?, ?) ON CONFLICT(id) DO NOTHING`, hash, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrAlreadySet
	}
	return nil
}

// Change verifies outside the database and then swaps the hash only if it
// is still the one that was verified.
func (s *SQLiteSecretStore) Change(ctx context.Context, oldPassword, newPassword string) error {
	current, err := s.current(ctx)
	if err != nil {
		return err
	}
	if current == "" {
		return ErrSecretUnset
	}

	ok, err := crypto.VerifyPassword(oldPassword, current)
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

	res, err := s.db.ExecContext(ctx, `UPDATE operator_secret SET hash = ?, updated_at = ?
		WHERE id = 1 AND hash = ?`, hash, time.Now().UnixNano(), current)
	if err != nil {
		return fmt.Errorf("failed to update secret: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *SQLiteSecretStore) Verify(ctx context.Context, candidate string) (bool, error) {
	current, err := s.current(ctx)
	if err != nil {
		return false, err
	}
	if current == "" {
		crypto.BurnVerify(candidate)
		return false, nil
	}

	ok, err := crypto.VerifyPassword(candidate, current)
	if err != nil {
		return false, fmt.Errorf("verifying stored password: %w", err)
	}
	return ok, nil
}

// Close is a no-op; the connection belongs to whoever called OpenSQLite.
func (s *SQLiteSecretStore) Close() error {
	return nil
}

func (s *SQLiteSecretStore) current(ctx context.Context) (string, error) {
	var hash string
	err := s.db.GetContext(ctx, &hash, `SELECT hash FROM operator_secret WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return hash, nil
}
