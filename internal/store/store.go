package store

import (
	"context"
	"errors"
	"sort"

	"file.share/internal/models"
)

var (
	ErrNotFound       = errors.New("file not found")
	ErrDuplicateToken = errors.New("token already exists")
	ErrConflict       = errors.New("concurrent update conflict")
	ErrClosed         = errors.New("store is closed")

	ErrAlreadySet    = errors.New("password already set")
	ErrSecretUnset   = errors.New("password not set")
	ErrWrongPassword = errors.New("wrong password")
)

// Registry maps download tokens to file metadata. Every mutation is
// linearizable with respect to all other mutations on the same registry.
type Registry interface {
	Put(ctx context.Context, file *models.FileRecord) error
	Get(ctx context.Context, token string) (*models.FileRecord, error)
	Exists(ctx context.Context, token string) (bool, error)
	IncrementDownload(ctx context.Context, token string) (count int64, err error)
	List(ctx context.Context) ([]*models.FileRecord, error)
	Delete(ctx context.Context, token string) error
	Close() error
}

// SecretStore owns the single operator password.
type SecretStore interface {
	IsSet(ctx context.Context) (bool, error)
	SetOnce(ctx context.Context, password string) error
	Change(ctx context.Context, oldPassword, newPassword string) error
	Verify(ctx context.Context, candidate string) (bool, error)
	Close() error
}

// sortNewestFirst orders by upload time descending, ties broken by token.
func sortNewestFirst(files []*models.FileRecord) {
	sort.Slice(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if !a.UploadedAt.Equal(b.UploadedAt) {
			return a.UploadedAt.After(b.UploadedAt)
		}
		return a.Token < b.Token
	})
}
