package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"file.share/internal/blob"
	"file.share/internal/crypto"
	"file.share/internal/models"
	"file.share/internal/store"
)

const (
	DefaultMaxFileSize int64 = 100 << 20

	putAttempts    = 3
	cleanupTimeout = 10 * time.Second
)

var DefaultAllowedExtensions = []string{
	"txt", "pdf", "png", "jpg", "jpeg", "gif", "zip", "rar",
	"doc", "docx", "xls", "xlsx", "mp4", "mp3", "avi", "mov",
}

type UploadConfig struct {
	MaxFileSize       int64
	AllowedExtensions []string
}

type UploadRequest struct {
	Password string
	Filename string
	// SizeBytes is the size the client declared. Zero or negative means
	// unknown, in which case the number of bytes actually written is used.
	SizeBytes int64
	Body      io.Reader
}

type UploadService struct {
	files   store.Registry
	secrets store.SecretStore
	blobs   blob.Store
	tokens  *crypto.TokenGenerator
	maxSize int64
	allowed []string
	log     *slog.Logger
	now     func() time.Time
}

func NewUploadService(files store.Registry, secrets store.SecretStore, blobs blob.Store, cfg UploadConfig, log *slog.Logger) *UploadService {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = DefaultAllowedExtensions
	}

	allowed := make([]string, 0, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed = append(allowed, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}

	return &UploadService{
		files:   files,
		secrets: secrets,
		blobs:   blobs,
		tokens:  crypto.NewTokenGenerator(files.Exists),
		maxSize: cfg.MaxFileSize,
		allowed: allowed,
		log:     log,
		now:     time.Now,
	}
}

func (s *UploadService) MaxFileSize() int64 {
	return s.maxSize
}

// Upload validates req, writes the blob and registers it under a fresh
// token. Either both the blob and the record exist afterwards or neither.
func (s *UploadService) Upload(ctx context.Context, req UploadRequest) (*models.FileRecord, error) {
	if err := authorize(ctx, s.secrets, req.Password); err != nil {
		return nil, err
	}
	if req.Body == nil || strings.TrimSpace(req.Filename) == "" {
		return nil, ErrNoFile
	}
	if req.SizeBytes > s.maxSize {
		return nil, ErrFileTooLarge
	}

	name := SanitizeFilename(req.Filename)
	if !slices.Contains(s.allowed, extension(name)) {
		return nil, ErrUnsupportedType
	}

	now := s.now().UTC()
	key := storedName(name, now)

	written, err := s.blobs.Put(ctx, key, io.LimitReader(req.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("write blob %s: %w", key, err)
	}
	if written > s.maxSize {
		s.discard(ctx, key)
		return nil, ErrFileTooLarge
	}
	if req.SizeBytes > 0 && written != req.SizeBytes {
		s.discard(ctx, key)
		return nil, ErrIncompleteUpload
	}

	record := &models.FileRecord{
		OriginalName: name,
		StoredPath:   key,
		SizeBytes:    written,
		UploadedAt:   now,
	}
	if err := s.register(ctx, record); err != nil {
		s.discard(ctx, key)
		return nil, err
	}

	s.log.Info("file uploaded",
		"token", record.Token,
		"filename", record.OriginalName,
		"stored_path", record.StoredPath,
		"size", record.SizeBytes,
	)
	return record.Clone(), nil
}

// register mints a token and puts the record, retrying with a new token if
// another upload claimed the same one between the probe and the insert.
func (s *UploadService) register(ctx context.Context, record *models.FileRecord) error {
	for range putAttempts {
		token, err := s.tokens.Generate(ctx)
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		record.Token = token

		err = s.files.Put(ctx, record)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrDuplicateToken) {
			return fmt.Errorf("register %s: %w", record.StoredPath, err)
		}
	}
	return fmt.Errorf("register %s: %w", record.StoredPath, crypto.ErrTokenExhausted)
}

// discard removes a blob whose upload did not complete. It runs detached
// from ctx so a client disconnect cannot leave the blob behind.
func (s *UploadService) discard(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, blob.ErrNotFound) {
		s.log.Error("failed to remove orphaned blob", "stored_path", key, "error", err)
	}
}

// authorize checks password against the operator secret.
func authorize(ctx context.Context, secrets store.SecretStore, password string) error {
	set, err := secrets.IsSet(ctx)
	if err != nil {
		return fmt.Errorf("read password state: %w", err)
	}
	if !set {
		return ErrPasswordNotConfigured
	}

	ok, err := secrets.Verify(ctx, password)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}
