package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"file.share/internal/blob"
	"file.share/internal/models"
	"file.share/internal/store"
)

// Download is a resolved file ready to stream. The caller must close Body.
type Download struct {
	Record *models.FileRecord
	Body   io.ReadCloser
}

type DownloadService struct {
	files store.Registry
	blobs blob.Store
	log   *slog.Logger
}

func NewDownloadService(files store.Registry, blobs blob.Store, log *slog.Logger) *DownloadService {
	return &DownloadService{files: files, blobs: blobs, log: log}
}

// Download resolves token and opens its blob. The counter is incremented
// once the record and blob are known to exist, whether or not the client
// reads the whole body.
func (s *DownloadService) Download(ctx context.Context, token string) (*Download, error) {
	if token == "" {
		return nil, ErrNotFound
	}

	record, err := s.files.Get(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup %s: %w", token, err)
	}

	exists, err := s.blobs.Exists(ctx, record.StoredPath)
	if err != nil {
		return nil, fmt.Errorf("stat blob %s: %w", record.StoredPath, err)
	}
	if !exists {
		s.log.Warn("registry entry has no blob", "token", token, "stored_path", record.StoredPath)
		return nil, ErrNotFound
	}

	count, err := s.files.IncrementDownload(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("count download %s: %w", token, err)
	}
	record.DownloadCount = count

	body, err := s.blobs.Open(ctx, record.StoredPath)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			s.log.Warn("blob vanished after lookup", "token", token, "stored_path", record.StoredPath)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open blob %s: %w", record.StoredPath, err)
	}

	s.log.Info("file downloaded", "token", token, "download_count", count)
	return &Download{Record: record, Body: body}, nil
}
