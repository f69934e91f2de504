package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"file.share/internal/blob"
	"file.share/internal/store"
)

// FileView is one row of the file listing.
type FileView struct {
	Link          string    `json:"link"`
	DownloadURL   string    `json:"download_url"`
	Filename      string    `json:"filename"`
	Size          int64     `json:"size"`
	UploadDate    time.Time `json:"upload_date"`
	DownloadCount int64     `json:"download_count"`
}

type FileService struct {
	files   store.Registry
	secrets store.SecretStore
	blobs   blob.Store
	log     *slog.Logger
}

func NewFileService(files store.Registry, secrets store.SecretStore, blobs blob.Store, log *slog.Logger) *FileService {
	return &FileService{files: files, secrets: secrets, blobs: blobs, log: log}
}

// DownloadURL builds the public link for token under baseURL.
func DownloadURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/download/" + token
}

// List returns every file, newest first.
func (s *FileService) List(ctx context.Context, baseURL string) ([]FileView, error) {
	records, err := s.files.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	views := make([]FileView, 0, len(records))
	for _, r := range records {
		views = append(views, FileView{
			Link:          r.Token,
			DownloadURL:   DownloadURL(baseURL, r.Token),
			Filename:      r.OriginalName,
			Size:          r.SizeBytes,
			UploadDate:    r.UploadedAt,
			DownloadCount: r.DownloadCount,
		})
	}
	return views, nil
}

// Delete revokes a link. The registry entry goes first so the link stops
// resolving even if removing the blob fails.
func (s *FileService) Delete(ctx context.Context, password, token string) error {
	if err := authorize(ctx, s.secrets, password); err != nil {
		return err
	}

	record, err := s.files.Get(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("lookup %s: %w", token, err)
	}

	if err := s.files.Delete(ctx, token); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete %s: %w", token, err)
	}

	if err := s.blobs.Delete(ctx, record.StoredPath); err != nil && !errors.Is(err, blob.ErrNotFound) {
		s.log.Error("failed to remove blob of deleted file",
			"token", token, "stored_path", record.StoredPath, "error", err)
	}

	s.log.Info("file deleted", "token", token)
	return nil
}
