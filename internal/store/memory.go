package store

import (
	"context"
	"sync"

	"file.share/internal/models"
)

// Compile-time interface check
var _ Registry = (*MemoryRegistry)(nil)

// MemoryRegistry keeps the authoritative map in memory and, when path is
// set, mirrors every mutation to a JSON object keyed by token before the
// call returns. A failed flush rolls the in-memory change back.
type MemoryRegistry struct {
	path   string
	files  map[string]*models.FileRecord
	mu     sync.RWMutex
	closed bool
}

func NewMemoryRegistry(path string) (*MemoryRegistry, error) {
	r := &MemoryRegistry{
		path:  path,
		files: make(map[string]*models.FileRecord),
	}

	if path == "" {
		return r, nil
	}

	if err := ensureDir(path); err != nil {
		return nil, err
	}
	if err := readJSON(path, &r.files); err != nil {
		return nil, err
	}
	if r.files == nil {
		r.files = make(map[string]*models.FileRecord)
	}

	for token, f := range r.files {
		if f == nil {
			delete(r.files, token)
			continue
		}
		f.Token = token
	}

	return r, nil
}

func (r *MemoryRegistry) Put(ctx context.Context, file *models.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if _, ok := r.files[file.Token]; ok {
		return ErrDuplicateToken
	}

	r.files[file.Token] = file.Clone()
	if err := r.flush(); err != nil {
		delete(r.files, file.Token)
		return err
	}

	return nil
}

func (r *MemoryRegistry) Get(ctx context.Context, token string) (*models.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrClosed
	}

	file, ok := r.files[token]
	if !ok {
		return nil, ErrNotFound
	}

	return file.Clone(), nil
}

func (r *MemoryRegistry) Exists(ctx context.Context, token string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false, ErrClosed
	}

	_, ok := r.files[token]
	return ok, nil
}

func (r *MemoryRegistry) IncrementDownload(ctx context.Context, token string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrClosed
	}

	file, ok := r.files[token]
	if !ok {
		return 0, ErrNotFound
	}

	file.DownloadCount++
	if err := r.flush(); err != nil {
		file.DownloadCount--
		return 0, err
	}

	return file.DownloadCount, nil
}

func (r *MemoryRegistry) List(ctx context.Context) ([]*models.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrClosed
	}

	files := make([]*models.FileRecord, 0, len(r.files))
	for _, f := range r.files {
		files = append(files, f.Clone())
	}
	sortNewestFirst(files)

	return files, nil
}

func (r *MemoryRegistry) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	file, ok := r.files[token]
	if !ok {
		return ErrNotFound
	}

	delete(r.files, token)
	if err := r.flush(); err != nil {
		r.files[token] = file
		return err
	}

	return nil
}

func (r *MemoryRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	return nil
}

// flush must be called with mu held.
func (r *MemoryRegistry) flush() error {
	if r.path == "" {
		return nil
	}
	return writeJSON(r.path, r.files)
}
