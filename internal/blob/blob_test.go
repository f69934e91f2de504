package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDisk(t *testing.T) (*DiskStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := NewDiskStore(dir)
	require.NoError(t, err)
	return s, dir
}

func TestDiskStore_RoundTrip(t *testing.T) {
	s, _ := newDisk(t)
	ctx := context.Background()
	payload := []byte("hello, world")

	n, err := s.Put(ctx, "notes_1.txt", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	ok, err := s.Exists(ctx, "notes_1.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Open(ctx, "notes_1.txt")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDiskStore_NeverOverwrites(t *testing.T) {
	s, _ := newDisk(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "a.txt", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = s.Put(ctx, "a.txt", strings.NewReader("second"))
	require.ErrorIs(t, err, ErrExists)

	rc, err := s.Open(ctx, "a.txt")
	require.NoError(t, err)
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	assert.Equal(t, "first", string(got))
}

func TestDiskStore_MissingBlob(t *testing.T) {
	s, _ := newDisk(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "nope.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Open(ctx, "nope.txt")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, "nope.txt"), ErrNotFound)
}

func TestDiskStore_Delete(t *testing.T) {
	s, dir := newDisk(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "d.txt", strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "d.txt"))

	_, err = os.Stat(filepath.Join(dir, "d.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestDiskStore_RejectsEscapingKeys(t *testing.T) {
	s, _ := newDisk(t)
	ctx := context.Background()

	for _, key := range []string{"", ".", "..", "../etc/passwd", "a/b", `a\b`, ".hidden"} {
		_, err := s.Put(ctx, key, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, key)
		_, err = s.Open(ctx, key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

type failingReader struct{ after int }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, errors.New("connection reset")
	}
	n := min(f.after, len(p))
	f.after -= n
	return n, nil
}

func TestDiskStore_FailedWriteLeavesNothing(t *testing.T) {
	s, dir := newDisk(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "partial.bin", &failingReader{after: 1024})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiskStore_CanceledContextLeavesNothing(t *testing.T) {
	s, dir := newDisk(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Put(ctx, "c.bin", strings.NewReader("data"))
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		in       string
		endpoint string
		secure   bool
		wantErr  bool
	}{
		{in: "minio:9000", endpoint: "minio:9000"},
		{in: " http://minio:9000 ", endpoint: "minio:9000"},
		{in: "https://s3.example.com", endpoint: "s3.example.com", secure: true},
		{in: "https://s3.example.com/", endpoint: "s3.example.com", secure: true},
		{in: "", wantErr: true},
		{in: "http://", wantErr: true},
		{in: "http://minio:9000/bucket", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			endpoint, secure, err := normaliseEndpoint(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.endpoint, endpoint)
			assert.Equal(t, tt.secure, secure)
		})
	}
}

func TestNewMinioStore_IncompleteConfig(t *testing.T) {
	_, err := NewMinioStore(context.Background(), MinioConfig{Endpoint: "minio:9000"})
	require.Error(t, err)
}

func TestMinioPutOptions_BoundPartSize(t *testing.T) {
	opts := putObjectOptions()
	assert.Equal(t, uint64(16<<20), opts.PartSize)
	assert.Equal(t, "application/octet-stream", opts.ContentType)
}
