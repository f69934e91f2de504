package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"file.share/internal/models"
)

func newFile(token string, uploaded time.Time) *models.FileRecord {
	return &models.FileRecord{
		Token:        token,
		OriginalName: token + ".txt",
		StoredPath:   token + "_stored.txt",
		SizeBytes:    12,
		UploadedAt:   uploaded.UTC(),
	}
}

// testRegistry runs the contract every Registry backend must honour.
func testRegistry(t *testing.T, newRegistry func(t *testing.T) Registry) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("PutGet", func(t *testing.T) {
		r := newRegistry(t)
		ctx := context.Background()

		require.NoError(t, r.Put(ctx, newFile("tok1", base)))

		got, err := r.Get(ctx, "tok1")
		require.NoError(t, err)
		assert.Equal(t, "tok1", got.Token)
		assert.Equal(t, "tok1.txt", got.OriginalName)
		assert.Equal(t, "tok1_stored.txt", got.StoredPath)
		assert.Equal(t, int64(12), got.SizeBytes)
		assert.True(t, base.Equal(got.UploadedAt))
		assert.Equal(t, int64(0), got.DownloadCount)

		ok, err := r.Exists(ctx, "tok1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("GetMissing", func(t *testing.T) {
		r := newRegistry(t)
		_, err := r.Get(context.Background(), "not-a-real-token")
		require.ErrorIs(t, err, ErrNotFound)

		ok, err := r.Exists(context.Background(), "not-a-real-token")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("DuplicateTokenNeverOverwrites", func(t *testing.T) {
		r := newRegistry(t)
		ctx := context.Background()

		require.NoError(t, r.Put(ctx, newFile("dup", base)))
		other := newFile("dup", base.Add(time.Hour))
		other.OriginalName = "other.txt"
		other.StoredPath = "other_stored.txt"
		require.ErrorIs(t, r.Put(ctx, other), ErrDuplicateToken)

		got, err := r.Get(ctx, "dup")
		require.NoError(t, err)
		assert.Equal(t, "dup.txt", got.OriginalName)
	})

	t.Run("ReturnedRecordIsACopy", func(t *testing.T) {
		r := newRegistry(t)
		ctx := context.Background()
		require.NoError(t, r.Put(ctx, newFile("copy", base)))

		got, err := r.Get(ctx, "copy")
		require.NoError(t, err)
		got.DownloadCount = 99

		again, err := r.Get(ctx, "copy")
		require.NoError(t, err)
		assert.Equal(t, int64(0), again.DownloadCount)
	})

	t.Run("IncrementDownload", func(t *testing.T) {
		r := newRegistry(t)
		ctx := context.Background()
		require.NoError(t, r.Put(ctx, newFile("inc", base)))

		n, err := r.IncrementDownload(ctx, "inc")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		n, err = r.IncrementDownload(ctx, "inc")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		_, err = r.IncrementDownload(ctx, "missing")
		require.ErrorIs(t, err, ErrNotFound)
		_, err = r.Get(ctx, "missing")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ConcurrentIncrementsAreNotLost", func(t *testing.T) {
		r := newRegistry(t)
		ctx := context.Background()
		require.NoError(t, r.Put(ctx, newFile("hot", base)))
		require.NoError(t, r.Put(ctx, newFile("cold", base)))

		const workers = 100
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := r.IncrementDownload(ctx, "hot"); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := r.Get(ctx, "hot")
		require.NoError(t, err)
		assert.Equal(t, int64(workers), got.DownloadCount)

		cold, err := r.Get(ctx, "cold")
		require.NoError(t, err)
		assert.Equal(t, int64(0), cold.DownloadCount)
	})

	t.Run("ConcurrentPutsAllLand", func(t *testing.T) {
		r := newRegistry(t)
		ctx := context.Background()

		const n = 50
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, r.Put(ctx, newFile(fmt.Sprintf("p%02d", i), base.Add(time.Duration(i)*time.Second))))
			}(i)
		}
		wg.Wait()

		files, err := r.List(ctx)
		require.NoError(t, err)
		assert.Len(t, files, n)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		r := newRegistry(t)
		ctx := context.Background()

		require.NoError(t, r.Put(ctx, newFile("old", base)))
		require.NoError(t, r.Put(ctx, newFile("new", base.Add(2*time.Hour))))
		require.NoError(t, r.Put(ctx, newFile("mid", base.Add(time.Hour))))

		files, err := r.List(ctx)
		require.NoError(t, err)
		require.Len(t, files, 3)
		assert.Equal(t, "new", files[0].Token)
		assert.Equal(t, "mid", files[1].Token)
		assert.Equal(t, "old", files[2].Token)
	})

	t.Run("ListEmpty", func(t *testing.T) {
		r := newRegistry(t)
		files, err := r.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("Delete", func(t *testing.T) {
		r := newRegistry(t)
		ctx := context.Background()
		require.NoError(t, r.Put(ctx, newFile("gone", base)))

		require.NoError(t, r.Delete(ctx, "gone"))
		_, err := r.Get(ctx, "gone")
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorIs(t, r.Delete(ctx, "gone"), ErrNotFound)

		files, err := r.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, files)
	})
}

// testSecretStore runs the contract every SecretStore backend must honour.
func testSecretStore(t *testing.T, newStore func(t *testing.T) SecretStore) {
	t.Run("SetOnceThenAlreadySet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		set, err := s.IsSet(ctx)
		require.NoError(t, err)
		assert.False(t, set)

		require.NoError(t, s.SetOnce(ctx, "abcd1"))
		require.ErrorIs(t, s.SetOnce(ctx, "xyz99"), ErrAlreadySet)

		set, err = s.IsSet(ctx)
		require.NoError(t, err)
		assert.True(t, set)

		ok, err := s.Verify(ctx, "abcd1")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.Verify(ctx, "xyz99")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("VerifyUnsetIsFalse", func(t *testing.T) {
		s := newStore(t)
		ok, err := s.Verify(context.Background(), "anything")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ConcurrentSetOnceHasOneWinner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const workers = 8
		var wg sync.WaitGroup
		results := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results <- s.SetOnce(ctx, fmt.Sprintf("pass%d", i))
			}(i)
		}
		wg.Wait()
		close(results)

		wins := 0
		for err := range results {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, ErrAlreadySet)
		}
		assert.Equal(t, 1, wins)
	})

	t.Run("ChangeUnset", func(t *testing.T) {
		s := newStore(t)
		require.ErrorIs(t, s.Change(context.Background(), "a", "bbbb"), ErrSecretUnset)
	})

	t.Run("ChangeWrongPasswordKeepsOld", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.SetOnce(ctx, "correct"))

		require.ErrorIs(t, s.Change(ctx, "wrong", "zzzz"), ErrWrongPassword)

		ok, err := s.Verify(ctx, "correct")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.Verify(ctx, "zzzz")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ChangeSucceeds", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.SetOnce(ctx, "first"))

		require.NoError(t, s.Change(ctx, "first", "second"))
		require.NoError(t, s.Change(ctx, "second", "third"))

		ok, err := s.Verify(ctx, "third")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.Verify(ctx, "first")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
