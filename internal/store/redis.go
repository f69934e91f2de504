// redis.go
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"file.share/internal/models"
	"github.com/redis/go-redis/v9"
)

var _ Registry = (*RedisRegistry)(nil)

const (
	uploadIndexKey = "files:by_upload"
	maxTxRetries   = 3
)

// RedisRegistry stores each record as a hash under file:<token> and indexes
// tokens by upload time in a sorted set.
type RedisRegistry struct {
	client *redis.Client
}

// NewRedisClient connects and verifies the server is reachable.
func NewRedisClient(options *redis.Options) (*redis.Client, error) {
	client := redis.NewClient(options)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func (r *RedisRegistry) Put(ctx context.Context, file *models.FileRecord) error {
	key := fileKey(file.Token)

	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateToken
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeFields(file))
			pipe.ZAdd(ctx, uploadIndexKey, redis.Z{
				Score:  float64(file.UploadedAt.UnixMicro()),
				Member: file.Token,
			})
			return nil
		})
		return err
	}

	if err := r.watch(ctx, txf, key); err != nil {
		if errors.Is(err, ErrDuplicateToken) {
			return err
		}
		return fmt.Errorf("failed to store file %s: %w", file.Token, err)
	}
	return nil
}

func (r *RedisRegistry) Get(ctx context.Context, token string) (*models.FileRecord, error) {
	fields, err := r.client.HGetAll(ctx, fileKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", token, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	return decodeFields(fields)
}

func (r *RedisRegistry) Exists(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, fileKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return n > 0, nil
}

// Returns -1 when the record is missing so HINCRBY never creates a stub hash.
var incrementDownloadScript = redis.NewScript(`
	local key = KEYS[1]
	if redis.call('EXISTS', key) == 0 then
		return -1
	end
	return redis.call('HINCRBY', key, 'download_count', 1)
`)

func (r *RedisRegistry) IncrementDownload(ctx context.Context, token string) (int64, error) {
	count, err := incrementDownloadScript.Run(ctx, r.client, []string{fileKey(token)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to increment downloads for %s: %w", token, err)
	}
	if count < 0 {
		return 0, ErrNotFound
	}
	return count, nil
}

func (r *RedisRegistry) List(ctx context.Context) ([]*models.FileRecord, error) {
	tokens, err := r.client.ZRevRange(ctx, uploadIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	cmds, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, token := range tokens {
			pipe.HGetAll(ctx, fileKey(token))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	files := make([]*models.FileRecord, 0, len(cmds))
	for _, cmd := range cmds {
		fields, err := cmd.(*redis.MapStringStringCmd).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list files: %w", err)
		}
		// Deleted between the index read and the fetch.
		if len(fields) == 0 {
			continue
		}
		file, err := decodeFields(fields)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	sortNewestFirst(files)

	return files, nil
}

func (r *RedisRegistry) Delete(ctx context.Context, token string) error {
	key := fileKey(token)

	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, uploadIndexKey, token)
			return nil
		})
		return err
	}

	if err := r.watch(ctx, txf, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete file %s: %w", token, err)
	}
	return nil
}

// Close is a no-op; the client belongs to whoever called NewRedisClient.
func (r *RedisRegistry) Close() error {
	return nil
}

func (r *RedisRegistry) watch(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	return watchRetry(ctx, r.client, txf, keys...)
}

// watchRetry runs an optimistic transaction, retrying a bounded number of
// times when a watched key changes underneath it.
func watchRetry(ctx context.Context, client *redis.Client, txf func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := client.Watch(ctx, txf, keys...)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	return ErrConflict
}

// Helpers

func fileKey(token string) string {
	return "file:" + token
}

func encodeFields(file *models.FileRecord) map[string]any {
	return map[string]any{
		"token":             file.Token,
		"original_filename": file.OriginalName,
		"stored_path":       file.StoredPath,
		"size":              file.SizeBytes,
		"upload_date":       file.UploadedAt.UTC().Format(time.RFC3339Nano),
		"download_count":    file.DownloadCount,
	}
}

func decodeFields(fields map[string]string) (*models.FileRecord, error) {
	size, err := strconv.ParseInt(fields["size"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decoding size of %s: %w", fields["token"], err)
	}
	count, err := strconv.ParseInt(fields["download_count"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decoding download_count of %s: %w", fields["token"], err)
	}
	uploaded, err := time.Parse(time.RFC3339Nano, fields["upload_date"])
	if err != nil {
		return nil, fmt.Errorf("decoding upload_date of %s: %w", fields["token"], err)
	}

	return &models.FileRecord{
		Token:         fields["token"],
		OriginalName:  fields["original_filename"],
		StoredPath:    fields["stored_path"],
		SizeBytes:     size,
		UploadedAt:    uploaded,
		DownloadCount: count,
	}, nil
}
