package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestRedisRegistry(t *testing.T) {
	testRegistry(t, func(t *testing.T) Registry {
		client, _ := setupRedis(t)
		return NewRedisRegistry(client)
	})
}

func TestRedisSecretStore(t *testing.T) {
	testSecretStore(t, func(t *testing.T) SecretStore {
		client, _ := setupRedis(t)
		return NewRedisSecretStore(client)
	})
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	_, err := NewRedisClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	require.Error(t, err)
}

func TestRedisRegistry_IncrementMissingCreatesNothing(t *testing.T) {
	client, mr := setupRedis(t)
	r := NewRedisRegistry(client)

	_, err := r.IncrementDownload(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists(fileKey("ghost")))
}

func TestRedisRegistry_Layout(t *testing.T) {
	client, mr := setupRedis(t)
	r := NewRedisRegistry(client)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, newFile("lay", time.Now())))

	assert.Equal(t, "lay.txt", mr.HGet(fileKey("lay"), "original_filename"))
	assert.Equal(t, "0", mr.HGet(fileKey("lay"), "download_count"))
	members, err := mr.ZMembers(uploadIndexKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"lay"}, members)
}

func TestRedisSecretStore_StoresHashOnly(t *testing.T) {
	client, mr := setupRedis(t)
	s := NewRedisSecretStore(client)

	require.NoError(t, s.SetOnce(context.Background(), "hunter2"))

	raw, err := mr.Get(secretKey)
	require.NoError(t, err)
	assert.Contains(t, raw, "$argon2id$")
	assert.NotContains(t, raw, "hunter2")
}
