package crypto

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var urlSafe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func TestGenerateToken_UniqueAndURLSafe(t *testing.T) {
	const n = 10000
	seen := make(map[string]struct{}, n)

	for i := 0; i < n; i++ {
		tok := GenerateToken()
		require.Len(t, tok, 24)
		require.Regexp(t, urlSafe, tok)
		_, dup := seen[tok]
		require.False(t, dup, "duplicate token %q", tok)
		seen[tok] = struct{}{}
	}
}

func TestRandomSuffix(t *testing.T) {
	s := RandomSuffix()
	assert.Len(t, s, 6)
	assert.NotEqual(t, s, RandomSuffix())
}

func TestTokenGenerator_RetriesOnCollision(t *testing.T) {
	candidates := []string{"taken-1", "taken-2", "free"}
	calls := 0

	g := NewTokenGenerator(func(ctx context.Context, token string) (bool, error) {
		return strings.HasPrefix(token, "taken"), nil
	})
	g.random = func() string {
		c := candidates[calls]
		calls++
		return c
	}

	tok, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "free", tok)
	assert.Equal(t, 3, calls)
}

func TestTokenGenerator_Exhausted(t *testing.T) {
	g := NewTokenGenerator(func(ctx context.Context, token string) (bool, error) {
		return true, nil
	})

	_, err := g.Generate(context.Background())
	require.ErrorIs(t, err, ErrTokenExhausted)
}

func TestTokenGenerator_ProbeError(t *testing.T) {
	boom := errors.New("boom")
	g := NewTokenGenerator(func(ctx context.Context, token string) (bool, error) {
		return false, boom
	})

	_, err := g.Generate(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestTokenGenerator_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTokenGenerator(nil).Generate(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("abcd1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=19456,t=2,p=1$"))
	assert.NotContains(t, hash, "abcd1")

	ok, err := VerifyPassword("abcd1", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("abcd2", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_Salted(t *testing.T) {
	a, err := HashPassword("same")
	require.NoError(t, err)
	b, err := HashPassword("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyPassword_CustomParams(t *testing.T) {
	cheap := Params{Time: 1, Memory: 64, Threads: 1, KeyLen: 16, SaltLen: 8}
	hash, err := HashPasswordWith("pw", cheap)
	require.NoError(t, err)

	ok, err := VerifyPassword("pw", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyPassword_Malformed(t *testing.T) {
	for _, in := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=1,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=1,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$garbage$c2FsdA$a2V5",
		"$argon2id$v=19$m=1,t=1,p=1$!!$a2V5",
	} {
		_, err := VerifyPassword("x", in)
		assert.ErrorIs(t, err, ErrMalformedHash, in)
	}
}
