package crypto

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	tokenLength    = 18 // 144 bits, 24 chars once encoded
	maxTokenTries  = 5
	suffixByteSize = 3
)

var ErrTokenExhausted = errors.New("could not mint an unused token")

// GenerateToken returns a URL-safe token drawn purely from crypto/rand.
func GenerateToken() string {
	bytes := make([]byte, tokenLength)
	if _, err := rand.Read(bytes); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}

// RandomSuffix returns a short lowercase hex string used to disambiguate blob names.
func RandomSuffix() string {
	bytes := make([]byte, suffixByteSize)
	if _, err := rand.Read(bytes); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(bytes)
}

// ExistsFunc reports whether a token is already taken.
type ExistsFunc func(ctx context.Context, token string) (bool, error)

// TokenGenerator mints tokens and retries with fresh randomness while the
// candidate collides with one already issued.
type TokenGenerator struct {
	exists   ExistsFunc
	attempts int
	random   func() string
}

func NewTokenGenerator(exists ExistsFunc) *TokenGenerator {
	return &TokenGenerator{
		exists:   exists,
		attempts: maxTokenTries,
		random:   GenerateToken,
	}
}

func (g *TokenGenerator) Generate(ctx context.Context) (string, error) {
	for i := 0; i < g.attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		token := g.random()
		if g.exists == nil {
			return token, nil
		}

		taken, err := g.exists(ctx, token)
		if err != nil {
			return "", fmt.Errorf("checking token: %w", err)
		}
		if !taken {
			return token, nil
		}
	}

	return "", ErrTokenExhausted
}
