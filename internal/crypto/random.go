package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// TokenSize - размер случайного токена в байтах (256 бит)
const TokenSize = 32

// TokenGenerator produces URL-safe random tokens from an injected entropy source.
// Tests supply a deterministic reader; production uses crypto/rand
type TokenGenerator struct {
	source io.Reader
}

// NewTokenGenerator creates a generator reading from source.
// A nil source means crypto/rand.Reader
func NewTokenGenerator(source io.Reader) *TokenGenerator {
	if source == nil {
		source = rand.Reader
	}
	return &TokenGenerator{source: source}
}

// Bytes returns n random bytes.
func (g *TokenGenerator) Bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(g.source, buf); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return buf, nil
}

// Token returns TokenSize random bytes encoded as unpadded base64url.
func (g *TokenGenerator) Token() (string, error) {
	raw, err := g.Bytes(TokenSize)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
