package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost даёт порядка 100-250ms на хеш на типичном сервере
const DefaultBcryptCost = 12

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	// Hash returns a salted one-way hash of password
	Hash(password string) (string, error)

	// Matches reports whether password matches hash.
	// Returns false (never an error) on empty input or a malformed hash
	Matches(password, hash string) bool
}

// BcryptHasher implements PasswordHasher with bcrypt.
// bcrypt читает не больше 72 байт, а пароль до 100 символов в UTF-8
// занимает до 400. Поэтому в bcrypt уходит base64(SHA-256(password)), 44 байта
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher with the given cost.
// Cost outside bcrypt's range falls back to DefaultBcryptCost
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash хеширует пароль через bcrypt (соль генерируется внутри bcrypt)
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword(prehash(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// Matches сравнивает пароль с bcrypt хешем за постоянное время
func (h *BcryptHasher) Matches(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), prehash(password)) == nil
}

func prehash(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}
