package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashToken хеширует секретный токен (refresh, bot-auth, verification) с использованием SHA256
// Токены имеют 256 бит энтропии, поэтому медленный хеш не нужен:
// в БД хранится только hex-encoded SHA256, сам токен никогда
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// MatchesTokenHash compares token against a stored hex hash in constant time.
func MatchesTokenHash(token, hashed string) bool {
	if token == "" || hashed == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(hashed)) == 1
}
