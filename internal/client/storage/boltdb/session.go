package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.etcd.io/bbolt"

	"github.com/iudanet/tgauth/internal/client/storage"
)

var errNilAuth = errors.New("auth data is nil")

// Profile is the session slot of one server inside Storage
type Profile struct {
	s   *Storage
	key []byte
}

var _ storage.AuthStorage = (*Profile)(nil)

// Profile возвращает слот сессии для serverURL. Регистр, пробелы и
// завершающий слэш не различаются: http://Host:8080/ и http://host:8080 один слот
func (s *Storage) Profile(serverURL string) *Profile {
	return &Profile{s: s, key: []byte(ServerKey(serverURL))}
}

// ServerKey нормализует URL сервера в ключ bucket
func ServerKey(serverURL string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(serverURL)), "/")
}

// SaveAuth заменяет сессию сервера. Server проставляется из ключа профиля
func (p *Profile) SaveAuth(ctx context.Context, auth *storage.AuthData) error {
	if auth == nil {
		return errNilAuth
	}

	rec := *auth
	rec.Server = string(p.key)

	data, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("failed to marshal auth data: %w", err)
	}

	return p.s.update(func(b *bbolt.Bucket) error {
		if err := b.Put(p.key, data); err != nil {
			return fmt.Errorf("failed to save auth data: %w", err)
		}
		return nil
	})
}

// GetAuth возвращает сессию сервера или storage.ErrAuthNotFound
func (p *Profile) GetAuth(ctx context.Context) (*storage.AuthData, error) {
	var auth *storage.AuthData

	err := p.s.view(func(b *bbolt.Bucket) error {
		data := b.Get(p.key)
		if data == nil {
			return storage.ErrAuthNotFound
		}

		auth = &storage.AuthData{}
		if err := json.Unmarshal(data, auth); err != nil {
			return fmt.Errorf("failed to unmarshal auth data: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return auth, nil
}

// DeleteAuth удаляет сессию сервера (logout). Сессии других серверов не трогает
func (p *Profile) DeleteAuth(ctx context.Context) error {
	return p.s.update(func(b *bbolt.Bucket) error {
		if b.Get(p.key) == nil {
			return storage.ErrAuthNotFound
		}
		if err := b.Delete(p.key); err != nil {
			return fmt.Errorf("failed to delete auth data: %w", err)
		}
		return nil
	})
}
