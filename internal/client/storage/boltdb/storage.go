package boltdb

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/tgauth/internal/client/storage"
)

// bucketSessions: ключ нормализованный URL сервера, значение JSON AuthData
var bucketSessions = []byte("sessions")

// Storage is the local bbolt file of the client. One file holds the sessions
// of every server the user logged in to
type Storage struct {
	db *bbolt.DB
}

// New открывает (или создаёт) файл БД с правами 0600.
// Timeout защищает от второго процесса, держащего lock
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}
	if err := s.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close закрывает файл. Повторный вызов ничего не делает
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Servers возвращает серверы, для которых сохранена сессия
func (s *Storage) Servers(ctx context.Context) ([]string, error) {
	var servers []string
	err := s.view(func(b *bbolt.Bucket) error {
		return b.ForEach(func(k, _ []byte) error {
			servers = append(servers, string(k))
			return nil
		})
	})
	return servers, err
}

func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSessions); err != nil {
			return fmt.Errorf("failed to create sessions bucket: %w", err)
		}
		return nil
	})
}

func (s *Storage) view(fn func(b *bbolt.Bucket) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		if b == nil {
			return fmt.Errorf("sessions bucket not found")
		}
		return fn(b)
	})
}

func (s *Storage) update(fn func(b *bbolt.Bucket) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		if b == nil {
			return fmt.Errorf("sessions bucket not found")
		}
		return fn(b)
	})
}
