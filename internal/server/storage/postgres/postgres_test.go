package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tgauth/internal/autherr"
	"github.com/iudanet/tgauth/internal/models"
	"github.com/iudanet/tgauth/internal/server/storage"
	"github.com/iudanet/tgauth/internal/verification"
)

// Интеграционные тесты запускаются только при заданном TGAUTH_TEST_POSTGRES_DSN
func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	dsn := os.Getenv("TGAUTH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TGAUTH_TEST_POSTGRES_DSN is not set")
	}

	s, err := New(context.Background(), dsn, PoolConfig{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func createTestUser(t *testing.T, ctx context.Context, s *Storage) *models.User {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Millisecond)
	id := uuid.New().String()
	user := &models.User{
		ID:        id,
		Email:     models.StringPtr("pg_" + id[:8] + "@example.com"),
		FirstName: "Pg",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateUser(ctx, user))

	return user
}

func TestPostgres_UserDuplicates(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	user := createTestUser(t, ctx, s)

	dup := *user
	dup.ID = uuid.New().String()
	assert.ErrorIs(t, s.CreateUser(ctx, &dup), storage.ErrUserAlreadyExists)

	got, err := s.GetUserByEmail(ctx, *user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestPostgres_RefreshTokenSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	user := createTestUser(t, ctx, s)
	now := time.Now().UTC()
	hash := "pg-" + uuid.NewString()

	require.NoError(t, s.SaveRefreshToken(ctx, &models.RefreshToken{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}))

	ok, err := s.RevokeRefreshToken(ctx, hash, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.RevokeRefreshToken(ctx, hash, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgres_InTxRollback(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	user := createTestUser(t, ctx, s)
	boom := errors.New("boom")

	err := s.InTx(ctx, func(repo storage.Repository) error {
		locked, err := repo.GetUserByIDForUpdate(ctx, user.ID)
		if err != nil {
			return err
		}
		locked.FailedLoginAttempts = 3
		if err := repo.UpdateUser(ctx, locked); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FailedLoginAttempts)
}

// Параллельные запросы ссылки сериализуются блокировкой строки пользователя,
// поэтому лимит не превышается и под READ COMMITTED
func TestPostgres_VerificationRateLimitWithUserLock(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	user := createTestUser(t, ctx, s)
	manager := verification.New(verification.Config{RateLimit: 3})

	const workers = 8
	var (
		wg      sync.WaitGroup
		issued  atomic.Int32
		limited atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InTx(ctx, func(repo storage.Repository) error {
				if _, err := repo.GetUserByIDForUpdate(ctx, user.ID); err != nil {
					return err
				}
				_, err := manager.Issue(ctx, repo, user.ID, models.VerificationEmail)
				return err
			})
			switch {
			case err == nil:
				issued.Add(1)
			case errors.Is(err, autherr.ErrTooManyRequests):
				limited.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), issued.Load())
	assert.Equal(t, int32(workers-3), limited.Load())
}
