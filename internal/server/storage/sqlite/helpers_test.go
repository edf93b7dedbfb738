package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tgauth/internal/models"
)

// testNow усечено до миллисекунд, чтобы сравнение после round-trip было точным
var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestStorage(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	// Используем in-memory database для тестов
	storage, err := New(ctx, ":memory:")
	require.NoError(t, err)

	cleanup := func() {
		_ = storage.Close()
	}

	return storage, cleanup
}

func createTestUser(t *testing.T, ctx context.Context, s *Storage) string {
	userID := uuid.New().String()
	email := "user_" + userID[:8] + "@example.com"
	user := &models.User{
		ID:        userID,
		Email:     &email,
		FirstName: "Test",
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}

	err := s.CreateUser(ctx, user)
	require.NoError(t, err)

	return userID
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
