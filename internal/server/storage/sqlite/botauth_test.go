package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tgauth/internal/models"
	"github.com/iudanet/tgauth/internal/server/storage"
)

func saveTestBotToken(t *testing.T, ctx context.Context, s *Storage, hash string, expiresAt time.Time) {
	require.NoError(t, s.SaveBotAuthToken(ctx, &models.BotAuthToken{
		ID:        uuid.New().String(),
		TokenHash: hash,
		Status:    models.BotAuthPending,
		ExpiresAt: expiresAt,
		CreatedAt: testNow,
	}))
}

func TestBotAuthStorage_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	saveTestBotToken(t, ctx, s, "bot-hash", testNow.Add(10*time.Minute))

	got, err := s.GetBotAuthTokenByHash(ctx, "bot-hash")
	require.NoError(t, err)
	assert.Equal(t, models.BotAuthPending, got.Status)
	assert.Nil(t, got.TelegramID)

	identity := models.TelegramIdentity{
		ID:        99,
		FirstName: "Ivan",
		Username:  models.StringPtr("ivan"),
		ChatID:    models.Int64Ptr(99),
	}

	ok, err := s.ConfirmBotAuthToken(ctx, "bot-hash", identity, testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	// Повторное подтверждение проигрывает
	ok, err = s.ConfirmBotAuthToken(ctx, "bot-hash", identity, testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	userID := createTestUser(t, ctx, s)
	ok, err = s.MarkBotAuthTokenUsed(ctx, "bot-hash", userID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkBotAuthTokenUsed(ctx, "bot-hash", userID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = s.GetBotAuthTokenByHash(ctx, "bot-hash")
	require.NoError(t, err)
	assert.Equal(t, models.BotAuthUsed, got.Status)
	require.NotNil(t, got.UserID)
	assert.Equal(t, userID, *got.UserID)
	require.NotNil(t, got.TelegramID)
	assert.Equal(t, int64(99), *got.TelegramID)
	assert.Equal(t, "Ivan", got.TelegramFirstName)
	assert.Equal(t, "ivan", *got.TelegramUsername)
	assert.Nil(t, got.TelegramLastName)
	require.NotNil(t, got.ConfirmedAt)
	assert.Equal(t, testNow.Add(time.Minute), *got.ConfirmedAt)
}

func TestBotAuthStorage_ConfirmRejected(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	saveTestBotToken(t, ctx, s, "expired", testNow.Add(-time.Second))

	identity := models.TelegramIdentity{ID: 1, FirstName: "X"}

	tests := []struct {
		name string
		hash string
	}{
		{name: "expired", hash: "expired"},
		{name: "unknown", hash: "missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := s.ConfirmBotAuthToken(ctx, tt.hash, identity, testNow)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}

	_, err := s.GetBotAuthTokenByHash(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func TestBotAuthStorage_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	saveTestBotToken(t, ctx, s, "old-1", testNow.Add(-48*time.Hour))
	saveTestBotToken(t, ctx, s, "old-2", testNow.Add(-30*time.Hour))
	saveTestBotToken(t, ctx, s, "fresh", testNow.Add(time.Minute))

	n, err := s.DeleteExpiredBotAuthTokens(ctx, testNow.Add(-24*time.Hour), 500)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.GetBotAuthTokenByHash(ctx, "fresh")
	assert.NoError(t, err)
}
