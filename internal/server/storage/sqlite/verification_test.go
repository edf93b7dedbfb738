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

func saveTestVerificationToken(t *testing.T, ctx context.Context, s *Storage, userID, hash string, typ models.VerificationType, createdAt time.Time) *models.VerificationToken {
	token := &models.VerificationToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: hash,
		Type:      typ,
		ExpiresAt: createdAt.Add(time.Hour),
		CreatedAt: createdAt,
	}
	require.NoError(t, s.SaveVerificationToken(ctx, token))
	return token
}

func TestVerificationStorage_SaveGetMarkUsed(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	token := saveTestVerificationToken(t, ctx, s, userID, "v-hash", models.VerificationPasswordReset, testNow)

	got, err := s.GetVerificationTokenByHash(ctx, "v-hash")
	require.NoError(t, err)
	assert.Equal(t, token, got)

	ok, err := s.MarkVerificationTokenUsed(ctx, token.ID, testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkVerificationTokenUsed(ctx, token.ID, testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = s.GetVerificationTokenByHash(ctx, "v-hash")
	require.NoError(t, err)
	assert.True(t, got.Used)
	assert.Equal(t, ptrTime(testNow.Add(time.Minute)), got.UsedAt)

	_, err = s.GetVerificationTokenByHash(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func TestVerificationStorage_MarkUsed_Expired(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	token := saveTestVerificationToken(t, ctx, s, userID, "v-hash", models.VerificationEmail, testNow)

	ok, err := s.MarkVerificationTokenUsed(ctx, token.ID, testNow.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerificationStorage_InvalidatePending(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	saveTestVerificationToken(t, ctx, s, userID, "reset-1", models.VerificationPasswordReset, testNow)
	saveTestVerificationToken(t, ctx, s, userID, "reset-2", models.VerificationPasswordReset, testNow)
	saveTestVerificationToken(t, ctx, s, userID, "email-1", models.VerificationEmail, testNow)

	n, err := s.InvalidatePendingVerificationTokens(ctx, userID, models.VerificationPasswordReset, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	email, err := s.GetVerificationTokenByHash(ctx, "email-1")
	require.NoError(t, err)
	assert.False(t, email.Used)
}

func TestVerificationStorage_CreatedSince(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	saveTestVerificationToken(t, ctx, s, userID, "a", models.VerificationEmail, testNow.Add(-2*time.Hour))
	saveTestVerificationToken(t, ctx, s, userID, "b", models.VerificationEmail, testNow.Add(-30*time.Minute))
	saveTestVerificationToken(t, ctx, s, userID, "c", models.VerificationEmail, testNow.Add(-10*time.Minute))
	saveTestVerificationToken(t, ctx, s, userID, "d", models.VerificationPasswordReset, testNow.Add(-10*time.Minute))

	times, err := s.VerificationTokensCreatedSince(ctx, userID, models.VerificationEmail, testNow.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{testNow.Add(-30 * time.Minute), testNow.Add(-10 * time.Minute)}, times)
}

func TestVerificationStorage_DeleteStale(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	saveTestVerificationToken(t, ctx, s, userID, "expired", models.VerificationEmail, testNow.Add(-2*time.Hour))
	saveTestVerificationToken(t, ctx, s, userID, "live", models.VerificationEmail, testNow)

	n, err := s.DeleteStaleVerificationTokens(ctx, testNow, testNow.Add(-30*24*time.Hour), 500)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetVerificationTokenByHash(ctx, "live")
	assert.NoError(t, err)
}
