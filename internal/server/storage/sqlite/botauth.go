package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/tgauth/internal/models"
	"github.com/iudanet/tgauth/internal/server/storage"
)

// SaveBotAuthToken stores a new bot auth token
func (r *repo) SaveBotAuthToken(ctx context.Context, token *models.BotAuthToken) error {
	query := `
		INSERT INTO bot_auth_tokens (id, token_hash, status, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.q.ExecContext(ctx, query,
		token.ID,
		token.TokenHash,
		string(token.Status),
		toMillis(token.ExpiresAt),
		toMillis(token.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save bot auth token: %w", err)
	}

	return nil
}

// GetBotAuthTokenByHash retrieves bot auth token by hash
func (r *repo) GetBotAuthTokenByHash(ctx context.Context, tokenHash string) (*models.BotAuthToken, error) {
	query := `
		SELECT id, token_hash, status, expires_at, created_at, confirmed_at, user_id,
			telegram_id, telegram_first_name, telegram_last_name, telegram_username,
			telegram_chat_id, telegram_photo_url
		FROM bot_auth_tokens
		WHERE token_hash = ?
	`

	t := &models.BotAuthToken{}
	var (
		status                            string
		expiresAt, createdAt              int64
		confirmedAt, telegramID, chatID   sql.NullInt64
		userID, lastName, username, photo sql.NullString
	)

	err := r.q.QueryRowContext(ctx, query, tokenHash).Scan(
		&t.ID,
		&t.TokenHash,
		&status,
		&expiresAt,
		&createdAt,
		&confirmedAt,
		&userID,
		&telegramID,
		&t.TelegramFirstName,
		&lastName,
		&username,
		&chatID,
		&photo,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get bot auth token: %w", err)
	}

	t.Status = models.BotAuthStatus(status)
	t.ExpiresAt = fromMillis(expiresAt)
	t.CreatedAt = fromMillis(createdAt)
	t.ConfirmedAt = timePtr(confirmedAt)
	t.UserID = stringPtr(userID)
	t.TelegramID = int64Ptr(telegramID)
	t.TelegramLastName = stringPtr(lastName)
	t.TelegramUsername = stringPtr(username)
	t.TelegramChatID = int64Ptr(chatID)
	t.TelegramPhotoURL = stringPtr(photo)

	return t, nil
}

// ConfirmBotAuthToken claims a pending, unexpired token
func (r *repo) ConfirmBotAuthToken(ctx context.Context, tokenHash string, identity models.TelegramIdentity, now time.Time) (bool, error) {
	query := `
		UPDATE bot_auth_tokens
		SET status = 'CONFIRMED', confirmed_at = ?, telegram_id = ?, telegram_first_name = ?,
			telegram_last_name = ?, telegram_username = ?, telegram_chat_id = ?, telegram_photo_url = ?
		WHERE token_hash = ? AND status = 'PENDING' AND expires_at > ?
	`

	ms := toMillis(now)
	result, err := r.q.ExecContext(ctx, query,
		ms,
		identity.ID,
		identity.FirstName,
		identity.LastName,
		identity.Username,
		identity.ChatID,
		identity.PhotoURL,
		tokenHash,
		ms,
	)
	if err != nil {
		return false, fmt.Errorf("failed to confirm bot auth token: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// MarkBotAuthTokenUsed marks a confirmed token as used
func (r *repo) MarkBotAuthTokenUsed(ctx context.Context, tokenHash, userID string) (bool, error) {
	query := `
		UPDATE bot_auth_tokens SET status = 'USED', user_id = ?
		WHERE token_hash = ? AND status = 'CONFIRMED'
	`

	result, err := r.q.ExecContext(ctx, query, userID, tokenHash)
	if err != nil {
		return false, fmt.Errorf("failed to mark bot auth token used: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// DeleteExpiredBotAuthTokens removes one batch of tokens expired before cutoff
func (r *repo) DeleteExpiredBotAuthTokens(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	query := `
		DELETE FROM bot_auth_tokens WHERE id IN (
			SELECT id FROM bot_auth_tokens WHERE expires_at < ? LIMIT ?
		)
	`

	result, err := r.q.ExecContext(ctx, query, toMillis(cutoff), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired bot auth tokens: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
