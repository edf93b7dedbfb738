package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iudanet/tgauth/internal/models"
	"github.com/iudanet/tgauth/internal/server/storage"
)

func (r *repo) SaveBotAuthToken(ctx context.Context, token *models.BotAuthToken) error {
	const op = "storage.postgres.SaveBotAuthToken"

	query := `
		INSERT INTO bot_auth_tokens (id, token_hash, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.q.Exec(ctx, query, token.ID, token.TokenHash, string(token.Status), token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *repo) GetBotAuthTokenByHash(ctx context.Context, tokenHash string) (*models.BotAuthToken, error) {
	const op = "storage.postgres.GetBotAuthTokenByHash"

	query := `
		SELECT id, token_hash, status, expires_at, created_at, confirmed_at, user_id,
			telegram_id, telegram_first_name, telegram_last_name, telegram_username,
			telegram_chat_id, telegram_photo_url
		FROM bot_auth_tokens
		WHERE token_hash = $1
	`

	var (
		t      models.BotAuthToken
		status string
	)
	err := r.q.QueryRow(ctx, query, tokenHash).Scan(
		&t.ID,
		&t.TokenHash,
		&status,
		&t.ExpiresAt,
		&t.CreatedAt,
		&t.ConfirmedAt,
		&t.UserID,
		&t.TelegramID,
		&t.TelegramFirstName,
		&t.TelegramLastName,
		&t.TelegramUsername,
		&t.TelegramChatID,
		&t.TelegramPhotoURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	t.Status = models.BotAuthStatus(status)

	return &t, nil
}

func (r *repo) ConfirmBotAuthToken(ctx context.Context, tokenHash string, identity models.TelegramIdentity, now time.Time) (bool, error) {
	const op = "storage.postgres.ConfirmBotAuthToken"

	query := `
		UPDATE bot_auth_tokens
		SET status = 'CONFIRMED', confirmed_at = $1, telegram_id = $2, telegram_first_name = $3,
			telegram_last_name = $4, telegram_username = $5, telegram_chat_id = $6, telegram_photo_url = $7
		WHERE token_hash = $8 AND status = 'PENDING' AND expires_at > $1
	`

	tag, err := r.q.Exec(ctx, query,
		now,
		identity.ID,
		identity.FirstName,
		identity.LastName,
		identity.Username,
		identity.ChatID,
		identity.PhotoURL,
		tokenHash,
	)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *repo) MarkBotAuthTokenUsed(ctx context.Context, tokenHash, userID string) (bool, error) {
	const op = "storage.postgres.MarkBotAuthTokenUsed"

	query := `UPDATE bot_auth_tokens SET status = 'USED', user_id = $1 WHERE token_hash = $2 AND status = 'CONFIRMED'`

	tag, err := r.q.Exec(ctx, query, userID, tokenHash)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *repo) DeleteExpiredBotAuthTokens(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	const op = "storage.postgres.DeleteExpiredBotAuthTokens"

	query := `
		DELETE FROM bot_auth_tokens WHERE id IN (
			SELECT id FROM bot_auth_tokens WHERE expires_at < $1 LIMIT $2
		)
	`

	tag, err := r.q.Exec(ctx, query, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return int(tag.RowsAffected()), nil
}
