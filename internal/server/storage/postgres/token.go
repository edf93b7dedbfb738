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

func (r *repo) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.postgres.SaveRefreshToken"

	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked, revoked_at, user_agent, ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.Revoked,
		token.RevokedAt,
		token.UserAgent,
		token.IP,
		token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *repo) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	const op = "storage.postgres.GetRefreshTokenByHash"

	query := `
		SELECT id, user_id, token_hash, expires_at, revoked, revoked_at, user_agent, ip, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	var t models.RefreshToken
	err := r.q.QueryRow(ctx, query, tokenHash).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&t.ExpiresAt,
		&t.Revoked,
		&t.RevokedAt,
		&t.UserAgent,
		&t.IP,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &t, nil
}

func (r *repo) RevokeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	const op = "storage.postgres.RevokeRefreshToken"

	query := `
		UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $1
		WHERE token_hash = $2 AND NOT revoked AND expires_at > $1
	`

	tag, err := r.q.Exec(ctx, query, now, tokenHash)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *repo) RevokeUserTokens(ctx context.Context, userID string, now time.Time) (int, error) {
	const op = "storage.postgres.RevokeUserTokens"

	query := `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $1 WHERE user_id = $2 AND NOT revoked`

	tag, err := r.q.Exec(ctx, query, now, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return int(tag.RowsAffected()), nil
}

func (r *repo) RevokeExcessTokens(ctx context.Context, userID string, keep int, now time.Time) (int, error) {
	const op = "storage.postgres.RevokeExcessTokens"

	query := `
		UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $1
		WHERE id IN (
			SELECT id FROM refresh_tokens
			WHERE user_id = $2 AND NOT revoked AND expires_at > $1
			ORDER BY created_at DESC, id DESC
			OFFSET $3
		)
	`

	tag, err := r.q.Exec(ctx, query, now, userID, keep)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return int(tag.RowsAffected()), nil
}

func (r *repo) CountActiveTokens(ctx context.Context, userID string, now time.Time) (int, error) {
	const op = "storage.postgres.CountActiveTokens"

	query := `SELECT COUNT(*) FROM refresh_tokens WHERE user_id = $1 AND NOT revoked AND expires_at > $2`

	var n int
	if err := r.q.QueryRow(ctx, query, userID, now).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func (r *repo) DeleteStaleTokens(ctx context.Context, now, revokedBefore time.Time, limit int) (int, error) {
	const op = "storage.postgres.DeleteStaleTokens"

	query := `
		DELETE FROM refresh_tokens WHERE id IN (
			SELECT id FROM refresh_tokens
			WHERE expires_at <= $1 OR (revoked AND revoked_at < $2)
			LIMIT $3
		)
	`

	tag, err := r.q.Exec(ctx, query, now, revokedBefore, limit)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return int(tag.RowsAffected()), nil
}
