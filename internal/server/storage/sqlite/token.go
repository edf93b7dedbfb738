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

// SaveRefreshToken stores a new refresh token
func (r *repo) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked, revoked_at, user_agent, ip, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.q.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		toMillis(token.ExpiresAt),
		token.Revoked,
		nullMillis(token.RevokedAt),
		token.UserAgent,
		token.IP,
		toMillis(token.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	return nil
}

// GetRefreshTokenByHash retrieves refresh token by hash
func (r *repo) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, revoked, revoked_at, user_agent, ip, created_at
		FROM refresh_tokens
		WHERE token_hash = ?
	`

	t := &models.RefreshToken{}
	var (
		expiresAt, createdAt int64
		revokedAt            sql.NullInt64
	)

	err := r.q.QueryRowContext(ctx, query, tokenHash).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&expiresAt,
		&t.Revoked,
		&revokedAt,
		&t.UserAgent,
		&t.IP,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	t.ExpiresAt = fromMillis(expiresAt)
	t.CreatedAt = fromMillis(createdAt)
	t.RevokedAt = timePtr(revokedAt)

	return t, nil
}

// RevokeRefreshToken revokes an active token; the affected row count decides
// the single winner among concurrent callers
func (r *repo) RevokeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens SET revoked = 1, revoked_at = ?
		WHERE token_hash = ? AND revoked = 0 AND expires_at > ?
	`

	result, err := r.q.ExecContext(ctx, query, toMillis(now), tokenHash, toMillis(now))
	if err != nil {
		return false, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// RevokeUserTokens revokes all active refresh tokens for a user
func (r *repo) RevokeUserTokens(ctx context.Context, userID string, now time.Time) (int, error) {
	query := `
		UPDATE refresh_tokens SET revoked = 1, revoked_at = ?
		WHERE user_id = ? AND revoked = 0
	`

	result, err := r.q.ExecContext(ctx, query, toMillis(now), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user tokens: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// RevokeExcessTokens revokes the oldest active tokens beyond keep
func (r *repo) RevokeExcessTokens(ctx context.Context, userID string, keep int, now time.Time) (int, error) {
	query := `
		UPDATE refresh_tokens SET revoked = 1, revoked_at = ?
		WHERE id IN (
			SELECT id FROM refresh_tokens
			WHERE user_id = ? AND revoked = 0 AND expires_at > ?
			ORDER BY created_at DESC, id DESC
			LIMIT -1 OFFSET ?
		)
	`

	ms := toMillis(now)
	result, err := r.q.ExecContext(ctx, query, ms, userID, ms, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke excess tokens: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// CountActiveTokens counts active refresh tokens of a user
func (r *repo) CountActiveTokens(ctx context.Context, userID string, now time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM refresh_tokens WHERE user_id = ? AND revoked = 0 AND expires_at > ?`

	var n int
	if err := r.q.QueryRowContext(ctx, query, userID, toMillis(now)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count active tokens: %w", err)
	}

	return n, nil
}

// DeleteStaleTokens removes one batch of expired or long-revoked tokens
func (r *repo) DeleteStaleTokens(ctx context.Context, now, revokedBefore time.Time, limit int) (int, error) {
	query := `
		DELETE FROM refresh_tokens WHERE id IN (
			SELECT id FROM refresh_tokens
			WHERE expires_at <= ? OR (revoked = 1 AND revoked_at < ?)
			LIMIT ?
		)
	`

	result, err := r.q.ExecContext(ctx, query, toMillis(now), toMillis(revokedBefore), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale tokens: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
