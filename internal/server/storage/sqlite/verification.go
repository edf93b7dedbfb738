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

// SaveVerificationToken stores a new verification token
func (r *repo) SaveVerificationToken(ctx context.Context, token *models.VerificationToken) error {
	query := `
		INSERT INTO verification_tokens (id, user_id, token_hash, type, expires_at, used, used_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.q.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		string(token.Type),
		toMillis(token.ExpiresAt),
		token.Used,
		nullMillis(token.UsedAt),
		toMillis(token.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save verification token: %w", err)
	}

	return nil
}

// GetVerificationTokenByHash retrieves verification token by hash
func (r *repo) GetVerificationTokenByHash(ctx context.Context, tokenHash string) (*models.VerificationToken, error) {
	query := `
		SELECT id, user_id, token_hash, type, expires_at, used, used_at, created_at
		FROM verification_tokens
		WHERE token_hash = ?
	`

	t := &models.VerificationToken{}
	var (
		typ                  string
		expiresAt, createdAt int64
		usedAt               sql.NullInt64
	)

	err := r.q.QueryRowContext(ctx, query, tokenHash).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&typ,
		&expiresAt,
		&t.Used,
		&usedAt,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get verification token: %w", err)
	}

	t.Type = models.VerificationType(typ)
	t.ExpiresAt = fromMillis(expiresAt)
	t.CreatedAt = fromMillis(createdAt)
	t.UsedAt = timePtr(usedAt)

	return t, nil
}

// MarkVerificationTokenUsed consumes an unused, unexpired token
func (r *repo) MarkVerificationTokenUsed(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE verification_tokens SET used = 1, used_at = ?
		WHERE id = ? AND used = 0 AND expires_at > ?
	`

	ms := toMillis(now)
	result, err := r.q.ExecContext(ctx, query, ms, id, ms)
	if err != nil {
		return false, fmt.Errorf("failed to mark verification token used: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// InvalidatePendingVerificationTokens marks all unused tokens of the type used
func (r *repo) InvalidatePendingVerificationTokens(ctx context.Context, userID string, typ models.VerificationType, now time.Time) (int, error) {
	query := `
		UPDATE verification_tokens SET used = 1, used_at = ?
		WHERE user_id = ? AND type = ? AND used = 0
	`

	result, err := r.q.ExecContext(ctx, query, toMillis(now), userID, string(typ))
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate verification tokens: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// VerificationTokensCreatedSince returns creation times of recent tokens, oldest first
func (r *repo) VerificationTokensCreatedSince(ctx context.Context, userID string, typ models.VerificationType, since time.Time) ([]time.Time, error) {
	query := `
		SELECT created_at FROM verification_tokens
		WHERE user_id = ? AND type = ? AND created_at >= ?
		ORDER BY created_at ASC
	`

	rows, err := r.q.QueryContext(ctx, query, userID, string(typ), toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query verification tokens: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var times []time.Time

	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, fmt.Errorf("failed to scan verification token: %w", err)
		}
		times = append(times, fromMillis(ms))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return times, nil
}

// DeleteStaleVerificationTokens removes one batch of expired or long-used tokens
func (r *repo) DeleteStaleVerificationTokens(ctx context.Context, now, usedBefore time.Time, limit int) (int, error) {
	query := `
		DELETE FROM verification_tokens WHERE id IN (
			SELECT id FROM verification_tokens
			WHERE expires_at <= ? OR (used = 1 AND used_at < ?)
			LIMIT ?
		)
	`

	result, err := r.q.ExecContext(ctx, query, toMillis(now), toMillis(usedBefore), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale verification tokens: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
