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

func (r *repo) SaveVerificationToken(ctx context.Context, token *models.VerificationToken) error {
	const op = "storage.postgres.SaveVerificationToken"

	query := `
		INSERT INTO verification_tokens (id, user_id, token_hash, type, expires_at, used, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		string(token.Type),
		token.ExpiresAt,
		token.Used,
		token.UsedAt,
		token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *repo) GetVerificationTokenByHash(ctx context.Context, tokenHash string) (*models.VerificationToken, error) {
	const op = "storage.postgres.GetVerificationTokenByHash"

	query := `
		SELECT id, user_id, token_hash, type, expires_at, used, used_at, created_at
		FROM verification_tokens
		WHERE token_hash = $1
	`

	var (
		t   models.VerificationToken
		typ string
	)
	err := r.q.QueryRow(ctx, query, tokenHash).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&typ,
		&t.ExpiresAt,
		&t.Used,
		&t.UsedAt,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	t.Type = models.VerificationType(typ)

	return &t, nil
}

func (r *repo) MarkVerificationTokenUsed(ctx context.Context, id string, now time.Time) (bool, error) {
	const op = "storage.postgres.MarkVerificationTokenUsed"

	query := `
		UPDATE verification_tokens SET used = TRUE, used_at = $1
		WHERE id = $2 AND NOT used AND expires_at > $1
	`

	tag, err := r.q.Exec(ctx, query, now, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *repo) InvalidatePendingVerificationTokens(ctx context.Context, userID string, typ models.VerificationType, now time.Time) (int, error) {
	const op = "storage.postgres.InvalidatePendingVerificationTokens"

	query := `
		UPDATE verification_tokens SET used = TRUE, used_at = $1
		WHERE user_id = $2 AND type = $3 AND NOT used
	`

	tag, err := r.q.Exec(ctx, query, now, userID, string(typ))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return int(tag.RowsAffected()), nil
}

func (r *repo) VerificationTokensCreatedSince(ctx context.Context, userID string, typ models.VerificationType, since time.Time) ([]time.Time, error) {
	const op = "storage.postgres.VerificationTokensCreatedSince"

	query := `
		SELECT created_at FROM verification_tokens
		WHERE user_id = $1 AND type = $2 AND created_at >= $3
		ORDER BY created_at ASC
	`

	rows, err := r.q.Query(ctx, query, userID, string(typ), since)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	times, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return times, nil
}

func (r *repo) DeleteStaleVerificationTokens(ctx context.Context, now, usedBefore time.Time, limit int) (int, error) {
	const op = "storage.postgres.DeleteStaleVerificationTokens"

	query := `
		DELETE FROM verification_tokens WHERE id IN (
			SELECT id FROM verification_tokens
			WHERE expires_at <= $1 OR (used AND used_at < $2)
			LIMIT $3
		)
	`

	tag, err := r.q.Exec(ctx, query, now, usedBefore, limit)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return int(tag.RowsAffected()), nil
}
