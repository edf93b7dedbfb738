// Package session keeps the registry of refresh-token sessions: one-time
// consumption, revocation, the per-user active session cap and the sweep of
// stale rows.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/tgauth/internal/autherr"
	"github.com/iudanet/tgauth/internal/crypto"
	"github.com/iudanet/tgauth/internal/models"
	"github.com/iudanet/tgauth/internal/server/storage"
)

// Значения по умолчанию
const (
	DefaultMaxActive        = 10
	DefaultRevokedRetention = 30 * 24 * time.Hour
	DefaultSweepBatch       = 500
)

// Config содержит параметры реестра сессий
type Config struct {
	Now              func() time.Time
	Logger           *slog.Logger
	MaxActive        int
	RevokedRetention time.Duration
	SweepBatch       int
}

// Registry persists hashed refresh tokens
type Registry struct {
	now       func() time.Time
	logger    *slog.Logger
	maxActive int
	retention time.Duration
	batch     int
}

// NewRegistry creates a registry. Zero values fall back to the defaults
func NewRegistry(cfg Config) *Registry {
	r := &Registry{
		now:       cfg.Now,
		logger:    cfg.Logger,
		maxActive: cfg.MaxActive,
		retention: cfg.RevokedRetention,
		batch:     cfg.SweepBatch,
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.maxActive <= 0 {
		r.maxActive = DefaultMaxActive
	}
	if r.retention <= 0 {
		r.retention = DefaultRevokedRetention
	}
	if r.batch <= 0 {
		r.batch = DefaultSweepBatch
	}
	return r
}

// MaxActive returns the per-user session cap
func (r *Registry) MaxActive() int { return r.maxActive }

// Issue stores the hash of raw and revokes the oldest sessions beyond the cap.
func (r *Registry) Issue(ctx context.Context, repo storage.TokenStorage, userID, raw string, expiresAt time.Time, device models.DeviceMeta) (*models.RefreshToken, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := r.now()
	token := &models.RefreshToken{
		ID:        id.String(),
		UserID:    userID,
		TokenHash: crypto.HashToken(raw),
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UserAgent: device.UserAgent,
		IP:        device.IP,
	}

	if err := repo.SaveRefreshToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	evicted, err := repo.RevokeExcessTokens(ctx, userID, r.maxActive, now)
	if err != nil {
		return nil, fmt.Errorf("failed to enforce session cap: %w", err)
	}
	if evicted > 0 {
		r.logger.InfoContext(ctx, "evicted oldest sessions",
			slog.String("user_id", userID),
			slog.Int("evicted", evicted),
		)
	}

	return token, nil
}

// Consume validates raw against its stored record and revokes it.
// subject is the user id embedded in the presented JWT. Every failure,
// including losing a concurrent race for the same token, is InvalidCredentials
func (r *Registry) Consume(ctx context.Context, repo storage.TokenStorage, raw, subject string) (*models.RefreshToken, error) {
	now := r.now()
	hash := crypto.HashToken(raw)

	record, err := repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, autherr.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if record.UserID != subject {
		r.logger.WarnContext(ctx, "refresh token subject does not match session owner",
			slog.String("session_id", record.ID),
		)
		return nil, autherr.ErrInvalidCredentials
	}

	if !record.IsActive(now) {
		return nil, autherr.ErrInvalidCredentials
	}

	ok, err := repo.RevokeRefreshToken(ctx, hash, now)
	if err != nil {
		return nil, fmt.Errorf("failed to revoke session: %w", err)
	}
	if !ok {
		return nil, autherr.ErrInvalidCredentials
	}

	record.Revoked = true
	record.RevokedAt = &now

	return record, nil
}

// Revoke revokes the session of raw. Unknown tokens are a no-op
func (r *Registry) Revoke(ctx context.Context, repo storage.TokenStorage, raw string) error {
	if _, err := repo.RevokeRefreshToken(ctx, crypto.HashToken(raw), r.now()); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeAll revokes every active session of a user
func (r *Registry) RevokeAll(ctx context.Context, repo storage.TokenStorage, userID string) (int, error) {
	n, err := repo.RevokeUserTokens(ctx, userID, r.now())
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return n, nil
}

// CountActive returns the number of usable sessions of a user
func (r *Registry) CountActive(ctx context.Context, repo storage.TokenStorage, userID string) (int, error) {
	n, err := repo.CountActiveTokens(ctx, userID, r.now())
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// Sweep deletes expired sessions and sessions revoked longer than the
// retention window, one batch per statement
func (r *Registry) Sweep(ctx context.Context, repo storage.TokenStorage, now time.Time) (int, error) {
	revokedBefore := now.Add(-r.retention)

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := repo.DeleteStaleTokens(ctx, now, revokedBefore, r.batch)
		if err != nil {
			return total, fmt.Errorf("failed to sweep sessions: %w", err)
		}
		total += n

		if n < r.batch {
			return total, nil
		}
	}
}
