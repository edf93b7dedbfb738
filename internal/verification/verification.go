// Package verification issues and consumes single-use typed tokens for email
// verification and password reset.
package verification

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
	DefaultRateLimit     = 3
	DefaultRateWindow    = time.Hour
	DefaultEmailTTL      = 24 * time.Hour
	DefaultResetTTL      = time.Hour
	DefaultUsedRetention = 7 * 24 * time.Hour
	DefaultSweepBatch    = 500
)

// Config содержит параметры выпуска токенов
type Config struct {
	Now    func() time.Time
	Random *crypto.TokenGenerator
	Logger *slog.Logger
	// RateLimit токенов одного типа на пользователя за RateWindow
	RateLimit     int
	RateWindow    time.Duration
	EmailTTL      time.Duration
	ResetTTL      time.Duration
	UsedRetention time.Duration
	SweepBatch    int
}

// Manager issues and consumes verification tokens
type Manager struct {
	now    func() time.Time
	random *crypto.TokenGenerator
	logger *slog.Logger

	limit     int
	window    time.Duration
	emailTTL  time.Duration
	resetTTL  time.Duration
	retention time.Duration
	batch     int
}

// New creates a Manager. Zero values fall back to the defaults
func New(cfg Config) *Manager {
	m := &Manager{
		now:       cfg.Now,
		random:    cfg.Random,
		logger:    cfg.Logger,
		limit:     cfg.RateLimit,
		window:    cfg.RateWindow,
		emailTTL:  cfg.EmailTTL,
		resetTTL:  cfg.ResetTTL,
		retention: cfg.UsedRetention,
		batch:     cfg.SweepBatch,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.random == nil {
		m.random = crypto.NewTokenGenerator(nil)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.limit <= 0 {
		m.limit = DefaultRateLimit
	}
	if m.window <= 0 {
		m.window = DefaultRateWindow
	}
	if m.emailTTL <= 0 {
		m.emailTTL = DefaultEmailTTL
	}
	if m.resetTTL <= 0 {
		m.resetTTL = DefaultResetTTL
	}
	if m.retention <= 0 {
		m.retention = DefaultUsedRetention
	}
	if m.batch <= 0 {
		m.batch = DefaultSweepBatch
	}
	return m
}

// TTL returns the lifetime of tokens of typ
func (m *Manager) TTL(typ models.VerificationType) time.Duration {
	if typ == models.VerificationPasswordReset {
		return m.resetTTL
	}
	return m.emailTTL
}

// Issue creates a new token of typ for userID and returns the raw value.
// Pending tokens of the same type are invalidated. More than the configured
// number of tokens per window fails with TooManyRequests
func (m *Manager) Issue(ctx context.Context, repo storage.VerificationStorage, userID string, typ models.VerificationType) (string, error) {
	now := m.now()

	recent, err := repo.VerificationTokensCreatedSince(ctx, userID, typ, now.Add(-m.window))
	if err != nil {
		return "", fmt.Errorf("failed to check verification rate: %w", err)
	}
	if len(recent) >= m.limit {
		// recent отсортирован по возрастанию, окно освободится вместе с самым старым
		retryAfter := recent[0].Add(m.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return "", autherr.TooManyRequests(retryAfter)
	}

	if _, err := repo.InvalidatePendingVerificationTokens(ctx, userID, typ, now); err != nil {
		return "", fmt.Errorf("failed to invalidate pending tokens: %w", err)
	}

	raw, err := m.random.Token()
	if err != nil {
		return "", err
	}

	token := &models.VerificationToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: crypto.HashToken(raw),
		Type:      typ,
		ExpiresAt: now.Add(m.TTL(typ)),
		CreatedAt: now,
	}

	if err := repo.SaveVerificationToken(ctx, token); err != nil {
		return "", fmt.Errorf("failed to save verification token: %w", err)
	}

	return raw, nil
}

// Consume marks raw used and returns its record. Unknown, used, expired and
// mistyped tokens all fail with InvalidToken
func (m *Manager) Consume(ctx context.Context, repo storage.VerificationStorage, raw string, expected models.VerificationType) (*models.VerificationToken, error) {
	if raw == "" {
		return nil, autherr.ErrInvalidToken
	}

	now := m.now()

	record, err := repo.GetVerificationTokenByHash(ctx, crypto.HashToken(raw))
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, autherr.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load verification token: %w", err)
	}

	if record.Type != expected || !record.IsUsable(now) {
		return nil, autherr.ErrInvalidToken
	}

	ok, err := repo.MarkVerificationTokenUsed(ctx, record.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to mark verification token used: %w", err)
	}
	if !ok {
		return nil, autherr.ErrInvalidToken
	}

	record.Used = true
	record.UsedAt = &now

	return record, nil
}

// Sweep deletes expired tokens and tokens used longer than the retention
// window ago
func (m *Manager) Sweep(ctx context.Context, repo storage.VerificationStorage, now time.Time) (int, error) {
	usedBefore := now.Add(-m.retention)

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := repo.DeleteStaleVerificationTokens(ctx, now, usedBefore, m.batch)
		if err != nil {
			return total, fmt.Errorf("failed to sweep verification tokens: %w", err)
		}
		total += n

		if n < m.batch {
			return total, nil
		}
	}
}
