package storage

import (
	"context"
	"time"

	"github.com/iudanet/tgauth/internal/models"
)

// TokenStorage defines interface for refresh token persistence.
// Tokens are addressed by the hex SHA-256 of the raw value
type TokenStorage interface {
	// SaveRefreshToken stores a new refresh token record
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error

	// GetRefreshTokenByHash retrieves refresh token by its hash
	// Returns ErrTokenNotFound if token doesn't exist
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// RevokeRefreshToken marks the token revoked if it is still active at now.
	// Returns false when the token is unknown, already revoked or expired
	RevokeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (bool, error)

	// RevokeUserTokens revokes all active tokens of a user
	// Returns number of revoked tokens
	RevokeUserTokens(ctx context.Context, userID string, now time.Time) (int, error)

	// RevokeExcessTokens revokes active tokens of a user beyond the newest keep,
	// oldest created_at first (ties broken by id)
	RevokeExcessTokens(ctx context.Context, userID string, keep int, now time.Time) (int, error)

	// CountActiveTokens returns number of non-revoked, non-expired tokens of a user
	CountActiveTokens(ctx context.Context, userID string, now time.Time) (int, error)

	// DeleteStaleTokens removes up to limit tokens that expired before now or
	// were revoked before revokedBefore. Returns number of deleted tokens
	DeleteStaleTokens(ctx context.Context, now, revokedBefore time.Time, limit int) (int, error)
}
