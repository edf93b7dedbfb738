package storage

import (
	"context"
	"time"

	"github.com/iudanet/tgauth/internal/models"
)

// VerificationStorage defines interface for email verification and password reset tokens
type VerificationStorage interface {
	// SaveVerificationToken stores a new token
	SaveVerificationToken(ctx context.Context, token *models.VerificationToken) error

	// GetVerificationTokenByHash retrieves token by hash
	// Returns ErrTokenNotFound if token doesn't exist
	GetVerificationTokenByHash(ctx context.Context, tokenHash string) (*models.VerificationToken, error)

	// MarkVerificationTokenUsed marks an unused, unexpired token used.
	// Returns false if the token was already used or expired
	MarkVerificationTokenUsed(ctx context.Context, id string, now time.Time) (bool, error)

	// InvalidatePendingVerificationTokens marks all unused tokens of the type used
	InvalidatePendingVerificationTokens(ctx context.Context, userID string, typ models.VerificationType, now time.Time) (int, error)

	// VerificationTokensCreatedSince returns creation times of the user's tokens of
	// the type created at or after since, oldest first
	VerificationTokensCreatedSince(ctx context.Context, userID string, typ models.VerificationType, since time.Time) ([]time.Time, error)

	// DeleteStaleVerificationTokens removes up to limit tokens that expired
	// before now or were used before usedBefore
	DeleteStaleVerificationTokens(ctx context.Context, now, usedBefore time.Time, limit int) (int, error)
}
