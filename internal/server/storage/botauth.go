package storage

import (
	"context"
	"time"

	"github.com/iudanet/tgauth/internal/models"
)

// BotAuthStorage defines interface for bot deep-link auth tokens
type BotAuthStorage interface {
	// SaveBotAuthToken stores a new PENDING token
	SaveBotAuthToken(ctx context.Context, token *models.BotAuthToken) error

	// GetBotAuthTokenByHash retrieves token by hash
	// Returns ErrTokenNotFound if token doesn't exist
	GetBotAuthTokenByHash(ctx context.Context, tokenHash string) (*models.BotAuthToken, error)

	// ConfirmBotAuthToken moves a PENDING, unexpired token to CONFIRMED and
	// captures the telegram identity. Returns false if no such token exists
	ConfirmBotAuthToken(ctx context.Context, tokenHash string, identity models.TelegramIdentity, now time.Time) (bool, error)

	// MarkBotAuthTokenUsed moves a CONFIRMED token to USED and binds it to userID
	MarkBotAuthTokenUsed(ctx context.Context, tokenHash, userID string) (bool, error)

	// DeleteExpiredBotAuthTokens removes up to limit tokens that expired before cutoff
	DeleteExpiredBotAuthTokens(ctx context.Context, cutoff time.Time, limit int) (int, error)
}
