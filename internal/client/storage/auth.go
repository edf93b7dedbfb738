package storage

import (
	"context"
	"time"
)

// AuthStorage defines interface for storing the current session on the client
type AuthStorage interface {
	// SaveAuth replaces the stored session
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth retrieves the stored session
	// Returns ErrAuthNotFound if no session exists
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth removes the stored session (logout)
	// Returns ErrAuthNotFound if no session exists
	DeleteAuth(ctx context.Context) error
}

// AuthData is the session of the CLI user on one server: the token pair plus
// the profile returned with it. The refresh token is one-time use, so every
// refresh overwrites the record
type AuthData struct {
	TelegramID   *int64 `json:"telegram_id,omitempty"`
	Server       string `json:"server"` // проставляется хранилищем
	Email        string `json:"email,omitempty"`
	UserID       string `json:"user_id"`
	FirstName    string `json:"first_name"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Method       string `json:"method"`     // password, telegram или bot
	ExpiresAt    int64  `json:"expires_at"` // unix время истечения access token
}

// AccessExpired reports whether the access token is expired at now
func (a *AuthData) AccessExpired(now time.Time) bool {
	return !now.Before(time.Unix(a.ExpiresAt, 0))
}
