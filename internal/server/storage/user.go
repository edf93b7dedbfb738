package storage

import (
	"context"

	"github.com/iudanet/tgauth/internal/models"
)

// UserStorage defines interface for user data persistence
type UserStorage interface {
	// CreateUser creates a new user in the storage
	// Returns ErrUserAlreadyExists if email is taken, ErrTelegramIDTaken if telegram id is taken
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// GetUserByIDForUpdate retrieves user by ID and locks the row until the
	// surrounding transaction ends (where the backend supports row locks)
	GetUserByIDForUpdate(ctx context.Context, userID string) (*models.User, error)

	// GetUserByEmail retrieves user by normalized email
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByTelegramID retrieves user by telegram id
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)

	// UpdateUser updates all mutable user fields
	// Returns ErrUserNotFound if user doesn't exist, ErrTelegramIDTaken on telegram id conflict
	UpdateUser(ctx context.Context, user *models.User) error
}
