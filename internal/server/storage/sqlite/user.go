package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/tgauth/internal/models"
	"github.com/iudanet/tgauth/internal/server/storage"
)

const userColumns = `id, email, telegram_id, password_hash, first_name, last_name,
	telegram_username, telegram_chat_id, avatar_url, failed_login_attempts,
	locked_until, email_verified, is_admin, created_at, updated_at`

// CreateUser creates a new user in the storage
func (r *repo) CreateUser(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	query := `INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.q.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.TelegramID,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.TelegramUsername,
		user.TelegramChatID,
		user.AvatarURL,
		user.FailedLoginAttempts,
		nullMillis(user.LockedUntil),
		user.EmailVerified,
		user.IsAdmin,
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	)
	if err != nil {
		switch {
		case constraintViolation(err, "users.email"):
			return storage.ErrUserAlreadyExists
		case constraintViolation(err, "users.telegram_id"):
			return storage.ErrTelegramIDTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetUserByID retrieves user by ID
func (r *repo) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return r.getUser(ctx, `WHERE id = ?`, userID)
}

// GetUserByIDForUpdate retrieves user by ID.
// Транзакции SQLite уже сериализованы единственным соединением
func (r *repo) GetUserByIDForUpdate(ctx context.Context, userID string) (*models.User, error) {
	return r.getUser(ctx, `WHERE id = ?`, userID)
}

// GetUserByEmail retrieves user by email
func (r *repo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, `WHERE email = ?`, email)
}

// GetUserByTelegramID retrieves user by telegram id
func (r *repo) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return r.getUser(ctx, `WHERE telegram_id = ?`, telegramID)
}

func (r *repo) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ` + where

	user := &models.User{}
	var (
		email, passwordHash, lastName, username, avatarURL sql.NullString
		telegramID, chatID, lockedUntil                    sql.NullInt64
		createdAt, updatedAt                               int64
	)

	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&email,
		&telegramID,
		&passwordHash,
		&user.FirstName,
		&lastName,
		&username,
		&chatID,
		&avatarURL,
		&user.FailedLoginAttempts,
		&lockedUntil,
		&user.EmailVerified,
		&user.IsAdmin,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.Email = stringPtr(email)
	user.TelegramID = int64Ptr(telegramID)
	user.PasswordHash = stringPtr(passwordHash)
	user.LastName = stringPtr(lastName)
	user.TelegramUsername = stringPtr(username)
	user.TelegramChatID = int64Ptr(chatID)
	user.AvatarURL = stringPtr(avatarURL)
	user.LockedUntil = timePtr(lockedUntil)
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)

	return user, nil
}

// UpdateUser updates user information
func (r *repo) UpdateUser(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE users
		SET email = ?, telegram_id = ?, password_hash = ?, first_name = ?, last_name = ?,
			telegram_username = ?, telegram_chat_id = ?, avatar_url = ?,
			failed_login_attempts = ?, locked_until = ?, email_verified = ?, is_admin = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.q.ExecContext(ctx, query,
		user.Email,
		user.TelegramID,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.TelegramUsername,
		user.TelegramChatID,
		user.AvatarURL,
		user.FailedLoginAttempts,
		nullMillis(user.LockedUntil),
		user.EmailVerified,
		user.IsAdmin,
		toMillis(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		switch {
		case constraintViolation(err, "users.email"):
			return storage.ErrUserAlreadyExists
		case constraintViolation(err, "users.telegram_id"):
			return storage.ErrTelegramIDTaken
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}
