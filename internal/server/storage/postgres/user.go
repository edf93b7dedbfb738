package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iudanet/tgauth/internal/models"
	"github.com/iudanet/tgauth/internal/server/storage"
)

const userColumns = `id, email, telegram_id, password_hash, first_name, last_name,
	telegram_username, telegram_chat_id, avatar_url, failed_login_attempts,
	locked_until, email_verified, is_admin, created_at, updated_at`

func (r *repo) CreateUser(ctx context.Context, user *models.User) error {
	const op = "storage.postgres.CreateUser"

	if err := user.Validate(); err != nil {
		return err
	}

	query := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.q.Exec(ctx, query,
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
		user.LockedUntil,
		user.EmailVerified,
		user.IsAdmin,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return mapUserError(op, err)
	}

	return nil
}

func (r *repo) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return r.getUser(ctx, `WHERE id = $1`, userID)
}

func (r *repo) GetUserByIDForUpdate(ctx context.Context, userID string) (*models.User, error) {
	return r.getUser(ctx, `WHERE id = $1`+r.forUpdate, userID)
}

func (r *repo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, `WHERE email = $1`, email)
}

func (r *repo) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return r.getUser(ctx, `WHERE telegram_id = $1`, telegramID)
}

func (r *repo) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	const op = "storage.postgres.getUser"

	query := `SELECT ` + userColumns + ` FROM users ` + where

	var u models.User
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.TelegramID,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.TelegramUsername,
		&u.TelegramChatID,
		&u.AvatarURL,
		&u.FailedLoginAttempts,
		&u.LockedUntil,
		&u.EmailVerified,
		&u.IsAdmin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &u, nil
}

func (r *repo) UpdateUser(ctx context.Context, user *models.User) error {
	const op = "storage.postgres.UpdateUser"

	if err := user.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE users
		SET email = $1, telegram_id = $2, password_hash = $3, first_name = $4, last_name = $5,
			telegram_username = $6, telegram_chat_id = $7, avatar_url = $8,
			failed_login_attempts = $9, locked_until = $10, email_verified = $11, is_admin = $12,
			updated_at = $13
		WHERE id = $14
	`

	tag, err := r.q.Exec(ctx, query,
		user.Email,
		user.TelegramID,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.TelegramUsername,
		user.TelegramChatID,
		user.AvatarURL,
		user.FailedLoginAttempts,
		user.LockedUntil,
		user.EmailVerified,
		user.IsAdmin,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return mapUserError(op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func mapUserError(op string, err error) error {
	switch {
	case isUniqueViolation(err, "users_email_key"):
		return storage.ErrUserAlreadyExists
	case isUniqueViolation(err, "users_telegram_id_key"):
		return storage.ErrTelegramIDTaken
	}
	return fmt.Errorf("%s: %w", op, err)
}
