// Package account resolves Telegram identities to local users.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/tgauth/internal/models"
	"github.com/iudanet/tgauth/internal/server/storage"
)

// resolveAttempts: первая попытка и один повтор после гонки первого входа
const resolveAttempts = 2

// Transactor runs fn inside a single storage transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(repo storage.Repository) error) error
}

// InTx runs fn in a transaction of tx. When two first logins of the same
// Telegram id race, the loser's insert fails with ErrTelegramIDTaken; the
// whole transaction is then repeated and finds the winner's user.
// Any other error is returned after the first attempt
func InTx(ctx context.Context, tx Transactor, fn func(repo storage.Repository) error) error {
	var err error
	for range resolveAttempts {
		err = tx.InTx(ctx, fn)
		if !errors.Is(err, storage.ErrTelegramIDTaken) {
			return err
		}
	}
	return err
}

// ResolveTelegramUser finds the user bound to identity.ID or creates a new
// Telegram-only user. Profile fields that changed on the Telegram side are
// copied onto an existing user. created reports whether a user was inserted
func ResolveTelegramUser(ctx context.Context, repo storage.UserStorage, identity models.TelegramIdentity, now time.Time) (user *models.User, created bool, err error) {
	user, err = repo.GetUserByTelegramID(ctx, identity.ID)
	switch {
	case err == nil:
		if ApplyTelegramProfile(user, identity) {
			user.UpdatedAt = now
			if err := repo.UpdateUser(ctx, user); err != nil {
				return nil, false, fmt.Errorf("failed to update telegram profile: %w", err)
			}
		}
		return user, false, nil

	case errors.Is(err, storage.ErrUserNotFound):
		user = &models.User{
			ID:         uuid.New().String(),
			TelegramID: models.Int64Ptr(identity.ID),
			FirstName:  identity.FirstName,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		ApplyTelegramProfile(user, identity)

		if err := repo.CreateUser(ctx, user); err != nil {
			return nil, false, fmt.Errorf("failed to create telegram user: %w", err)
		}
		return user, true, nil

	default:
		return nil, false, fmt.Errorf("failed to find telegram user: %w", err)
	}
}

// ApplyTelegramProfile copies non-empty Telegram profile fields onto user and
// reports whether anything changed
func ApplyTelegramProfile(user *models.User, identity models.TelegramIdentity) bool {
	changed := false

	if identity.FirstName != "" && user.FirstName != identity.FirstName {
		user.FirstName = identity.FirstName
		changed = true
	}
	if identity.LastName != nil && !equalString(user.LastName, identity.LastName) {
		user.LastName = identity.LastName
		changed = true
	}
	if identity.Username != nil && !equalString(user.TelegramUsername, identity.Username) {
		user.TelegramUsername = identity.Username
		changed = true
	}
	if identity.PhotoURL != nil && !equalString(user.AvatarURL, identity.PhotoURL) {
		user.AvatarURL = identity.PhotoURL
		changed = true
	}
	if identity.ChatID != nil && (user.TelegramChatID == nil || *user.TelegramChatID != *identity.ChatID) {
		user.TelegramChatID = identity.ChatID
		changed = true
	}

	return changed
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
