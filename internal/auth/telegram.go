package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/tgauth/internal/account"
	"github.com/iudanet/tgauth/internal/autherr"
	"github.com/iudanet/tgauth/internal/botauth"
	"github.com/iudanet/tgauth/internal/events"
	"github.com/iudanet/tgauth/internal/models"
	"github.com/iudanet/tgauth/internal/pubsub"
	"github.com/iudanet/tgauth/internal/server/storage"
	"github.com/iudanet/tgauth/internal/telegram"
)

// TelegramAuth logs in with a Login Widget payload, creating a Telegram-only
// account on first use
func (s *Service) TelegramAuth(ctx context.Context, data telegram.WidgetData, device models.DeviceMeta) (res *models.AuthResult, err error) {
	const op = "auth.TelegramAuth"
	ctx, end := s.startSpan(ctx, op)
	defer func() { end(err) }()

	identity, err := s.telegram.Validate(data)
	if err != nil {
		return nil, err
	}

	var (
		user    *models.User
		created bool
	)
	err = account.InTx(ctx, s.store, func(repo storage.Repository) error {
		var err error
		user, created, err = account.ResolveTelegramUser(ctx, repo, identity, s.now())
		if err != nil {
			return err
		}

		result, err := s.issuer.Issue(ctx, repo, user, device)
		if err != nil {
			return err
		}
		res = result
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if created {
		s.publish(ctx, events.Message{
			Purpose:        events.PurposeUserRegistered,
			UserID:         user.ID,
			FirstName:      user.FirstName,
			TelegramChatID: user.TelegramChatID,
		})
	}

	s.logger.InfoContext(ctx, "telegram login",
		slog.String("op", op),
		slog.String("user_id", user.ID),
		slog.Bool("new_user", created),
	)

	return res, nil
}

// TelegramLink binds a Login Widget identity to the existing account userID
// and returns a fresh pair carrying the updated profile
func (s *Service) TelegramLink(ctx context.Context, userID string, data telegram.WidgetData, device models.DeviceMeta) (res *models.AuthResult, err error) {
	const op = "auth.TelegramLink"
	ctx, end := s.startSpan(ctx, op)
	defer func() { end(err) }()

	identity, err := s.telegram.Validate(data)
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(repo storage.Repository) error {
		user, err := repo.GetUserByIDForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				return autherr.ErrInvalidCredentials
			}
			return err
		}

		owner, err := repo.GetUserByTelegramID(ctx, identity.ID)
		switch {
		case err == nil && owner.ID != user.ID:
			return autherr.ErrTelegramIDAlreadyExists
		case err != nil && !errors.Is(err, storage.ErrUserNotFound):
			return err
		}

		if user.TelegramID != nil && *user.TelegramID != identity.ID {
			// Аккаунт уже привязан к другому Telegram
			return autherr.ErrTelegramIDAlreadyExists
		}

		user.TelegramID = models.Int64Ptr(identity.ID)
		account.ApplyTelegramProfile(user, identity)
		user.UpdatedAt = s.now()

		if err := repo.UpdateUser(ctx, user); err != nil {
			if errors.Is(err, storage.ErrTelegramIDTaken) {
				return autherr.ErrTelegramIDAlreadyExists
			}
			return err
		}

		result, err := s.issuer.Issue(ctx, repo, user, device)
		if err != nil {
			return err
		}
		res = result
		return nil
	})
	if err != nil {
		if autherr.CodeOf(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.InfoContext(ctx, "telegram linked",
		slog.String("op", op),
		slog.String("user_id", userID),
	)

	return res, nil
}

// BotAuthInit starts a bot deep-link login
func (s *Service) BotAuthInit(ctx context.Context) (res *botauth.InitResult, err error) {
	ctx, end := s.startSpan(ctx, "auth.BotAuthInit")
	defer func() { end(err) }()

	return s.bot.Init(ctx)
}

// BotAuthConfirm is called by the bot backend once the user pressed Start
func (s *Service) BotAuthConfirm(ctx context.Context, token string, identity models.TelegramIdentity, device models.DeviceMeta) (err error) {
	ctx, end := s.startSpan(ctx, "auth.BotAuthConfirm")
	defer func() { end(err) }()

	return s.bot.Confirm(ctx, token, identity, device)
}

// BotAuthStatus reports the state of a bot login. It never returns tokens
func (s *Service) BotAuthStatus(ctx context.Context, token string) (res *botauth.StatusResult, err error) {
	ctx, end := s.startSpan(ctx, "auth.BotAuthStatus")
	defer func() { end(err) }()

	return s.bot.Status(ctx, token)
}

// BotAuthSubscribe opens the push channel the auth payload is delivered on
func (s *Service) BotAuthSubscribe(ctx context.Context, token string) (pubsub.Subscription, error) {
	return s.bot.Subscribe(ctx, token)
}
