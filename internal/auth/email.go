package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/iudanet/tgauth/internal/autherr"
	"github.com/iudanet/tgauth/internal/events"
	"github.com/iudanet/tgauth/internal/models"
	"github.com/iudanet/tgauth/internal/server/storage"
	"github.com/iudanet/tgauth/internal/validation"
)

// Пути страниц фронтенда, на которые ведут ссылки из писем
const (
	VerifyEmailPath   = "/api/v1/auth/verify"
	ResetPasswordPath = "/reset-password"
)

// RequestEmailVerification sends a new verification link. Unknown and
// already verified addresses succeed silently
func (s *Service) RequestEmailVerification(ctx context.Context, email string) (err error) {
	const op = "auth.RequestEmailVerification"
	ctx, end := s.startSpan(ctx, op)
	defer func() { end(err) }()

	user, err := s.userForLink(ctx, email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if user == nil || user.EmailVerified {
		return nil
	}

	return s.sendVerification(ctx, user)
}

// VerifyEmail consumes a verification token and marks the address verified
func (s *Service) VerifyEmail(ctx context.Context, raw string) (profile *models.PublicProfile, err error) {
	const op = "auth.VerifyEmail"
	ctx, end := s.startSpan(ctx, op)
	defer func() { end(err) }()

	err = s.store.InTx(ctx, func(repo storage.Repository) error {
		record, err := s.verify.Consume(ctx, repo, raw, models.VerificationEmail)
		if err != nil {
			return err
		}

		user, err := repo.GetUserByIDForUpdate(ctx, record.UserID)
		if err != nil {
			return err
		}

		if !user.EmailVerified {
			user.EmailVerified = true
			user.UpdatedAt = s.now()
			if err := repo.UpdateUser(ctx, user); err != nil {
				return err
			}
		}

		p := user.Profile()
		profile = &p
		return nil
	})
	if err != nil {
		if autherr.CodeOf(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.InfoContext(ctx, "email verified", slog.String("op", op), slog.String("user_id", profile.ID))

	return profile, nil
}

// RequestPasswordReset sends a password reset link. Unknown addresses
// succeed silently
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (err error) {
	const op = "auth.RequestPasswordReset"
	ctx, end := s.startSpan(ctx, op)
	defer func() { end(err) }()

	user, err := s.userForLink(ctx, email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if user == nil {
		return nil
	}

	return s.sendLink(ctx, user, models.VerificationPasswordReset, events.PurposePasswordReset, ResetPasswordPath)
}

// ResetPassword consumes a reset token, sets the new password, clears the
// lockout and revokes every session of the user
func (s *Service) ResetPassword(ctx context.Context, raw, newPassword string) (err error) {
	const op = "auth.ResetPassword"
	ctx, end := s.startSpan(ctx, op)
	defer func() { end(err) }()

	if raw == "" {
		return autherr.ErrInvalidToken
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var (
		userID  string
		revoked int
	)
	err = s.store.InTx(ctx, func(repo storage.Repository) error {
		record, err := s.verify.Consume(ctx, repo, raw, models.VerificationPasswordReset)
		if err != nil {
			return err
		}

		user, err := repo.GetUserByIDForUpdate(ctx, record.UserID)
		if err != nil {
			return err
		}

		user.PasswordHash = &hash
		applyLockoutState(user, s.policy.RegisterSuccess(lockoutState(user)))
		user.UpdatedAt = s.now()
		if err := repo.UpdateUser(ctx, user); err != nil {
			return err
		}

		revoked, err = s.sessions.RevokeAll(ctx, repo, user.ID)
		if err != nil {
			return err
		}

		userID = user.ID
		return nil
	})
	if err != nil {
		if autherr.CodeOf(err) != "" {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	s.logger.InfoContext(ctx, "password reset",
		slog.String("op", op),
		slog.String("user_id", userID),
		slog.Int("revoked_sessions", revoked),
	)

	return nil
}

// userForLink returns the user owning email or nil when there is none.
// Malformed addresses are treated as unknown so that the response does not
// depend on the input
func (s *Service) userForLink(ctx context.Context, email string) (*models.User, error) {
	email = validation.NormalizeEmail(email)
	if validation.ValidateEmail(email) != nil {
		return nil, nil
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) sendVerification(ctx context.Context, user *models.User) error {
	return s.sendLink(ctx, user, models.VerificationEmail, events.PurposeEmailVerification, VerifyEmailPath)
}

// sendLink issues a token of typ and publishes the link event.
// Rate limit errors are returned to the caller as is. A failed publish is only
// logged: the answer for a known address must not differ from an unknown one
func (s *Service) sendLink(ctx context.Context, user *models.User, typ models.VerificationType, purpose events.Purpose, path string) error {
	var raw string
	err := s.store.InTx(ctx, func(repo storage.Repository) error {
		// Блокировка владельца сериализует параллельные запросы,
		// иначе каждый пройдёт подсчёт лимита до вставки
		if _, err := repo.GetUserByIDForUpdate(ctx, user.ID); err != nil {
			return err
		}

		var err error
		raw, err = s.verify.Issue(ctx, repo, user.ID, typ)
		return err
	})
	if err != nil {
		if autherr.CodeOf(err) != "" {
			return err
		}
		return fmt.Errorf("failed to issue %s token: %w", strings.ToLower(string(typ)), err)
	}

	msg := events.Message{
		Purpose:   purpose,
		UserID:    user.ID,
		FirstName: user.FirstName,
		Link:      s.link(path, raw),
	}
	if user.Email != nil {
		msg.Email = *user.Email
	}

	if err := s.events.Publish(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish link event",
			slog.String("purpose", string(purpose)),
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}
	return nil
}

func (s *Service) link(path, token string) string {
	return strings.TrimRight(s.publicURL, "/") + path + "?token=" + url.QueryEscape(token)
}
