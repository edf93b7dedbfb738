package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/iudanet/tgauth/internal/autherr"
	"github.com/iudanet/tgauth/internal/crypto"
	"github.com/iudanet/tgauth/internal/models"
	"github.com/iudanet/tgauth/internal/server/storage"
	"github.com/iudanet/tgauth/internal/validation"
)

// RegisterInput is the payload of Register
type RegisterInput struct {
	LastName  *string
	Email     string
	Password  string
	FirstName string
	Device    models.DeviceMeta
}

// LoginInput is the payload of Login
type LoginInput struct {
	Email    string
	Password string
	Device   models.DeviceMeta
}

// Register creates an email/password account and logs it in.
// A verification link is requested for the new address
func (s *Service) Register(ctx context.Context, in RegisterInput) (res *models.AuthResult, err error) {
	const op = "auth.Register"
	ctx, end := s.startSpan(ctx, op)
	defer func() { end(err) }()

	email := validation.NormalizeEmail(in.Email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := validation.ValidateName(in.FirstName, true); err != nil {
		return nil, err
	}
	if in.LastName != nil {
		if err := validation.ValidateName(*in.LastName, false); err != nil {
			return nil, err
		}
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, autherr.ErrEmailAlreadyExists
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        &email,
		PasswordHash: &hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.LastName != nil {
		user.LastName = models.StringPtr(strings.TrimSpace(*in.LastName))
	}

	err = s.store.InTx(ctx, func(repo storage.Repository) error {
		if err := repo.CreateUser(ctx, user); err != nil {
			if errors.Is(err, storage.ErrUserAlreadyExists) {
				return autherr.ErrEmailAlreadyExists
			}
			return err
		}

		result, err := s.issuer.Issue(ctx, repo, user, in.Device)
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

	s.logger.InfoContext(ctx, "user registered", slog.String("op", op), slog.String("user_id", user.ID))

	if err := s.sendVerification(ctx, user); err != nil {
		// Регистрация уже состоялась, ссылку можно запросить повторно
		s.logger.WarnContext(ctx, "failed to send verification link",
			slog.String("op", op),
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	return res, nil
}

// Login authenticates by email and password. Unknown email and wrong password
// fail with the same error after the same amount of hashing work. A locked
// account is rejected without comparing the password
func (s *Service) Login(ctx context.Context, in LoginInput) (res *models.AuthResult, err error) {
	const op = "auth.Login"
	ctx, end := s.startSpan(ctx, op)
	defer func() { end(err) }()
	log := s.logger.With(slog.String("op", op))

	email := validation.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, autherr.Validation("email and password are required")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.hasher.Matches(in.Password, s.dummyHash)
			return nil, autherr.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if decision := s.policy.Evaluate(lockoutState(user), s.now()); decision.Locked {
		return nil, autherr.AccountLocked(decision.Until)
	}

	// bcrypt выполняется вне транзакции
	matched := false
	if user.PasswordHash != nil {
		matched = s.hasher.Matches(in.Password, *user.PasswordHash)
	} else {
		s.hasher.Matches(in.Password, s.dummyHash)
	}

	var failure error
	err = s.store.InTx(ctx, func(repo storage.Repository) error {
		// Перечитываем под блокировкой: параллельные попытки могли изменить счётчик
		fresh, err := repo.GetUserByIDForUpdate(ctx, user.ID)
		if err != nil {
			return err
		}

		now := s.now()
		decision := s.policy.Evaluate(lockoutState(fresh), now)
		if decision.Locked {
			failure = autherr.AccountLocked(decision.Until)
			return nil
		}

		if !matched {
			next := s.policy.RegisterFailure(decision.State, now)
			applyLockoutState(fresh, next)
			fresh.UpdatedAt = now
			if err := repo.UpdateUser(ctx, fresh); err != nil {
				return err
			}

			if next.LockedUntil != nil {
				log.WarnContext(ctx, "account locked",
					slog.String("user_id", fresh.ID),
					slog.Time("until", *next.LockedUntil),
				)
				failure = autherr.AccountLocked(*next.LockedUntil)
			} else {
				failure = autherr.ErrInvalidCredentials
			}
			return nil
		}

		if fresh.FailedLoginAttempts != 0 || fresh.LockedUntil != nil {
			applyLockoutState(fresh, s.policy.RegisterSuccess(decision.State))
			fresh.UpdatedAt = now
			if err := repo.UpdateUser(ctx, fresh); err != nil {
				return err
			}
		}

		res, err = s.issuer.Issue(ctx, repo, fresh, in.Device)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if failure != nil {
		return nil, failure
	}

	log.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))

	return res, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked before the replacement is issued, in the same unit of work
func (s *Service) Refresh(ctx context.Context, raw string, device models.DeviceMeta) (res *models.AuthResult, err error) {
	const op = "auth.Refresh"
	ctx, end := s.startSpan(ctx, op)
	defer func() { end(err) }()

	subject, err := s.signer.ValidateRefreshToken(raw)
	if err != nil {
		return nil, autherr.ErrInvalidCredentials
	}

	err = s.store.InTx(ctx, func(repo storage.Repository) error {
		record, err := s.sessions.Consume(ctx, repo, raw, subject)
		if err != nil {
			return err
		}

		user, err := repo.GetUserByID(ctx, record.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				return autherr.ErrInvalidCredentials
			}
			return err
		}

		res, err = s.issuer.Issue(ctx, repo, user, device)
		return err
	})
	if err != nil {
		if autherr.CodeOf(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

// Logout revokes the session of raw. Unknown and already revoked tokens are a no-op
func (s *Service) Logout(ctx context.Context, raw string) (err error) {
	const op = "auth.Logout"
	ctx, end := s.startSpan(ctx, op)
	defer func() { end(err) }()

	if raw == "" {
		return autherr.Validation("refresh token is required")
	}

	if err := s.sessions.Revoke(ctx, s.store, raw); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LogoutAll revokes every session of the owner of raw. The presented token
// may already be revoked, so repeated calls succeed. Unknown tokens are a no-op
func (s *Service) LogoutAll(ctx context.Context, raw string) (err error) {
	const op = "auth.LogoutAll"
	ctx, end := s.startSpan(ctx, op)
	defer func() { end(err) }()

	if raw == "" {
		return autherr.Validation("refresh token is required")
	}

	record, err := s.store.GetRefreshTokenByHash(ctx, crypto.HashToken(raw))
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := s.sessions.RevokeAll(ctx, s.store, record.UserID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.logger.InfoContext(ctx, "all sessions revoked",
		slog.String("op", op),
		slog.String("user_id", record.UserID),
		slog.Int("revoked", n),
	)

	return nil
}
