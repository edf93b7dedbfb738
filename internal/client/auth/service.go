// Package auth keeps the CLI session: it logs in through the API client and
// stores the resulting token pair locally.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/tgauth/internal/client/api"
	"github.com/iudanet/tgauth/internal/client/storage"
	"github.com/iudanet/tgauth/internal/validation"
	pkgapi "github.com/iudanet/tgauth/pkg/api"
)

// Способы входа, сохраняемые в AuthData.Method
const (
	MethodPassword = "password"
	MethodBot      = "bot"
)

// ErrNotLoggedIn возвращается, когда локальной сессии нет
var ErrNotLoggedIn = errors.New("not logged in")

// ErrBotAuthFailed означает, что bot auth токен завершился без входа
var ErrBotAuthFailed = errors.New("bot login was not completed")

// Service предоставляет функции авторизации
type Service struct {
	apiClient API
	store     storage.AuthStorage
	now       func() time.Time
}

// NewService создает новый сервис авторизации
func NewService(apiClient API, store storage.AuthStorage) *Service {
	return &Service{
		apiClient: apiClient,
		store:     store,
		now:       time.Now,
	}
}

// Register регистрирует нового пользователя и сохраняет сессию
func (s *Service) Register(ctx context.Context, email, password, firstName string) (*storage.AuthData, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("invalid email: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("invalid password: %w", err)
	}
	if err := validation.ValidateName(firstName, true); err != nil {
		return nil, fmt.Errorf("invalid first name: %w", err)
	}

	resp, err := s.apiClient.Register(ctx, pkgapi.RegisterRequest{
		Email:     email,
		Password:  password,
		FirstName: firstName,
	})
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	return s.save(ctx, resp, MethodPassword)
}

// Login выполняет вход по email и паролю
func (s *Service) Login(ctx context.Context, email, password string) (*storage.AuthData, error) {
	email = validation.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}

	resp, err := s.apiClient.Login(ctx, pkgapi.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	return s.save(ctx, resp, MethodPassword)
}

// BotLogin начинает вход через Telegram бота. onLink получает deep link,
// который пользователь открывает в Telegram. Метод ждёт завершения через
// SSE поток; если поток оборвался, статус проверяется опросом и поток
// переоткрывается, пока токен в состоянии PENDING
func (s *Service) BotLogin(ctx context.Context, onLink func(deepLink string)) (*storage.AuthData, error) {
	started, err := s.apiClient.BotInit(ctx)
	if err != nil {
		return nil, fmt.Errorf("bot login failed: %w", err)
	}
	if onLink != nil {
		onLink(started.DeepLink)
	}

	for {
		ev, err := s.apiClient.WaitBotAuth(ctx, started.Token)
		if err == nil {
			if ev.Tokens == nil {
				return nil, fmt.Errorf("%w: %s", ErrBotAuthFailed, ev.Status)
			}
			return s.save(ctx, ev.Tokens, MethodBot)
		}
		if !errors.Is(err, api.ErrStreamClosed) || ctx.Err() != nil {
			return nil, fmt.Errorf("bot login failed: %w", err)
		}

		slog.Debug("bot auth stream closed, checking status", "error", err)

		st, err := s.apiClient.BotStatus(ctx, started.Token)
		if err != nil {
			return nil, fmt.Errorf("bot login failed: %w", err)
		}
		if st.Status != "PENDING" {
			// токены отдаются только через поток, статус их не повторяет
			return nil, fmt.Errorf("%w: %s", ErrBotAuthFailed, st.Status)
		}
		if !s.now().Before(started.ExpiresAt) {
			return nil, fmt.Errorf("%w: EXPIRED", ErrBotAuthFailed)
		}
	}
}

// Refresh обменивает сохранённый refresh token на новую пару
func (s *Service) Refresh(ctx context.Context) (*storage.AuthData, error) {
	current, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.apiClient.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh failed: %w", err)
	}

	return s.save(ctx, resp, current.Method)
}

// Logout выполняет выход из системы
// Удаляет локальные данные авторизации и уведомляет сервер
func (s *Service) Logout(ctx context.Context) error {
	return s.logout(ctx, s.apiClient.Logout)
}

// LogoutAll завершает все сессии пользователя на всех устройствах
func (s *Service) LogoutAll(ctx context.Context) error {
	return s.logout(ctx, s.apiClient.LogoutAll)
}

func (s *Service) logout(ctx context.Context, call func(context.Context, string) error) error {
	authData, err := s.store.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return ErrNotLoggedIn
		}
		return fmt.Errorf("failed to get auth data: %w", err)
	}

	// Пытаемся уведомить сервер (best effort)
	if logoutErr := call(ctx, authData.RefreshToken); logoutErr != nil {
		slog.Warn("failed to logout on server", "error", logoutErr)
	}

	// Всегда удаляем локальные данные, даже если сервер недоступен
	if err := s.store.DeleteAuth(ctx); err != nil {
		return fmt.Errorf("failed to delete local auth data: %w", err)
	}

	return nil
}

// Current возвращает сохранённую сессию
func (s *Service) Current(ctx context.Context) (*storage.AuthData, error) {
	authData, err := s.store.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("failed to get auth data: %w", err)
	}
	return authData, nil
}

// SessionCount возвращает число активных сессий. Истёкший access token
// обновляется один раз перед повтором
func (s *Service) SessionCount(ctx context.Context) (int, error) {
	current, err := s.Current(ctx)
	if err != nil {
		return 0, err
	}

	if current.AccessExpired(s.now()) {
		if current, err = s.Refresh(ctx); err != nil {
			return 0, err
		}
	}

	n, err := s.apiClient.SessionCount(ctx, current.AccessToken)
	if err == nil {
		return n, nil
	}

	switch api.CodeOf(err) {
	case "INVALID_TOKEN", "TOKEN_EXPIRED":
		if current, err = s.Refresh(ctx); err != nil {
			return 0, err
		}
		return s.apiClient.SessionCount(ctx, current.AccessToken)
	default:
		return 0, err
	}
}

func (s *Service) save(ctx context.Context, resp *pkgapi.TokenResponse, method string) (*storage.AuthData, error) {
	authData := &storage.AuthData{
		TelegramID:   resp.User.TelegramID,
		UserID:       resp.User.ID,
		FirstName:    resp.User.FirstName,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		Method:       method,
		ExpiresAt:    s.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix(),
	}
	if resp.User.Email != nil {
		authData.Email = *resp.User.Email
	}

	if err := s.store.SaveAuth(ctx, authData); err != nil {
		return nil, fmt.Errorf("failed to save auth data: %w", err)
	}
	return authData, nil
}
