// Package api defines the JSON request and response bodies of the auth HTTP API.
package api

import "time"

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Email     string  `json:"email" validate:"required,max=254"`
	Password  string  `json:"password" validate:"required"`
	FirstName string  `json:"first_name" validate:"required,max=100"`
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries the refresh token for /refresh, /logout and /logout-all
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TelegramAuthRequest is the Telegram Login Widget payload, passed through as is
type TelegramAuthRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	Hash      string `json:"hash" validate:"required,hexadecimal"`
	ID        int64  `json:"id" validate:"required,gt=0"`
	AuthDate  int64  `json:"auth_date" validate:"required,gt=0"`
}

// BotConfirmRequest is sent by the bot backend after the user pressed Start
type BotConfirmRequest struct {
	LastName   *string `json:"last_name,omitempty"`
	Username   *string `json:"username,omitempty"`
	PhotoURL   *string `json:"photo_url,omitempty"`
	ChatID     *int64  `json:"chat_id,omitempty"`
	Token      string  `json:"token" validate:"required"`
	FirstName  string  `json:"first_name" validate:"required"`
	TelegramID int64   `json:"telegram_id" validate:"required,gt=0"`
}

// EmailRequest is the body of /verify/resend and /password/forgot
type EmailRequest struct {
	Email string `json:"email" validate:"required"`
}

// ResetPasswordRequest sets a new password with a reset token
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// UserProfile is the public view of a user
type UserProfile struct {
	Email            *string `json:"email,omitempty"`
	LastName         *string `json:"last_name,omitempty"`
	TelegramID       *int64  `json:"telegram_id,omitempty"`
	TelegramUsername *string `json:"telegram_username,omitempty"`
	AvatarURL        *string `json:"avatar_url,omitempty"`
	ID               string  `json:"id"`
	FirstName        string  `json:"first_name"`
	EmailVerified    bool    `json:"email_verified"`
	IsAdmin          bool    `json:"is_admin"`
}

// TokenResponse представляет ответ с токенами доступа
type TokenResponse struct {
	AccessToken  string      `json:"access_token"`  // JWT access token
	RefreshToken string      `json:"refresh_token"` // JWT refresh token, одноразовый
	User         UserProfile `json:"user"`
	ExpiresIn    int64       `json:"expires_in"` // время жизни access token в секундах
}

// BotInitResponse starts a bot deep-link login
type BotInitResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"token"`
	DeepLink  string    `json:"deeplink"`
}

// BotStatusResponse is the polling view of a bot login. It never carries tokens
type BotStatusResponse struct {
	User   *UserProfile `json:"user,omitempty"`
	Status string       `json:"status"`
}

// SessionCountResponse is the number of active sessions of the caller
type SessionCountResponse struct {
	Active int `json:"active"`
}

// VerifyEmailResponse is returned after a successful email verification
type VerifyEmailResponse struct {
	User UserProfile `json:"user"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	LockedUntil *time.Time `json:"locked_until,omitempty"` // только для ACCOUNT_LOCKED
	Error       string     `json:"error"`                  // машиночитаемый код
	Message     string     `json:"message,omitempty"`      // описание ошибки
	RetryAfter  int64      `json:"retry_after,omitempty"`  // секунды, только для TOO_MANY_REQUESTS
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
