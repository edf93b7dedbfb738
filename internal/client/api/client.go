// Package api is the HTTP client of the auth API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iudanet/tgauth/pkg/api"
)

const authPrefix = "/api/v1/auth"

// Error is a non-2xx response of the server
type Error struct {
	LockedUntil *time.Time
	Code        string
	Message     string
	Status      int
	RetryAfter  time.Duration
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error (%d)", e.Status)
	}
	return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
}

// CodeOf returns the machine-readable code of a server error, or ""
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient   *http.Client
	streamClient *http.Client // без общего таймаута: SSE поток живёт до окна bot auth
	baseURL      string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
		streamClient: &http.Client{},
	}
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, authPrefix+"/register", "", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию пользователя
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, authPrefix+"/login", "", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Refresh обменивает refresh token на новую пару. Старый токен становится недействительным
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	err := c.doRequest(ctx, http.MethodPost, authPrefix+"/refresh", "", api.RefreshRequest{RefreshToken: refreshToken}, &resp)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	return &resp, nil
}

// Logout отзывает сессию refresh token
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	err := c.doRequest(ctx, http.MethodPost, authPrefix+"/logout", "", api.RefreshRequest{RefreshToken: refreshToken}, nil)
	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// LogoutAll отзывает все сессии владельца refresh token
func (c *Client) LogoutAll(ctx context.Context, refreshToken string) error {
	err := c.doRequest(ctx, http.MethodPost, authPrefix+"/logout-all", "", api.RefreshRequest{RefreshToken: refreshToken}, nil)
	if err != nil {
		return fmt.Errorf("logout-all request failed: %w", err)
	}
	return nil
}

// SessionCount возвращает число активных сессий пользователя
func (c *Client) SessionCount(ctx context.Context, accessToken string) (int, error) {
	var resp api.SessionCountResponse
	if err := c.doRequest(ctx, http.MethodGet, authPrefix+"/sessions/count", accessToken, nil, &resp); err != nil {
		return 0, fmt.Errorf("session count request failed: %w", err)
	}
	return resp.Active, nil
}

// BotInit начинает вход через Telegram бота
func (c *Client) BotInit(ctx context.Context) (*api.BotInitResponse, error) {
	var resp api.BotInitResponse
	if err := c.doRequest(ctx, http.MethodPost, authPrefix+"/bot/init", "", nil, &resp); err != nil {
		return nil, fmt.Errorf("bot init request failed: %w", err)
	}
	return &resp, nil
}

// BotStatus возвращает статус bot auth токена
func (c *Client) BotStatus(ctx context.Context, token string) (*api.BotStatusResponse, error) {
	var resp api.BotStatusResponse
	path := authPrefix + "/bot/status/" + url.PathEscape(token)
	if err := c.doRequest(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, fmt.Errorf("bot status request failed: %w", err)
	}
	return &resp, nil
}

// ResendVerification запрашивает новое письмо подтверждения
func (c *Client) ResendVerification(ctx context.Context, email string) (string, error) {
	var resp api.MessageResponse
	if err := c.doRequest(ctx, http.MethodPost, authPrefix+"/verify/resend", "", api.EmailRequest{Email: email}, &resp); err != nil {
		return "", fmt.Errorf("resend verification request failed: %w", err)
	}
	return resp.Message, nil
}

// VerifyEmail подтверждает email токеном из письма
func (c *Client) VerifyEmail(ctx context.Context, token string) (*api.UserProfile, error) {
	var resp api.VerifyEmailResponse
	path := authPrefix + "/verify?token=" + url.QueryEscape(token)
	if err := c.doRequest(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, fmt.Errorf("verify email request failed: %w", err)
	}
	return &resp.User, nil
}

// ForgotPassword запрашивает письмо для сброса пароля
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var resp api.MessageResponse
	if err := c.doRequest(ctx, http.MethodPost, authPrefix+"/password/forgot", "", api.EmailRequest{Email: email}, &resp); err != nil {
		return "", fmt.Errorf("forgot password request failed: %w", err)
	}
	return resp.Message, nil
}

// ResetPassword устанавливает новый пароль по токену из письма
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	req := api.ResetPasswordRequest{Token: token, NewPassword: newPassword}
	if err := c.doRequest(ctx, http.MethodPost, authPrefix+"/password/reset", "", req, nil); err != nil {
		return fmt.Errorf("reset password request failed: %w", err)
	}
	return nil
}

// doRequest выполняет HTTP запрос. bearer добавляется в Authorization, если не пустой
func (c *Client) doRequest(ctx context.Context, method, path, bearer string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp.StatusCode, respBody)
	}

	// Декодируем успешный ответ
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func parseError(status int, body []byte) *Error {
	e := &Error{Status: status}

	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		e.Message = strings.TrimSpace(string(body))
		return e
	}

	e.Code = errResp.Error
	e.Message = errResp.Message
	e.LockedUntil = errResp.LockedUntil
	e.RetryAfter = time.Duration(errResp.RetryAfter) * time.Second
	return e
}
