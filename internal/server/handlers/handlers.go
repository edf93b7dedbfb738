// Package handlers implements the HTTP handlers of the auth API.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/iudanet/tgauth/internal/auth"
	"github.com/iudanet/tgauth/internal/autherr"
	"github.com/iudanet/tgauth/internal/botauth"
	"github.com/iudanet/tgauth/internal/models"
	"github.com/iudanet/tgauth/internal/pubsub"
	"github.com/iudanet/tgauth/internal/server/jwt"
	"github.com/iudanet/tgauth/internal/telegram"
	"github.com/iudanet/tgauth/pkg/api"
)

// maxBodySize ограничивает размер JSON тела запроса
const maxBodySize = 1 << 20

// AuthService is the engine behind the handlers
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*models.AuthResult, error)
	Login(ctx context.Context, in auth.LoginInput) (*models.AuthResult, error)
	Refresh(ctx context.Context, raw string, device models.DeviceMeta) (*models.AuthResult, error)
	Logout(ctx context.Context, raw string) error
	LogoutAll(ctx context.Context, raw string) error
	TelegramAuth(ctx context.Context, data telegram.WidgetData, device models.DeviceMeta) (*models.AuthResult, error)
	TelegramLink(ctx context.Context, userID string, data telegram.WidgetData, device models.DeviceMeta) (*models.AuthResult, error)
	BotAuthInit(ctx context.Context) (*botauth.InitResult, error)
	BotAuthConfirm(ctx context.Context, token string, identity models.TelegramIdentity, device models.DeviceMeta) error
	BotAuthStatus(ctx context.Context, token string) (*botauth.StatusResult, error)
	BotAuthSubscribe(ctx context.Context, token string) (pubsub.Subscription, error)
	RequestEmailVerification(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, raw string) (*models.PublicProfile, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, raw, newPassword string) error
	CountActiveSessions(ctx context.Context, userID string) (int, error)
}

var _ AuthService = (*auth.Service)(nil)

// Options содержит параметры handler'а
type Options struct {
	// BotSecret общий секрет бота для /bot/confirm. Пустой отключает confirm
	BotSecret string
	// StreamTimeout максимальная длительность SSE потока
	StreamTimeout time.Duration
	// Heartbeat интервал комментариев-пингов в SSE потоке
	Heartbeat time.Duration
}

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger        *slog.Logger
	svc           AuthService
	validate      *validator.Validate
	botSecret     string
	streamTimeout time.Duration
	heartbeat     time.Duration
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, svc AuthService, opts Options) *AuthHandler {
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = botauth.DefaultWindow
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 15 * time.Second
	}

	return &AuthHandler{
		logger:        logger,
		svc:           svc,
		validate:      newValidator(),
		botSecret:     opts.BotSecret,
		streamTimeout: opts.StreamTimeout,
		heartbeat:     opts.Heartbeat,
	}
}

// newValidator reports field names by their json tags
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode читает JSON тело в dst и проверяет validate-теги.
// При ошибке ответ уже записан
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	if err := render.DecodeJSON(r.Body, dst); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode request", slog.Any("error", err))
		WriteError(w, r, autherr.Validation("invalid request body"))
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		WriteError(w, r, autherr.Validation(validationMessage(err)))
		return false
	}

	return true
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "invalid request"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must not exceed %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(msgs, ", ")
}

// fail пишет ошибку и логирует неожиданные (5xx)
func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if StatusOf(err) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("op", op),
			slog.Any("error", err),
		)
	}
	WriteError(w, r, err)
}

// deviceMeta describes the client of r. RemoteAddr is already rewritten by RealIP
func deviceMeta(r *http.Request) models.DeviceMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return models.DeviceMeta{UserAgent: truncateUTF8(r.UserAgent(), maxUserAgentLen), IP: ip}
}

// maxUserAgentLen ограничение в байтах
const maxUserAgentLen = 512

// truncateUTF8 обрезает s до n байт, не разрезая многобайтовую руну.
// Невалидные байты заменяются, иначе Postgres отклонит строку
func truncateUTF8(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func toProfile(p models.PublicProfile) api.UserProfile {
	return api.UserProfile{
		ID:               p.ID,
		Email:            p.Email,
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		TelegramID:       p.TelegramID,
		TelegramUsername: p.TelegramUsername,
		AvatarURL:        p.AvatarURL,
		EmailVerified:    p.EmailVerified,
		IsAdmin:          p.IsAdmin,
	}
}

func toTokenResponse(res *models.AuthResult) api.TokenResponse {
	return api.TokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
		User:         toProfile(res.User),
	}
}

type contextKey string

// claimsKey ключ для claims access token'а в контексте запроса
const claimsKey contextKey = "claims"

// WithClaims stores the validated access token claims in ctx
func WithClaims(ctx context.Context, claims *jwt.AccessClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the claims stored by WithClaims
func ClaimsFromContext(ctx context.Context) (*jwt.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*jwt.AccessClaims)
	return claims, ok && claims != nil
}
