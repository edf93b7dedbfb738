package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tgauth/internal/auth"
	"github.com/iudanet/tgauth/internal/botauth"
	"github.com/iudanet/tgauth/internal/models"
	"github.com/iudanet/tgauth/internal/pubsub"
	"github.com/iudanet/tgauth/internal/server/jwt"
	"github.com/iudanet/tgauth/internal/telegram"
	"github.com/iudanet/tgauth/pkg/api"
)

// stubService is a hand-written AuthService for handler tests
type stubService struct {
	register      func(ctx context.Context, in auth.RegisterInput) (*models.AuthResult, error)
	login         func(ctx context.Context, in auth.LoginInput) (*models.AuthResult, error)
	refresh       func(ctx context.Context, raw string, device models.DeviceMeta) (*models.AuthResult, error)
	logout        func(ctx context.Context, raw string) error
	logoutAll     func(ctx context.Context, raw string) error
	telegramAuth  func(ctx context.Context, data telegram.WidgetData, device models.DeviceMeta) (*models.AuthResult, error)
	telegramLink  func(ctx context.Context, userID string, data telegram.WidgetData, device models.DeviceMeta) (*models.AuthResult, error)
	botInit       func(ctx context.Context) (*botauth.InitResult, error)
	botConfirm    func(ctx context.Context, token string, identity models.TelegramIdentity, device models.DeviceMeta) error
	botStatus     func(ctx context.Context, token string) (*botauth.StatusResult, error)
	botSubscribe  func(ctx context.Context, token string) (pubsub.Subscription, error)
	requestVerify func(ctx context.Context, email string) error
	verifyEmail   func(ctx context.Context, raw string) (*models.PublicProfile, error)
	requestReset  func(ctx context.Context, email string) error
	resetPassword func(ctx context.Context, raw, newPassword string) error
	countSessions func(ctx context.Context, userID string) (int, error)
}

var _ AuthService = (*stubService)(nil)

func (s *stubService) Register(ctx context.Context, in auth.RegisterInput) (*models.AuthResult, error) {
	return s.register(ctx, in)
}

func (s *stubService) Login(ctx context.Context, in auth.LoginInput) (*models.AuthResult, error) {
	return s.login(ctx, in)
}

func (s *stubService) Refresh(ctx context.Context, raw string, device models.DeviceMeta) (*models.AuthResult, error) {
	return s.refresh(ctx, raw, device)
}

func (s *stubService) Logout(ctx context.Context, raw string) error {
	return s.logout(ctx, raw)
}

func (s *stubService) LogoutAll(ctx context.Context, raw string) error {
	return s.logoutAll(ctx, raw)
}

func (s *stubService) TelegramAuth(ctx context.Context, data telegram.WidgetData, device models.DeviceMeta) (*models.AuthResult, error) {
	return s.telegramAuth(ctx, data, device)
}

func (s *stubService) TelegramLink(ctx context.Context, userID string, data telegram.WidgetData, device models.DeviceMeta) (*models.AuthResult, error) {
	return s.telegramLink(ctx, userID, data, device)
}

func (s *stubService) BotAuthInit(ctx context.Context) (*botauth.InitResult, error) {
	return s.botInit(ctx)
}

func (s *stubService) BotAuthConfirm(ctx context.Context, token string, identity models.TelegramIdentity, device models.DeviceMeta) error {
	return s.botConfirm(ctx, token, identity, device)
}

func (s *stubService) BotAuthStatus(ctx context.Context, token string) (*botauth.StatusResult, error) {
	return s.botStatus(ctx, token)
}

func (s *stubService) BotAuthSubscribe(ctx context.Context, token string) (pubsub.Subscription, error) {
	return s.botSubscribe(ctx, token)
}

func (s *stubService) RequestEmailVerification(ctx context.Context, email string) error {
	return s.requestVerify(ctx, email)
}

func (s *stubService) VerifyEmail(ctx context.Context, raw string) (*models.PublicProfile, error) {
	return s.verifyEmail(ctx, raw)
}

func (s *stubService) RequestPasswordReset(ctx context.Context, email string) error {
	return s.requestReset(ctx, email)
}

func (s *stubService) ResetPassword(ctx context.Context, raw, newPassword string) error {
	return s.resetPassword(ctx, raw, newPassword)
}

func (s *stubService) CountActiveSessions(ctx context.Context, userID string) (int, error) {
	return s.countSessions(ctx, userID)
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testRouter монтирует handler так же, как боевой роутер, но без middleware
func testRouter(h *AuthHandler) chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)
	r.Post("/logout-all", h.LogoutAll)
	r.Post("/telegram", h.TelegramAuth)
	r.Post("/bot/init", h.BotInit)
	r.Post("/bot/confirm", h.BotConfirm)
	r.Get("/bot/status/{token}", h.BotStatus)
	r.Get("/bot/events/{token}", h.BotEvents)
	r.Post("/verify/resend", h.ResendVerification)
	r.Get("/verify", h.VerifyEmail)
	r.Post("/password/forgot", h.ForgotPassword)
	r.Post("/password/reset", h.ResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				claims := &jwt.AccessClaims{Type: jwt.TypeAccess}
				claims.Subject = "user-1"
				next.ServeHTTP(w, req.WithContext(WithClaims(req.Context(), claims)))
			})
		})
		r.Post("/telegram/link", h.TelegramLink)
		r.Get("/sessions/count", h.SessionCount)
	})
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "handlers-test")
	req.RemoteAddr = "203.0.113.7:5555"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func sampleResult() *models.AuthResult {
	email := "alice@example.com"
	return &models.AuthResult{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresIn:    900,
		User: models.PublicProfile{
			ID:        "user-1",
			Email:     &email,
			FirstName: "Alice",
		},
	}
}
