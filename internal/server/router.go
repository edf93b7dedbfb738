// Package server assembles the HTTP API of the auth service.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/iudanet/tgauth/internal/autherr"
	"github.com/iudanet/tgauth/internal/server/handlers"
	"github.com/iudanet/tgauth/internal/server/jwt"
	"github.com/iudanet/tgauth/internal/server/middleware"
)

// HealthPath путь health check, не логируется
const HealthPath = "/healthz"

// RouterConfig содержит зависимости роутера
type RouterConfig struct {
	Logger *slog.Logger
	Auth   *handlers.AuthHandler
	Health *handlers.HealthHandler
	Signer *jwt.Signer
	Limits middleware.RateLimits
}

// NewRouter builds the chi router with all API routes mounted
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	limit := func(l middleware.RateLimit) func(http.Handler) http.Handler {
		return middleware.RateLimitMiddleware(l, logger)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.LoggingWithSkip(logger, []string{HealthPath}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, r, autherr.ErrNotFound)
	})

	r.Get(HealthPath, cfg.Health.Health)

	h := cfg.Auth
	refreshLimit := limit(cfg.Limits.Refresh)
	telegramLimit := limit(cfg.Limits.Telegram)
	pollLimit := limit(cfg.Limits.BotPoll)
	emailLimit := limit(cfg.Limits.EmailAction)
	defaultLimit := limit(cfg.Limits.Default)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(limit(cfg.Limits.Register)).Post("/register", h.Register)
		r.With(limit(cfg.Limits.Login)).Post("/login", h.Login)

		r.With(refreshLimit).Post("/refresh", h.Refresh)
		r.With(refreshLimit).Post("/logout", h.Logout)
		r.With(refreshLimit).Post("/logout-all", h.LogoutAll)

		r.With(telegramLimit).Post("/telegram", h.TelegramAuth)

		r.Route("/bot", func(r chi.Router) {
			r.With(limit(cfg.Limits.BotInit)).Post("/init", h.BotInit)
			r.With(defaultLimit).Post("/confirm", h.BotConfirm)
			r.With(pollLimit).Get("/status/{token}", h.BotStatus)
			r.With(pollLimit).Get("/events/{token}", h.BotEvents)
		})

		r.With(emailLimit).Post("/verify/resend", h.ResendVerification)
		r.With(defaultLimit).Get("/verify", h.VerifyEmail)
		r.With(emailLimit).Post("/password/forgot", h.ForgotPassword)
		r.With(defaultLimit).Post("/password/reset", h.ResetPassword)

		// Маршруты, требующие access token
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(logger, cfg.Signer))
			r.With(telegramLimit).Post("/telegram/link", h.TelegramLink)
			r.With(defaultLimit).Get("/sessions/count", h.SessionCount)
		})
	})

	return r
}
