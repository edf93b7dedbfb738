package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/iudanet/tgauth/internal/autherr"
	"github.com/iudanet/tgauth/internal/server/handlers"
)

// RateLimit описывает лимит запросов с одного IP
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// RateLimits содержит лимиты по группам маршрутов
type RateLimits struct {
	Register    RateLimit
	Login       RateLimit
	Refresh     RateLimit
	Telegram    RateLimit
	BotInit     RateLimit
	BotPoll     RateLimit
	EmailAction RateLimit
	Default     RateLimit
}

// DefaultRateLimits лимиты по умолчанию
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Register:    RateLimit{Requests: 5, Window: time.Hour},
		Login:       RateLimit{Requests: 10, Window: 5 * time.Minute},
		Refresh:     RateLimit{Requests: 30, Window: 10 * time.Minute},
		Telegram:    RateLimit{Requests: 10, Window: 5 * time.Minute},
		BotInit:     RateLimit{Requests: 10, Window: 10 * time.Minute},
		BotPoll:     RateLimit{Requests: 120, Window: 10 * time.Minute},
		EmailAction: RateLimit{Requests: 5, Window: time.Hour},
		Default:     RateLimit{Requests: 60, Window: time.Minute},
	}
}

// RateLimitMiddleware создает middleware для ограничения частоты запросов по IP
// При превышении отвечает 429 с Retry-After
func RateLimitMiddleware(limit RateLimit, logger *slog.Logger) func(http.Handler) http.Handler {
	return httprate.Limit(limit.Requests, limit.Window,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("ip", r.RemoteAddr),
				slog.String("method", r.Method),
				slog.String("path", sanitizePath(r.URL.Path)),
			)
			handlers.WriteError(w, r, autherr.TooManyRequests(limit.Window))
		}),
	)
}
