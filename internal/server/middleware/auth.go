package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/tgauth/internal/autherr"
	"github.com/iudanet/tgauth/internal/server/handlers"
	"github.com/iudanet/tgauth/internal/server/jwt"
)

// AuthMiddleware создает middleware для проверки JWT access токена
func AuthMiddleware(logger *slog.Logger, signer *jwt.Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.DebugContext(r.Context(), "missing Authorization header")
				handlers.WriteError(w, r, autherr.ErrInvalidCredentials)
				return
			}

			// Ожидаем формат: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				logger.WarnContext(r.Context(), "invalid Authorization header format")
				handlers.WriteError(w, r, autherr.ErrInvalidCredentials)
				return
			}

			claims, err := signer.ValidateAccessToken(parts[1])
			if err != nil {
				logger.WarnContext(r.Context(), "invalid access token", slog.Any("error", err))
				handlers.WriteError(w, r, autherr.ErrInvalidToken)
				return
			}

			logger.DebugContext(r.Context(), "user authenticated", slog.String("user_id", claims.Subject))

			next.ServeHTTP(w, r.WithContext(handlers.WithClaims(r.Context(), claims)))
		})
	}
}
