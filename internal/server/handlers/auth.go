package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/iudanet/tgauth/internal/auth"
	"github.com/iudanet/tgauth/internal/autherr"
	"github.com/iudanet/tgauth/internal/telegram"
	"github.com/iudanet/tgauth/pkg/api"
)

// Register обрабатывает POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.svc.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Device:    deviceMeta(r),
	})
	if err != nil {
		h.fail(w, r, "handlers.Register", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toTokenResponse(res))
}

// Login обрабатывает POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.svc.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Device:   deviceMeta(r),
	})
	if err != nil {
		h.fail(w, r, "handlers.Login", err)
		return
	}

	render.JSON(w, r, toTokenResponse(res))
}

// Refresh обрабатывает POST /api/v1/auth/refresh
// Старый refresh token отзывается, выдаётся новая пара
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req api.RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.svc.Refresh(r.Context(), req.RefreshToken, deviceMeta(r))
	if err != nil {
		h.fail(w, r, "handlers.Refresh", err)
		return
	}

	render.JSON(w, r, toTokenResponse(res))
}

// Logout обрабатывает POST /api/v1/auth/logout
// Отзывает только сессию переданного refresh token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req api.RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.Logout(r.Context(), req.RefreshToken); err != nil {
		h.fail(w, r, "handlers.Logout", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll обрабатывает POST /api/v1/auth/logout-all
// Отзывает все сессии владельца refresh token
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	var req api.RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.LogoutAll(r.Context(), req.RefreshToken); err != nil {
		h.fail(w, r, "handlers.LogoutAll", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TelegramAuth обрабатывает POST /api/v1/auth/telegram
func (h *AuthHandler) TelegramAuth(w http.ResponseWriter, r *http.Request) {
	var req api.TelegramAuthRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.svc.TelegramAuth(r.Context(), widgetData(req), deviceMeta(r))
	if err != nil {
		h.fail(w, r, "handlers.TelegramAuth", err)
		return
	}

	render.JSON(w, r, toTokenResponse(res))
}

// TelegramLink обрабатывает POST /api/v1/auth/telegram/link
// Требует access token
func (h *AuthHandler) TelegramLink(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		WriteError(w, r, autherr.ErrInvalidCredentials)
		return
	}

	var req api.TelegramAuthRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.svc.TelegramLink(r.Context(), claims.Subject, widgetData(req), deviceMeta(r))
	if err != nil {
		h.fail(w, r, "handlers.TelegramLink", err)
		return
	}

	h.logger.InfoContext(r.Context(), "telegram linked", slog.String("user_id", claims.Subject))

	render.JSON(w, r, toTokenResponse(res))
}

// SessionCount обрабатывает GET /api/v1/auth/sessions/count
func (h *AuthHandler) SessionCount(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		WriteError(w, r, autherr.ErrInvalidCredentials)
		return
	}

	n, err := h.svc.CountActiveSessions(r.Context(), claims.Subject)
	if err != nil {
		h.fail(w, r, "handlers.SessionCount", err)
		return
	}

	render.JSON(w, r, api.SessionCountResponse{Active: n})
}

func widgetData(req api.TelegramAuthRequest) telegram.WidgetData {
	return telegram.WidgetData{
		ID:        req.ID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		PhotoURL:  req.PhotoURL,
		AuthDate:  req.AuthDate,
		Hash:      req.Hash,
	}
}
