package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/iudanet/tgauth/internal/autherr"
	"github.com/iudanet/tgauth/internal/botauth"
	"github.com/iudanet/tgauth/internal/models"
	"github.com/iudanet/tgauth/pkg/api"
)

// BotSecretHeader заголовок с общим секретом бота
const BotSecretHeader = "X-Bot-Secret"

// SSE события потока /bot/events
const (
	EventAuth   = "auth"
	EventStatus = "status"
)

// BotInit обрабатывает POST /api/v1/auth/bot/init
func (h *AuthHandler) BotInit(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.BotAuthInit(r.Context())
	if err != nil {
		h.fail(w, r, "handlers.BotInit", err)
		return
	}

	render.JSON(w, r, api.BotInitResponse{
		Token:     res.Token,
		DeepLink:  res.DeepLink,
		ExpiresAt: res.ExpiresAt,
	})
}

// BotConfirm обрабатывает POST /api/v1/auth/bot/confirm
// Вызывается backend'ом бота, аутентифицируется заголовком X-Bot-Secret
func (h *AuthHandler) BotConfirm(w http.ResponseWriter, r *http.Request) {
	if h.botSecret == "" {
		WriteError(w, r, autherr.ErrServiceUnavailable)
		return
	}

	secret := r.Header.Get(BotSecretHeader)
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.botSecret)) != 1 {
		h.logger.WarnContext(r.Context(), "bot confirm with invalid secret")
		WriteError(w, r, autherr.ErrInvalidCredentials)
		return
	}

	var req api.BotConfirmRequest
	if !h.decode(w, r, &req) {
		return
	}

	identity := models.TelegramIdentity{
		ID:        req.TelegramID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		PhotoURL:  req.PhotoURL,
		ChatID:    req.ChatID,
	}

	// deviceMeta описывает бота, а не браузер, поэтому сессия получает только user agent
	device := models.DeviceMeta{UserAgent: "telegram-bot"}

	if err := h.svc.BotAuthConfirm(r.Context(), req.Token, identity, device); err != nil {
		h.fail(w, r, "handlers.BotConfirm", err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, api.MessageResponse{Message: "confirmed"})
}

// BotStatus обрабатывает GET /api/v1/auth/bot/status/{token}
// Токены никогда не возвращаются, только статус и профиль
func (h *AuthHandler) BotStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.BotAuthStatus(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, "handlers.BotStatus", err)
		return
	}

	render.JSON(w, r, toStatusResponse(res))
}

// BotEvents обрабатывает GET /api/v1/auth/bot/events/{token}
// Server-Sent Events: одно событие "auth" с парой токенов после подтверждения,
// либо "status", если токен уже не в PENDING или поток истёк
func (h *AuthHandler) BotEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")

	// Подписка до чтения статуса, чтобы не пропустить подтверждение между ними
	sub, err := h.svc.BotAuthSubscribe(ctx, token)
	if err != nil {
		h.fail(w, r, "handlers.BotEvents", err)
		return
	}
	defer sub.Close()

	status, err := h.svc.BotAuthStatus(ctx, token)
	if err != nil {
		h.fail(w, r, "handlers.BotEvents", err)
		return
	}

	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if status.Status != models.BotAuthPending {
		h.writeEvent(w, EventStatus, toStatusResponse(status))
		_ = rc.Flush()
		return
	}

	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(ctx, "streaming not supported", slog.Any("error", err))
		return
	}

	timeout := time.NewTimer(h.streamTimeout)
	defer timeout.Stop()
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-timeout.C:
			h.writeEvent(w, EventStatus, api.BotStatusResponse{Status: string(models.BotAuthExpired)})
			_ = rc.Flush()
			return

		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}

		case payload, ok := <-sub.C():
			if !ok {
				return
			}
			writeEventData(w, EventAuth, payload)
			_ = rc.Flush()
			return
		}
	}
}

func (h *AuthHandler) writeEvent(w io.Writer, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("failed to encode event", slog.Any("error", err))
		return
	}
	writeEventData(w, event, data)
}

// writeEventData пишет событие, data должна быть однострочным JSON
func writeEventData(w io.Writer, event string, data []byte) {
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func toStatusResponse(res *botauth.StatusResult) api.BotStatusResponse {
	resp := api.BotStatusResponse{Status: string(res.Status)}
	if res.User != nil {
		p := toProfile(*res.User)
		resp.User = &p
	}
	return resp
}
