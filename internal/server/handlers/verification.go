package handlers

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/iudanet/tgauth/internal/autherr"
	"github.com/iudanet/tgauth/pkg/api"
)

// Одинаковый ответ для существующих и неизвестных адресов
const (
	resendMessage = "if the address is registered and not verified, a verification link has been sent"
	forgotMessage = "if the address is registered, a password reset link has been sent"
)

// ResendVerification обрабатывает POST /api/v1/auth/verify/resend
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req api.EmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.RequestEmailVerification(r.Context(), req.Email); err != nil {
		h.fail(w, r, "handlers.ResendVerification", err)
		return
	}

	render.JSON(w, r, api.MessageResponse{Message: resendMessage})
}

// VerifyEmail обрабатывает GET /api/v1/auth/verify?token=
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		WriteError(w, r, autherr.Validation("token is required"))
		return
	}

	profile, err := h.svc.VerifyEmail(r.Context(), token)
	if err != nil {
		h.fail(w, r, "handlers.VerifyEmail", err)
		return
	}

	render.JSON(w, r, api.VerifyEmailResponse{User: toProfile(*profile)})
}

// ForgotPassword обрабатывает POST /api/v1/auth/password/forgot
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req api.EmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.fail(w, r, "handlers.ForgotPassword", err)
		return
	}

	render.JSON(w, r, api.MessageResponse{Message: forgotMessage})
}

// ResetPassword обрабатывает POST /api/v1/auth/password/reset
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req api.ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.fail(w, r, "handlers.ResetPassword", err)
		return
	}

	render.JSON(w, r, api.MessageResponse{Message: "password has been reset"})
}
