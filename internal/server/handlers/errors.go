package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"

	"github.com/iudanet/tgauth/internal/autherr"
	"github.com/iudanet/tgauth/pkg/api"
)

// StatusOf maps an error to its HTTP status
func StatusOf(err error) int {
	switch autherr.CodeOf(err) {
	case autherr.CodeValidation, autherr.CodeWeakPassword:
		return http.StatusBadRequest
	case autherr.CodeInvalidCredentials, autherr.CodeInvalidTelegramAuth,
		autherr.CodeInvalidToken, autherr.CodeTokenExpired:
		return http.StatusUnauthorized
	case autherr.CodeAccountLocked:
		return http.StatusForbidden
	case autherr.CodeEmailAlreadyExists, autherr.CodeTelegramIDAlreadyExists:
		return http.StatusConflict
	case autherr.CodeTooManyRequests:
		return http.StatusTooManyRequests
	case autherr.CodeNotFound:
		return http.StatusNotFound
	case autherr.CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody builds the response body for err. Non-business errors get a
// generic message
func ErrorBody(err error) api.ErrorResponse {
	code := autherr.CodeOf(err)
	if code == "" {
		return api.ErrorResponse{Error: "INTERNAL_ERROR", Message: "internal server error"}
	}

	resp := api.ErrorResponse{Error: string(code), Message: err.Error()}

	var ae *autherr.Error
	if errors.As(err, &ae) {
		resp.Message = ae.Message
	}

	var le *autherr.LockedError
	if errors.As(err, &le) {
		until := le.Until.UTC()
		resp.LockedUntil = &until
	}

	var re *autherr.RateLimitError
	if errors.As(err, &re) {
		resp.RetryAfter = retryAfterSeconds(re.RetryAfter)
	}

	return resp
}

// WriteError writes err as a JSON error response. Rate limit errors carry
// the Retry-After header
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	body := ErrorBody(err)
	if body.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(body.RetryAfter, 10))
	}

	render.Status(r, StatusOf(err))
	render.JSON(w, r, body)
}

func retryAfterSeconds(d time.Duration) int64 {
	s := int64(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}
