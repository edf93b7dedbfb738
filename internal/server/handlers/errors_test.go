package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tgauth/internal/autherr"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{autherr.ErrValidation, http.StatusBadRequest},
		{autherr.ErrWeakPassword, http.StatusBadRequest},
		{autherr.ErrInvalidCredentials, http.StatusUnauthorized},
		{autherr.ErrInvalidTelegramAuth, http.StatusUnauthorized},
		{autherr.ErrInvalidToken, http.StatusUnauthorized},
		{autherr.ErrTokenExpired, http.StatusUnauthorized},
		{autherr.AccountLocked(time.Now()), http.StatusForbidden},
		{autherr.ErrEmailAlreadyExists, http.StatusConflict},
		{autherr.ErrTelegramIDAlreadyExists, http.StatusConflict},
		{autherr.TooManyRequests(time.Second), http.StatusTooManyRequests},
		{autherr.ErrNotFound, http.StatusNotFound},
		{autherr.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("auth.Refresh: %w", autherr.ErrInvalidCredentials), http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestErrorBody(t *testing.T) {
	t.Run("Wrapped business error keeps its message", func(t *testing.T) {
		body := ErrorBody(fmt.Errorf("auth.Register: %w", autherr.ErrEmailAlreadyExists))
		assert.Equal(t, "EMAIL_ALREADY_EXISTS", body.Error)
		assert.Equal(t, "email already registered", body.Message)
	})

	t.Run("Internal error is hidden", func(t *testing.T) {
		body := ErrorBody(errors.New("pq: connection refused"))
		assert.Equal(t, "INTERNAL_ERROR", body.Error)
		assert.NotContains(t, body.Message, "pq")
	})

	t.Run("Retry after is rounded up", func(t *testing.T) {
		body := ErrorBody(autherr.TooManyRequests(1500 * time.Millisecond))
		assert.Equal(t, int64(2), body.RetryAfter)

		body = ErrorBody(autherr.TooManyRequests(0))
		assert.Equal(t, int64(1), body.RetryAfter)
	})

	t.Run("Locked until is UTC", func(t *testing.T) {
		until := time.Date(2026, 3, 1, 15, 0, 0, 0, time.FixedZone("MSK", 3*3600))
		body := ErrorBody(autherr.AccountLocked(until))
		require.NotNil(t, body.LockedUntil)
		assert.Equal(t, time.UTC, body.LockedUntil.Location())
		assert.True(t, until.Equal(*body.LockedUntil))
	})
}

func TestWriteError_RetryAfterHeader(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(w, r, autherr.TooManyRequests(42*time.Second))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "42", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	w = httptest.NewRecorder()
	WriteError(w, r, autherr.ErrInvalidToken)
	assert.Empty(t, w.Header().Get("Retry-After"))
}
