package autherr

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := Validation("email cannot be empty")

	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrWeakPassword)

	wrapped := fmt.Errorf("register: %w", err)
	assert.ErrorIs(t, wrapped, ErrValidation)
	assert.Equal(t, CodeValidation, CodeOf(wrapped))
}

func TestLockedError(t *testing.T) {
	until := time.Date(2026, 1, 1, 12, 15, 0, 0, time.UTC)
	err := fmt.Errorf("login: %w", AccountLocked(until))

	assert.ErrorIs(t, err, ErrAccountLocked)
	assert.Equal(t, CodeAccountLocked, CodeOf(err))

	var le *LockedError
	assert.True(t, errors.As(err, &le))
	assert.Equal(t, until, le.Until)
	assert.Contains(t, err.Error(), "2026-01-01T12:15:00Z")
}

func TestRateLimitError(t *testing.T) {
	err := TooManyRequests(90 * time.Second)

	assert.ErrorIs(t, err, ErrTooManyRequests)
	assert.Equal(t, CodeTooManyRequests, CodeOf(err))

	var re *RateLimitError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, 90*time.Second, re.RetryAfter)

	negative := TooManyRequests(-time.Second)
	assert.True(t, errors.As(negative, &re))
	assert.Zero(t, re.RetryAfter)
}

func TestCodeOf_NonBusinessError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("disk full")))
	assert.Equal(t, Code(""), CodeOf(nil))
}
