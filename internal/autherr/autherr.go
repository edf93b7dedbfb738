// Package autherr defines the business error taxonomy of the auth engine.
//
// Every error carries a stable machine-readable Code. errors.Is matches on the
// code, so wrapped and parameterised errors (LockedError, RateLimitError)
// compare equal to their sentinel.
package autherr

import (
	"errors"
	"fmt"
	"time"
)

// Code is a stable machine-readable error code.
type Code string

const (
	CodeValidation              Code = "VALIDATION_ERROR"
	CodeWeakPassword            Code = "WEAK_PASSWORD"
	CodeInvalidCredentials      Code = "INVALID_CREDENTIALS"
	CodeAccountLocked           Code = "ACCOUNT_LOCKED"
	CodeInvalidTelegramAuth     Code = "INVALID_TELEGRAM_AUTH"
	CodeInvalidToken            Code = "INVALID_TOKEN"
	CodeTokenExpired            Code = "TOKEN_EXPIRED"
	CodeNotFound                Code = "NOT_FOUND"
	CodeEmailAlreadyExists      Code = "EMAIL_ALREADY_EXISTS"
	CodeTelegramIDAlreadyExists Code = "TELEGRAM_ID_ALREADY_EXISTS"
	CodeTooManyRequests         Code = "TOO_MANY_REQUESTS"
	CodeServiceUnavailable      Code = "SERVICE_UNAVAILABLE"
)

// Error is a business failure with a stable code.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates an error with the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrValidation              = New(CodeValidation, "invalid request")
	ErrWeakPassword            = New(CodeWeakPassword, "password must be 8-100 characters long and contain at least one letter and one digit")
	ErrInvalidCredentials      = New(CodeInvalidCredentials, "invalid credentials")
	ErrAccountLocked           = New(CodeAccountLocked, "account is temporarily locked")
	ErrInvalidTelegramAuth     = New(CodeInvalidTelegramAuth, "invalid telegram authentication data")
	ErrInvalidToken            = New(CodeInvalidToken, "invalid or expired token")
	ErrTokenExpired            = New(CodeTokenExpired, "token expired")
	ErrNotFound                = New(CodeNotFound, "not found")
	ErrEmailAlreadyExists      = New(CodeEmailAlreadyExists, "email already registered")
	ErrTelegramIDAlreadyExists = New(CodeTelegramIDAlreadyExists, "telegram account is linked to another user")
	ErrTooManyRequests         = New(CodeTooManyRequests, "too many requests")
	ErrServiceUnavailable      = New(CodeServiceUnavailable, "service unavailable")
)

// Validation returns a validation error with a caller-facing message.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// LockedError is returned while an account is locked out.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account is locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// Code returns CodeAccountLocked.
func (e *LockedError) Code() Code { return CodeAccountLocked }

// AccountLocked builds a LockedError.
func AccountLocked(until time.Time) error {
	return &LockedError{Until: until}
}

// RateLimitError is returned when a per-user rate limit is exceeded.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrTooManyRequests
}

// Code returns CodeTooManyRequests.
func (e *RateLimitError) Code() Code { return CodeTooManyRequests }

// TooManyRequests builds a RateLimitError.
func TooManyRequests(retryAfter time.Duration) error {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &RateLimitError{RetryAfter: retryAfter}
}

// CodeOf extracts the business code of err, or "" for non-business errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var le *LockedError
	if errors.As(err, &le) {
		return CodeAccountLocked
	}
	var re *RateLimitError
	if errors.As(err, &re) {
		return CodeTooManyRequests
	}
	return ""
}
