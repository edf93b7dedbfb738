package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this email already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrTelegramIDTaken indicates that the telegram id is bound to another user
	ErrTelegramIDTaken = errors.New("telegram id already bound to another user")

	// ErrTokenNotFound indicates that a refresh, bot-auth or verification token was not found
	ErrTokenNotFound = errors.New("token not found")
)
