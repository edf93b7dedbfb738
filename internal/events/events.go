// Package events publishes notification requests for downstream delivery
// services (mail sender, telegram bot). The engine never delivers anything
// itself.
package events

import (
	"context"
	"log/slog"
)

// Purpose определяет тип уведомления
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
	PurposeUserRegistered    Purpose = "user_registered"
)

// Message is the JSON body put on the queue
type Message struct {
	TelegramChatID *int64  `json:"telegram_chat_id,omitempty"`
	Email          string  `json:"to,omitempty"`
	Link           string  `json:"link,omitempty"`
	Purpose        Purpose `json:"purpose"`
	UserID         string  `json:"user_id"`
	FirstName      string  `json:"first_name,omitempty"`
}

// Publisher sends messages to the delivery pipeline
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// LogPublisher writes messages to the log instead of a broker.
// Used when no broker is configured (local development)
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs msg. The link carries a one-time token and is logged at debug level only
func (p *LogPublisher) Publish(ctx context.Context, msg Message) error {
	p.logger.InfoContext(ctx, "event",
		slog.String("purpose", string(msg.Purpose)),
		slog.String("user_id", msg.UserID),
	)
	if msg.Link != "" {
		p.logger.DebugContext(ctx, "event link",
			slog.String("purpose", string(msg.Purpose)),
			slog.String("link", msg.Link),
		)
	}
	return nil
}
