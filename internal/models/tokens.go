package models

import "time"

// RefreshToken представляет refresh token пользователя
// Сам токен не хранится, только SHA-256 хеш
type RefreshToken struct {
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	ID        string     `json:"id"`         // UUID записи
	UserID    string     `json:"user_id"`    // ID пользователя
	TokenHash string     `json:"-"`          // hex SHA-256 от raw токена
	UserAgent string     `json:"user_agent"` // устройство, создавшее сессию
	IP        string     `json:"ip"`
	Revoked   bool       `json:"revoked"`
}

// IsActive reports whether the token can still be exchanged at now.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// BotAuthStatus is the state of a bot deep-link auth attempt.
type BotAuthStatus string

const (
	BotAuthPending   BotAuthStatus = "PENDING"
	BotAuthConfirmed BotAuthStatus = "CONFIRMED"
	BotAuthExpired   BotAuthStatus = "EXPIRED"
	BotAuthUsed      BotAuthStatus = "USED"
)

// BotAuthToken is a short-lived capability created by the web client and
// confirmed by the bot backend.
type BotAuthToken struct {
	ConfirmedAt       *time.Time    `json:"confirmed_at,omitempty"`
	UserID            *string       `json:"user_id,omitempty"`
	TelegramID        *int64        `json:"telegram_id,omitempty"`
	TelegramLastName  *string       `json:"telegram_last_name,omitempty"`
	TelegramUsername  *string       `json:"telegram_username,omitempty"`
	TelegramChatID    *int64        `json:"telegram_chat_id,omitempty"`
	TelegramPhotoURL  *string       `json:"telegram_photo_url,omitempty"`
	ExpiresAt         time.Time     `json:"expires_at"`
	CreatedAt         time.Time     `json:"created_at"`
	ID                string        `json:"id"`
	TokenHash         string        `json:"-"`
	Status            BotAuthStatus `json:"status"`
	TelegramFirstName string        `json:"telegram_first_name,omitempty"`
}

// EffectiveStatus returns the status as observed at now: a pending token past
// its expiry reads as EXPIRED.
func (t *BotAuthToken) EffectiveStatus(now time.Time) BotAuthStatus {
	if t.Status == BotAuthPending && !now.Before(t.ExpiresAt) {
		return BotAuthExpired
	}
	return t.Status
}

// VerificationType is the purpose of a single-use verification token.
type VerificationType string

const (
	VerificationEmail         VerificationType = "EMAIL_VERIFICATION"
	VerificationPasswordReset VerificationType = "PASSWORD_RESET"
)

// VerificationToken is a single-use typed token for email verification or password reset.
type VerificationToken struct {
	UsedAt    *time.Time       `json:"used_at,omitempty"`
	ExpiresAt time.Time        `json:"expires_at"`
	CreatedAt time.Time        `json:"created_at"`
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	TokenHash string           `json:"-"`
	Type      VerificationType `json:"type"`
	Used      bool             `json:"used"`
}

// IsUsable reports whether the token can be consumed at now.
func (t *VerificationToken) IsUsable(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}
