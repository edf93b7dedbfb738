package models

import (
	"errors"
	"time"
)

// ErrNoIdentity возвращается, если у пользователя нет ни email, ни Telegram ID
var ErrNoIdentity = errors.New("user must have an email or a telegram id")

// User представляет пользователя в системе
type User struct {
	Email               *string    `json:"email,omitempty"`             // nil для Telegram-only аккаунтов
	TelegramID          *int64     `json:"telegram_id,omitempty"`       // nil для email-only аккаунтов
	PasswordHash        *string    `json:"-"`                           // bcrypt хеш, nil если пароль не задан
	LockedUntil         *time.Time `json:"locked_until,omitempty"`      // момент окончания блокировки
	TelegramChatID      *int64     `json:"telegram_chat_id,omitempty"`  // чат с ботом
	TelegramUsername    *string    `json:"telegram_username,omitempty"` // @username без @
	AvatarURL           *string    `json:"avatar_url,omitempty"`
	LastName            *string    `json:"last_name,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	ID                  string     `json:"id"` // UUID пользователя
	FirstName           string     `json:"first_name"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	EmailVerified       bool       `json:"email_verified"`
	IsAdmin             bool       `json:"is_admin"`
}

// Validate checks the identity invariant: at least one of email or telegram id is set.
func (u *User) Validate() error {
	if (u.Email == nil || *u.Email == "") && u.TelegramID == nil {
		return ErrNoIdentity
	}
	return nil
}

// Roles returns the role set derived from the admin flag.
func (u *User) Roles() []string {
	if u.IsAdmin {
		return []string{RoleUser, RoleAdmin}
	}
	return []string{RoleUser}
}

// Profile returns the public view of the user.
func (u *User) Profile() PublicProfile {
	return PublicProfile{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		TelegramID:       u.TelegramID,
		TelegramUsername: u.TelegramUsername,
		AvatarURL:        u.AvatarURL,
		EmailVerified:    u.EmailVerified,
		IsAdmin:          u.IsAdmin,
	}
}

// Role names carried in access tokens.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// PublicProfile is what clients are allowed to see about a user.
type PublicProfile struct {
	Email            *string `json:"email,omitempty"`
	LastName         *string `json:"last_name,omitempty"`
	TelegramID       *int64  `json:"telegram_id,omitempty"`
	TelegramUsername *string `json:"telegram_username,omitempty"`
	AvatarURL        *string `json:"avatar_url,omitempty"`
	ID               string  `json:"id"`
	FirstName        string  `json:"first_name"`
	EmailVerified    bool    `json:"email_verified"`
	IsAdmin          bool    `json:"is_admin"`
}

// TelegramIdentity is a Telegram account as proven either by the widget or by the bot.
type TelegramIdentity struct {
	LastName  *string
	Username  *string
	PhotoURL  *string
	ChatID    *int64
	FirstName string
	ID        int64
}

// DeviceMeta describes the client that created a session.
type DeviceMeta struct {
	UserAgent string `json:"user_agent,omitempty"`
	IP        string `json:"ip,omitempty"`
}

// Principal is the identity an access token is bound to.
type Principal struct {
	UserID   string
	TenantID string
	Roles    []string
}

// AuthResult is the outcome of every successful authentication path.
type AuthResult struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         PublicProfile `json:"user"`
	ExpiresIn    int64         `json:"expires_in"` // время жизни access token в секундах
}

// StringPtr returns a pointer to s, or nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
