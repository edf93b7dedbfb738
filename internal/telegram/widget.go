// Package telegram verifies Telegram Login Widget payloads.
//
// See https://core.telegram.org/widgets/login#checking-authorization
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/tgauth/internal/autherr"
	"github.com/iudanet/tgauth/internal/models"
)

// DefaultMaxAge максимально допустимое расхождение auth_date и текущего времени
const DefaultMaxAge = time.Hour

var (
	// ErrAuthDataTooOld is returned when auth_date is older than the max age
	ErrAuthDataTooOld = autherr.New(autherr.CodeInvalidTelegramAuth, "telegram auth data is too old")
	// ErrAuthDataInFuture is returned when auth_date is ahead of now by more than the max age
	ErrAuthDataInFuture = autherr.New(autherr.CodeInvalidTelegramAuth, "telegram auth data is from the future")
)

// WidgetData is the payload produced by the Telegram Login Widget
type WidgetData struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	Hash      string `json:"hash" validate:"required,hexadecimal"`
	ID        int64  `json:"id" validate:"required,gt=0"`
	AuthDate  int64  `json:"auth_date" validate:"required,gt=0"`
}

// Identity converts the payload to a TelegramIdentity.
// The widget has no chat with the bot, so ChatID stays nil
func (d WidgetData) Identity() models.TelegramIdentity {
	return models.TelegramIdentity{
		ID:        d.ID,
		FirstName: d.FirstName,
		LastName:  blankToNil(d.LastName),
		Username:  blankToNil(d.Username),
		PhotoURL:  blankToNil(d.PhotoURL),
	}
}

// Validator checks widget payloads against the bot token
type Validator struct {
	now      func() time.Time
	botToken string
	maxAge   time.Duration
}

// NewValidator creates a validator. An empty botToken makes every Validate
// call fail with ServiceUnavailable
func NewValidator(botToken string, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now, botToken: botToken, maxAge: DefaultMaxAge}
}

// Validate verifies freshness and the HMAC of d
func (v *Validator) Validate(d WidgetData) (models.TelegramIdentity, error) {
	if v.botToken == "" {
		return models.TelegramIdentity{}, autherr.ErrServiceUnavailable
	}

	if d.ID <= 0 || d.Hash == "" || d.AuthDate <= 0 {
		return models.TelegramIdentity{}, autherr.ErrInvalidTelegramAuth
	}

	authDate := time.Unix(d.AuthDate, 0)
	now := v.now()
	switch {
	case now.Sub(authDate) > v.maxAge:
		return models.TelegramIdentity{}, ErrAuthDataTooOld
	case authDate.Sub(now) > v.maxAge:
		return models.TelegramIdentity{}, ErrAuthDataInFuture
	}

	expected := ComputeHash(v.botToken, DataCheckString(d))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(d.Hash))) {
		return models.TelegramIdentity{}, autherr.ErrInvalidTelegramAuth
	}

	return d.Identity(), nil
}

// DataCheckString builds the sorted "key=value" lines signed by Telegram.
// Optional fields take part only when non-blank
func DataCheckString(d WidgetData) string {
	fields := map[string]string{
		"id":         strconv.FormatInt(d.ID, 10),
		"first_name": d.FirstName,
		"auth_date":  strconv.FormatInt(d.AuthDate, 10),
	}
	if strings.TrimSpace(d.LastName) != "" {
		fields["last_name"] = d.LastName
	}
	if strings.TrimSpace(d.Username) != "" {
		fields["username"] = d.Username
	}
	if strings.TrimSpace(d.PhotoURL) != "" {
		fields["photo_url"] = d.PhotoURL
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}

	return strings.Join(lines, "\n")
}

// ComputeHash returns hex(HMAC-SHA256(checkString, SHA256(botToken)))
func ComputeHash(botToken, checkString string) string {
	secretKey := sha256.Sum256([]byte(botToken))

	mac := hmac.New(sha256.New, secretKey[:])
	mac.Write([]byte(checkString))

	return hex.EncodeToString(mac.Sum(nil))
}

func blankToNil(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
