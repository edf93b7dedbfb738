package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/iudanet/tgauth/internal/autherr"
)

const (
	// MinPasswordLen минимальная длина пароля (в символах)
	MinPasswordLen = 8
	// MaxPasswordLen максимальная длина пароля (в символах)
	MaxPasswordLen = 100
	// MaxEmailLen максимальная длина email
	MaxEmailLen = 254
	// MaxNameLen максимальная длина имени/фамилии
	MaxNameLen = 100
)

var (
	// PasswordLetterPattern: хотя бы одна латинская или кириллическая буква
	PasswordLetterPattern = regexp.MustCompile(`[a-zA-Zа-яА-ЯёЁ]`)
	// PasswordDigitPattern: хотя бы одна цифра
	PasswordDigitPattern = regexp.MustCompile(`[0-9]`)
)

// ValidatePassword проверяет требования к паролю:
// длина 8-100 символов, минимум одна буква (латиница или кириллица) и одна цифра
func ValidatePassword(password string) error {
	length := utf8.RuneCountInString(password)
	if length < MinPasswordLen || length > MaxPasswordLen {
		return autherr.ErrWeakPassword
	}

	if !PasswordLetterPattern.MatchString(password) || !PasswordDigitPattern.MatchString(password) {
		return autherr.ErrWeakPassword
	}

	return nil
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address of sane length.
func ValidateEmail(email string) error {
	if email == "" {
		return autherr.Validation("email cannot be empty")
	}

	if len(email) > MaxEmailLen {
		return autherr.Validation(fmt.Sprintf("email must not exceed %d characters", MaxEmailLen))
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return autherr.Validation("email is not a valid address")
	}

	return nil
}

// ValidateName проверяет имя пользователя (first/last name)
func ValidateName(name string, required bool) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		if required {
			return autherr.Validation("first name cannot be empty")
		}
		return nil
	}

	if utf8.RuneCountInString(trimmed) > MaxNameLen {
		return autherr.Validation(fmt.Sprintf("name must not exceed %d characters", MaxNameLen))
	}

	return nil
}
