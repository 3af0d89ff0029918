package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	UsernameMinLen = 3
	UsernameMaxLen = 20
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

	markupPolicy = bluemonday.StrictPolicy()
)

// SanitizeUsername trims the candidate, strips any markup and checks length and
// charset. It returns the sanitized value or an INVALID_USERNAME error.
func SanitizeUsername(candidate string) (string, error) {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return "", ErrInvalidUsername("username is required")
	}

	sanitized := strings.TrimSpace(markupPolicy.Sanitize(trimmed))

	n := utf8.RuneCountInString(sanitized)
	if n < UsernameMinLen || n > UsernameMaxLen {
		return "", ErrInvalidUsername(fmt.Sprintf("username must be between %d and %d characters", UsernameMinLen, UsernameMaxLen))
	}
	if !usernameRegex.MatchString(sanitized) {
		return "", ErrInvalidUsername("username can only contain letters, numbers, and underscores")
	}
	return sanitized, nil
}

// ValidateEmail checks if an email address is valid.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateNonNegativeAmount checks a monetary amount in whole currency units.
func ValidateNonNegativeAmount(field string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%s must not be negative, got %d", field, amount)
	}
	return nil
}
