package validation

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	ErrUsernameRequired = errors.New("username is required")
	ErrUsernameTooLong  = errors.New("username is too long (max 50 characters)")
)

// NormalizeText trims s and converts it to NFC so equal names compare equal.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func ValidateUsername(username string) error {
	username = NormalizeText(username)

	if username == "" {
		return ErrUsernameRequired
	}

	if utf8.RuneCountInString(username) > 50 {
		return ErrUsernameTooLong
	}

	return nil
}
