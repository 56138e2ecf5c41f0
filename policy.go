package authcore

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/MrEthical07/authcore/account"
)

const maxEmailBytes = 254

func (e *Engine) normalizeUsername(raw string) (string, error) {
	username := account.NormalizeIdentifier(raw)
	if username == "" {
		return "", &ValidationError{Field: "username", Reason: "required"}
	}
	n := utf8.RuneCountInString(username)
	if n < e.config.Identity.UsernameMinLength || n > e.config.Identity.UsernameMaxLength {
		return "", &ValidationError{Field: "username", Reason: "length out of range"}
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
		default:
			return "", &ValidationError{Field: "username", Reason: "may only contain a-z, 0-9, '_', '.' and '-'"}
		}
	}
	return username, nil
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &ValidationError{Field: "email", Reason: "required"}
	}
	if len(trimmed) > maxEmailBytes {
		return "", &ValidationError{Field: "email", Reason: "too long"}
	}
	addr, err := mail.ParseAddress(trimmed)
	// Reject display-name forms such as "Alice <a@x.com>".
	if err != nil || addr.Address != trimmed || !strings.Contains(addr.Address, "@") {
		return "", &ValidationError{Field: "email", Reason: "invalid address"}
	}
	return account.NormalizeIdentifier(addr.Address), nil
}

func (e *Engine) validatePassword(field, plaintext string) error {
	if plaintext == "" {
		return &ValidationError{Field: field, Reason: "required"}
	}
	if len(plaintext) < e.config.Password.MinLength {
		return &ValidationError{Field: field, Reason: "too short"}
	}
	if len(plaintext) > e.config.Password.MaxLength {
		return &ValidationError{Field: field, Reason: "too long"}
	}
	if !utf8.ValidString(plaintext) {
		return &ValidationError{Field: field, Reason: "must be valid UTF-8"}
	}
	return nil
}

func (e *Engine) validateNewPassword(current, next string) error {
	if err := e.validatePassword("new_password", next); err != nil {
		return err
	}
	if current == next {
		return &ValidationError{Field: "new_password", Reason: "must differ from the current password"}
	}
	return nil
}
