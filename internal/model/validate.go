package model

import (
	"strings"
	"unicode"
)

// Username and password bounds
const (
	MinUsernameLen = 3
	MaxUsernameLen = 12
	MinPasswordLen = 6
	MaxPasswordLen = 16
)

// ValidateUsername checks the username shape locally: 3-12 characters
// from [A-Za-z0-9_]. It never contacts the server.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLen {
		return ErrUsernameTooShort
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	if !isWordChars(username) {
		return ErrUsernameCharset
	}
	return nil
}

// ValidatePassword checks the password shape locally: 6-16 characters
// from [A-Za-z0-9_].
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLen {
		return ErrPasswordTooLong
	}
	if !isWordChars(password) {
		return ErrPasswordCharset
	}
	return nil
}

// NormalizeRoomCode uppercases a room code and validates it as exactly
// 4 alphanumeric characters. The normalized code is returned so callers
// always transmit the canonical form.
func NormalizeRoomCode(code string) (RoomID, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != RoomCodeLength {
		return "", ErrBadRoomCode
	}
	for _, r := range code {
		if !unicode.IsUpper(r) && !unicode.IsDigit(r) {
			return "", ErrBadRoomCode
		}
	}
	return RoomID(code), nil
}

// ValidateMessage trims a chat message and checks the 2-100 length
// bound. The trimmed body is returned.
func ValidateMessage(body string) (string, error) {
	body = strings.TrimSpace(body)
	n := len([]rune(body))
	if n < MinMessageLen {
		return "", ErrMessageTooShort
	}
	if n > MaxMessageLen {
		return "", ErrMessageTooLong
	}
	return body, nil
}

func isWordChars(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}
