package premium

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidEmail     = errors.New("Please enter a valid email address.")
	ErrAlreadyMonitored = errors.New("This email is already being monitored.")
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims the address and checks its shape.
func NormalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" || !emailRe.MatchString(email) {
		return "", ErrInvalidEmail
	}
	return email, nil
}
