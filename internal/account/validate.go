package account

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
)

const (
	minPasswordLen = 6
	// bcrypt ignores input past 72 bytes; x/crypto rejects it outright.
	maxPasswordBytes = 72
	maxNameLen       = 100
)

var (
	otpPattern   = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

// NormalizeEmail trims and lower-cases raw and checks it is a bare address.
func NormalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", errorz.BadRequest("valid email is required")
	}
	return strings.ToLower(trimmed), nil
}

func cleanName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || utf8.RuneCountInString(name) > maxNameLen {
		return "", errorz.BadRequest("name is required (max 100 characters)")
	}
	return name, nil
}

func checkPassword(pw string) error {
	if utf8.RuneCountInString(pw) < minPasswordLen {
		return errorz.BadRequest("password must be at least 6 characters")
	}
	if len(pw) > maxPasswordBytes {
		return errorz.BadRequest("password is too long")
	}
	return nil
}

func cleanPhone(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	p := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(*raw))
	if p == "" {
		return nil, nil
	}
	if !phonePattern.MatchString(p) {
		return nil, errorz.BadRequest("invalid phone number")
	}
	return &p, nil
}
