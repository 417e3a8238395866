package domain

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validation errors returned to clients as 4xx responses.
var (
	ErrInvalidEmail           = errors.New("invalid institutional email address")
	ErrInvalidCodeFormat      = errors.New("invalid verification code format")
	ErrInvalidJavaUsername    = errors.New("invalid java username format")
	ErrInvalidBedrockUsername = errors.New("invalid bedrock username")
	ErrInvalidEdition         = errors.New("invalid edition type")
	ErrInvalidDevice          = errors.New("invalid device type")
)

const (
	// MaxEmailLength is the RFC 5321 limit for a full address.
	MaxEmailLength = 254

	// CodeLength is the number of digits in a verification code.
	CodeLength = 6

	// MaxUsernameLength applies to both editions.
	MaxUsernameLength = 16
	// MinJavaUsernameLength is enforced by Mojang.
	MinJavaUsernameLength = 3
	// MinBedrockUsernameLength is the lenient server-side minimum.
	MinBedrockUsernameLength = 1
	// MinStrictBedrockUsernameLength matches the wizard's client-side check.
	MinStrictBedrockUsernameLength = 3
)

var (
	javaUsernameRegex     = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)
	bedrockCharsetRegex   = regexp.MustCompile(`^[A-Za-z0-9_ .\-]+$`)
	verificationCodeRegex = regexp.MustCompile(`^[0-9]{6}$`)
)

// NormalizeEmail lowercases and trims an address. Used for every key that
// must match across differently-cased inputs (awaiting:<email>, verified values).
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsInstitutionalEmail reports whether email is a bare address ending in
// "@"+institution, compared case-insensitively.
//
// Parameters:
//   - email: the address as submitted by the client
//   - institution: the institutional domain, e.g. "pitt.edu"
func IsInstitutionalEmail(email, institution string) bool {
	email = strings.TrimSpace(email)
	if email == "" || institution == "" || len(email) > MaxEmailLength {
		return false
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return false
	}

	suffix := "@" + strings.ToLower(strings.TrimPrefix(institution, "@"))
	lower := strings.ToLower(email)
	if !strings.HasSuffix(lower, suffix) {
		return false
	}
	return len(lower) > len(suffix)
}

// IsCodeFormat reports whether code is exactly six ASCII digits.
func IsCodeFormat(code string) bool {
	return verificationCodeRegex.MatchString(code)
}

// ValidateUsername applies the edition-specific Minecraft username rules.
//
// strictBedrock switches bedrock from the lenient length-only rule (1-16
// characters, any charset) to the wizard's rule (3-16 characters of letters,
// digits, space, hyphen, period, underscore).
func ValidateUsername(edition Edition, username string, strictBedrock bool) error {
	switch edition {
	case EditionJava:
		if !javaUsernameRegex.MatchString(username) {
			return ErrInvalidJavaUsername
		}
		return nil
	case EditionBedrock:
		n := utf8.RuneCountInString(username)
		min := MinBedrockUsernameLength
		if strictBedrock {
			min = MinStrictBedrockUsernameLength
		}
		if n < min || n > MaxUsernameLength {
			return ErrInvalidBedrockUsername
		}
		if strictBedrock && !bedrockCharsetRegex.MatchString(username) {
			return ErrInvalidBedrockUsername
		}
		return nil
	default:
		return ErrInvalidEdition
	}
}
