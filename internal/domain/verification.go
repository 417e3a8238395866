package domain

import (
	"errors"
	"strings"
	"time"
)

// Verification protocol errors.
var (
	ErrMissingFields         = errors.New("missing required fields")
	ErrCodeNotFound          = errors.New("verification code expired or not found")
	ErrInvalidCode           = errors.New("invalid verification code")
	ErrEmailMismatch         = errors.New("email mismatch")
	ErrNoPendingVerification = errors.New("no pending verification")
	ErrEmailDelivery         = errors.New("failed to deliver verification email")
	ErrMailNotConfigured     = errors.New("email service not configured")
)

// Default lifetimes of the store entries.
const (
	CodeTTL     = 15 * time.Minute
	AwaitingTTL = 30 * time.Minute
	VerifiedTTL = time.Hour
	TokenTTL    = 2 * time.Hour
	SecretTTL   = 30 * 24 * time.Hour
	AuditTTL    = 90 * 24 * time.Hour
	ProgressTTL = time.Hour
)

const (
	// TokenPurpose is the purpose claim of every bearer token.
	TokenPurpose = "whitelist"
	// SecretKey holds the hex-encoded token signing secret.
	SecretKey = "JWT_SECRET"

	awaitingPrefix = "awaiting:"
	verifiedPrefix = "verified:"
	auditPrefix    = "whitelist:"
	progressPrefix = "webhook:"
)

// CodeKey is the store key holding the pending code for an email.
// The raw submitted address is used, so a code requested as Foo@pitt.edu must
// be submitted with the same casing.
func CodeKey(email string) string {
	return email
}

// AwaitingKey maps a lowercased email to its pending out-of-band session.
func AwaitingKey(email string) string {
	return awaitingPrefix + NormalizeEmail(email)
}

// VerifiedKey maps a session id to the email that completed it.
func VerifiedKey(sessionID string) string {
	return verifiedPrefix + sessionID
}

// AuditKey builds the key of an audit record.
func AuditKey(email string, at time.Time) string {
	var b strings.Builder
	b.WriteString(auditPrefix)
	b.WriteString(email)
	b.WriteByte(':')
	b.WriteString(formatMillis(at))
	return b.String()
}

// ProgressKey is the key of the notification bookkeeping for a session.
func ProgressKey(sessionID string) string {
	return progressPrefix + sessionID
}

// PollResult is the outcome of polling an out-of-band session.
type PollResult struct {
	Verified bool   `json:"verified"`
	Token    string `json:"token,omitempty"`
}

// SessionTicket is returned when an out-of-band session is opened.
type SessionTicket struct {
	SessionID   string `json:"sessionId"`
	Instruction string `json:"message"`
}
