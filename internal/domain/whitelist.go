package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Whitelist submission errors.
var (
	ErrUnauthorized          = errors.New("invalid or expired token")
	ErrStoreUnavailable      = errors.New("store unavailable")
	ErrUpstreamNotConfigured = errors.New("whitelist API not properly configured")
	ErrUpstreamUnavailable   = errors.New("failed to whitelist user, the server will try to whitelist you manually")
)

// Edition is the Minecraft client family.
type Edition string

const (
	EditionJava    Edition = "java"
	EditionBedrock Edition = "bedrock"
)

// ParseEdition returns the edition for s or ErrInvalidEdition.
func ParseEdition(s string) (Edition, error) {
	switch e := Edition(strings.ToLower(strings.TrimSpace(s))); e {
	case EditionJava, EditionBedrock:
		return e, nil
	default:
		return "", ErrInvalidEdition
	}
}

// Device is the platform the player picked in the wizard.
type Device string

const (
	DeviceWindows Device = "windows"
	DeviceMac     Device = "mac"
	DeviceMobile  Device = "mobile"
	DeviceConsole Device = "console"
)

// ParseDevice returns the device for s or ErrInvalidDevice.
func ParseDevice(s string) (Device, error) {
	switch d := Device(strings.ToLower(strings.TrimSpace(s))); d {
	case DeviceWindows, DeviceMac, DeviceMobile, DeviceConsole:
		return d, nil
	default:
		return "", ErrInvalidDevice
	}
}

// UpstreamUsername is the name sent to the whitelist API. Bedrock gamertags
// may contain spaces which the server expects as underscores.
func UpstreamUsername(edition Edition, username string) string {
	if edition == EditionBedrock {
		return strings.ReplaceAll(username, " ", "_")
	}
	return username
}

// WhitelistRequest is a submission authorized by a bearer token.
type WhitelistRequest struct {
	Token     string
	Username  string
	Edition   string
	Device    string
	SessionID string
}

// WhitelistResult is the successful outcome of a submission.
type WhitelistResult struct {
	Status   string  `json:"status"`
	Message  string  `json:"message"`
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Edition  Edition `json:"edition"`
}

// UpstreamRejection is returned when the whitelist API answers with a
// non-success status. It is a business failure, not an outage.
type UpstreamRejection struct {
	Status  string
	Message string
}

// DefaultRejectionMessage is used when the upstream gives no message.
const DefaultRejectionMessage = "Failed to whitelist user"

func (e *UpstreamRejection) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream rejected request (status %q)", e.Status)
	}
	return fmt.Sprintf("upstream rejected request (status %q): %s", e.Status, e.Message)
}

// AuditRecord is the write-only trace of a submission attempt.
type AuditRecord struct {
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Edition   Edition   `json:"edition"`
	Device    Device    `json:"device"`
	Timestamp time.Time `json:"timestamp"`
}

// Key returns the store key for the record.
func (r AuditRecord) Key() string {
	return AuditKey(r.Email, r.Timestamp)
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
