package httptransport

import (
	"errors"
	"fmt"
	"net/http"

	"pittmc/backend/internal/domain"
)

// errorReply is the HTTP status and user-facing message for an error.
type errorReply struct {
	status  int
	message string
}

// errInvalidBody is returned for request bodies that are not valid JSON.
var errInvalidBody = errors.New("invalid request body")

// Service errors mapped to responses. Anything not listed is a 500.
var errorMessages = map[error]errorReply{
	errInvalidBody:                   {http.StatusBadRequest, "Invalid request body"},
	errBodyTooLarge:                  {http.StatusRequestEntityTooLarge, "Request body too large"},
	domain.ErrMissingFields:          {http.StatusBadRequest, "Missing required fields"},
	domain.ErrInvalidCodeFormat:      {http.StatusBadRequest, "Invalid verification code format"},
	domain.ErrInvalidJavaUsername:    {http.StatusBadRequest, "Invalid Java username format"},
	domain.ErrInvalidBedrockUsername: {http.StatusBadRequest, "Invalid Bedrock username length"},
	domain.ErrInvalidEdition:         {http.StatusBadRequest, "Invalid edition type"},
	domain.ErrInvalidDevice:          {http.StatusBadRequest, "Invalid device type"},

	domain.ErrCodeNotFound:          {http.StatusBadRequest, "Verification code expired or not found"},
	domain.ErrInvalidCode:           {http.StatusBadRequest, "Invalid verification code"},
	domain.ErrEmailMismatch:         {http.StatusBadRequest, "Email mismatch error"},
	domain.ErrNoPendingVerification: {http.StatusBadRequest, "No pending verification"},
	domain.ErrUnauthorized:          {http.StatusUnauthorized, "Invalid or expired token"},

	domain.ErrEmailDelivery:         {http.StatusInternalServerError, "Failed to send verification email"},
	domain.ErrMailNotConfigured:     {http.StatusInternalServerError, "Email service configuration error"},
	domain.ErrStoreUnavailable:      {http.StatusInternalServerError, "Server configuration error"},
	domain.ErrUpstreamNotConfigured: {http.StatusInternalServerError, "Server configuration error"},
	domain.ErrUpstreamUnavailable:   {http.StatusInternalServerError, "Failed to whitelist user. The server will try to whitelist you manually."},
}

var internalError = errorReply{http.StatusInternalServerError, "Internal server error"}

// routeMessages overrides the message of an error on one route, keeping the
// wording each endpoint has always used.
type routeMessages map[error]string

var (
	verifyCodeMessages = routeMessages{
		domain.ErrMissingFields: "Invalid email or verification code",
		domain.ErrInvalidEmail:  "Invalid email or verification code",
	}
	checkVerificationMessages = routeMessages{
		domain.ErrMissingFields: "Invalid email or session ID",
		domain.ErrInvalidEmail:  "Invalid email or session ID",
	}
	emailWebhookMessages = routeMessages{
		domain.ErrMissingFields: "Invalid email data",
		errInvalidBody:          "Invalid email data",
		domain.ErrInvalidEmail:  "Not a valid Pitt email",
	}
)

// classify resolves err to a response. institution is the email domain used
// in the invalid-email message.
func classify(err error, institution string, overrides routeMessages) errorReply {
	var reply errorReply
	var matched error
	if errors.Is(err, domain.ErrInvalidEmail) {
		reply = errorReply{http.StatusBadRequest, fmt.Sprintf("Invalid email address. Must be a %s email.", institution)}
		matched = domain.ErrInvalidEmail
	} else {
		reply = internalError
		for sentinel, s := range errorMessages {
			if errors.Is(err, sentinel) {
				reply, matched = s, sentinel
				break
			}
		}
	}

	if msg, ok := overrides[matched]; ok && matched != nil {
		reply.message = msg
	}
	return reply
}
