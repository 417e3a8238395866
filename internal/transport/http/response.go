package httptransport

import (
	"github.com/gin-gonic/gin"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type sessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type tokenResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

type pollResponse struct {
	Verified bool   `json:"verified"`
	Message  string `json:"message"`
	Token    string `json:"token,omitempty"`
}

type whitelistResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Status   string `json:"status"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Edition  string `json:"edition"`
}

type rejectionResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Status  string `json:"status"`
}

type usernameCheckResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Error writes an error body with the given status.
func Error(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}
