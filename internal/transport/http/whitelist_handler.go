package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pittmc/backend/internal/domain"
)

// WhitelistSubmission submits a username with a verification token.
type WhitelistSubmission struct {
	Token     string `json:"token" binding:"required"`
	Username  string `json:"username" binding:"required"`
	Edition   string `json:"edition" binding:"required"`
	Device    string `json:"device"`
	SessionID string `json:"sessionId"`
}

// CheckUsernameRequest asks whether a username would be accepted.
type CheckUsernameRequest struct {
	Username string `json:"username" binding:"required"`
	Edition  string `json:"edition" binding:"required,edition"`
}

const whitelistedMessage = "Successfully whitelisted"

// WhitelistRequest godoc
// @Summary Whitelist a player
// @Description Validates the token and username, records an audit entry and forwards the name to the game server.
// @Tags Whitelist
// @Accept json
// @Produce json
// @Param request body WhitelistSubmission true "Submission"
// @Success 200 {object} whitelistResponse
// @Failure 400 {object} rejectionResponse "Rejected by the game server"
// @Failure 401 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /whitelist-request [post]
// @Router /whitelist-user [post]
func (h *Handler) WhitelistRequest(c *gin.Context) {
	var req WhitelistSubmission
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, nil)
		return
	}

	res, err := h.whitelist.Submit(c.Request.Context(), domain.WhitelistRequest{
		Token:     req.Token,
		Username:  req.Username,
		Edition:   req.Edition,
		Device:    req.Device,
		SessionID: req.SessionID,
	})
	var rejection *domain.UpstreamRejection
	if errors.As(err, &rejection) {
		c.JSON(http.StatusBadRequest, rejectionResponse{
			Success: false,
			Error:   rejection.Message,
			Status:  rejection.Status,
		})
		return
	}
	if err != nil {
		h.fail(c, err, nil)
		return
	}

	msg := res.Message
	if msg == "" {
		msg = whitelistedMessage
	}
	c.JSON(http.StatusOK, whitelistResponse{
		Success:  true,
		Message:  msg,
		Status:   res.Status,
		Email:    res.Email,
		Username: res.Username,
		Edition:  string(res.Edition),
	})
}

// CheckUsername godoc
// @Summary Validate a username
// @Description Rule violations answer 200 with valid=false. Missing fields or an unknown edition answer 400.
// @Tags Whitelist
// @Accept json
// @Produce json
// @Param request body CheckUsernameRequest true "Username and edition"
// @Success 200 {object} usernameCheckResponse
// @Failure 400 {object} usernameCheckResponse
// @Router /check-username [post]
func (h *Handler) CheckUsername(c *gin.Context) {
	var req CheckUsernameRequest
	if err := bindJSON(c, &req); err != nil {
		h.invalidUsername(c, err)
		return
	}
	if err := h.whitelist.CheckUsername(req.Username, req.Edition); err != nil {
		h.invalidUsername(c, err)
		return
	}
	c.JSON(http.StatusOK, usernameCheckResponse{Valid: true})
}

func (h *Handler) invalidUsername(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidJavaUsername):
		c.JSON(http.StatusOK, usernameCheckResponse{
			Message: "Invalid Java username format - must be 3-16 characters and only contain letters, numbers, and underscores",
		})
	case errors.Is(err, domain.ErrInvalidBedrockUsername):
		msg := "Invalid Bedrock username length - must be 1-16 characters"
		if h.whitelist.StrictBedrock() {
			msg = "Invalid Bedrock username format - must be 3-16 characters of letters, numbers, spaces, hyphens, periods, and underscores"
		}
		c.JSON(http.StatusOK, usernameCheckResponse{Message: msg})
	default:
		reply := classify(err, h.institution, nil)
		c.AbortWithStatusJSON(reply.status, usernameCheckResponse{Message: reply.message})
	}
}
