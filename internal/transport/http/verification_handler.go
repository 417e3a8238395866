package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// EmailRequest carries a single institutional address.
type EmailRequest struct {
	Email string `json:"email" binding:"required"`
}

// VerifyCodeRequest submits an emailed code.
type VerifyCodeRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// InboundEmailRequest is the payload posted by the inbound mail provider.
// Only from and to are used.
type InboundEmailRequest struct {
	From    string            `json:"from" binding:"required"`
	To      string            `json:"to" binding:"required"`
	Subject string            `json:"subject"`
	Text    string            `json:"text"`
	Headers map[string]string `json:"headers"`
}

// CheckVerificationRequest polls an out-of-band session.
type CheckVerificationRequest struct {
	Email     string `json:"email" binding:"required"`
	SessionID string `json:"sessionId" binding:"required"`
}

const verifiedMessage = "Email successfully verified"

// SendVerification godoc
// @Summary Email a verification code
// @Description Generates a 6 digit code for an institutional address and mails it. The code is valid for 15 minutes.
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Institutional email"
// @Success 200 {object} successResponse
// @Failure 400 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /send-verification [post]
func (h *Handler) SendVerification(c *gin.Context) {
	var req EmailRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, nil)
		return
	}
	if err := h.verification.RequestCode(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true})
}

// RequestSession godoc
// @Summary Open an out-of-band verification session
// @Description Returns a session id. The session completes when the user mails the inbound address from the given email.
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Institutional email"
// @Success 200 {object} sessionResponse
// @Failure 400 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /request-session [post]
func (h *Handler) RequestSession(c *gin.Context) {
	var req EmailRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, nil)
		return
	}
	ticket, err := h.verification.RequestSession(c.Request.Context(), req.Email)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{
		Success:   true,
		SessionID: ticket.SessionID,
		Message:   ticket.Instruction,
	})
}

// VerifyCode godoc
// @Summary Exchange a code for a whitelist token
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body VerifyCodeRequest true "Email and code"
// @Success 200 {object} tokenResponse
// @Failure 400 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /verify-code [post]
func (h *Handler) VerifyCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, verifyCodeMessages)
		return
	}
	token, err := h.verification.SubmitCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		h.fail(c, err, verifyCodeMessages)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Success: true, Message: verifiedMessage, Token: token})
}

// EmailWebhook godoc
// @Summary Inbound mail callback
// @Description Marks the sender's pending session as verified.
// @Tags Verification
// @Accept json
// @Produce json
// @Param X-Webhook-Secret header string false "Shared secret, when configured"
// @Param request body InboundEmailRequest true "Inbound mail"
// @Success 200 {object} successResponse
// @Failure 400 {object} errorResponse
// @Failure 401 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /email-webhook [post]
func (h *Handler) EmailWebhook(c *gin.Context) {
	var req InboundEmailRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, emailWebhookMessages)
		return
	}
	if err := h.verification.ResolveInbound(c.Request.Context(), req.From, req.To); err != nil {
		h.fail(c, err, emailWebhookMessages)
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true})
}

// CheckVerification godoc
// @Summary Poll an out-of-band session
// @Description Pending sessions answer verified=false. A verified session is consumed and yields a token.
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body CheckVerificationRequest true "Email and session id"
// @Success 200 {object} pollResponse
// @Failure 400 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /check-verification [post]
func (h *Handler) CheckVerification(c *gin.Context) {
	var req CheckVerificationRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, checkVerificationMessages)
		return
	}
	res, err := h.verification.PollStatus(c.Request.Context(), req.Email, req.SessionID)
	if err != nil {
		h.fail(c, err, checkVerificationMessages)
		return
	}
	if !res.Verified {
		c.JSON(http.StatusOK, pollResponse{Verified: false, Message: "Email verification pending"})
		return
	}
	c.JSON(http.StatusOK, pollResponse{Verified: true, Message: verifiedMessage, Token: res.Token})
}
