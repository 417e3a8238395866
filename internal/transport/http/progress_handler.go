package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UpdateDeviceRequest reports the device picked in the wizard.
type UpdateDeviceRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Device    string `json:"device" binding:"required,device"`
	Edition   string `json:"edition" binding:"omitempty,edition"`
}

// UpdateUsernameRequest reports the username typed in the wizard.
type UpdateUsernameRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Username  string `json:"username" binding:"required"`
	Edition   string `json:"edition" binding:"required,edition"`
}

// UpdateDevice godoc
// @Summary Report the selected device
// @Tags Progress
// @Accept json
// @Produce json
// @Param request body UpdateDeviceRequest true "Device"
// @Success 200 {object} successResponse
// @Failure 400 {object} errorResponse
// @Router /update-device [post]
func (h *Handler) UpdateDevice(c *gin.Context) {
	var req UpdateDeviceRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, nil)
		return
	}
	if err := h.progress.UpdateDevice(c.Request.Context(), req.SessionID, req.Device, req.Edition); err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true, Message: "Device information updated"})
}

// UpdateUsername godoc
// @Summary Report the entered username
// @Tags Progress
// @Accept json
// @Produce json
// @Param request body UpdateUsernameRequest true "Username"
// @Success 200 {object} successResponse
// @Failure 400 {object} errorResponse
// @Router /update-username [post]
func (h *Handler) UpdateUsername(c *gin.Context) {
	var req UpdateUsernameRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, nil)
		return
	}
	if err := h.progress.UpdateUsername(c.Request.Context(), req.SessionID, req.Username, req.Edition); err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true, Message: "Username updated"})
}
