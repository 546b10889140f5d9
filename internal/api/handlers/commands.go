package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tormodh/doipuds/internal/api/models"
)

// SendCommand godoc
// @Summary Send a UDS command
// @Description Dispatches a hex-encoded UDS service id and operand to the active session
// @Tags commands
// @Accept json
// @Produce json
// @Param request body models.CommandRequest true "Command parameters"
// @Success 200 {object} models.CommandResponse
// @Failure 400 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /commands [post]
func (h *Handler) SendCommand(c *gin.Context) {
	var req models.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	env := h.manager.SendCommand(c.Request.Context(), req.ServiceIDHex, req.OperandHex)

	status := http.StatusOK
	if !env.Success {
		status = http.StatusBadRequest
	}
	c.JSON(status, toCommandResponse(env))
}

// SetSecurityConstant godoc
// @Summary Override the security-access constant for a level
// @Description Overrides the per-level seed/key constant used by subsequent SecurityAccess key submissions
// @Tags commands
// @Accept json
// @Produce json
// @Param level path int true "Key-submission security level"
// @Param request body models.SecurityConstantRequest true "New constant"
// @Success 200 {object} models.StatusResponse
// @Failure 400 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /security/constant/{level} [put]
func (h *Handler) SetSecurityConstant(c *gin.Context) {
	level, err := parseLevelParam(c.Param("level"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	var req models.SecurityConstantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	h.manager.SetSecurityConstant(level, req.Constant)
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}
