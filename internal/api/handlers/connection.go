package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tormodh/doipuds/internal/api/models"
	"github.com/tormodh/doipuds/internal/session"
)

// ConnectECU godoc
// @Summary Connect to an ECU
// @Description Dials the DoIP gateway, performs routing activation, and opens a new session
// @Tags connection
// @Accept json
// @Produce json
// @Param request body models.ConnectRequest true "Connection parameters"
// @Success 200 {object} models.CommandResponse
// @Failure 400 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /connection [post]
func (h *Handler) ConnectECU(c *gin.Context) {
	var req models.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	env := h.manager.Connect(c.Request.Context(), session.ConnectionConfig{
		IPAddress:        req.IPAddress,
		Port:             req.Port,
		ServerAddressHex: req.ServerAddressHex,
		ClientAddressHex: req.ClientAddressHex,
		TimeoutMs:        req.TimeoutMs,
	})

	status := http.StatusOK
	if !env.Success {
		status = http.StatusBadRequest
	}
	c.JSON(status, toCommandResponse(env))
}

// DisconnectECU godoc
// @Summary Disconnect from the ECU
// @Description Closes the active session, if any
// @Tags connection
// @Produce json
// @Success 200 {object} models.CommandResponse
// @Security ApiKeyAuth
// @Router /connection [delete]
func (h *Handler) DisconnectECU(c *gin.Context) {
	env := h.manager.Disconnect()
	c.JSON(http.StatusOK, toCommandResponse(env))
}

// GetConnectionStatus godoc
// @Summary Get connection status
// @Description Returns whether a session is currently active
// @Tags connection
// @Produce json
// @Success 200 {object} models.ConnectionStatusResponse
// @Security ApiKeyAuth
// @Router /connection [get]
func (h *Handler) GetConnectionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, models.ConnectionStatusResponse{Connected: h.manager.Status()})
}

// GetConnectionConfig godoc
// @Summary Get the active connection configuration
// @Description Returns the parameters of the last successful connect call
// @Tags connection
// @Produce json
// @Success 200 {object} models.ConnectionConfigResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /connection/config [get]
func (h *Handler) GetConnectionConfig(c *gin.Context) {
	cfg, ok := h.manager.Config()
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "no connection has been established yet"})
		return
	}
	c.JSON(http.StatusOK, models.ConnectionConfigResponse{
		IPAddress:        cfg.IPAddress,
		Port:             cfg.Port,
		ServerAddressHex: cfg.ServerAddressHex,
		ClientAddressHex: cfg.ClientAddressHex,
		TimeoutMs:        cfg.TimeoutMs,
	})
}

func toCommandResponse(env session.Envelope) models.CommandResponse {
	return models.CommandResponse{
		Success:   env.Success,
		Message:   env.Message,
		Data:      env.Data,
		Timestamp: env.Timestamp,
		SessionID: env.SessionID,
	}
}
