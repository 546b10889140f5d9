// Package handlers implements the REST API endpoint handlers for this
// DoIP/UDS client.
//
// @title DoIP/UDS Client API
// @version 1.0
// @description REST API for driving a DoIP-tunneled UDS diagnostic session
// against a single ECU.
//
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
//
// @host localhost:8080
// @BasePath /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
package handlers

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/tormodh/doipuds/internal/config"
	"github.com/tormodh/doipuds/internal/session"
)

// Handler contains dependencies for API handlers.
type Handler struct {
	cfg       *config.Config
	logger    *slog.Logger
	startTime time.Time
	manager   *session.Manager
}

// New creates a new Handler with the given configuration and session
// manager.
func New(cfg *config.Config, manager *session.Manager, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:       cfg,
		logger:    logger,
		startTime: time.Now(),
		manager:   manager,
	}
}

// parseLevelParam parses a security-access level path parameter as a uint8.
func parseLevelParam(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid level %q: %w", s, err)
	}
	return uint8(v), nil
}
