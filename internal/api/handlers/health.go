package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dhima/webhook-scheduler/internal/api/response"
	"github.com/dhima/webhook-scheduler/internal/logging"
)

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	logger logging.Logger
	db     Pinger
}

// NewHealthHandler creates a new health check handler.
func NewHealthHandler(logger logging.Logger, db Pinger) *HealthHandler {
	return &HealthHandler{logger: logger, db: db}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Database string `json:"database"`
}

// Health reports service and database health.
func (h *HealthHandler) Health(c *gin.Context) {
	dbStatus := "ok"
	if err := h.db.Ping(c.Request.Context()); err != nil {
		h.logger.Error("database ping failed", zap.Error(err))
		dbStatus = "unreachable"
	}

	resp := HealthResponse{
		Status:   "ok",
		Service:  "webhook-scheduler",
		Database: dbStatus,
	}
	if dbStatus != "ok" {
		resp.Status = "degraded"
	}
	response.OK(c, resp)
}
