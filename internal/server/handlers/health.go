package handlers

import (
	"context"

	"github.com/maruel/markdb/internal/server/dto"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	svc *Services
	cfg *Config
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(svc *Services, cfg *Config) *HealthHandler {
	return &HealthHandler{svc: svc, cfg: cfg}
}

// GetHealth returns the server status.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *dto.HealthRequest) (*dto.HealthResponse, error) {
	mdvStatus := "ok"
	if h.cfg.MDVCheck != nil && h.cfg.MDVCheck() != nil {
		mdvStatus = "missing"
	}
	return &dto.HealthResponse{
		Status:  "ok",
		Version: h.cfg.Version,
		Storage: h.svc.Store.Driver(),
		MDV:     mdvStatus,
	}, nil
}
