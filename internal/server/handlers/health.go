package handlers

import (
	"context"

	"github.com/noteleaf/noteleaf/internal/server/dto"
)

// HealthHandler reports server liveness.
type HealthHandler struct{}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Health returns the health status of the server.
func (h *HealthHandler) Health(_ context.Context, _ *dto.HealthRequest) (*dto.HealthResponse, error) {
	return &dto.HealthResponse{Status: "ok"}, nil
}
