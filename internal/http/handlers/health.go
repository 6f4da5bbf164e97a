// Package handlers provides the control API handlers for marquee.
package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/marqueehq/marquee/internal/database"
)

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        *database.DB
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithDB sets the database connection checked by the health endpoint.
func (h *HealthHandler) WithDB(db *database.DB) *HealthHandler {
	h.db = db
	return h
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// HealthResponse is the health check response body.
type HealthResponse struct {
	Status        string            `json:"status" doc:"Overall service status"`
	Timestamp     string            `json:"timestamp" doc:"Current server time"`
	Version       string            `json:"version" doc:"Build version"`
	Uptime        string            `json:"uptime" doc:"Process uptime"`
	UptimeSeconds float64           `json:"uptime_seconds" doc:"Process uptime in seconds"`
	Checks        map[string]string `json:"checks" doc:"Per-component status"`
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the player service",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, input *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	checks := map[string]string{
		"database": h.databaseStatus(ctx),
	}

	status := "healthy"
	for _, check := range checks {
		if check == "error" {
			status = "degraded"
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:        status,
			Timestamp:     now.UTC().Format(time.RFC3339),
			Version:       h.version,
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			Checks:        checks,
		},
	}, nil
}

func (h *HealthHandler) databaseStatus(ctx context.Context) string {
	if h.db == nil {
		return "not_configured"
	}
	if err := h.db.Ping(ctx); err != nil {
		return "error"
	}
	return "ok"
}
