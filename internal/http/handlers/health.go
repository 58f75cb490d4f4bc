package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/convarr/convarr/internal/engine"
	"github.com/convarr/convarr/internal/format"
	"github.com/convarr/convarr/internal/gate"
	"github.com/convarr/convarr/internal/resource"
)

// HealthHandler serves the service health endpoint.
type HealthHandler struct {
	version   string
	startTime time.Time
	monitor   *resource.Monitor
	engines   *engine.Set
	gate      *gate.Gate
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(version string, monitor *resource.Monitor, engines *engine.Set, g *gate.Gate) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		monitor:   monitor,
		engines:   engines,
		gate:      g,
	}
}

// EngineHealth reports one engine's readiness.
type EngineHealth struct {
	Category  format.Category `json:"category"`
	Available bool            `json:"available"`
	Error     string          `json:"error,omitempty"`
}

// ConcurrencyHealth reports gate occupancy.
type ConcurrencyHealth struct {
	Capacity int `json:"capacity"`
	InUse    int `json:"in_use"`
	Waiting  int `json:"waiting"`
}

// HealthResponse is the health payload.
type HealthResponse struct {
	Status      string                    `json:"status"`
	Timestamp   string                    `json:"timestamp"`
	Version     string                    `json:"version"`
	Uptime      string                    `json:"uptime"`
	System      resource.Snapshot         `json:"system"`
	ProcessTree resource.ProcessTreeStats `json:"process_tree"`
	Engines     []EngineHealth            `json:"engines"`
	Concurrency ConcurrencyHealth         `json:"concurrency"`
}

// HealthOutput wraps HealthResponse.
type HealthOutput struct {
	Body HealthResponse
}

// Register registers the health route with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service health with system metrics, engine availability, and concurrency occupancy.",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth returns the current service health. A missing engine binary
// degrades the status without failing the endpoint.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	now := time.Now()

	wd, err := os.Getwd()
	if err != nil {
		wd = os.TempDir()
	}
	snap, _ := h.monitor.Snapshot(wd)

	status := "healthy"
	engines := make([]EngineHealth, 0, len(format.Categories))
	availability := h.engines.Availability()
	for _, cat := range format.Categories {
		eh := EngineHealth{Category: cat, Available: true}
		if err := availability[cat]; err != nil {
			eh.Available = false
			eh.Error = err.Error()
			status = "degraded"
		}
		engines = append(engines, eh)
	}

	return &HealthOutput{Body: HealthResponse{
		Status:      status,
		Timestamp:   now.UTC().Format(time.RFC3339),
		Version:     h.version,
		Uptime:      now.Sub(h.startTime).Round(time.Second).String(),
		System:      snap,
		ProcessTree: h.monitor.ProcessTree(),
		Engines:     engines,
		Concurrency: ConcurrencyHealth{
			Capacity: h.gate.Capacity(),
			InUse:    h.gate.InUse(),
			Waiting:  h.gate.Waiting(),
		},
	}}, nil
}
