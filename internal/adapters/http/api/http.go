// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/paulmach/orb"

	service "github.com/dachtraufe/traufe/internal/app"
	"github.com/dachtraufe/traufe/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// SubmitSelection queues a drawn area for analysis. duplicate is
	// true when an identical area was submitted before.
	SubmitSelection(ctx context.Context, ring orb.Ring) (model.Job, bool, error)

	// Read operations expose job state and results.
	Job(ctx context.Context, id string) (model.Job, error)
	Jobs(ctx context.Context) []model.Job
	Buildings(ctx context.Context, jobID string, limit int) ([]model.Building, error)
	Histogram(ctx context.Context, jobID string) ([]model.HistogramBin, error)

	// Exports stream result files.
	ExportKML(ctx context.Context, w io.Writer, jobID string) error
	ExportPLY(ctx context.Context, w io.Writer, jobID string) error

	// Messages resolves the UI message catalog.
	Messages(prefs ...string) map[string]string

	// MaxArea exposes the selection area cap for client-side checks.
	MaxArea() float64
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	areasHandler     *AreasHandler
	jobsHandler      *JobsHandler
	messagesHandler  *MessagesHandler
	dashboardHandler *dashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		areasHandler:     NewAreasHandler(deps),
		jobsHandler:      NewJobsHandler(deps),
		messagesHandler:  NewMessagesHandler(deps),
		dashboardHandler: newdashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/messages", MetricsMiddleware(s.messagesHandler.HandleGetMessages, "messages"))
	mux.HandleFunc("/areas", MetricsMiddleware(s.areasHandler.HandlePostArea, "areas"))
	mux.HandleFunc("/jobs", MetricsMiddleware(s.jobsHandler.HandleListJobs, "jobs"))
	mux.HandleFunc("/jobs/", MetricsMiddleware(s.jobsHandler.HandleJob, "jobs"))
}

// areaRequest mirrors the OpenAPI schema for POST /areas: a polygon
// ring of [lon, lat] pairs in WGS84.
type areaRequest struct {
	Ring [][]float64 `json:"ring"`
}

func (a areaRequest) validate() error {
	if len(a.Ring) < 3 {
		return errors.New("ring needs at least three points")
	}
	for _, pt := range a.Ring {
		if len(pt) < 2 {
			return errors.New("ring points must be [lon, lat] pairs")
		}
		lon, lat := pt[0], pt[1]
		if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
			return errors.New("ring coordinates out of range")
		}
	}
	return nil
}

func (a areaRequest) toRing() orb.Ring {
	ring := make(orb.Ring, 0, len(a.Ring))
	for _, pt := range a.Ring {
		ring = append(ring, orb.Point{pt[0], pt[1]})
	}
	return ring
}

// submitResponse acknowledges an area submission.
type submitResponse struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	Duplicate bool      `json:"duplicate"`
	Submitted time.Time `json:"submitted_at"`
}

// buildingResponse is the table row shape for one building. The mesh
// itself is only available through the PLY export.
type buildingResponse struct {
	ID                string      `json:"id"`
	Layer             string      `json:"layer,omitempty"`
	EaveHeight        float64     `json:"eave_height_m"`
	GroundElevation   float64     `json:"ground_elevation_m,omitempty"`
	HeightAboveGround float64     `json:"height_above_ground_m,omitempty"`
	Centroid          []float64   `json:"centroid,omitempty"`
	Footprint         [][]float64 `json:"footprint,omitempty"`
}

func toBuildingResponse(b *model.Building) buildingResponse {
	resp := buildingResponse{
		ID:                b.ID,
		Layer:             b.Layer,
		EaveHeight:        b.EaveHeight,
		GroundElevation:   b.GroundElevation,
		HeightAboveGround: b.HeightAboveGround,
	}
	if b.Centroid[0] != 0 || b.Centroid[1] != 0 {
		resp.Centroid = []float64{b.Centroid[0], b.Centroid[1]}
	}
	if len(b.Footprint) > 0 {
		ring := b.Footprint[0]
		resp.Footprint = make([][]float64, 0, len(ring))
		for _, pt := range ring {
			resp.Footprint = append(resp.Footprint, []float64{pt[0], pt[1]})
		}
	}
	return resp
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service sentinels onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSelection):
		writeError(w, http.StatusBadRequest, "invalid_selection", err)
	case errors.Is(err, service.ErrAreaTooLarge):
		writeError(w, http.StatusBadRequest, "area_too_large", err)
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrJobNotReady):
		writeError(w, http.StatusConflict, "not_ready", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
