package api

import (
	"net/http"
	"strconv"
	"strings"
)

// JobsHandler serves job state, results and exports.
type JobsHandler struct {
	deps Dependencies
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(deps Dependencies) *JobsHandler {
	return &JobsHandler{deps: deps}
}

// HandleListJobs handles GET /jobs requests.
func (h *JobsHandler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Jobs(r.Context()))
}

// HandleJob dispatches GET /jobs/{id} and its sub-resources:
//
//	GET /jobs/{id}             -> job state and summary
//	GET /jobs/{id}/buildings   -> result table, lowest eave first
//	GET /jobs/{id}/histogram   -> height distribution
//	GET /jobs/{id}/export.kml  -> KML download
//	GET /jobs/{id}/mesh.ply    -> merged roof mesh download
func (h *JobsHandler) HandleJob(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_job"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/jobs/")
	jobID, sub, _ := strings.Cut(path, "/")
	if jobID == "" || strings.Contains(sub, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	switch sub {
	case "":
		h.job(w, r, jobID)
	case "buildings":
		h.buildings(w, r, jobID)
	case "histogram":
		h.histogram(w, r, jobID)
	case "export.kml":
		h.exportKML(w, r, jobID)
	case "mesh.ply":
		h.exportPLY(w, r, jobID)
	default:
		http.NotFound(w, r)
	}
}

func (h *JobsHandler) job(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.deps.Job(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, "api.get_job", err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *JobsHandler) buildings(w http.ResponseWriter, r *http.Request, jobID string) {
	const op = "api.get_buildings"

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}

	buildings, err := h.deps.Buildings(r.Context(), jobID, limit)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}

	out := make([]buildingResponse, 0, len(buildings))
	for i := range buildings {
		out = append(out, toBuildingResponse(&buildings[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *JobsHandler) histogram(w http.ResponseWriter, r *http.Request, jobID string) {
	bins, err := h.deps.Histogram(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, "api.get_histogram", err)
		return
	}
	writeJSON(w, http.StatusOK, bins)
}

func (h *JobsHandler) exportKML(w http.ResponseWriter, r *http.Request, jobID string) {
	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	w.Header().Set("Content-Disposition", `attachment; filename="traufen-`+jobID+`.kml"`)
	if err := h.deps.ExportKML(r.Context(), w, jobID); err != nil {
		// Headers may already be out; best effort error mapping.
		writeServiceError(w, "api.export_kml", err)
	}
}

func (h *JobsHandler) exportPLY(w http.ResponseWriter, r *http.Request, jobID string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="roofs-`+jobID+`.ply"`)
	if err := h.deps.ExportPLY(r.Context(), w, jobID); err != nil {
		writeServiceError(w, "api.export_ply", err)
	}
}
