// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/paulmach/orb"
)

// JobState describes the lifecycle of an analysis job.
type JobState string

// Job lifecycle states.
const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// Selection is the user-drawn area of interest.
// The ring is stored twice: as drawn (WGS84 lon/lat) and projected to
// LV95 (EPSG:2056) where planar measurements are valid.
type Selection struct {
	Ring        orb.Ring // WGS84, closed
	LV95        orb.Ring // EPSG:2056, closed
	AreaM2      float64  // planar area in LV95
	Fingerprint string   // canonical hash used for deduplication
}

// Bound returns the LV95 bounding box of the selection.
func (s Selection) Bound() orb.Bound {
	return s.LV95.Bound()
}

// Job represents one roof height analysis run over a selection.
type Job struct {
	ID          string    `json:"id"`
	State       JobState  `json:"state"`
	Selection   Selection `json:"-"`
	SubmittedAt time.Time `json:"submitted_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
	Error       string    `json:"error,omitempty"`
	Summary     *Summary  `json:"summary,omitempty"`
}

// Summary aggregates the result of a completed job.
type Summary struct {
	BuildingCount int     `json:"building_count"`
	SkippedCount  int     `json:"skipped_count"`
	TileCount     int     `json:"tile_count"`
	MinEave       float64 `json:"min_eave_m"`
	MaxEave       float64 `json:"max_eave_m"`
	MeanEave      float64 `json:"mean_eave_m"`

	Histogram []HistogramBin `json:"histogram"`
}

// HistogramBin is one bucket of the z-value distribution.
type HistogramBin struct {
	Lower float64 `json:"lower_m"`
	Upper float64 `json:"upper_m"`
	Count int     `json:"count"`
}
