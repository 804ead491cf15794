// Package repository defines the in-memory result stores and errors.
package repository

import (
	"context"

	"github.com/dachtraufe/traufe/internal/domain/model"
)

// BuildingStore provides read/write access to per-job analysis results.
// Buildings within a job are ordered by eave height ascending with the
// building id as a deterministic tie-breaker.
type BuildingStore interface {
	// Put inserts or replaces a building result. Returns true when the
	// building was new for its job.
	Put(ctx context.Context, b model.Building) (bool, error)

	// Get returns a single building of a job.
	// Returns ErrNotFound when either the job or the building is unknown.
	Get(ctx context.Context, jobID, buildingID string) (model.Building, error)

	// LowestN returns up to n buildings of a job, lowest eave first.
	LowestN(ctx context.Context, jobID string, n int) ([]model.Building, error)

	// ByJob returns all buildings of a job in height order.
	ByJob(ctx context.Context, jobID string) ([]model.Building, error)

	// DropJob removes all buildings of a job.
	DropJob(ctx context.Context, jobID string)

	// CountJob returns the number of buildings stored for a job.
	CountJob(ctx context.Context, jobID string) int

	// Count returns the number of buildings across all jobs.
	Count(ctx context.Context) int
}

// JobStore tracks submitted analysis jobs by id.
type JobStore interface {
	// Create registers a new job. Returns ErrDuplicateJob when the id
	// is already known.
	Create(ctx context.Context, job model.Job) error

	// Get returns a copy of a job. Returns ErrNotFound when unknown.
	Get(ctx context.Context, id string) (model.Job, error)

	// Update applies fn to the stored job under the store lock.
	Update(ctx context.Context, id string, fn func(*model.Job)) error

	// List returns all jobs, most recently submitted first.
	List(ctx context.Context) []model.Job

	// Count returns the number of tracked jobs.
	Count(ctx context.Context) int
}
