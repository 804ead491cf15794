// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/dachtraufe/traufe/internal/adapters/export"
	"github.com/dachtraufe/traufe/internal/adapters/geodata"
	jobqueue "github.com/dachtraufe/traufe/internal/adapters/mq/queue"
	workerpool "github.com/dachtraufe/traufe/internal/adapters/mq/worker"
	"github.com/dachtraufe/traufe/internal/adapters/repository"
	"github.com/dachtraufe/traufe/internal/adapters/swisstopo"
	"github.com/dachtraufe/traufe/internal/domain/dedupe"
	"github.com/dachtraufe/traufe/internal/domain/geometry"
	"github.com/dachtraufe/traufe/internal/domain/model"
	"github.com/dachtraufe/traufe/internal/domain/roof"
	"github.com/dachtraufe/traufe/internal/i18n"
	"github.com/dachtraufe/traufe/pkg/logger"
	"github.com/dachtraufe/traufe/pkg/metrics"
)

// Service implements the API dependencies for the eave analysis system.
type Service struct {
	mu sync.RWMutex

	// Core components
	buildings  repository.BuildingStore
	jobs       repository.JobStore
	deduper    dedupe.Deduper
	jobQueue   jobqueue.Queue
	pipeline   *Pipeline
	workerPool *workerpool.Pool
	translator *i18n.Translator

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	maxAreaM2        float64
	histogramBins    int
	maxBuildingLimit int
	cacheDir         string
	baseURL          string
	ogr2ogrPath      string
	downloadTimeout  time.Duration
	defaultLanguage  string

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of pipeline workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the selection deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxArea caps the planar area of a selection in square meters.
func WithMaxArea(m2 float64) Option {
	return func(s *Service) {
		if m2 > 0 {
			s.maxAreaM2 = m2
		}
	}
}

// WithHistogramBins sets the number of histogram buckets.
func WithHistogramBins(bins int) Option {
	return func(s *Service) {
		if bins > 0 {
			s.histogramBins = bins
		}
	}
}

// WithMaxBuildingLimit caps the buildings listing page size.
func WithMaxBuildingLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxBuildingLimit = limit
		}
	}
}

// WithCacheDir sets where downloaded tiles are kept.
func WithCacheDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.cacheDir = dir
		}
	}
}

// WithSwisstopoBaseURL overrides the swisstopo asset search endpoint.
func WithSwisstopoBaseURL(u string) Option {
	return func(s *Service) {
		if u != "" {
			s.baseURL = u
		}
	}
}

// WithOgr2ogrPath locates the GDAL ogr2ogr binary.
func WithOgr2ogrPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.ogr2ogrPath = path
		}
	}
}

// WithDownloadTimeout bounds a single tile download.
func WithDownloadTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.downloadTimeout = d
		}
	}
}

// WithDefaultLanguage selects the fallback UI language.
func WithDefaultLanguage(lang string) Option {
	return func(s *Service) {
		if lang != "" {
			s.defaultLanguage = lang
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU(),
		queueSize:        1024,
		dedupeSize:       10_000,
		maxAreaM2:        50_000,
		histogramBins:    roof.DefaultHistogramBins,
		maxBuildingLimit: 500,
		cacheDir:         "downloads",
		ogr2ogrPath:      "ogr2ogr",
		downloadTimeout:  2 * time.Minute,
		defaultLanguage:  "de",
		stopCh:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting eave analysis service...")

	s.buildings = repository.NewTreapStore(ctx)
	s.jobs = repository.NewMemoryJobStore()
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.jobQueue = jobqueue.NewInMemoryQueue(
		jobqueue.WithCapacity(s.queueSize),
		jobqueue.WithBufferSize(s.queueSize),
	)

	translator, err := i18n.New(s.defaultLanguage)
	if err != nil {
		return fmt.Errorf("load message catalogs: %w", err)
	}
	s.translator = translator

	clientOpts := []swisstopo.Option{
		swisstopo.WithTimeout(s.downloadTimeout),
		swisstopo.WithLogger(s.logger.Named("swisstopo")),
	}
	if s.baseURL != "" {
		clientOpts = append(clientOpts, swisstopo.WithBaseURL(s.baseURL))
	}
	client := swisstopo.NewClient(clientOpts...)
	downloader := swisstopo.NewDownloader(client, s.cacheDir)

	converter := geodata.NewConverter(
		geodata.WithBinary(s.ogr2ogrPath),
		geodata.WithConverterLogger(s.logger.Named("geodata")),
	)
	if err := converter.Available(); err != nil {
		s.logger.Warn(ctx, "ogr2ogr not found, building tiles cannot be converted",
			logger.Error(err),
		)
	}

	terrain, err := geodata.NewTerrain(filepath.Join(s.cacheDir, "terrain"))
	if err != nil {
		return fmt.Errorf("initialize terrain cache: %w", err)
	}

	s.pipeline = NewPipeline(
		client,
		downloader,
		converter,
		terrain,
		roof.NewAnalyzer(),
		s.buildings,
		s.histogramBins,
	)

	s.workerPool = workerpool.NewPool(s.workerCount, s.jobQueue, s.pipeline, s.jobs)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "eave analysis service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Float64("maxAreaM2", s.maxAreaM2),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping eave analysis service...")

	if s.workerPool != nil {
		s.workerPool.Stop()
	}

	if closer, ok := s.buildings.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	if q, ok := s.jobQueue.(*jobqueue.InMemoryQueue); ok {
		_ = q.Close()
	}

	select {
	case <-s.stopCh:
		// Channel already closed
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(context.Background(), "eave analysis service stopped")
}

// SubmitSelection validates a drawn area and queues it for analysis.
// duplicate is true when the same area was already submitted; the
// returned job is then the existing one.
func (s *Service) SubmitSelection(ctx context.Context, ring orb.Ring) (model.Job, bool, error) {
	metrics.RecordJobSubmitted()

	sel, err := s.buildSelection(ring)
	if err != nil {
		return model.Job{}, false, err
	}

	jobID := uuid.New().String()
	if existingID, dup := s.deduper.LookupOrRecord(ctx, sel.Fingerprint, jobID); dup {
		metrics.RecordJobDuplicate()
		s.logger.Debug(ctx, "duplicate selection",
			logger.String("fingerprint", sel.Fingerprint),
			logger.String("jobID", existingID),
		)
		existing, err := s.jobs.Get(ctx, existingID)
		if err != nil {
			// The prior job fell out of the store; treat as new.
			s.deduper.Forget(ctx, sel.Fingerprint)
			return s.SubmitSelection(ctx, ring)
		}
		return existing, true, nil
	}

	job := model.Job{
		ID:          jobID,
		State:       model.JobQueued,
		Selection:   sel,
		SubmittedAt: time.Now(),
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		s.deduper.Forget(ctx, sel.Fingerprint)
		return model.Job{}, false, fmt.Errorf("register job: %w", err)
	}

	if !s.jobQueue.Enqueue(ctx, job) {
		s.deduper.Forget(ctx, sel.Fingerprint)
		_ = s.jobs.Update(ctx, jobID, func(j *model.Job) {
			j.State = model.JobFailed
			j.Error = ErrQueueFull.Error()
			j.FinishedAt = time.Now()
		})
		return model.Job{}, false, ErrQueueFull
	}

	s.logger.Info(ctx, "job queued",
		logger.String("jobID", jobID),
		logger.Float64("areaM2", sel.AreaM2),
	)
	return job, false, nil
}

// buildSelection validates the ring and projects it to LV95.
func (s *Service) buildSelection(ring orb.Ring) (model.Selection, error) {
	closed := geometry.CloseRing(ring)
	if len(closed) < 4 {
		return model.Selection{}, fmt.Errorf("%w: need at least three points", ErrInvalidSelection)
	}

	lv95 := geometry.RingToLV95(closed)
	area := geometry.Area(lv95)
	if area <= 0 {
		return model.Selection{}, fmt.Errorf("%w: degenerate area", ErrInvalidSelection)
	}
	if area > s.maxAreaM2 {
		return model.Selection{}, fmt.Errorf("%w: %.0f m² > %.0f m²", ErrAreaTooLarge, area, s.maxAreaM2)
	}

	return model.Selection{
		Ring:        closed,
		LV95:        lv95,
		AreaM2:      area,
		Fingerprint: dedupe.Fingerprint(lv95),
	}, nil
}

// Job returns a job by id.
func (s *Service) Job(ctx context.Context, id string) (model.Job, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return model.Job{}, ErrJobNotFound
	}
	return job, nil
}

// Jobs returns all jobs, most recent first.
func (s *Service) Jobs(ctx context.Context) []model.Job {
	return s.jobs.List(ctx)
}

// Buildings returns up to limit buildings of a job ordered by eave
// height ascending. A non-positive limit falls back to the configured
// maximum page size.
func (s *Service) Buildings(ctx context.Context, jobID string, limit int) ([]model.Building, error) {
	if _, err := s.jobs.Get(ctx, jobID); err != nil {
		return nil, ErrJobNotFound
	}

	if limit < 1 || limit > s.maxBuildingLimit {
		limit = s.maxBuildingLimit
	}
	return s.buildings.LowestN(ctx, jobID, limit)
}

// Histogram returns the height distribution of a finished job.
func (s *Service) Histogram(ctx context.Context, jobID string) ([]model.HistogramBin, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, ErrJobNotFound
	}
	if job.Summary == nil {
		return nil, ErrJobNotReady
	}
	return job.Summary.Histogram, nil
}

// ExportKML streams the job's buildings as KML.
func (s *Service) ExportKML(ctx context.Context, w io.Writer, jobID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return ErrJobNotFound
	}
	if job.State != model.JobDone {
		return ErrJobNotReady
	}

	buildings, err := s.buildings.ByJob(ctx, jobID)
	if err != nil {
		return err
	}
	return export.KML(w, "Traufenanalyse "+jobID, buildings)
}

// ExportPLY streams the job's merged roof mesh as ASCII PLY.
func (s *Service) ExportPLY(ctx context.Context, w io.Writer, jobID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return ErrJobNotFound
	}
	if job.State != model.JobDone {
		return ErrJobNotReady
	}

	buildings, err := s.buildings.ByJob(ctx, jobID)
	if err != nil {
		return err
	}
	return export.PLY(w, buildings)
}

// Messages returns the UI message catalog for the preferred languages.
// Messages parameterized by service configuration, like the area cap,
// are expanded here; per-job placeholders stay for the frontend.
func (s *Service) Messages(prefs ...string) map[string]string {
	msgs := s.translator.Catalog(prefs...)

	loc := s.translator.Localizer(prefs...)
	msgs["area.too_large"] = s.translator.Message(loc, "area.too_large", map[string]any{
		"MaxArea": s.maxAreaM2,
	})
	return msgs
}

// MaxArea returns the configured selection area cap in square meters.
func (s *Service) MaxArea() float64 {
	return s.maxAreaM2
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"maxAreaM2":   s.maxAreaM2,
	}

	if s.started {
		queueLen := s.jobQueue.Len(ctx)
		totalBuildings := s.buildings.Count(ctx)
		totalJobs := s.jobs.Count(ctx)

		stats["queueLength"] = queueLen
		stats["totalBuildings"] = totalBuildings
		stats["totalJobs"] = totalJobs

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTotalBuildings(totalBuildings)
		metrics.UpdateTotalJobs(totalJobs)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}
