// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...Option) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// JobQueueSize bounds the in-memory analysis job queue.
	JobQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of pipeline workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the selection deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxAreaM2 caps the planar area of a selection in square meters.
	MaxAreaM2 float64 `koanf:"max_area_m2"`

	// CacheDir is where downloaded swisstopo tiles are kept.
	CacheDir string `koanf:"cache_dir"`

	// SwisstopoBaseURL points at the swisstopo asset search API.
	SwisstopoBaseURL string `koanf:"swisstopo_base_url"`

	// HistogramBins sets the number of buckets in the height histogram.
	HistogramBins int `koanf:"histogram_bins"`

	// MaxBuildingLimit caps GET /jobs/{id}/buildings?limit.
	MaxBuildingLimit int `koanf:"max_building_limit"`

	// DownloadTimeoutSec bounds a single tile download.
	DownloadTimeoutSec int `koanf:"download_timeout_sec"`

	// Ogr2ogrPath locates the GDAL ogr2ogr binary for DXF conversion.
	Ogr2ogrPath string `koanf:"ogr2ogr_path"`

	// DefaultLanguage selects the fallback language for user-facing
	// messages: "de" or "en".
	DefaultLanguage string `koanf:"default_language"`
}

// New creates a Config populated with defaults.
func New() *Config {
	c := &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		JobQueueSize:       1024,
		WorkerCount:        runtime.NumCPU(),
		DedupeSize:         10_000,
		MaxAreaM2:          50_000,
		CacheDir:           "downloads",
		SwisstopoBaseURL:   "https://ogd.swisstopo.admin.ch/services/swiseld/services/assets",
		HistogramBins:      50,
		MaxBuildingLimit:   500,
		DownloadTimeoutSec: 120,
		Ogr2ogrPath:        "ogr2ogr",
		DefaultLanguage:    "de",
	}
	return c
}
