package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dachtraufe/traufe/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.MaxAreaM2, convey.ShouldEqual, 50_000.0)
				convey.So(cfg.CacheDir, convey.ShouldEqual, "downloads")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("TRAUFE_ADDR", ":8080")
			_ = os.Setenv("TRAUFE_QUEUE_SIZE", "64")
			_ = os.Setenv("TRAUFE_WORKER_COUNT", "2")
			_ = os.Setenv("TRAUFE_MAX_AREA_M2", "25000")
			_ = os.Setenv("TRAUFE_CACHE_DIR", "/tmp/tiles")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.JobQueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
				convey.So(cfg.MaxAreaM2, convey.ShouldEqual, 25000.0)
				convey.So(cfg.CacheDir, convey.ShouldEqual, "/tmp/tiles")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			clearConfigEnvVars()

			dir := t.TempDir()
			path := filepath.Join(dir, "traufe.yaml")
			yaml := "addr: \":7070\"\nhistogram_bins: 25\ndefault_language: en\n"
			convey.So(os.WriteFile(path, []byte(yaml), 0o600), convey.ShouldBeNil)

			_ = os.Setenv("TRAUFE_CONFIG", path)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.HistogramBins, convey.ShouldEqual, 25)
				convey.So(cfg.DefaultLanguage, convey.ShouldEqual, "en")
			})
		})

		convey.Convey("When env vars override the file", func() {
			clearConfigEnvVars()

			dir := t.TempDir()
			path := filepath.Join(dir, "traufe.yaml")
			convey.So(os.WriteFile(path, []byte("addr: \":7070\"\n"), 0o600), convey.ShouldBeNil)

			_ = os.Setenv("TRAUFE_CONFIG", path)
			_ = os.Setenv("TRAUFE_ADDR", ":6060")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then the env var wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
			})
		})

		convey.Convey("When the configured area limit is invalid", func() {
			clearConfigEnvVars()
			_ = os.Setenv("TRAUFE_MAX_AREA_M2", "-5")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, key := range []string{
		"TRAUFE_CONFIG",
		"TRAUFE_ADDR",
		"TRAUFE_QUEUE_SIZE",
		"TRAUFE_WORKER_COUNT",
		"TRAUFE_DEDUPE_SIZE",
		"TRAUFE_MAX_AREA_M2",
		"TRAUFE_CACHE_DIR",
		"TRAUFE_HISTOGRAM_BINS",
		"TRAUFE_DEFAULT_LANGUAGE",
	} {
		_ = os.Unsetenv(key)
	}
}
