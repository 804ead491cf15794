package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	app "github.com/dachtraufe/traufe/internal/app"
	"github.com/dachtraufe/traufe/internal/config"
)

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			// Test with environment variables
			_ = os.Setenv("TRAUFE_ADDR", ":8080")
			_ = os.Setenv("TRAUFE_QUEUE_SIZE", "1000")
			_ = os.Setenv("TRAUFE_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("TRAUFE_ADDR")
				_ = os.Unsetenv("TRAUFE_QUEUE_SIZE")
				_ = os.Unsetenv("TRAUFE_WORKER_COUNT")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.JobQueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with default options", func() {
				svc := app.New()
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And service should be creatable with custom options", func() {
				svc := app.New(
					app.WithWorkerCount(2),
					app.WithQueueSize(64),
					app.WithMaxArea(25_000),
					app.WithDownloadTimeout(30*time.Second),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})
	})
}
