// Command fetch-tiles pre-populates the tile cache for an LV95 bounding
// box. Useful before a demo or on hosts without reliable connectivity:
//
//	fetch-tiles -min-e 2600000 -min-n 1199000 -max-e 2601000 -max-n 1200000 -dir downloads
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/paulmach/orb"

	"github.com/dachtraufe/traufe/internal/adapters/swisstopo"
	"github.com/dachtraufe/traufe/pkg/logger"
)

const defaultTimeout = 5 * time.Minute

func main() {
	var (
		minE    = flag.Float64("min-e", 0, "Minimum easting (LV95)")
		minN    = flag.Float64("min-n", 0, "Minimum northing (LV95)")
		maxE    = flag.Float64("max-e", 0, "Maximum easting (LV95)")
		maxN    = flag.Float64("max-n", 0, "Maximum northing (LV95)")
		dir     = flag.String("dir", "downloads", "Tile cache directory")
		baseURL = flag.String("url", "", "Override the swisstopo asset search URL")
		timeout = flag.Duration("timeout", defaultTimeout, "Overall timeout")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get().Named("fetch-tiles")

	if *maxE <= *minE || *maxN <= *minN {
		os.Stderr.WriteString("bounding box is empty; set -min-e/-min-n/-max-e/-max-n\n")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	opts := []swisstopo.Option{}
	if *baseURL != "" {
		opts = append(opts, swisstopo.WithBaseURL(*baseURL))
	}
	client := swisstopo.NewClient(opts...)
	downloader := swisstopo.NewDownloader(client, *dir)

	bound := orb.Bound{
		Min: orb.Point{*minE, *minN},
		Max: orb.Point{*maxE, *maxN},
	}

	if err := fetchAll(ctx, client, downloader, bound, log); err != nil {
		os.Stderr.WriteString("fetch failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func fetchAll(ctx context.Context, client *swisstopo.Client, downloader *swisstopo.Downloader, bound orb.Bound, log logger.Logger) error {
	buildings, err := client.SearchBuildings(ctx, bound)
	if err != nil && !errors.Is(err, swisstopo.ErrNoAssets) {
		return err
	}
	dems, err := client.SearchDEM(ctx, bound)
	if err != nil && !errors.Is(err, swisstopo.ErrNoAssets) {
		return err
	}

	log.Info(ctx, "assets found",
		logger.Int("buildings", len(buildings)),
		logger.Int("dem", len(dems)))

	fetched, cached := 0, 0
	for _, asset := range buildings {
		path, hit, err := downloader.Fetch(ctx, asset, "buildings")
		if err != nil {
			return err
		}
		if hit {
			cached++
		} else {
			fetched++
		}
		log.Debug(ctx, "building tile ready", logger.String("path", path), logger.Bool("cached", hit))
	}
	for _, asset := range dems {
		path, hit, err := downloader.Fetch(ctx, asset, "dem")
		if err != nil {
			return err
		}
		if hit {
			cached++
		} else {
			fetched++
		}
		log.Debug(ctx, "dem tile ready", logger.String("path", path), logger.Bool("cached", hit))
	}

	log.Info(ctx, "tile cache ready",
		logger.Int("fetched", fetched),
		logger.Int("cached", cached))
	return nil
}
