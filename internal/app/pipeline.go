package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"

	"github.com/dachtraufe/traufe/internal/adapters/geodata"
	"github.com/dachtraufe/traufe/internal/adapters/repository"
	"github.com/dachtraufe/traufe/internal/adapters/swisstopo"
	"github.com/dachtraufe/traufe/internal/domain/geometry"
	"github.com/dachtraufe/traufe/internal/domain/model"
	"github.com/dachtraufe/traufe/internal/domain/roof"
	"github.com/dachtraufe/traufe/pkg/logger"
	"github.com/dachtraufe/traufe/pkg/metrics"
)

// Pipeline runs one analysis job end to end: locate the swisstopo
// tiles covering the selection, download and convert them, filter the
// buildings against the drawn area, compute eave heights and store the
// results.
type Pipeline struct {
	client     *swisstopo.Client
	downloader *swisstopo.Downloader
	converter  *geodata.Converter
	terrain    *geodata.Terrain
	analyzer   *roof.Analyzer
	buildings  repository.BuildingStore

	histogramBins int
	logger        logger.Logger
}

// NewPipeline wires the pipeline stages together.
func NewPipeline(
	client *swisstopo.Client,
	downloader *swisstopo.Downloader,
	converter *geodata.Converter,
	terrain *geodata.Terrain,
	analyzer *roof.Analyzer,
	buildings repository.BuildingStore,
	histogramBins int,
) *Pipeline {
	if histogramBins < 1 {
		histogramBins = roof.DefaultHistogramBins
	}
	return &Pipeline{
		client:        client,
		downloader:    downloader,
		converter:     converter,
		terrain:       terrain,
		analyzer:      analyzer,
		buildings:     buildings,
		histogramBins: histogramBins,
		logger:        logger.Named("pipeline"),
	}
}

// Process implements worker.Processor.
func (p *Pipeline) Process(ctx context.Context, job model.Job) (*model.Summary, error) {
	sel := job.Selection
	bound := sel.Bound()

	tiles, err := p.prepareTerrain(ctx, bound)
	if err != nil {
		return nil, err
	}

	assets, err := p.client.SearchBuildings(ctx, bound)
	if err != nil {
		return nil, fmt.Errorf("locate building tiles: %w", err)
	}

	var stored []model.Building
	var meshZ []float64
	skipped := 0

	for _, asset := range assets {
		features, err := p.loadTile(ctx, asset)
		if err != nil {
			return nil, err
		}
		tiles++

		for _, f := range features {
			b, keep := p.analyzeFeature(ctx, job.ID, sel, f)
			if !keep {
				skipped++
				metrics.RecordBuildingSkipped()
				continue
			}

			if _, err := p.buildings.Put(ctx, b); err != nil {
				metrics.RecordStoreError()
				return nil, fmt.Errorf("store building %s: %w", b.ID, err)
			}
			metrics.RecordBuildingFound()

			stored = append(stored, b)
			for _, v := range b.Mesh.Vertices {
				meshZ = append(meshZ, v[2])
			}
		}
	}

	p.logger.Info(ctx, "analysis finished",
		logger.String("jobID", job.ID),
		logger.Int("buildings", len(stored)),
		logger.Int("skipped", skipped),
		logger.Int("tiles", tiles),
	)

	return roof.Summarize(stored, meshZ, skipped, tiles, p.histogramBins), nil
}

// prepareTerrain downloads the elevation tiles covering the selection
// into the terrain cache. A selection without elevation coverage is not
// fatal: heights above ground simply stay unknown.
func (p *Pipeline) prepareTerrain(ctx context.Context, bound orb.Bound) (int, error) {
	assets, err := p.client.SearchDEM(ctx, bound)
	if err != nil {
		if errors.Is(err, swisstopo.ErrNoAssets) {
			p.logger.Warn(ctx, "no elevation tiles for selection")
			return 0, nil
		}
		return 0, fmt.Errorf("locate elevation tiles: %w", err)
	}

	tiles := 0
	for _, asset := range assets {
		path, _, err := p.downloader.Fetch(ctx, asset, "dem")
		if err != nil {
			return tiles, fmt.Errorf("fetch elevation tile: %w", err)
		}
		if _, err := p.terrain.Add(path); err != nil {
			p.logger.Warn(ctx, "unusable elevation tile",
				logger.String("file", path),
				logger.Error(err),
			)
			continue
		}
		tiles++
	}
	return tiles, nil
}

// loadTile fetches one building tile, converts it and reads its
// features.
func (p *Pipeline) loadTile(ctx context.Context, asset swisstopo.Asset) ([]geodata.Feature, error) {
	archive, _, err := p.downloader.Fetch(ctx, asset, "buildings")
	if err != nil {
		return nil, fmt.Errorf("fetch building tile: %w", err)
	}

	files, err := swisstopo.Unzip(archive)
	if err != nil {
		return nil, fmt.Errorf("extract building tile: %w", err)
	}

	dxf := ""
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ".dxf") {
			dxf = f
			break
		}
	}
	if dxf == "" {
		return nil, fmt.Errorf("no DXF in building tile %s", archive)
	}

	shpPath, err := p.converter.DXFToShapefile(ctx, dxf)
	if err != nil {
		return nil, err
	}

	features, err := geodata.ReadFeatures(shpPath)
	if err != nil {
		return nil, err
	}
	return features, nil
}

// analyzeFeature filters one building feature against the selection
// and computes its eave height. keep is false when the feature falls
// outside the drawn area or carries no usable roof geometry.
func (p *Pipeline) analyzeFeature(ctx context.Context, jobID string, sel model.Selection, f geodata.Feature) (model.Building, bool) {
	featureBound, ok := ringsBound(f.Rings)
	if !ok || !geometry.BoundsOverlap(featureBound, sel.Bound()) {
		return model.Building{}, false
	}

	// A building partially outside the selection is dropped entirely:
	// a clipped mesh would fake an eave line along the cut.
	for _, ring := range f.Rings {
		if !geometry.RingWithin(flatten(ring), sel.LV95) {
			return model.Building{}, false
		}
	}

	mesh := p.analyzer.BuildMesh(f.Rings)
	eave, ok := roof.EaveHeight(mesh)
	if !ok {
		return model.Building{}, false
	}

	b := model.Building{
		ID:         f.Handle,
		JobID:      jobID,
		Layer:      f.Layer,
		EaveHeight: eave,
		Mesh:       mesh,
	}

	if foot, ok := p.analyzer.FootprintRing(f.Rings); ok {
		footLV95 := geometry.CloseRing(flatten(foot))
		b.Footprint = orb.Polygon{geometry.RingToWGS84(footLV95)}
		b.Centroid = geometry.LV95ToWGS84(geometry.Centroid(orb.Polygon{footLV95}))

		ground, err := p.terrain.ElevationWGS84(b.Centroid[0], b.Centroid[1])
		if err != nil {
			p.logger.Debug(ctx, "no ground elevation for building",
				logger.String("building", b.ID),
				logger.Error(err),
			)
		} else {
			b.GroundElevation = ground
			b.HeightAboveGround = eave - ground
		}
	}

	return b, true
}

// flatten projects a 3D ring onto the horizontal plane.
func flatten(ring roof.Ring3) orb.Ring {
	out := make(orb.Ring, 0, len(ring))
	for _, pt := range ring {
		out = append(out, orb.Point{pt[0], pt[1]})
	}
	return out
}

// ringsBound computes the 2D bounding box over all rings of a feature.
func ringsBound(rings []roof.Ring3) (orb.Bound, bool) {
	var bound orb.Bound
	found := false
	for _, ring := range rings {
		for _, pt := range ring {
			p := orb.Point{pt[0], pt[1]}
			if !found {
				bound = orb.Bound{Min: p, Max: p}
				found = true
				continue
			}
			bound = bound.Extend(p)
		}
	}
	return bound, found
}
