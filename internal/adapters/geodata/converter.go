// Package geodata turns raw swisstopo tiles into geometry the analysis
// pipeline can work with. It shells out to ogr2ogr for the DXF to
// shapefile conversion, reads the resulting shapefiles, and answers
// terrain elevation queries against a local GeoTIFF tile cache.
package geodata

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dachtraufe/traufe/pkg/logger"
	"github.com/dachtraufe/traufe/pkg/metrics"
)

// Converter wraps the ogr2ogr command line tool. The swissBUILDINGS3D
// tiles ship as DXF, which no pure Go reader handles well, so the
// conversion goes through GDAL just like the rest of the raster and
// vector tooling in the geo ecosystem.
type Converter struct {
	binary string
	logger logger.Logger
}

// ConverterOption configures a Converter.
type ConverterOption func(*Converter)

// WithBinary overrides the ogr2ogr executable path.
func WithBinary(path string) ConverterOption {
	return func(c *Converter) {
		if path != "" {
			c.binary = path
		}
	}
}

// WithConverterLogger sets the logger used for conversion progress.
func WithConverterLogger(l logger.Logger) ConverterOption {
	return func(c *Converter) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewConverter creates a Converter. By default it expects ogr2ogr on
// PATH.
func NewConverter(opts ...ConverterOption) *Converter {
	c := &Converter{
		binary: "ogr2ogr",
		logger: logger.Named("geodata"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DXFToShapefile converts an extracted DXF tile into an ESRI shapefile
// next to the input and returns the path of the .shp file. The
// conversion is skipped when the output already exists, so cached tiles
// are only converted once.
func (c *Converter) DXFToShapefile(ctx context.Context, dxfPath string) (string, error) {
	shpPath := strings.TrimSuffix(dxfPath, filepath.Ext(dxfPath)) + ".shp"

	if fileExists(shpPath) {
		c.logger.Debug(ctx, "shapefile already converted", logger.String("file", shpPath))
		return shpPath, nil
	}

	start := time.Now()
	if err := c.run(ctx, shpPath, dxfPath); err != nil {
		return "", err
	}
	metrics.RecordTileConvertLatency(float64(time.Since(start).Milliseconds()))

	c.logger.Info(ctx, "converted tile",
		logger.String("input", dxfPath),
		logger.String("output", shpPath),
		logger.Duration("elapsed", time.Since(start)),
	)
	return shpPath, nil
}

// Available reports whether the configured ogr2ogr binary can be found.
// It lets the service fail fast at startup instead of on the first job.
func (c *Converter) Available() error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return fmt.Errorf("%w: %s not found: %v", ErrConvert, c.binary, err)
	}
	return nil
}

func (c *Converter) run(ctx context.Context, dst string, src string, extra ...string) error {
	args := append([]string{"-f", "ESRI Shapefile", dst, src}, extra...)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("%w: %s %s: %s", ErrConvert, c.binary, strings.Join(args, " "), msg)
	}
	return nil
}
