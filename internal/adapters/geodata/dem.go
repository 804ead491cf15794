package geodata

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	elevation "github.com/twpayne/go-elevation"
)

// lv95SRID is the EPSG code of the Swiss LV95 grid the swissALTI3D
// tiles are published in.
const lv95SRID = 2056

// demResolutionM is the swissALTI3D grid spacing in meters.
const demResolutionM = 0.5

// Terrain answers ground elevation queries against a local directory of
// swissALTI3D GeoTIFF tiles. Downloaded tiles carry the acquisition
// year and a publication code in their names, which a lookup by
// coordinate cannot reconstruct, so Add stores every tile under a
// normalized name keyed only by its 1 km tile coordinate.
type Terrain struct {
	dir string
	ts  *elevation.GeoTIFFTileSet
}

// NewTerrain creates a Terrain over dir, creating the directory when
// missing.
func NewTerrain(dir string) (*Terrain, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create terrain dir: %w", err)
	}

	ts, err := elevation.NewGeoTIFFTileSet(
		elevation.WithFS(os.DirFS(dir)),
		elevation.WithSRID(lv95SRID),
		elevation.WithScale(demResolutionM, demResolutionM),
		elevation.WithTileCoordFunc(func(coord elevation.Coord) (elevation.TileCoord, bool) {
			return elevation.TileCoord{
				C: coord.X / 1000,
				R: coord.Y / 1000,
			}, true
		}),
		elevation.WithTileFilenameFunc(func(tileCoord elevation.TileCoord) string {
			return fmt.Sprintf("swissalti3d_%d-%d.tif", tileCoord.C, tileCoord.R)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create terrain tile set: %w", err)
	}

	return &Terrain{dir: dir, ts: ts}, nil
}

// Add copies a downloaded GeoTIFF into the terrain directory under its
// normalized name and returns that path. Adding the same tile twice is
// a no-op.
func (t *Terrain) Add(srcPath string) (string, error) {
	name, err := NormalizeTileName(filepath.Base(srcPath))
	if err != nil {
		return "", err
	}

	dest := filepath.Join(t.dir, name)
	if fileExists(dest) {
		return dest, nil
	}

	if err := copyFile(srcPath, dest); err != nil {
		return "", fmt.Errorf("add terrain tile: %w", err)
	}
	return dest, nil
}

// NormalizeTileName maps a published swissALTI3D asset name such as
// "swissalti3d_2019_2600-1200_0.5_2056_5728.tif" to the coordinate
// keyed form "swissalti3d_2600-1200.tif".
func NormalizeTileName(name string) (string, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	for _, part := range strings.Split(base, "_") {
		e, n, ok := strings.Cut(part, "-")
		if !ok {
			continue
		}
		if isDigits(e) && isDigits(n) && len(e) == 4 && len(n) == 4 {
			return fmt.Sprintf("swissalti3d_%s-%s.tif", e, n), nil
		}
	}
	return "", fmt.Errorf("%w: no tile coordinate in %q", ErrRead, name)
}

// ElevationsWGS84 returns ground elevations in meters above sea level
// for a batch of lon/lat coordinate pairs.
func (t *Terrain) ElevationsWGS84(coords [][]float64) ([]float64, error) {
	return t.ts.Elevation4326(coords)
}

// ElevationWGS84 returns the ground elevation for a single point.
// Points outside the loaded tiles yield ErrNoElevation.
func (t *Terrain) ElevationWGS84(lon, lat float64) (float64, error) {
	elevs, err := t.ts.Elevation4326([][]float64{{lon, lat}})
	if err != nil {
		return 0, fmt.Errorf("%w: (%f, %f): %v", ErrNoElevation, lon, lat, err)
	}
	if len(elevs) == 0 || math.IsNaN(elevs[0]) {
		return 0, fmt.Errorf("%w: (%f, %f)", ErrNoElevation, lon, lat)
	}
	return elevs[0], nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tile-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
