// Package roof computes eave heights ("Traufenhoehen") from 3D building
// geometry.
//
// Source features arrive as sets of 3D polygons (roof faces, walls and
// ground footprints mixed together). The analyzer drops faces that cannot
// belong to the roof line and takes the lowest remaining vertex as the
// eave height.
package roof

import (
	"math"

	"github.com/dachtraufe/traufe/internal/domain/model"
)

// Default filter thresholds, matching the swissBUILDINGS3D source data
// characteristics.
const (
	defaultWallNormalZMax  = 0.1  // |nz| below this marks a vertical wall
	defaultFlatNormalZMin  = 0.95 // |nz| above this marks a horizontal face
	defaultGroundTolerance = 0.1  // meters above feature minimum counting as ground
)

// Ring3 is a closed 3D polygon ring (exterior only).
type Ring3 [][3]float64

// Analyzer builds filtered roof meshes from raw feature polygons.
type Analyzer struct {
	wallNormalZMax  float64
	flatNormalZMin  float64
	groundTolerance float64
}

// Option applies a configuration option to the Analyzer.
type Option func(*Analyzer)

// WithWallNormalZMax sets the verticality threshold for wall detection.
func WithWallNormalZMax(v float64) Option {
	return func(a *Analyzer) {
		if v > 0 {
			a.wallNormalZMax = v
		}
	}
}

// WithFlatNormalZMin sets the flatness threshold for footprint detection.
func WithFlatNormalZMin(v float64) Option {
	return func(a *Analyzer) {
		if v > 0 {
			a.flatNormalZMin = v
		}
	}
}

// WithGroundTolerance sets the vertical tolerance for ground faces in meters.
func WithGroundTolerance(v float64) Option {
	return func(a *Analyzer) {
		if v > 0 {
			a.groundTolerance = v
		}
	}
}

// NewAnalyzer creates an Analyzer with default thresholds.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		wallNormalZMax:  defaultWallNormalZMax,
		flatNormalZMin:  defaultFlatNormalZMin,
		groundTolerance: defaultGroundTolerance,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BuildMesh assembles a roof mesh from the feature's polygons, dropping
// vertical walls and ground footprint faces. The returned mesh may be
// empty if every face was filtered.
func (a *Analyzer) BuildMesh(polygons []Ring3) model.Mesh {
	minZ := featureMinZ(polygons)

	var mesh model.Mesh
	for _, poly := range polygons {
		if len(poly) < 3 {
			continue
		}

		n, ok := newellNormal(poly)
		if ok {
			nz := math.Abs(n[2])

			// Vertical walls occasionally appear in the source data.
			if nz < a.wallNormalZMax {
				continue
			}

			// Horizontal faces sitting at the feature minimum are ground
			// footprints, not roof geometry.
			if nz > a.flatNormalZMin && allNearZ(poly, minZ, a.groundTolerance) {
				continue
			}
		}

		offset := len(mesh.Vertices)
		face := make([]int, 0, len(poly))
		for i, pt := range poly {
			mesh.Vertices = append(mesh.Vertices, pt)
			face = append(face, offset+i)
		}
		mesh.Faces = append(mesh.Faces, face)
	}
	return mesh
}

// EaveHeight returns the eave height of a filtered mesh: the lowest
// remaining vertex elevation. ok is false for an empty mesh.
func EaveHeight(mesh model.Mesh) (float64, bool) {
	return mesh.MinZ()
}

// FootprintRing returns the feature's ground footprint: a horizontal
// face whose vertices all sit at the feature minimum. When no face
// qualifies it falls back to the face containing the lowest vertex, so
// callers always get a ring for map overlays. ok is false only for
// features without any usable polygon.
func (a *Analyzer) FootprintRing(polygons []Ring3) (Ring3, bool) {
	minZ := featureMinZ(polygons)

	var fallback Ring3
	for _, poly := range polygons {
		if len(poly) < 3 {
			continue
		}

		if n, ok := newellNormal(poly); ok && math.Abs(n[2]) > a.flatNormalZMin && allNearZ(poly, minZ, a.groundTolerance) {
			return poly, true
		}

		if fallback == nil {
			fallback = poly
		}
		for _, pt := range poly {
			if pt[2] == minZ {
				fallback = poly
				break
			}
		}
	}
	return fallback, fallback != nil
}

// featureMinZ returns the minimum z over all polygon vertices.
func featureMinZ(polygons []Ring3) float64 {
	min := math.Inf(1)
	for _, poly := range polygons {
		for _, pt := range poly {
			if pt[2] < min {
				min = pt[2]
			}
		}
	}
	return min
}

// allNearZ reports whether every vertex z is within tol of ref.
func allNearZ(poly Ring3, ref, tol float64) bool {
	for _, pt := range poly {
		if math.Abs(pt[2]-ref) >= tol {
			return false
		}
	}
	return true
}

// newellNormal computes the unit normal of a 3D polygon using Newell's
// method. ok is false for degenerate polygons.
func newellNormal(poly Ring3) ([3]float64, bool) {
	var n [3]float64
	for i := range poly {
		cur := poly[i]
		next := poly[(i+1)%len(poly)]
		n[0] += (cur[1] - next[1]) * (cur[2] + next[2])
		n[1] += (cur[2] - next[2]) * (cur[0] + next[0])
		n[2] += (cur[0] - next[0]) * (cur[1] + next[1])
	}
	length := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if length == 0 {
		return n, false
	}
	n[0] /= length
	n[1] /= length
	n[2] /= length
	return n, true
}
