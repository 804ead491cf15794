package model

import "github.com/paulmach/orb"

// Mesh is a simple indexed face set in LV95 coordinates with absolute
// elevations. Faces index into Vertices.
type Mesh struct {
	Vertices [][3]float64
	Faces    [][]int
}

// Merge appends another mesh, re-indexing its faces.
func (m *Mesh) Merge(other Mesh) {
	offset := len(m.Vertices)
	m.Vertices = append(m.Vertices, other.Vertices...)
	for _, f := range other.Faces {
		face := make([]int, len(f))
		for i, idx := range f {
			face[i] = idx + offset
		}
		m.Faces = append(m.Faces, face)
	}
}

// MinZ returns the lowest vertex elevation, or ok=false for an empty mesh.
func (m Mesh) MinZ() (float64, bool) {
	if len(m.Vertices) == 0 {
		return 0, false
	}
	min := m.Vertices[0][2]
	for _, v := range m.Vertices[1:] {
		if v[2] < min {
			min = v[2]
		}
	}
	return min, true
}

// Building is one analyzed building inside a selection.
type Building struct {
	ID                string      `json:"id"`
	JobID             string      `json:"job_id"`
	Layer             string      `json:"layer"`
	EaveHeight        float64     `json:"eave_height_m"`       // m a.s.l.
	GroundElevation   float64     `json:"ground_elevation_m"`  // DEM at centroid, m a.s.l.
	HeightAboveGround float64     `json:"height_above_ground_m"`
	Centroid          orb.Point   `json:"-"` // WGS84 lon/lat
	Footprint         orb.Polygon `json:"-"` // WGS84, 2D
	Mesh              Mesh        `json:"-"`
}
