package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// CloseRing appends the first vertex if the ring is not closed.
func CloseRing(ring orb.Ring) orb.Ring {
	if len(ring) < 3 {
		return ring
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

// Area returns the absolute planar area of a ring. Meaningful only in a
// projected frame such as LV95.
func Area(ring orb.Ring) float64 {
	return math.Abs(planar.Area(ring))
}

// Contains reports whether a point lies inside the ring.
func Contains(ring orb.Ring, p orb.Point) bool {
	return planar.RingContains(ring, p)
}

// RingWithin reports whether every vertex of inner lies inside outer.
// This mirrors the source-data semantics: buildings reaching over the
// selection boundary are rejected entirely.
func RingWithin(inner orb.Ring, outer orb.Ring) bool {
	for _, p := range inner {
		if !planar.RingContains(outer, p) {
			return false
		}
	}
	return true
}

// BoundsOverlap reports whether two bounding boxes intersect. Used as a
// cheap prefilter before the exact containment test.
func BoundsOverlap(a, b orb.Bound) bool {
	return a.Intersects(b)
}

// Centroid returns the area-weighted centroid of a polygon.
func Centroid(poly orb.Polygon) orb.Point {
	c, _ := planar.CentroidArea(poly)
	return c
}
