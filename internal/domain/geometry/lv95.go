// Package geometry provides coordinate transforms and planar helpers for
// the Swiss LV95 (EPSG:2056) reference frame.
package geometry

import "github.com/paulmach/orb"

// Swisstopo approximate transformation between WGS84 and LV95.
// Accuracy is around 1 meter, which is sufficient for selecting tiles
// and testing building containment against a hand-drawn polygon.

// WGS84ToLV95 converts a lon/lat point to LV95 easting/northing.
func WGS84ToLV95(p orb.Point) orb.Point {
	// Convert degrees to sexagesimal seconds, then to the auxiliary values.
	phi := (p[1]*3600 - 169028.66) / 10000
	lam := (p[0]*3600 - 26782.5) / 10000

	phi2 := phi * phi
	lam2 := lam * lam

	e := 2600072.37 +
		211455.93*lam -
		10938.51*lam*phi -
		0.36*lam*phi2 -
		44.54*lam*lam2

	n := 1200147.07 +
		308807.95*phi +
		3745.25*lam2 +
		76.63*phi2 -
		194.56*lam2*phi +
		119.79*phi*phi2

	return orb.Point{e, n}
}

// LV95ToWGS84 converts an LV95 easting/northing point to lon/lat.
func LV95ToWGS84(p orb.Point) orb.Point {
	y := (p[0] - 2600000) / 1000000
	x := (p[1] - 1200000) / 1000000

	y2 := y * y
	x2 := x * x

	lam := 2.6779094 +
		4.728982*y +
		0.791484*y*x +
		0.1306*y*x2 -
		0.0436*y*y2

	phi := 16.9023892 +
		3.238272*x -
		0.270978*y2 -
		0.002528*x2 -
		0.0447*y2*x -
		0.0140*x*x2

	// Auxiliary values are in units of 10000 sexagesimal seconds.
	return orb.Point{lam * 100 / 36, phi * 100 / 36}
}

// RingToLV95 projects every vertex of a WGS84 ring to LV95.
func RingToLV95(ring orb.Ring) orb.Ring {
	out := make(orb.Ring, len(ring))
	for i, p := range ring {
		out[i] = WGS84ToLV95(p)
	}
	return out
}

// RingToWGS84 projects every vertex of an LV95 ring to WGS84.
func RingToWGS84(ring orb.Ring) orb.Ring {
	out := make(orb.Ring, len(ring))
	for i, p := range ring {
		out[i] = LV95ToWGS84(p)
	}
	return out
}
