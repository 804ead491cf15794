// Package export renders analysis results into downloadable formats:
// KML for map viewers and PLY for mesh tooling.
package export

import (
	"fmt"
	"io"

	kml "github.com/twpayne/go-kml/v3"

	"github.com/dachtraufe/traufe/internal/domain/model"
)

// KML writes the buildings of a job as a KML document. Each building
// becomes a placemark whose footprint ring floats at the eave height,
// so viewers show the traced eave line over the terrain.
func KML(w io.Writer, docName string, buildings []model.Building) error {
	placemarks := make([]kml.Element, 0, len(buildings)+1)
	placemarks = append(placemarks, kml.Name(docName))

	for i := range buildings {
		b := &buildings[i]
		if len(b.Footprint) == 0 {
			continue
		}

		ring := b.Footprint[0]
		coords := make([]kml.Coordinate, 0, len(ring))
		for _, pt := range ring {
			coords = append(coords, kml.Coordinate{Lon: pt[0], Lat: pt[1], Alt: b.EaveHeight})
		}

		placemarks = append(placemarks, kml.Placemark(
			kml.Name(b.ID),
			kml.Description(fmt.Sprintf(
				"Traufenhöhe: %.2f m ü. M. (%.2f m über Boden)",
				b.EaveHeight, b.HeightAboveGround,
			)),
			kml.Polygon(
				kml.AltitudeMode(kml.AltitudeModeAbsolute),
				kml.OuterBoundaryIs(
					kml.LinearRing(
						kml.Coordinates(coords...),
					),
				),
			),
		))
	}

	doc := kml.KML(kml.Document(placemarks...))
	return doc.Write(w)
}
