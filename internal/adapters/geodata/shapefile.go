package geodata

import (
	"fmt"
	"os"
	"strings"

	shp "github.com/jonas-p/go-shp"

	"github.com/dachtraufe/traufe/internal/domain/roof"
)

// Feature is one record from a converted building tile. A single
// building feature carries many polygons (walls, roof faces, footprint)
// sharing one entity handle.
type Feature struct {
	Handle string
	Layer  string
	Rings  []roof.Ring3
}

// ReadFeatures reads all polygon records from a shapefile produced by
// DXF conversion. MultiPatch geometry ends up as PolygonZ records whose
// parts are the individual faces.
func ReadFeatures(path string) ([]Feature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrRead, path, err)
	}
	defer func() { _ = reader.Close() }()

	handleField, layerField := fieldIndexes(reader.Fields())

	var features []Feature
	for row := 0; reader.Next(); row++ {
		_, shape := reader.Shape()

		poly, ok := shape.(*shp.PolygonZ)
		if !ok {
			continue
		}

		f := Feature{Rings: partsToRings(poly)}
		if handleField >= 0 {
			f.Handle = strings.TrimSpace(reader.Attribute(row, handleField))
		}
		if layerField >= 0 {
			f.Layer = strings.TrimSpace(reader.Attribute(row, layerField))
		}
		if f.Handle == "" {
			f.Handle = fmt.Sprintf("building_%d", row)
		}
		if f.Layer == "" {
			f.Layer = "unknown"
		}
		features = append(features, f)
	}
	return features, nil
}

// partsToRings splits a PolygonZ into one closed 3D ring per part.
func partsToRings(poly *shp.PolygonZ) []roof.Ring3 {
	n := int(poly.NumParts)
	rings := make([]roof.Ring3, 0, n)
	for p := 0; p < n; p++ {
		start := int(poly.Parts[p])
		end := int(poly.NumPoints)
		if p+1 < n {
			end = int(poly.Parts[p+1])
		}
		if end-start < 3 {
			continue
		}

		ring := make(roof.Ring3, 0, end-start)
		for i := start; i < end; i++ {
			ring = append(ring, [3]float64{poly.Points[i].X, poly.Points[i].Y, poly.ZArray[i]})
		}
		rings = append(rings, ring)
	}
	return rings
}

// fieldIndexes locates the EntityHand and Layer DBF columns. DBF field
// names are fixed width and padded, so matching goes through the
// trimmed name.
func fieldIndexes(fields []shp.Field) (handle, layer int) {
	handle, layer = -1, -1
	for i, f := range fields {
		switch strings.TrimRight(f.String(), "\x00 ") {
		case "EntityHand":
			handle = i
		case "Layer":
			layer = i
		}
	}
	return handle, layer
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
