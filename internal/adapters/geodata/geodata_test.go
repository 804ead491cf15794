package geodata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	shp "github.com/jonas-p/go-shp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/dachtraufe/traufe/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

func TestPartsToRings(t *testing.T) {
	Convey("Given a PolygonZ with two parts", t, func() {
		poly := &shp.PolygonZ{
			NumParts:  2,
			NumPoints: 8,
			Parts:     []int32{0, 4},
			Points: []shp.Point{
				{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 0},
				{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 0},
			},
			ZArray: []float64{400, 400, 410, 400, 400, 400, 412, 400},
		}

		Convey("When split into rings", func() {
			rings := partsToRings(poly)

			Convey("Then each part becomes one 3D ring", func() {
				So(len(rings), ShouldEqual, 2)
				So(len(rings[0]), ShouldEqual, 4)
				So(rings[0][2], ShouldResemble, [3]float64{1, 1, 410})
				So(rings[1][2], ShouldResemble, [3]float64{2, 2, 412})
			})
		})
	})

	Convey("Given a part with fewer than three points", t, func() {
		poly := &shp.PolygonZ{
			NumParts:  1,
			NumPoints: 2,
			Parts:     []int32{0},
			Points:    []shp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}},
			ZArray:    []float64{400, 401},
		}

		Convey("Then it is dropped", func() {
			So(len(partsToRings(poly)), ShouldEqual, 0)
		})
	})
}

func TestNormalizeTileName(t *testing.T) {
	Convey("Given published swissALTI3D asset names", t, func() {
		Convey("Then the year and publication code are stripped", func() {
			name, err := NormalizeTileName("swissalti3d_2019_2600-1200_0.5_2056_5728.tif")
			So(err, ShouldBeNil)
			So(name, ShouldEqual, "swissalti3d_2600-1200.tif")
		})

		Convey("Then an already normalized name maps to itself", func() {
			name, err := NormalizeTileName("swissalti3d_2600-1200.tif")
			So(err, ShouldBeNil)
			So(name, ShouldEqual, "swissalti3d_2600-1200.tif")
		})

		Convey("Then a name without a tile coordinate is rejected", func() {
			_, err := NormalizeTileName("random.tif")
			So(errors.Is(err, ErrRead), ShouldBeTrue)
		})
	})
}

func TestTerrainAdd(t *testing.T) {
	Convey("Given a terrain directory", t, func() {
		dir := t.TempDir()
		terrain, err := NewTerrain(dir)
		So(err, ShouldBeNil)

		src := filepath.Join(t.TempDir(), "swissalti3d_2019_2600-1200_0.5_2056_5728.tif")
		So(os.WriteFile(src, []byte("tiff-bytes"), 0o644), ShouldBeNil)

		Convey("When adding a downloaded tile", func() {
			dest, err := terrain.Add(src)

			Convey("Then it lands under the normalized name", func() {
				So(err, ShouldBeNil)
				So(dest, ShouldEqual, filepath.Join(dir, "swissalti3d_2600-1200.tif"))

				data, err := os.ReadFile(dest)
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, "tiff-bytes")
			})

			Convey("Then adding the same tile again is a no-op", func() {
				again, err := terrain.Add(src)
				So(err, ShouldBeNil)
				So(again, ShouldEqual, dest)
			})
		})
	})
}

func TestConverter(t *testing.T) {
	ctx := context.Background()

	Convey("Given a converter whose binary does not exist", t, func() {
		conv := NewConverter(WithBinary("definitely-not-ogr2ogr"))

		Convey("Then Available reports the missing binary", func() {
			err := conv.Available()
			So(errors.Is(err, ErrConvert), ShouldBeTrue)
		})
	})

	Convey("Given a DXF whose shapefile already exists", t, func() {
		dir := t.TempDir()
		dxf := filepath.Join(dir, "tile.dxf")
		shpPath := filepath.Join(dir, "tile.shp")
		So(os.WriteFile(dxf, []byte("0\nSECTION\n"), 0o644), ShouldBeNil)
		So(os.WriteFile(shpPath, []byte("existing"), 0o644), ShouldBeNil)

		conv := NewConverter(WithBinary("definitely-not-ogr2ogr"))

		Convey("When converting", func() {
			out, err := conv.DXFToShapefile(ctx, dxf)

			Convey("Then the conversion is skipped and the cached path returned", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, shpPath)
			})
		})
	})
}
