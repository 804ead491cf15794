package service

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/dachtraufe/traufe/internal/adapters/geodata"
	"github.com/dachtraufe/traufe/internal/domain/model"
	"github.com/dachtraufe/traufe/internal/domain/roof"
	"github.com/dachtraufe/traufe/pkg/logger"
)

// boxFeature is a flat-roofed box near Bern in LV95: a ground face at
// base and a roof face at base+height.
func boxFeature(e, n, size, base, height float64) geodata.Feature {
	ground := roof.Ring3{
		{e, n, base},
		{e + size, n, base},
		{e + size, n + size, base},
		{e, n + size, base},
		{e, n, base},
	}
	top := roof.Ring3{
		{e, n, base + height},
		{e + size, n, base + height},
		{e + size, n + size, base + height},
		{e, n + size, base + height},
		{e, n, base + height},
	}
	return geodata.Feature{Handle: "B1", Layer: "Building", Rings: []roof.Ring3{ground, top}}
}

func lv95Square(e, n, size float64) orb.Ring {
	return orb.Ring{
		{e, n},
		{e + size, n},
		{e + size, n + size},
		{e, n + size},
		{e, n},
	}
}

func TestAnalyzeFeature(t *testing.T) {
	Convey("Given a pipeline with an empty terrain cache", t, func() {
		terrain, err := geodata.NewTerrain(t.TempDir())
		So(err, ShouldBeNil)

		p := &Pipeline{
			terrain:  terrain,
			analyzer: roof.NewAnalyzer(),
			logger:   logger.Named("test"),
		}
		ctx := context.Background()

		sel := model.Selection{LV95: lv95Square(2599990, 1198990, 40)}

		Convey("When analyzing a building fully inside the selection", func() {
			b, keep := p.analyzeFeature(ctx, "job-1", sel, boxFeature(2600000, 1199000, 10, 540, 8))

			Convey("Then it is kept with the roof minimum as eave height", func() {
				So(keep, ShouldBeTrue)
				So(b.ID, ShouldEqual, "B1")
				So(b.EaveHeight, ShouldEqual, 548)
			})

			Convey("Then footprint and centroid are projected to lon/lat", func() {
				So(keep, ShouldBeTrue)
				So(b.Centroid[0], ShouldBeBetween, 5, 11)
				So(b.Centroid[1], ShouldBeBetween, 45, 48)
				So(len(b.Footprint), ShouldEqual, 1)
				for _, pt := range b.Footprint[0] {
					So(pt[0], ShouldBeBetween, 5, 11)
					So(pt[1], ShouldBeBetween, 45, 48)
				}
			})

			Convey("Then without elevation tiles no ground height is reported", func() {
				So(keep, ShouldBeTrue)
				So(b.GroundElevation, ShouldEqual, 0)
				So(b.HeightAboveGround, ShouldEqual, 0)
			})
		})

		Convey("When a building sticks out of the selection", func() {
			_, keep := p.analyzeFeature(ctx, "job-1", sel, boxFeature(2600020, 1199020, 15, 540, 8))

			Convey("Then it is dropped entirely", func() {
				So(keep, ShouldBeFalse)
			})
		})

		Convey("When a building is far outside the selection bounds", func() {
			_, keep := p.analyzeFeature(ctx, "job-1", sel, boxFeature(2700000, 1250000, 10, 540, 8))

			Convey("Then the bbox prefilter drops it", func() {
				So(keep, ShouldBeFalse)
			})
		})
	})
}
