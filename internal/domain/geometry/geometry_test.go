package geometry_test

import (
	"math"
	"testing"

	geometry "github.com/dachtraufe/traufe/internal/domain/geometry"
	"github.com/paulmach/orb"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLV95Transform(t *testing.T) {
	Convey("Given the swisstopo reference point (old observatory Bern)", t, func() {
		// lambda = 7deg 26' 19.08", phi = 46deg 57' 03.90"
		bern := orb.Point{7.438633, 46.951083}

		Convey("When projecting to LV95", func() {
			p := geometry.WGS84ToLV95(bern)

			Convey("Then it should land on the LV95 origin within a meter", func() {
				So(math.Abs(p[0]-2600000), ShouldBeLessThan, 1.5)
				So(math.Abs(p[1]-1200000), ShouldBeLessThan, 1.5)
			})
		})

		Convey("When roundtripping through LV95", func() {
			back := geometry.LV95ToWGS84(geometry.WGS84ToLV95(bern))

			Convey("Then the error should be below ~1e-4 degrees", func() {
				So(math.Abs(back[0]-bern[0]), ShouldBeLessThan, 1e-4)
				So(math.Abs(back[1]-bern[1]), ShouldBeLessThan, 1e-4)
			})
		})
	})

	Convey("Given a WGS84 ring near Zurich", t, func() {
		ring := orb.Ring{
			{8.647624, 47.290619},
			{8.649223, 47.290604},
			{8.649298, 47.290459},
			{8.647828, 47.290379},
			{8.647624, 47.290619},
		}

		Convey("When projecting to LV95", func() {
			lv := geometry.RingToLV95(ring)

			Convey("Then all eastings/northings are in the Swiss range", func() {
				for _, p := range lv {
					So(p[0], ShouldBeBetween, 2480000.0, 2840000.0)
					So(p[1], ShouldBeBetween, 1070000.0, 1300000.0)
				}
			})

			Convey("Then the planar area is plausible for the drawn polygon", func() {
				a := geometry.Area(lv)
				So(a, ShouldBeGreaterThan, 1000.0)
				So(a, ShouldBeLessThan, 50000.0)
			})
		})
	})
}

func TestRingHelpers(t *testing.T) {
	Convey("Given an open ring", t, func() {
		ring := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}}

		Convey("When closing it", func() {
			closed := geometry.CloseRing(ring)

			Convey("Then first and last vertex match", func() {
				So(closed[0], ShouldResemble, closed[len(closed)-1])
				So(len(closed), ShouldEqual, 5)
			})

			Convey("And closing again is a no-op", func() {
				So(len(geometry.CloseRing(closed)), ShouldEqual, 5)
			})
		})
	})

	Convey("Given a square selection ring", t, func() {
		outer := orb.Ring{{0, 0}, {100, 0}, {100, 100}, {0, 100}, {0, 0}}

		Convey("Then containment works for interior and exterior points", func() {
			So(geometry.Contains(outer, orb.Point{50, 50}), ShouldBeTrue)
			So(geometry.Contains(outer, orb.Point{150, 50}), ShouldBeFalse)
		})

		Convey("Then RingWithin accepts fully contained rings", func() {
			inner := orb.Ring{{10, 10}, {20, 10}, {20, 20}, {10, 20}, {10, 10}}
			So(geometry.RingWithin(inner, outer), ShouldBeTrue)
		})

		Convey("Then RingWithin rejects rings with any vertex outside", func() {
			crossing := orb.Ring{{90, 90}, {110, 90}, {110, 110}, {90, 110}, {90, 90}}
			So(geometry.RingWithin(crossing, outer), ShouldBeFalse)
		})

		Convey("Then bounding boxes are a working prefilter", func() {
			far := orb.Ring{{500, 500}, {510, 500}, {510, 510}, {500, 510}, {500, 500}}
			So(geometry.BoundsOverlap(outer.Bound(), far.Bound()), ShouldBeFalse)
			near := orb.Ring{{90, 90}, {110, 90}, {110, 110}, {90, 110}, {90, 90}}
			So(geometry.BoundsOverlap(outer.Bound(), near.Bound()), ShouldBeTrue)
		})
	})
}
