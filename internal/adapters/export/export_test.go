package export_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/dachtraufe/traufe/internal/adapters/export"
	"github.com/dachtraufe/traufe/internal/domain/model"
)

func sampleBuildings() []model.Building {
	return []model.Building{
		{
			ID:                "1A2B3C",
			JobID:             "job-1",
			EaveHeight:        431.5,
			HeightAboveGround: 7.2,
			Footprint: orb.Polygon{{
				{7.4380, 46.9510},
				{7.4385, 46.9510},
				{7.4385, 46.9515},
				{7.4380, 46.9510},
			}},
			Mesh: model.Mesh{
				Vertices: [][3]float64{{0, 0, 430}, {10, 0, 430}, {5, 5, 438}},
				Faces:    [][]int{{0, 1, 2}},
			},
		},
		{
			ID:         "4D5E6F",
			JobID:      "job-1",
			EaveHeight: 425.0,
			Mesh: model.Mesh{
				Vertices: [][3]float64{{20, 0, 424}, {30, 0, 424}, {25, 5, 429}},
				Faces:    [][]int{{0, 1, 2}},
			},
		},
	}
}

func TestKML(t *testing.T) {
	Convey("Given buildings with footprints", t, func() {
		buildings := sampleBuildings()

		Convey("When rendered as KML", func() {
			var buf bytes.Buffer
			err := export.KML(&buf, "Traufenanalyse", buildings)

			Convey("Then the document holds one placemark per footprint", func() {
				So(err, ShouldBeNil)

				out := buf.String()
				So(out, ShouldContainSubstring, "<Document>")
				So(out, ShouldContainSubstring, "Traufenanalyse")
				So(strings.Count(out, "<Placemark>"), ShouldEqual, 1)
				So(out, ShouldContainSubstring, "1A2B3C")
				So(out, ShouldContainSubstring, "absolute")
				So(out, ShouldContainSubstring, "431.5")
			})

			Convey("Then buildings without a footprint are skipped", func() {
				So(buf.String(), ShouldNotContainSubstring, "4D5E6F")
			})
		})
	})

	Convey("Given no buildings", t, func() {
		var buf bytes.Buffer

		Convey("Then an empty document still renders", func() {
			So(export.KML(&buf, "leer", nil), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, "<Document>")
		})
	})
}

func TestPLY(t *testing.T) {
	Convey("Given buildings with meshes", t, func() {
		buildings := sampleBuildings()

		Convey("When rendered as PLY", func() {
			var buf bytes.Buffer
			err := export.PLY(&buf, buildings)

			Convey("Then header and body agree on counts", func() {
				So(err, ShouldBeNil)

				out := buf.String()
				So(out, ShouldStartWith, "ply\n")
				So(out, ShouldContainSubstring, "element vertex 6")
				So(out, ShouldContainSubstring, "element face 2")
				So(out, ShouldContainSubstring, "end_header")
			})

			Convey("Then faces reference re-indexed vertices", func() {
				lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
				last := lines[len(lines)-1]
				So(last, ShouldEqual, "3 3 4 5")
			})
		})
	})

	Convey("Given no buildings", t, func() {
		var buf bytes.Buffer

		Convey("Then an empty mesh renders a valid header", func() {
			So(export.PLY(&buf, nil), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, "element vertex 0")
			So(buf.String(), ShouldContainSubstring, "element face 0")
		})
	})

	Convey("Given a face larger than the uchar list size", t, func() {
		vertices := make([][3]float64, 300)
		wide := make([]int, 300)
		for i := range wide {
			vertices[i] = [3]float64{float64(i), 0, 430}
			wide[i] = i
		}
		buildings := []model.Building{{
			ID:    "WIDE",
			JobID: "job-1",
			Mesh: model.Mesh{
				Vertices: vertices,
				Faces:    [][]int{wide, {0, 1, 2}},
			},
		}}

		Convey("When rendered as PLY", func() {
			var buf bytes.Buffer
			So(export.PLY(&buf, buildings), ShouldBeNil)

			Convey("Then the oversized face is dropped from header and body", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "element face 1")
				So(out, ShouldNotContainSubstring, "\n300 ")
				So(strings.TrimSpace(out), ShouldEndWith, "3 0 1 2")
			})
		})
	})
}
