package roof

import (
	"math"

	"github.com/dachtraufe/traufe/internal/domain/model"
)

// DefaultHistogramBins matches the number of buckets shown in the UI.
const DefaultHistogramBins = 50

// Histogram buckets values into equal-width bins over [min, max].
// Returns nil for an empty input. A degenerate range (all values equal)
// yields a single bin containing everything.
func Histogram(values []float64, bins int) []model.HistogramBin {
	if len(values) == 0 {
		return nil
	}
	if bins < 1 {
		bins = DefaultHistogramBins
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	if max == min {
		return []model.HistogramBin{{Lower: min, Upper: max, Count: len(values)}}
	}

	width := (max - min) / float64(bins)
	out := make([]model.HistogramBin, bins)
	for i := range out {
		out[i].Lower = min + float64(i)*width
		out[i].Upper = min + float64(i+1)*width
	}

	for _, v := range values {
		idx := int((v - min) / width)
		if idx >= bins { // v == max lands in the last bin
			idx = bins - 1
		}
		out[idx].Count++
	}
	return out
}

// Summarize builds a job summary from the analyzed buildings and the
// z values of the combined mesh.
func Summarize(buildings []model.Building, meshZ []float64, skipped, tiles, bins int) *model.Summary {
	s := &model.Summary{
		BuildingCount: len(buildings),
		SkippedCount:  skipped,
		TileCount:     tiles,
		Histogram:     Histogram(meshZ, bins),
	}
	if len(buildings) == 0 {
		return s
	}

	s.MinEave = math.Inf(1)
	s.MaxEave = math.Inf(-1)
	var sum float64
	for _, b := range buildings {
		if b.EaveHeight < s.MinEave {
			s.MinEave = b.EaveHeight
		}
		if b.EaveHeight > s.MaxEave {
			s.MaxEave = b.EaveHeight
		}
		sum += b.EaveHeight
	}
	s.MeanEave = sum / float64(len(buildings))
	return s
}
