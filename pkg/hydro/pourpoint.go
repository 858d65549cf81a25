package hydro

import (
	"math"

	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/raster"
)

// DefaultMinAccumulation is the accumulation a snapped outlet must exceed:
// any cell draining more than itself.
const DefaultMinAccumulation = 1

// SnapOptions configures [SnapPourPoint].
type SnapOptions struct {
	// MinAccumulation is the value the chosen cell must strictly exceed.
	// Nil means [DefaultMinAccumulation]; zero accepts any valid cell.
	MinAccumulation *float64
}

func (o SnapOptions) minAccumulation() float64 {
	if o.MinAccumulation == nil {
		return DefaultMinAccumulation
	}
	return *o.MinAccumulation
}

// PourPoint is a watershed outlet.
type PourPoint struct {
	Cell         raster.Cell `json:"cell"`
	Accumulation float64     `json:"accumulation"`
	// Radius is the search radius, in pixels, the outlet was found with.
	Radius int `json:"radius"`
}

// SearchRadius converts a snap distance in CRS units to a pixel radius of
// at least one.
func SearchRadius(snapDistance, pixelWidth float64) int {
	pw := math.Abs(pixelWidth)
	if pw == 0 {
		return 1
	}
	return max(1, int(snapDistance/pw))
}

// SnapPourPoint moves cell onto the highest-accumulation cell of the square
// window of [SearchRadius] pixels around it, clipped to the grid.
//
// The window is scanned in row-major order and only a strictly greater
// value replaces the current best, so the first cell wins ties. When no
// cell exceeds the minimum accumulation the result is a
// *[errors.NoDrainageError].
func SnapPourPoint(acc *AccumulationGrid, cell raster.Cell, snapDistance float64, opts SnapOptions) (PourPoint, error) {
	radius := SearchRadius(snapDistance, acc.Transform[1])
	threshold := opts.minAccumulation()

	r0, r1 := max(0, cell.Row-radius), min(acc.Height-1, cell.Row+radius)
	c0, c1 := max(0, cell.Col-radius), min(acc.Width-1, cell.Col+radius)

	best := PourPoint{Accumulation: math.Inf(-1), Radius: radius}
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			if v := acc.At(row, col); v > best.Accumulation {
				best.Cell = raster.Cell{Row: row, Col: col}
				best.Accumulation = v
			}
		}
	}
	if !(best.Accumulation > threshold) {
		return PourPoint{}, &errors.NoDrainageError{Radius: radius, Distance: snapDistance}
	}
	return best, nil
}
