package viewshed

import (
	"context"
	"math"

	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/raster"
)

// LineOfSight tests every cell by walking the straight profile from the
// observer and comparing elevation angles. Targets are taken at ground
// level.
type LineOfSight struct {
	// MaxDistance limits the analysis radius in CRS units; zero means the
	// whole DEM.
	MaxDistance float64
}

// Name implements VisibilityComputer.
func (LineOfSight) Name() string { return "line-of-sight" }

// ComputeVisibility implements VisibilityComputer.
func (l LineOfSight) ComputeVisibility(ctx context.Context, dem *raster.Raster, obs Observer) (*Grid, error) {
	oc, err := dem.WorldToPixel(obs.Point[0], obs.Point[1])
	if err != nil {
		return nil, err
	}
	oc = dem.Clamp(oc)
	if !dem.Valid(oc.Row, oc.Col) {
		return nil, errors.New(errors.ErrCodeComputation, "observer stands on a nodata cell")
	}

	pw, ph := dem.PixelSize()
	eye := dem.At(oc.Row, oc.Col) + obs.Height
	grid := NewGrid(dem.Width, dem.Height)
	grid.Set(oc.Row, oc.Col)

	for row := 0; row < dem.Height; row++ {
		if row%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for col := 0; col < dem.Width; col++ {
			if !dem.Valid(row, col) || (row == oc.Row && col == oc.Col) {
				continue
			}
			dr, dc := float64(row-oc.Row), float64(col-oc.Col)
			if l.MaxDistance > 0 && math.Hypot(dr*ph, dc*pw) > l.MaxDistance {
				continue
			}
			if visible(dem, oc, row, col, eye, pw, ph) {
				grid.Set(row, col)
			}
		}
	}
	return grid, nil
}

// visible walks the cells between observer and target, one step per
// major-axis cell, and reports whether none rises above the sight line.
func visible(dem *raster.Raster, oc raster.Cell, row, col int, eye, pw, ph float64) bool {
	dr, dc := float64(row-oc.Row), float64(col-oc.Col)
	steps := int(math.Max(math.Abs(dr), math.Abs(dc)))
	target := (dem.At(row, col) - eye) / math.Hypot(dr*ph, dc*pw)

	for s := 1; s < steps; s++ {
		t := float64(s) / float64(steps)
		r := oc.Row + int(math.Round(dr*t))
		c := oc.Col + int(math.Round(dc*t))
		if !dem.Valid(r, c) {
			continue
		}
		d := math.Hypot(dr*t*ph, dc*t*pw)
		if (dem.At(r, c)-eye)/d > target {
			return false
		}
	}
	return true
}
