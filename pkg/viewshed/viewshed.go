// Package viewshed computes which cells of a DEM an observer can see.
//
// The visibility computation itself sits behind [VisibilityComputer], with
// an in-process [LineOfSight] implementation and a [ProcessComputer] that
// delegates to gdal_viewshed. The [Engine] validates the observer position
// before handing off to either.
package viewshed

import (
	"context"
	"io"

	"github.com/bits-and-blooms/bitset"
	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"

	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/raster"
)

// DefaultHeight is the observer eye height above ground in metres.
const DefaultHeight = 1.7

// Grid is a binary visibility grid aligned with the DEM.
type Grid struct {
	Width  int
	Height int
	bits   *bitset.BitSet
}

// NewGrid allocates an all-hidden grid.
func NewGrid(width, height int) *Grid {
	return &Grid{Width: width, Height: height, bits: bitset.New(uint(width * height))}
}

// Dims returns the grid size.
func (g *Grid) Dims() (width, height int) { return g.Width, g.Height }

// Has reports whether (row, col) is visible.
func (g *Grid) Has(row, col int) bool {
	if row < 0 || row >= g.Height || col < 0 || col >= g.Width {
		return false
	}
	return g.bits.Test(uint(row*g.Width + col))
}

// Set marks (row, col) visible.
func (g *Grid) Set(row, col int) { g.bits.Set(uint(row*g.Width + col)) }

// Count returns the number of visible cells.
func (g *Grid) Count() int { return int(g.bits.Count()) }

// Observer places the viewer in the DEM's projected CRS.
type Observer struct {
	Point orb.Point
	// Height is the eye height above the ground in DEM elevation units.
	Height float64
}

// VisibilityComputer computes the visibility grid for an observer that is
// known to lie inside the DEM.
type VisibilityComputer interface {
	Name() string
	ComputeVisibility(ctx context.Context, dem *raster.Raster, obs Observer) (*Grid, error)
}

// Engine checks the observer and runs a [VisibilityComputer].
type Engine struct {
	Computer VisibilityComputer
	Logger   *log.Logger
}

// NewEngine returns an Engine using c.
func NewEngine(c VisibilityComputer) *Engine {
	return &Engine{Computer: c}
}

// Compute returns the cells of dem visible from obs. An observer outside
// the DEM extent fails with [errors.ErrCodeBounds] whatever its height.
func (e *Engine) Compute(ctx context.Context, dem *raster.Raster, obs Observer) (*Grid, error) {
	logger := e.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	b := dem.Bounds()
	if !b.Contains(obs.Point[0], obs.Point[1]) {
		return nil, errors.New(errors.ErrCodeBounds,
			"observer (%.2f, %.2f) is outside the DEM extent %s", obs.Point[0], obs.Point[1], b)
	}
	if e.Computer == nil {
		return nil, errors.New(errors.ErrCodeComputation, "no visibility computer configured")
	}

	grid, err := e.Computer.ComputeVisibility(ctx, dem, obs)
	if err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Wrap(errors.ErrCodeComputation, err, "%s", e.Computer.Name())
		}
		return nil, err
	}
	if grid.Width != dem.Width || grid.Height != dem.Height {
		return nil, errors.New(errors.ErrCodeComputation, "%s returned a %dx%d grid for a %dx%d DEM",
			e.Computer.Name(), grid.Width, grid.Height, dem.Width, dem.Height)
	}
	logger.Debug("viewshed computed", "computer", e.Computer.Name(), "visible", grid.Count())
	return grid, nil
}
