package hydro

import (
	"math"

	"github.com/bits-and-blooms/bitset"

	"github.com/matzehuels/reliefkit/pkg/raster"
)

// Direction is a D8 flow direction.
type Direction uint8

// The eight compass directions are declared in tie-break priority order.
const (
	DirN Direction = iota
	DirNE
	DirE
	DirSE
	DirS
	DirSW
	DirW
	DirNW
	// DirOffGrid marks a cell that drains out of the grid: it has no lower
	// neighbour and touches the border or a nodata cell.
	DirOffGrid
	// DirUndefined marks nodata cells and interior sinks.
	DirUndefined
)

var (
	dRow = [8]int{-1, -1, 0, 1, 1, 1, 0, -1}
	dCol = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
	dist = [8]float64{1, math.Sqrt2, 1, math.Sqrt2, 1, math.Sqrt2, 1, math.Sqrt2}

	// esriCodes are the ArcGIS D8 encodings, used when direction grids are
	// written out as rasters.
	esriCodes = [8]float64{64, 128, 1, 2, 4, 8, 16, 32}

	dirNames = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW", "off-grid", "undefined"}
)

// Flows reports whether d points at a neighbouring cell.
func (d Direction) Flows() bool { return d < DirOffGrid }

// Offset returns the row and column step of d. It returns (0, 0) for
// directions that do not flow.
func (d Direction) Offset() (dr, dc int) {
	if !d.Flows() {
		return 0, 0
	}
	return dRow[d], dCol[d]
}

// Opposite returns the direction pointing back at the cell d leaves.
func (d Direction) Opposite() Direction {
	if !d.Flows() {
		return d
	}
	return (d + 4) % 8
}

func (d Direction) String() string {
	if int(d) < len(dirNames) {
		return dirNames[d]
	}
	return "invalid"
}

// DirectionGrid holds one [Direction] per cell.
type DirectionGrid struct {
	Width     int
	Height    int
	Transform raster.Geotransform
	Dirs      []Direction

	valid *bitset.BitSet
}

// NewDirectionGrid allocates a grid with every cell valid and undefined.
func NewDirectionGrid(width, height int, gt raster.Geotransform) *DirectionGrid {
	n := width * height
	g := &DirectionGrid{
		Width:     width,
		Height:    height,
		Transform: gt,
		Dirs:      make([]Direction, n),
		valid:     bitset.New(uint(n)),
	}
	for i := range g.Dirs {
		g.Dirs[i] = DirUndefined
		g.valid.Set(uint(i))
	}
	return g
}

// At returns the direction of (row, col).
func (g *DirectionGrid) At(row, col int) Direction { return g.Dirs[row*g.Width+col] }

// Set assigns the direction of (row, col).
func (g *DirectionGrid) Set(row, col int, d Direction) { g.Dirs[row*g.Width+col] = d }

// SetValid marks whether (row, col) holds data.
func (g *DirectionGrid) SetValid(row, col int, ok bool) {
	g.valid.SetTo(uint(row*g.Width+col), ok)
}

// Valid reports whether the cell at flat index i came from a data cell.
func (g *DirectionGrid) Valid(i int) bool { return g.valid.Test(uint(i)) }

// ValidCount returns the number of data cells.
func (g *DirectionGrid) ValidCount() int { return int(g.valid.Count()) }

// Downstream returns the flat index the cell at i drains into. ok is false
// for cells that drain off-grid, sinks, nodata cells and directions that
// would leave the grid.
func (g *DirectionGrid) Downstream(i int) (j int, ok bool) {
	d := g.Dirs[i]
	if !d.Flows() {
		return 0, false
	}
	row, col := i/g.Width+dRow[d], i%g.Width+dCol[d]
	if row < 0 || row >= g.Height || col < 0 || col >= g.Width {
		return 0, false
	}
	return row*g.Width + col, true
}

// Raster encodes the grid with ArcGIS D8 codes (1=E ... 128=NE). Off-grid
// cells encode as 0, undefined cells as nodata.
func (g *DirectionGrid) Raster(crs string) *raster.Raster {
	r := &raster.Raster{
		Width:     g.Width,
		Height:    g.Height,
		Transform: g.Transform,
		CRS:       crs,
		Data:      make([]float64, len(g.Dirs)),
	}
	r.SetNoData(-1)
	for i, d := range g.Dirs {
		switch {
		case d.Flows():
			r.Data[i] = esriCodes[d]
		case d == DirOffGrid:
			r.Data[i] = 0
		default:
			r.Data[i] = -1
		}
	}
	return r
}
