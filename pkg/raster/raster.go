// Package raster provides the in-memory DEM representation shared by every
// reliefkit analysis.
//
// A [Raster] is a single-band grid of float64 values stored row-major, with
// a GDAL-style affine [Geotransform] mapping pixel indices to projected
// coordinates, a coordinate reference system identifier, and an optional
// nodata sentinel. Rasters are read-only after [Load]; algorithms that derive
// new grids allocate a fresh Raster with [Raster.Derive].
//
// # Formats
//
//   - ESRI ASCII grid (.asc, .txt), with an optional .prj sidecar holding the CRS
//   - GeoTIFF and any other GDAL-readable format, linked with -tags gdal or
//     converted with gdal_translate otherwise
package raster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/matzehuels/reliefkit/pkg/errors"
)

// Geotransform is the six-coefficient affine transform in GDAL order:
//
//	x = T[0] + col*T[1] + row*T[2]
//	y = T[3] + col*T[4] + row*T[5]
type Geotransform [6]float64

// Apply maps fractional pixel coordinates to projected coordinates.
func (g Geotransform) Apply(col, row float64) (x, y float64) {
	return g[0] + col*g[1] + row*g[2], g[3] + col*g[4] + row*g[5]
}

// Invert returns the transform mapping projected coordinates back to pixel
// space. It fails when the pixel size is degenerate.
func (g Geotransform) Invert() (Geotransform, error) {
	det := g[1]*g[5] - g[2]*g[4]
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Geotransform{}, errors.New(errors.ErrCodeFormat, "geotransform is not invertible (degenerate pixel size)")
	}
	inv := 1 / det
	return Geotransform{
		(g[2]*g[3] - g[0]*g[5]) * inv,
		g[5] * inv,
		-g[2] * inv,
		(-g[1]*g[3] + g[0]*g[4]) * inv,
		-g[4] * inv,
		g[1] * inv,
	}, nil
}

// Cell addresses a grid cell by row and column.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Raster is a single-band grid with georeferencing.
type Raster struct {
	Width     int
	Height    int
	Transform Geotransform
	CRS       string
	NoData    float64
	HasNoData bool
	Data      []float64

	// Path is the file the raster was loaded from, if any.
	Path string
}

// New allocates a zero-filled raster.
func New(width, height int, gt Geotransform, crs string) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New(errors.ErrCodeFormat, "raster dimensions must be positive, got %dx%d", width, height)
	}
	if _, err := gt.Invert(); err != nil {
		return nil, err
	}
	return &Raster{
		Width:     width,
		Height:    height,
		Transform: gt,
		CRS:       crs,
		Data:      make([]float64, width*height),
	}, nil
}

// Derive allocates a raster with the same shape, georeferencing and nodata
// sentinel as r. The data buffer is zero-filled.
func (r *Raster) Derive() *Raster {
	return &Raster{
		Width:     r.Width,
		Height:    r.Height,
		Transform: r.Transform,
		CRS:       r.CRS,
		NoData:    r.NoData,
		HasNoData: r.HasNoData,
		Data:      make([]float64, len(r.Data)),
	}
}

// Clone returns a deep copy of r.
func (r *Raster) Clone() *Raster {
	c := r.Derive()
	copy(c.Data, r.Data)
	c.Path = r.Path
	return c
}

// SetNoData declares v as the nodata sentinel.
func (r *Raster) SetNoData(v float64) {
	r.NoData = v
	r.HasNoData = true
}

// Len returns the number of cells.
func (r *Raster) Len() int { return r.Width * r.Height }

// Index returns the flat index of (row, col).
func (r *Raster) Index(row, col int) int { return row*r.Width + col }

// CellOf returns the cell at a flat index.
func (r *Raster) CellOf(i int) Cell { return Cell{Row: i / r.Width, Col: i % r.Width} }

// InBounds reports whether (row, col) lies on the grid.
func (r *Raster) InBounds(row, col int) bool {
	return row >= 0 && row < r.Height && col >= 0 && col < r.Width
}

// At returns the value at (row, col). It panics if the cell is off-grid.
func (r *Raster) At(row, col int) float64 {
	return r.Data[row*r.Width+col]
}

// Valid reports whether (row, col) is on the grid and holds data.
func (r *Raster) Valid(row, col int) bool {
	if !r.InBounds(row, col) {
		return false
	}
	return r.ValidIndex(row*r.Width + col)
}

// ValidIndex reports whether the cell at flat index i holds data.
func (r *Raster) ValidIndex(i int) bool {
	v := r.Data[i]
	if math.IsNaN(v) {
		return false
	}
	return !r.HasNoData || v != r.NoData
}

// ValidCount returns the number of cells holding data.
func (r *Raster) ValidCount() int {
	n := 0
	for i := range r.Data {
		if r.ValidIndex(i) {
			n++
		}
	}
	return n
}

// ValidValues returns a copy of every valid cell value in row-major order.
func (r *Raster) ValidValues() []float64 {
	out := make([]float64, 0, len(r.Data))
	for i, v := range r.Data {
		if r.ValidIndex(i) {
			out = append(out, v)
		}
	}
	return out
}

// Range returns the minimum and maximum valid value. ok is false when the
// raster holds no valid cell.
func (r *Raster) Range() (lo, hi float64, ok bool) {
	vals := r.ValidValues()
	if len(vals) == 0 {
		return 0, 0, false
	}
	return floats.Min(vals), floats.Max(vals), true
}

// PixelSize returns the absolute pixel width and height in CRS units.
func (r *Raster) PixelSize() (w, h float64) {
	w = math.Hypot(r.Transform[1], r.Transform[4])
	h = math.Hypot(r.Transform[2], r.Transform[5])
	return w, h
}

// PixelToWorld maps a pixel corner (col, row may be fractional) to projected
// coordinates.
func (r *Raster) PixelToWorld(col, row float64) (x, y float64) {
	return r.Transform.Apply(col, row)
}

// WorldToPixel maps projected coordinates to the containing cell. The result
// may lie off-grid; use [Raster.Clamp] to pin it.
func (r *Raster) WorldToPixel(x, y float64) (Cell, error) {
	inv, err := r.Transform.Invert()
	if err != nil {
		return Cell{}, err
	}
	col, row := inv.Apply(x, y)
	return Cell{Row: int(math.Floor(row)), Col: int(math.Floor(col))}, nil
}

// Clamp pins c to the grid.
func (r *Raster) Clamp(c Cell) Cell {
	c.Row = max(0, min(c.Row, r.Height-1))
	c.Col = max(0, min(c.Col, r.Width-1))
	return c
}

// Extent is an axis-aligned rectangle in projected coordinates.
type Extent struct {
	MinX, MinY, MaxX, MaxY float64
}

// Contains reports whether (x, y) lies inside the extent, edges included.
func (e Extent) Contains(x, y float64) bool {
	return x >= e.MinX && x <= e.MaxX && y >= e.MinY && y <= e.MaxY
}

// String implements fmt.Stringer.
func (e Extent) String() string {
	return fmt.Sprintf("[%g %g, %g %g]", e.MinX, e.MinY, e.MaxX, e.MaxY)
}

// Bounds returns the projected extent covered by the whole grid.
func (r *Raster) Bounds() Extent {
	return r.Transform.Extent(0, 0, float64(r.Width), float64(r.Height))
}

// Extent returns the projected extent of the pixel rectangle with corners
// (col0, row0) and (col1, row1).
func (g Geotransform) Extent(col0, row0, col1, row1 float64) Extent {
	e := Extent{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, c := range [4][2]float64{{col0, row0}, {col1, row0}, {col0, row1}, {col1, row1}} {
		x, y := g.Apply(c[0], c[1])
		e.MinX = math.Min(e.MinX, x)
		e.MinY = math.Min(e.MinY, y)
		e.MaxX = math.Max(e.MaxX, x)
		e.MaxY = math.Max(e.MaxY, y)
	}
	return e
}
