package hydro

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/raster"
)

// Mask is a boolean grid.
type Mask struct {
	Width  int
	Height int
	bits   *bitset.BitSet
}

// NewMask allocates an all-false mask.
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, bits: bitset.New(uint(width * height))}
}

// Dims returns the mask size.
func (m *Mask) Dims() (width, height int) { return m.Width, m.Height }

// Has reports whether (row, col) is set. Off-grid cells are never set.
func (m *Mask) Has(row, col int) bool {
	if row < 0 || row >= m.Height || col < 0 || col >= m.Width {
		return false
	}
	return m.bits.Test(uint(row*m.Width + col))
}

// Set marks (row, col).
func (m *Mask) Set(row, col int) { m.bits.Set(uint(row*m.Width + col)) }

// Count returns the number of set cells.
func (m *Mask) Count() int { return int(m.bits.Count()) }

// Delineate returns the watershed of pp: the pour point plus every cell
// whose flow path passes through it.
//
// The traversal is a breadth-first search against the flow direction from
// the pour point, over flat indices with an explicit queue.
func Delineate(dirs *DirectionGrid, pp PourPoint) (*Mask, error) {
	row, col := pp.Cell.Row, pp.Cell.Col
	if row < 0 || row >= dirs.Height || col < 0 || col >= dirs.Width {
		return nil, errors.New(errors.ErrCodeInvalidInput, "pour point (%d, %d) is outside the %dx%d grid",
			row, col, dirs.Width, dirs.Height)
	}

	w, h := dirs.Width, dirs.Height
	mask := NewMask(w, h)
	start := row*w + col
	mask.bits.Set(uint(start))

	queue := []int{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		r, c := cur/w, cur%w
		for k := 0; k < 8; k++ {
			nr, nc := r+dRow[k], c+dCol[k]
			if nr < 0 || nr >= h || nc < 0 || nc >= w {
				continue
			}
			j := nr*w + nc
			if mask.bits.Test(uint(j)) {
				continue
			}
			// The neighbour drains into cur when it points back along k.
			if dirs.Dirs[j] == Direction(k).Opposite() {
				mask.bits.Set(uint(j))
				queue = append(queue, j)
			}
		}
	}
	return mask, nil
}

// Area returns the ground area covered by the set cells of m on a grid
// with transform gt, in squared CRS units.
func (m *Mask) Area(gt raster.Geotransform) float64 {
	cell := gt[1]*gt[5] - gt[2]*gt[4]
	if cell < 0 {
		cell = -cell
	}
	return float64(m.Count()) * cell
}
