package overlay

import "fmt"

// PixelBox is a half-open pixel rectangle [MinRow, MaxRow) x [MinCol, MaxCol).
type PixelBox struct {
	MinRow int `json:"min_row"`
	MinCol int `json:"min_col"`
	MaxRow int `json:"max_row"`
	MaxCol int `json:"max_col"`
}

// FullBox covers a whole width x height grid.
func FullBox(width, height int) PixelBox {
	return PixelBox{MaxRow: height, MaxCol: width}
}

// Width returns the number of columns in the box.
func (b PixelBox) Width() int { return b.MaxCol - b.MinCol }

// Height returns the number of rows in the box.
func (b PixelBox) Height() int { return b.MaxRow - b.MinRow }

// Empty reports whether the box holds no pixel.
func (b PixelBox) Empty() bool { return b.Width() <= 0 || b.Height() <= 0 }

// Contains reports whether (row, col) lies in the box.
func (b PixelBox) Contains(row, col int) bool {
	return row >= b.MinRow && row < b.MaxRow && col >= b.MinCol && col < b.MaxCol
}

func (b PixelBox) String() string {
	return fmt.Sprintf("rows [%d,%d) cols [%d,%d)", b.MinRow, b.MaxRow, b.MinCol, b.MaxCol)
}

// CropBox returns the bounding box of the set cells of mask grown by
// padding on every side and clipped to the grid. ok is false when no cell
// is set.
func CropBox(mask Binary, padding int) (box PixelBox, ok bool) {
	w, h := mask.Dims()
	minRow, minCol, maxRow, maxCol := h, w, -1, -1
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			if !mask.Has(row, col) {
				continue
			}
			minRow, maxRow = min(minRow, row), max(maxRow, row)
			minCol, maxCol = min(minCol, col), max(maxCol, col)
		}
	}
	if maxRow < 0 {
		return PixelBox{}, false
	}
	return PixelBox{
		MinRow: max(0, minRow-padding),
		MinCol: max(0, minCol-padding),
		MaxRow: min(h, maxRow+1+padding),
		MaxCol: min(w, maxCol+1+padding),
	}, true
}
