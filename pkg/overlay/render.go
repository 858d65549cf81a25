// Package overlay turns analysis grids into semi-transparent map overlays
// and places them on the map.
//
// Rendering produces an [Overlay]: an RGBA image plus the [PixelBox] of the
// source grid it covers. [Reproject] converts that box to the geographic
// [GeoBounds] a map client needs to position the image.
package overlay

import (
	"image"
	"image/color"

	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/raster"
)

// DefaultPadding is the margin, in pixels, kept around a cropped watershed.
const DefaultPadding = 10

var (
	viewshedColor  = color.NRGBA{R: 0, G: 200, B: 0, A: 128}
	watershedColor = color.NRGBA{R: 0, G: 150, B: 255, A: 150}
)

const hillshadeAlpha = 180

// Binary is a boolean grid such as a visibility grid or a watershed mask.
type Binary interface {
	Dims() (width, height int)
	Has(row, col int) bool
}

// Overlay is a rendered image and the source-grid pixels it covers.
type Overlay struct {
	Image *image.NRGBA
	Box   PixelBox
}

// RenderHillshade maps the valid cells of shade to gray by min-max
// normalisation, with alpha 180. A flat grid renders mid-gray. Nodata cells
// are transparent. A grid without valid cells fails with
// [errors.ErrCodeEmptyResult].
func RenderHillshade(shade *raster.Raster) (*Overlay, error) {
	lo, hi, ok := shade.Range()
	if !ok {
		return nil, errors.New(errors.ErrCodeEmptyResult, "hillshade has no valid cells")
	}
	img := image.NewNRGBA(image.Rect(0, 0, shade.Width, shade.Height))
	span := hi - lo
	for row := 0; row < shade.Height; row++ {
		for col := 0; col < shade.Width; col++ {
			if !shade.Valid(row, col) {
				continue
			}
			gray := uint8(128)
			if span > 0 {
				gray = uint8((shade.At(row, col) - lo) / span * 255)
			}
			img.SetNRGBA(col, row, color.NRGBA{R: gray, G: gray, B: gray, A: hillshadeAlpha})
		}
	}
	return &Overlay{Image: img, Box: FullBox(shade.Width, shade.Height)}, nil
}

// RenderViewshed paints visible cells green at alpha 128 over a transparent
// background.
func RenderViewshed(vis Binary) (*Overlay, error) {
	w, h := vis.Dims()
	if w <= 0 || h <= 0 {
		return nil, errors.New(errors.ErrCodeEmptyResult, "viewshed grid is empty")
	}
	return paint(vis, FullBox(w, h), viewshedColor), nil
}

// RenderWatershed paints the mask blue at alpha 150, cropped to the set
// cells plus padding pixels on every side, clipped to the grid. A negative
// padding means [DefaultPadding]. An empty mask fails with
// [errors.ErrCodeEmptyResult].
func RenderWatershed(mask Binary, padding int) (*Overlay, error) {
	if padding < 0 {
		padding = DefaultPadding
	}
	box, ok := CropBox(mask, padding)
	if !ok {
		return nil, errors.New(errors.ErrCodeEmptyResult, "watershed mask is empty")
	}
	return paint(mask, box, watershedColor), nil
}

func paint(src Binary, box PixelBox, c color.NRGBA) *Overlay {
	img := image.NewNRGBA(image.Rect(0, 0, box.Width(), box.Height()))
	for row := box.MinRow; row < box.MaxRow; row++ {
		for col := box.MinCol; col < box.MaxCol; col++ {
			if src.Has(row, col) {
				img.SetNRGBA(col-box.MinCol, row-box.MinRow, c)
			}
		}
	}
	return &Overlay{Image: img, Box: box}
}
