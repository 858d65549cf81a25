package overlay

import (
	"image"
	"image/png"
	"io"
	"os"

	"github.com/matzehuels/reliefkit/pkg/errors"
)

// EncodePNG writes img as a PNG with an alpha channel.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, img); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "encode png")
	}
	return nil
}

// WritePNG encodes the overlay image to path.
func (o *Overlay) WritePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "create %s", path)
	}
	if err := EncodePNG(f, o.Image); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "close %s", path)
	}
	return nil
}
