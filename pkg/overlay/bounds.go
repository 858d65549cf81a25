package overlay

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/geo"
	"github.com/matzehuels/reliefkit/pkg/raster"
)

// GeoBounds is a WGS84 rectangle. It marshals to JSON as
// [[south, west], [north, east]], the order Leaflet-style clients expect.
type GeoBounds struct {
	South, West, North, East float64
}

// Bound returns b as an orb.Bound (x = longitude).
func (b GeoBounds) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.West, b.South}, Max: orb.Point{b.East, b.North}}
}

// FromBound converts an orb.Bound in lon/lat to GeoBounds.
func FromBound(bd orb.Bound) GeoBounds {
	return GeoBounds{South: bd.Min.Lat(), West: bd.Min.Lon(), North: bd.Max.Lat(), East: bd.Max.Lon()}
}

// MarshalJSON implements json.Marshaler.
func (b GeoBounds) MarshalJSON() ([]byte, error) {
	return json.Marshal([2][2]float64{{b.South, b.West}, {b.North, b.East}})
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *GeoBounds) UnmarshalJSON(data []byte) error {
	var pair [2][2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("bounds: %w", err)
	}
	*b = GeoBounds{South: pair[0][0], West: pair[0][1], North: pair[1][0], East: pair[1][1]}
	return nil
}

// Reproject maps the top-left and bottom-right corners of box through the
// geotransform of r and then from r's CRS to WGS84.
func Reproject(r *raster.Raster, box PixelBox, p *geo.Projector) (GeoBounds, error) {
	if box.Empty() {
		return GeoBounds{}, errors.New(errors.ErrCodeInvalidInput, "cannot place an empty pixel box")
	}
	corners := [2][2]float64{
		{float64(box.MinCol), float64(box.MinRow)},
		{float64(box.MaxCol), float64(box.MaxRow)},
	}
	bound := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for _, c := range corners {
		x, y := r.PixelToWorld(c[0], c[1])
		ll, err := p.ToWGS84(orb.Point{x, y}, r.CRS)
		if err != nil {
			return GeoBounds{}, err
		}
		bound = bound.Extend(ll)
	}
	return FromBound(bound), nil
}

// Unproject maps geographic bounds back to the pixel box of r they cover,
// rounding corners to the nearest pixel edge.
func Unproject(r *raster.Raster, b GeoBounds, p *geo.Projector) (PixelBox, error) {
	inv, err := r.Transform.Invert()
	if err != nil {
		return PixelBox{}, err
	}
	box := PixelBox{MinRow: math.MaxInt, MinCol: math.MaxInt, MaxRow: math.MinInt, MaxCol: math.MinInt}
	for _, ll := range []orb.Point{{b.West, b.North}, {b.East, b.South}} {
		xy, err := p.ToCRS(ll, r.CRS)
		if err != nil {
			return PixelBox{}, err
		}
		col, row := inv.Apply(xy[0], xy[1])
		c, rr := int(math.Round(col)), int(math.Round(row))
		box.MinCol, box.MaxCol = min(box.MinCol, c), max(box.MaxCol, c)
		box.MinRow, box.MaxRow = min(box.MinRow, rr), max(box.MaxRow, rr)
	}
	return box, nil
}
