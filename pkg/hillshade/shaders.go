package hillshade

import (
	"context"
	"math"

	"github.com/matzehuels/reliefkit/pkg/raster"
)

const outNoData = -9999

// Directional shades with a single light source using Horn's slope and
// aspect estimate.
type Directional struct{}

// Name implements Shader.
func (Directional) Name() string { return "directional" }

// Shade implements Shader.
func (Directional) Shade(ctx context.Context, dem *raster.Raster, p Params) (*raster.Raster, error) {
	light := newLight(p.Azimuth, p.Altitude)
	return shade(ctx, dem, p, func(slope, aspect float64) float64 {
		return light.illuminate(slope, aspect)
	})
}

// multiAzimuths surround the terrain at 45° steps.
var multiAzimuths = [8]float64{0, 45, 90, 135, 180, 225, 270, 315}

// MultiDirectional averages the illumination of eight light sources placed
// all around the terrain at the requested altitude. The azimuth parameter
// is ignored.
type MultiDirectional struct{}

// Name implements Shader.
func (MultiDirectional) Name() string { return "multidirectional" }

// Shade implements Shader.
func (MultiDirectional) Shade(ctx context.Context, dem *raster.Raster, p Params) (*raster.Raster, error) {
	var lights [8]light
	for i, az := range multiAzimuths {
		lights[i] = newLight(az, p.Altitude)
	}
	return shade(ctx, dem, p, func(slope, aspect float64) float64 {
		sum := 0.0
		for _, l := range lights {
			sum += l.illuminate(slope, aspect)
		}
		return sum / float64(len(lights))
	})
}

type light struct {
	zenith, azimuth float64
}

// newLight converts compass azimuth and altitude to the mathematical angles
// used by the illumination formula.
func newLight(azimuth, altitude float64) light {
	az := 360 - azimuth + 90
	if az >= 360 {
		az -= 360
	}
	return light{
		zenith:  (90 - altitude) * math.Pi / 180,
		azimuth: az * math.Pi / 180,
	}
}

func (l light) illuminate(slope, aspect float64) float64 {
	v := 255 * (math.Cos(l.zenith)*math.Cos(slope) +
		math.Sin(l.zenith)*math.Sin(slope)*math.Cos(l.azimuth-aspect))
	return math.Max(0, math.Min(255, v))
}

// shade evaluates fn over Horn's 3x3 slope and aspect at every valid cell.
// Missing neighbours (off-grid or nodata) take the centre elevation.
func shade(ctx context.Context, dem *raster.Raster, p Params, fn func(slope, aspect float64) float64) (*raster.Raster, error) {
	out := dem.Derive()
	out.SetNoData(outNoData)

	cellX, cellY := dem.PixelSize()
	cellX *= p.scale()
	cellY *= p.scale()
	z := p.zFactor()

	for row := 0; row < dem.Height; row++ {
		if row%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for col := 0; col < dem.Width; col++ {
			i := dem.Index(row, col)
			if !dem.ValidIndex(i) {
				out.Data[i] = outNoData
				continue
			}
			centre := dem.Data[i]
			at := func(dr, dc int) float64 {
				if dem.Valid(row+dr, col+dc) {
					return dem.At(row+dr, col+dc)
				}
				return centre
			}
			a, b, c := at(-1, -1), at(-1, 0), at(-1, 1)
			d, f := at(0, -1), at(0, 1)
			g, h, k := at(1, -1), at(1, 0), at(1, 1)

			dzdx := ((c + 2*f + k) - (a + 2*d + g)) / (8 * cellX)
			dzdy := ((g + 2*h + k) - (a + 2*b + c)) / (8 * cellY)
			slope := math.Atan(z * math.Hypot(dzdx, dzdy))
			out.Data[i] = fn(slope, aspectOf(dzdx, dzdy))
		}
	}
	return out, nil
}

func aspectOf(dzdx, dzdy float64) float64 {
	switch {
	case dzdx != 0:
		a := math.Atan2(dzdy, -dzdx)
		if a < 0 {
			a += 2 * math.Pi
		}
		return a
	case dzdy > 0:
		return math.Pi / 2
	case dzdy < 0:
		return 2*math.Pi - math.Pi/2
	default:
		return 0
	}
}
