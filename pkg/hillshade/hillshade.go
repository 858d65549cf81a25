// Package hillshade computes shaded-relief grids from a DEM.
//
// A [Shader] turns elevations into illumination values in [0, 255]. The
// [Engine] runs a primary shader and falls back to a second one when the
// first fails or yields no valid cell:
//
//	eng := hillshade.NewEngine(hillshade.MultiDirectional{}, hillshade.Directional{})
//	shade, err := eng.Compute(ctx, dem, hillshade.Params{Azimuth: 315, Altitude: 30})
package hillshade

import (
	"context"

	"github.com/matzehuels/reliefkit/pkg/raster"
)

// Defaults for [Params].
const (
	DefaultAzimuth  = 315.0
	DefaultAltitude = 30.0
)

// Params controls illumination.
type Params struct {
	// Azimuth is the compass direction of the light source in degrees,
	// clockwise from north. Multidirectional shaders ignore it.
	Azimuth float64
	// Altitude is the angle of the light source above the horizon in degrees.
	Altitude float64
	// ZFactor exaggerates elevations; zero means 1.
	ZFactor float64
	// Scale is the ratio of horizontal to vertical units, e.g. 111120 for a
	// geographic DEM in metres; zero means 1.
	Scale float64
	// WorkDir is scratch space for external backends. Empty means a
	// temporary directory removed after use.
	WorkDir string
}

func (p Params) zFactor() float64 {
	if p.ZFactor == 0 {
		return 1
	}
	return p.ZFactor
}

func (p Params) scale() float64 {
	if p.Scale == 0 {
		return 1
	}
	return p.Scale
}

// Shader computes a hillshade grid. Output cells are in [0, 255]; nodata
// input cells stay nodata.
type Shader interface {
	Name() string
	Shade(ctx context.Context, dem *raster.Raster, p Params) (*raster.Raster, error)
}
