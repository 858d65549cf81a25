package hillshade

import (
	"context"
	"path/filepath"

	"github.com/matzehuels/reliefkit/internal/gdalcmd"
	"github.com/matzehuels/reliefkit/pkg/raster"
)

// ProcessShader shades by running `gdaldem hillshade` in a separate
// process and reading back its ASCII grid output.
type ProcessShader struct {
	// Binary is the gdaldem executable; empty means "gdaldem" on PATH.
	Binary string
	// Multidirectional selects gdaldem's multidirectional mode, which
	// ignores the azimuth.
	Multidirectional bool
}

// Name implements Shader.
func (s ProcessShader) Name() string {
	if s.Multidirectional {
		return "gdaldem-multidirectional"
	}
	return "gdaldem"
}

// Args returns the gdaldem arguments for shading src into dst.
func (s ProcessShader) Args(src, dst string, p Params) []string {
	args := []string{"hillshade"}
	if s.Multidirectional {
		args = append(args, "-multidirectional")
	} else {
		args = append(args, "-az", gdalcmd.Float(p.Azimuth))
	}
	args = append(args, "-alt", gdalcmd.Float(p.Altitude))
	if p.ZFactor != 0 {
		args = append(args, "-z", gdalcmd.Float(p.ZFactor))
	}
	if p.Scale != 0 {
		args = append(args, "-s", gdalcmd.Float(p.Scale))
	}
	return append(args, "-compute_edges", "-of", "AAIGrid", src, dst)
}

// Shade implements Shader.
func (s ProcessShader) Shade(ctx context.Context, dem *raster.Raster, p Params) (*raster.Raster, error) {
	dir, cleanup, err := gdalcmd.Scratch(p.WorkDir)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	src, err := gdalcmd.Input(dem, dir, "hillshade-input")
	if err != nil {
		return nil, err
	}
	dst := filepath.Join(dir, s.Name()+".asc")

	bin := s.Binary
	if bin == "" {
		bin = "gdaldem"
	}
	if err := gdalcmd.Run(ctx, bin, s.Args(src, dst, p)...); err != nil {
		return nil, err
	}
	return gdalcmd.Output(dst, dem.CRS)
}
