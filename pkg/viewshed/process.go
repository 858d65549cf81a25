package viewshed

import (
	"context"
	"path/filepath"

	"github.com/matzehuels/reliefkit/internal/gdalcmd"
	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/raster"
)

// visibleValue is the value gdal_viewshed writes for visible cells.
const visibleValue = 255

// ProcessComputer runs gdal_viewshed in a separate process. The GeoTIFF it
// writes is converted to an ASCII grid with gdal_translate and read back.
type ProcessComputer struct {
	// Binary is the gdal_viewshed executable; empty means PATH lookup.
	Binary string
	// Translate is the gdal_translate executable; empty means PATH lookup.
	Translate string
	// WorkDir holds the intermediate files; empty means a temporary
	// directory removed after use.
	WorkDir string
}

// Name implements VisibilityComputer.
func (ProcessComputer) Name() string { return "gdal_viewshed" }

// Args returns the gdal_viewshed arguments for obs on src writing dst.
func (ProcessComputer) Args(src, dst string, obs Observer) []string {
	return []string{
		"-ox", gdalcmd.Float(obs.Point[0]),
		"-oy", gdalcmd.Float(obs.Point[1]),
		"-oz", gdalcmd.Float(obs.Height),
		"-vv", "255", "-iv", "0", "-ov", "0",
		"-om", "NORMAL",
		"-f", "GTiff",
		src, dst,
	}
}

// ComputeVisibility implements VisibilityComputer.
func (p ProcessComputer) ComputeVisibility(ctx context.Context, dem *raster.Raster, obs Observer) (*Grid, error) {
	dir, cleanup, err := gdalcmd.Scratch(p.WorkDir)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	src, err := gdalcmd.Input(dem, dir, "viewshed-input")
	if err != nil {
		return nil, err
	}
	tif := filepath.Join(dir, "viewshed.tif")
	asc := filepath.Join(dir, "viewshed.asc")

	if err := gdalcmd.Run(ctx, or(p.Binary, "gdal_viewshed"), p.Args(src, tif, obs)...); err != nil {
		return nil, err
	}
	if err := gdalcmd.Run(ctx, or(p.Translate, "gdal_translate"), "-of", "AAIGrid", tif, asc); err != nil {
		return nil, err
	}
	out, err := gdalcmd.Output(asc, dem.CRS)
	if err != nil {
		return nil, err
	}
	return fromRaster(out, dem)
}

// fromRaster converts a gdal_viewshed output grid to a Grid.
func fromRaster(out, dem *raster.Raster) (*Grid, error) {
	if out.Width != dem.Width || out.Height != dem.Height {
		return nil, errors.New(errors.ErrCodeComputation, "viewshed output is %dx%d, DEM is %dx%d",
			out.Width, out.Height, dem.Width, dem.Height)
	}
	grid := NewGrid(out.Width, out.Height)
	for i, v := range out.Data {
		if out.ValidIndex(i) && v == visibleValue {
			grid.bits.Set(uint(i))
		}
	}
	return grid, nil
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
