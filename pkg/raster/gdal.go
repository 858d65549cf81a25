//go:build gdal

package raster

import (
	"strings"

	"github.com/lukeroth/gdal"

	"github.com/matzehuels/reliefkit/pkg/errors"
)

// GDALEnabled reports whether this build can read GDAL formats.
const GDALEnabled = true

// loadGDAL reads band 1 of any GDAL-supported raster.
func loadGDAL(path string, _ loadConfig) (*Raster, error) {
	ds, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFormat, err, "cannot open %s as a raster", path)
	}
	defer ds.Close()

	if ds.RasterCount() < 1 {
		return nil, errors.New(errors.ErrCodeFormat, "%s has no raster bands", path)
	}

	ras, err := New(ds.RasterXSize(), ds.RasterYSize(), Geotransform(ds.GeoTransform()), projectionOf(ds))
	if err != nil {
		return nil, err
	}
	ras.Path = path

	band := ds.RasterBand(1)
	if nodata, ok := band.NoDataValue(); ok {
		ras.SetNoData(nodata)
	}
	if err := band.IO(gdal.Read, 0, 0, ras.Width, ras.Height, ras.Data, ras.Width, ras.Height, 0, 0); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "read band 1 of %s", path)
	}
	return ras, nil
}

// projectionOf prefers a proj4 rendering of the dataset CRS and falls back
// to the raw WKT.
func projectionOf(ds gdal.Dataset) string {
	wkt := strings.TrimSpace(ds.Projection())
	if wkt == "" {
		return ""
	}
	sr := gdal.CreateSpatialReference(wkt)
	defer sr.Destroy()
	if p4, err := sr.ToProj4(); err == nil && strings.TrimSpace(p4) != "" {
		return strings.TrimSpace(p4)
	}
	return wkt
}
