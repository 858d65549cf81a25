package raster

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/reliefkit/pkg/errors"
)

// LoadOption configures [Load].
type LoadOption func(*loadConfig)

type loadConfig struct {
	defaultCRS string
	translate  string
}

// WithDefaultCRS sets the CRS assigned to rasters whose file carries none
// (an ASCII grid without a .prj sidecar, for instance).
func WithDefaultCRS(crs string) LoadOption {
	return func(c *loadConfig) { c.defaultCRS = crs }
}

// WithTranslate sets the gdal_translate executable used to convert
// non-ASCII formats in builds without the gdal tag.
func WithTranslate(bin string) LoadOption {
	return func(c *loadConfig) { c.translate = bin }
}

// Load reads a DEM from path, choosing the reader from the file extension.
//
// Errors carry [errors.ErrCodeIO] when the file is missing or unreadable and
// [errors.ErrCodeFormat] when its content cannot be parsed as a raster.
func Load(path string, opts ...LoadOption) (*Raster, error) {
	var cfg loadConfig
	for _, o := range opts {
		o(&cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeIO, err, "DEM file not found: %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeIO, err, "stat %s", path)
	}
	if info.IsDir() {
		return nil, errors.New(errors.ErrCodeIO, "%s is a directory", path)
	}

	var ras *Raster
	switch strings.ToLower(filepath.Ext(path)) {
	case ".asc", ".txt", ".grd":
		ras, err = LoadASCII(path)
	default:
		ras, err = loadGDAL(path, cfg)
	}
	if err != nil {
		return nil, err
	}
	if ras.CRS == "" {
		ras.CRS = cfg.defaultCRS
	}
	return ras, nil
}
