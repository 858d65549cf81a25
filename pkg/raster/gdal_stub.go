//go:build !gdal

package raster

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/matzehuels/reliefkit/pkg/errors"
)

// GDALEnabled reports whether this build links GDAL. Without it, GeoTIFF
// and other formats are converted with gdal_translate before loading.
const GDALEnabled = false

// loadGDAL converts path to an ESRI ASCII grid with gdal_translate and
// reads the result. The raster keeps path as its source.
func loadGDAL(path string, cfg loadConfig) (*Raster, error) {
	bin := cfg.translate
	if bin == "" {
		bin = "gdal_translate"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFormat, err,
			"cannot read %s: %s not found (install GDAL or rebuild with -tags gdal)", path, bin)
	}

	dir, err := os.MkdirTemp("", "reliefkit-load-")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "create scratch directory")
	}
	defer os.RemoveAll(dir)

	dst := filepath.Join(dir, "dem.asc")
	cmd := exec.Command(bin, "-of", "AAIGrid", "-b", "1", path, dst)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, errors.Wrap(errors.ErrCodeFormat, err, "cannot read %s: %s", path, msg)
	}

	ras, err := LoadASCII(dst)
	if err != nil {
		return nil, err
	}
	ras.Path = path
	return ras, nil
}
