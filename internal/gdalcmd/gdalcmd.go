// Package gdalcmd runs GDAL command-line utilities against rasters.
package gdalcmd

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/raster"
)

// Run executes bin with args. A missing binary, a non-zero exit or a
// cancelled context is reported as [errors.ErrCodeComputation] carrying
// the tool's stderr.
func Run(ctx context.Context, bin string, args ...string) error {
	if _, err := exec.LookPath(bin); err != nil {
		return errors.Wrap(errors.ErrCodeComputation, err, "%s not found; install GDAL (apt install gdal-bin, brew install gdal)", bin)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return errors.Wrap(errors.ErrCodeComputation, err, "%s failed: %s", filepath.Base(bin), msg)
	}
	return nil
}

// Input returns a path GDAL can read dem from. Rasters loaded from disk are
// used in place; in-memory rasters are written to dir as an ASCII grid.
func Input(dem *raster.Raster, dir, name string) (string, error) {
	if dem.Path != "" {
		return dem.Path, nil
	}
	path := filepath.Join(dir, name+".asc")
	if err := raster.WriteASCII(path, dem); err != nil {
		return "", err
	}
	return path, nil
}

// Output loads the ASCII grid a tool wrote to path. A missing file is
// reported as [errors.ErrCodeComputation].
func Output(path, crs string) (*raster.Raster, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(errors.ErrCodeComputation, err, "no output produced at %s", path)
	}
	out, err := raster.LoadASCII(path)
	if err != nil {
		return nil, err
	}
	if out.CRS == "" {
		out.CRS = crs
	}
	return out, nil
}

// Scratch returns dir when set, otherwise a fresh temporary directory. The
// returned cleanup removes only directories Scratch created.
func Scratch(dir string) (string, func(), error) {
	if dir != "" {
		return dir, func() {}, nil
	}
	tmp, err := os.MkdirTemp("", "reliefkit-gdal-")
	if err != nil {
		return "", nil, errors.Wrap(errors.ErrCodeIO, err, "create scratch directory")
	}
	return tmp, func() { os.RemoveAll(tmp) }, nil
}

// Float formats v for a command-line argument.
func Float(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
