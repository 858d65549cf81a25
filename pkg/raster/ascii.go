package raster

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matzehuels/reliefkit/pkg/errors"
)

// asciiHeader collects the ESRI ASCII grid header fields.
type asciiHeader struct {
	ncols, nrows int
	x, y         float64
	centered     bool
	dx, dy       float64
	nodata       float64
	hasNoData    bool

	seenX, seenY       bool
	seenCols, seenRows bool
}

// MaxCells bounds the grid size an ASCII header may declare.
const MaxCells = 1 << 28

// ReadASCII parses an ESRI ASCII grid from r. The CRS is left empty.
func ReadASCII(r io.Reader) (*Raster, error) {
	return readASCII(r, MaxCells)
}

// readASCII parses a grid declaring at most limit cells.
func readASCII(r io.Reader, limit int) (*Raster, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	var h asciiHeader
	var first string
	for sc.Scan() {
		tok := sc.Text()
		if !isHeaderKey(tok) {
			first = tok
			break
		}
		if !sc.Scan() {
			return nil, errors.New(errors.ErrCodeFormat, "ascii grid: missing value for %q", tok)
		}
		if err := h.set(strings.ToLower(tok), sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "ascii grid: read header")
	}
	if err := h.validate(); err != nil {
		return nil, err
	}
	if h.ncols > limit/h.nrows {
		return nil, errors.New(errors.ErrCodeFormat,
			"ascii grid: header declares %dx%d cells, more than the data can hold (%d)", h.ncols, h.nrows, limit)
	}

	gt := h.geotransform()
	ras, err := New(h.ncols, h.nrows, gt, "")
	if err != nil {
		return nil, err
	}
	if h.hasNoData {
		ras.SetNoData(h.nodata)
	}

	n := 0
	put := func(tok string) error {
		if n >= len(ras.Data) {
			return errors.New(errors.ErrCodeFormat, "ascii grid: more than %d values", len(ras.Data))
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return errors.Wrap(errors.ErrCodeFormat, err, "ascii grid: value %d", n)
		}
		ras.Data[n] = v
		n++
		return nil
	}
	if first != "" {
		if err := put(first); err != nil {
			return nil, err
		}
	}
	for sc.Scan() {
		if err := put(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "ascii grid: read values")
	}
	if n != len(ras.Data) {
		return nil, errors.New(errors.ErrCodeFormat, "ascii grid: expected %d values, got %d", len(ras.Data), n)
	}
	return ras, nil
}

// isHeaderKey reports whether tok is not a number. Data values such as
// "nan" and "-inf" parse as floats and end the header.
func isHeaderKey(tok string) bool {
	_, err := strconv.ParseFloat(tok, 64)
	return err != nil
}

func (h *asciiHeader) set(key, val string) error {
	num := func() (float64, error) {
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeFormat, err, "ascii grid: header %s", key)
		}
		return v, nil
	}
	var v float64
	var err error
	if v, err = num(); err != nil {
		return err
	}
	dim := func() (int, error) {
		if v != math.Trunc(v) || v < 1 || v > MaxCells {
			return 0, errors.New(errors.ErrCodeFormat, "ascii grid: %s must be an integer between 1 and %d, got %s", key, MaxCells, val)
		}
		return int(v), nil
	}
	switch key {
	case "ncols":
		if h.ncols, err = dim(); err != nil {
			return err
		}
		h.seenCols = true
	case "nrows":
		if h.nrows, err = dim(); err != nil {
			return err
		}
		h.seenRows = true
	case "xllcorner":
		h.x, h.seenX = v, true
	case "yllcorner":
		h.y, h.seenY = v, true
	case "xllcenter":
		h.x, h.seenX, h.centered = v, true, true
	case "yllcenter":
		h.y, h.seenY, h.centered = v, true, true
	case "cellsize":
		h.dx, h.dy = v, v
	case "dx":
		h.dx = v
	case "dy":
		h.dy = v
	case "nodata_value":
		h.nodata, h.hasNoData = v, true
	default:
		return errors.New(errors.ErrCodeFormat, "ascii grid: unknown header key %q", key)
	}
	return nil
}

func (h *asciiHeader) validate() error {
	switch {
	case !h.seenCols || !h.seenRows:
		return errors.New(errors.ErrCodeFormat, "ascii grid: ncols and nrows are required")
	case !h.seenX || !h.seenY:
		return errors.New(errors.ErrCodeFormat, "ascii grid: lower-left corner or center is required")
	case h.dx <= 0 || h.dy <= 0:
		return errors.New(errors.ErrCodeFormat, "ascii grid: cell size must be positive")
	}
	return nil
}

func (h *asciiHeader) geotransform() Geotransform {
	x0, y0 := h.x, h.y
	if h.centered {
		x0 -= h.dx / 2
		y0 -= h.dy / 2
	}
	top := y0 + float64(h.nrows)*h.dy
	return Geotransform{x0, h.dx, 0, top, 0, -h.dy}
}

// LoadASCII reads an ESRI ASCII grid file. A sibling .prj file, when
// present, supplies the CRS.
func LoadASCII(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "open %s", path)
	}
	defer f.Close()

	// Every value takes at least one digit and one separator.
	limit := MaxCells
	if info, err := f.Stat(); err == nil && info.Size()/2+1 < int64(limit) {
		limit = int(info.Size()/2 + 1)
	}
	ras, err := readASCII(bufio.NewReader(f), limit)
	if err != nil {
		return nil, err
	}
	ras.Path = path
	if prj, err := os.ReadFile(sidecar(path)); err == nil {
		ras.CRS = strings.TrimSpace(string(prj))
	}
	return ras, nil
}

// WriteASCII writes r as an ESRI ASCII grid. Rotated geotransforms cannot
// be represented and are rejected. When r has a CRS it is written to a
// sibling .prj file.
func WriteASCII(path string, r *Raster) error {
	gt := r.Transform
	if gt[2] != 0 || gt[4] != 0 {
		return errors.New(errors.ErrCodeFormat, "ascii grid: rotated geotransform cannot be written")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "create %s", path)
	}
	w := bufio.NewWriter(f)
	if err := encodeASCII(w, r); err != nil {
		f.Close()
		return errors.Wrap(errors.ErrCodeIO, err, "write %s", path)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrap(errors.ErrCodeIO, err, "write %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "close %s", path)
	}
	if r.CRS != "" {
		if err := os.WriteFile(sidecar(path), []byte(r.CRS+"\n"), 0o644); err != nil {
			return errors.Wrap(errors.ErrCodeIO, err, "write projection sidecar")
		}
	}
	return nil
}

func encodeASCII(w io.Writer, r *Raster) error {
	gt := r.Transform
	dx, dy := gt[1], math.Abs(gt[5])
	bottom := gt[3] + float64(r.Height)*gt[5]
	if gt[5] > 0 {
		bottom = gt[3]
	}
	fmt.Fprintf(w, "ncols %d\nnrows %d\nxllcorner %s\nyllcorner %s\n",
		r.Width, r.Height, ftoa(gt[0]), ftoa(bottom))
	if dx == dy {
		fmt.Fprintf(w, "cellsize %s\n", ftoa(dx))
	} else {
		fmt.Fprintf(w, "dx %s\ndy %s\n", ftoa(dx), ftoa(dy))
	}
	nodata := r.NoData
	if !r.HasNoData {
		nodata = -9999
	}
	if _, err := fmt.Fprintf(w, "NODATA_value %s\n", ftoa(nodata)); err != nil {
		return err
	}

	for row := 0; row < r.Height; row++ {
		line := make([]string, r.Width)
		for col := 0; col < r.Width; col++ {
			i := r.Index(row, col)
			if r.ValidIndex(i) {
				line[col] = ftoa(r.Data[i])
			} else {
				line[col] = ftoa(nodata)
			}
		}
		if _, err := io.WriteString(w, strings.Join(line, " ")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sidecar(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
}
