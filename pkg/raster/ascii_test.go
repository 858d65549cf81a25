package raster

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/reliefkit/pkg/errors"
)

const sampleGrid = `ncols 3
nrows 2
xllcorner 1000
yllcorner 2000
cellsize 5
NODATA_value -9999
1 2 3
4 -9999 6
`

func TestReadASCII(t *testing.T) {
	r, err := ReadASCII(strings.NewReader(sampleGrid))
	if err != nil {
		t.Fatalf("ReadASCII error: %v", err)
	}
	if r.Width != 3 || r.Height != 2 {
		t.Fatalf("size = %dx%d, want 3x2", r.Width, r.Height)
	}
	want := Geotransform{1000, 5, 0, 2010, 0, -5}
	if r.Transform != want {
		t.Errorf("Transform = %v, want %v", r.Transform, want)
	}
	if !r.HasNoData || r.NoData != -9999 {
		t.Errorf("nodata = %v/%v", r.NoData, r.HasNoData)
	}
	if r.At(0, 2) != 3 || r.At(1, 0) != 4 {
		t.Errorf("values read in wrong order: %v", r.Data)
	}
	if r.Valid(1, 1) {
		t.Error("nodata cell should be invalid")
	}
}

func TestReadASCIICenter(t *testing.T) {
	grid := "ncols 2\nnrows 2\nxllcenter 0.5\nyllcenter 0.5\ncellsize 1\n1 2\n3 4\n"
	r, err := ReadASCII(strings.NewReader(grid))
	if err != nil {
		t.Fatal(err)
	}
	if r.Transform != (Geotransform{0, 1, 0, 2, 0, -1}) {
		t.Errorf("Transform = %v", r.Transform)
	}
	if r.HasNoData {
		t.Error("grid without NODATA_value should have no nodata")
	}
}

func TestReadASCIIErrors(t *testing.T) {
	tests := []struct {
		name string
		grid string
	}{
		{"missing size", "xllcorner 0\nyllcorner 0\ncellsize 1\n1\n"},
		{"too few values", "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n"},
		{"too many values", "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2\n"},
		{"bad value", "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\nabc1\n"},
		{"unknown key", "ncols 1\nnrows 1\nbogus 3\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n"},
		{"zero cellsize", "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 0\n1\n"},
		{"garbage", "this is not a raster"},
		{"fractional size", "ncols 1.5\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n"},
		{"huge size", "ncols 200000\nnrows 200000\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n"},
		{"size overflow", "ncols 1e300\nnrows 1e300\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadASCII(strings.NewReader(tt.grid))
			if !errors.Is(err, errors.ErrCodeFormat) {
				t.Errorf("ReadASCII error = %v, want FORMAT", err)
			}
		})
	}
}

func TestReadASCIINaN(t *testing.T) {
	grid := "ncols 3\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\nNODATA_value nan\nnan 2 -inf\n"
	r, err := ReadASCII(strings.NewReader(grid))
	if err != nil {
		t.Fatalf("ReadASCII: %v", err)
	}
	if r.Valid(0, 0) {
		t.Error("nan cell should be nodata")
	}
	if !r.Valid(0, 1) || r.At(0, 1) != 2 {
		t.Errorf("cell (0,1) = %v, want 2", r.At(0, 1))
	}
	if r.ValidCount() != 2 {
		t.Errorf("ValidCount() = %d, want 2", r.ValidCount())
	}
}

func TestLoadASCIIHeaderLargerThanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dem.asc")
	grid := "ncols 2000\nnrows 2000\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n"
	if err := os.WriteFile(path, []byte(grid), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadASCII(path)
	if !errors.Is(err, errors.ErrCodeFormat) {
		t.Fatalf("LoadASCII error = %v, want FORMAT", err)
	}
	if !strings.Contains(err.Error(), "2000x2000") {
		t.Errorf("error = %v, want the declared size", err)
	}
}

func TestWriteASCIIRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r, _ := New(3, 2, Geotransform{1000, 5, 0, 2010, 0, -5}, "EPSG:32633")
	r.SetNoData(-1)
	copy(r.Data, []float64{1.5, 2, 3, 4, -1, 6.25})

	path := filepath.Join(dir, "out.asc")
	if err := WriteASCII(path, r); err != nil {
		t.Fatalf("WriteASCII error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out.prj")); err != nil {
		t.Errorf("projection sidecar missing: %v", err)
	}

	back, err := LoadASCII(path)
	if err != nil {
		t.Fatalf("LoadASCII error: %v", err)
	}
	if back.Transform != r.Transform {
		t.Errorf("Transform = %v, want %v", back.Transform, r.Transform)
	}
	if back.CRS != "EPSG:32633" {
		t.Errorf("CRS = %q", back.CRS)
	}
	if back.Path != path {
		t.Errorf("Path = %q", back.Path)
	}
	for i := range r.Data {
		if r.ValidIndex(i) != back.ValidIndex(i) {
			t.Fatalf("validity differs at %d", i)
		}
		if r.ValidIndex(i) && r.Data[i] != back.Data[i] {
			t.Errorf("Data[%d] = %v, want %v", i, back.Data[i], r.Data[i])
		}
	}
}

func TestWriteASCIIRejectsRotation(t *testing.T) {
	r, _ := New(2, 2, Geotransform{0, 1, 0.1, 0, 0, -1}, "")
	err := WriteASCII(filepath.Join(t.TempDir(), "rot.asc"), r)
	if !errors.Is(err, errors.ErrCodeFormat) {
		t.Errorf("WriteASCII(rotated) error = %v, want FORMAT", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dem.asc")
	if err := os.WriteFile(path, []byte(sampleGrid), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(path, WithDefaultCRS("EPSG:32610"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if r.CRS != "EPSG:32610" {
		t.Errorf("CRS = %q, want default", r.CRS)
	}

	if err := os.WriteFile(filepath.Join(dir, "dem.prj"), []byte("EPSG:2056\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err = Load(path, WithDefaultCRS("EPSG:32610"))
	if err != nil {
		t.Fatal(err)
	}
	if r.CRS != "EPSG:2056" {
		t.Errorf("CRS = %q, want sidecar value", r.CRS)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.asc"))
	if !errors.Is(err, errors.ErrCodeIO) {
		t.Errorf("missing file error = %v, want IO", err)
	}

	_, err = Load(dir)
	if !errors.Is(err, errors.ErrCodeIO) {
		t.Errorf("directory error = %v, want IO", err)
	}

	bad := filepath.Join(dir, "bad.asc")
	os.WriteFile(bad, []byte("not a grid"), 0o644)
	_, err = Load(bad)
	if !errors.Is(err, errors.ErrCodeFormat) {
		t.Errorf("bad grid error = %v, want FORMAT", err)
	}

}
