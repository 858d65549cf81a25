package hillshade

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/raster"
)

// plane returns a w x h DEM with z = ax*col + ay*row on 10 m pixels.
func plane(t *testing.T, w, h int, ax, ay float64) *raster.Raster {
	t.Helper()
	r, err := raster.New(w, h, raster.Geotransform{0, 10, 0, float64(10 * h), 0, -10}, "EPSG:32633")
	if err != nil {
		t.Fatal(err)
	}
	r.SetNoData(-1)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			r.Data[r.Index(row, col)] = ax*float64(col) + ay*float64(row) + 100
		}
	}
	return r
}

func TestDirectionalFlat(t *testing.T) {
	out, err := Directional{}.Shade(context.Background(), plane(t, 5, 5, 0, 0), Params{Azimuth: 315, Altitude: 30})
	if err != nil {
		t.Fatal(err)
	}
	want := 255 * math.Cos(60*math.Pi/180)
	for i, v := range out.Data {
		if math.Abs(v-want) > 1e-9 {
			t.Fatalf("cell %d = %v, want %v", i, v, want)
		}
	}
}

func TestDirectionalFacing(t *testing.T) {
	ctx := context.Background()
	p := Params{Azimuth: 270, Altitude: 45}
	// Elevation rising to the east faces west, towards the light.
	west, _ := Directional{}.Shade(ctx, plane(t, 5, 5, 5, 0), p)
	east, _ := Directional{}.Shade(ctx, plane(t, 5, 5, -5, 0), p)
	if west.At(2, 2) <= east.At(2, 2) {
		t.Errorf("west-facing %v should be brighter than east-facing %v", west.At(2, 2), east.At(2, 2))
	}
}

func TestMultiDirectionalIgnoresAzimuth(t *testing.T) {
	ctx := context.Background()
	dem := plane(t, 6, 6, 3, -2)
	a, err := MultiDirectional{}.Shade(ctx, dem, Params{Azimuth: 0, Altitude: 40})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := MultiDirectional{}.Shade(ctx, dem, Params{Azimuth: 200, Altitude: 40})
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("cell %d differs with azimuth: %v vs %v", i, a.Data[i], b.Data[i])
		}
	}
}

func TestShadeKeepsNoData(t *testing.T) {
	dem := plane(t, 4, 4, 1, 1)
	dem.Data[5] = -1
	out, err := Directional{}.Shade(context.Background(), dem, Params{Azimuth: 315, Altitude: 30})
	if err != nil {
		t.Fatal(err)
	}
	if out.ValidIndex(5) {
		t.Error("nodata input cell should stay nodata")
	}
	if out.ValidCount() != 15 {
		t.Errorf("ValidCount() = %d, want 15", out.ValidCount())
	}
	for i, v := range out.Data {
		if out.ValidIndex(i) && (v < 0 || v > 255) {
			t.Errorf("cell %d = %v outside [0, 255]", i, v)
		}
	}
}

func TestProcessShaderArgs(t *testing.T) {
	tests := []struct {
		shader ProcessShader
		params Params
		want   string
	}{
		{
			ProcessShader{Multidirectional: true},
			Params{Azimuth: 315, Altitude: 30},
			"[hillshade -multidirectional -alt 30 -compute_edges -of AAIGrid in.tif out.asc]",
		},
		{
			ProcessShader{},
			Params{Azimuth: 200.5, Altitude: 45, ZFactor: 2},
			"[hillshade -az 200.5 -alt 45 -z 2 -compute_edges -of AAIGrid in.tif out.asc]",
		},
	}
	for _, tt := range tests {
		got := fmt.Sprint(tt.shader.Args("in.tif", "out.asc", tt.params))
		if got != tt.want {
			t.Errorf("Args() = %s, want %s", got, tt.want)
		}
	}
}

func TestProcessShaderMissingBinary(t *testing.T) {
	s := ProcessShader{Binary: "reliefkit-no-such-gdaldem"}
	_, err := s.Shade(context.Background(), plane(t, 3, 3, 1, 0), Params{Altitude: 30, WorkDir: t.TempDir()})
	if !errors.Is(err, errors.ErrCodeComputation) {
		t.Errorf("Shade error = %v, want COMPUTATION", err)
	}
}
