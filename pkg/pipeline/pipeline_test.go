package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"

	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/geo"
	"github.com/matzehuels/reliefkit/pkg/observability"
	"github.com/matzehuels/reliefkit/pkg/raster"
)

const (
	testCRS    = "EPSG:32633"
	originX    = 600000.0
	originY    = 5345000.0
	pixelSize  = 30.0
	valleyCols = 21
	valleyRows = 30
)

// writeDEM writes a w x h ASCII grid in UTM 33N with 30 m pixels.
func writeDEM(t *testing.T, w, h int, z func(row, col int) float64) string {
	t.Helper()
	r, err := raster.New(w, h, raster.Geotransform{originX, pixelSize, 0, originY, 0, -pixelSize}, testCRS)
	if err != nil {
		t.Fatal(err)
	}
	r.SetNoData(-9999)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			r.Data[r.Index(row, col)] = z(row, col)
		}
	}
	path := filepath.Join(t.TempDir(), "dem.asc")
	if err := raster.WriteASCII(path, r); err != nil {
		t.Fatal(err)
	}
	return path
}

// valley slopes south and towards the centre column, so every cell drains
// into the centre and leaves the grid at the bottom.
func valley(row, col int) float64 {
	return 100 + float64(valleyRows-1-row) + 0.5*math.Abs(float64(col-valleyCols/2))
}

func flat(int, int) float64 { return 250 }

// lngLat returns the WGS84 position of the centre of cell (row, col).
func lngLat(t *testing.T, row, col int) (lat, lng float64) {
	t.Helper()
	x := originX + (float64(col)+0.5)*pixelSize
	y := originY - (float64(row)+0.5)*pixelSize
	ll, err := geo.NewProjector().ToWGS84(orb.Point{x, y}, testCRS)
	if err != nil {
		t.Fatal(err)
	}
	return ll[1], ll[0]
}

func quietRunner() *Runner {
	return NewRunner(log.NewWithOptions(io.Discard, log.Options{}))
}

func TestRequestValidate(t *testing.T) {
	lat, lng := 48.2, 16.4
	tests := []struct {
		name     string
		analysis Analysis
		req      Request
		code     errors.Code
	}{
		{"hillshade ok", Hillshade, Request{DEMPath: "dem.tif"}, ""},
		{"layer ok", Hillshade, Request{Layer: LayerDSM}, ""},
		{"no source", Hillshade, Request{}, errors.ErrCodeInvalidInput},
		{"bad layer", Hillshade, Request{Layer: "ORTHO"}, errors.ErrCodeInvalidLayer},
		{"azimuth high", Hillshade, Request{DEMPath: "d", Azimuth: Float(361)}, errors.ErrCodeInvalidInput},
		{"azimuth zero", Hillshade, Request{DEMPath: "d", Azimuth: Float(0)}, ""},
		{"altitude negative", Hillshade, Request{DEMPath: "d", Altitude: Float(-1)}, errors.ErrCodeInvalidInput},
		{"hillshade ignores point", Hillshade, Request{DEMPath: "d"}, ""},
		{"viewshed origin", Viewshed, Request{DEMPath: "d"}, errors.ErrCodeInvalidInput},
		{"viewshed ok", Viewshed, Request{DEMPath: "d", Lat: lat, Lng: lng}, ""},
		{"viewshed lat range", Viewshed, Request{DEMPath: "d", Lat: 91, Lng: lng}, errors.ErrCodeInvalidInput},
		{"viewshed negative height", Viewshed, Request{DEMPath: "d", Lat: lat, Lng: lng, Height: Float(-2)}, errors.ErrCodeInvalidInput},
		{"watershed ok", Watershed, Request{DEMPath: "d", Lat: lat, Lng: lng, SnapDistance: Float(0)}, ""},
		{"watershed negative snap", Watershed, Request{DEMPath: "d", Lat: lat, Lng: lng, SnapDistance: Float(-5)}, errors.ErrCodeInvalidInput},
		{"watershed negative padding", Watershed, Request{DEMPath: "d", Lat: lat, Lng: lng, Padding: Int(-1)}, errors.ErrCodeInvalidInput},
		{"watershed negative threshold", Watershed, Request{DEMPath: "d", Lat: lat, Lng: lng, MinAccumulation: Float(-1)}, errors.ErrCodeInvalidInput},
		{"watershed zero threshold", Watershed, Request{DEMPath: "d", Lat: lat, Lng: lng, MinAccumulation: Float(0)}, ""},
		{"unknown analysis", "slope", Request{DEMPath: "d"}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(tt.analysis)
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("Validate() code = %q, want %q (err %v)", got, tt.code, err)
			}
		})
	}
}

func TestRequestDefaults(t *testing.T) {
	req := Request{DEMPath: "dem.asc", Lat: 1, Lng: 2}
	if err := req.ValidateAndSetDefaults(Watershed); err != nil {
		t.Fatal(err)
	}
	if *req.Azimuth != 315 || *req.Altitude != 30 || *req.Height != 1.7 {
		t.Errorf("light/observer defaults = %v/%v/%v", *req.Azimuth, *req.Altitude, *req.Height)
	}
	if *req.SnapDistance != 100 || *req.MinAccumulation != 1 || *req.Padding != 10 {
		t.Errorf("watershed defaults = %v/%v/%v", *req.SnapDistance, *req.MinAccumulation, *req.Padding)
	}
	if req.Logger == nil {
		t.Error("Logger should default to a discard logger")
	}

	zero := Request{DEMPath: "dem.asc", Azimuth: Float(0), SnapDistance: Float(0)}
	zero.SetDefaults()
	if *zero.Azimuth != 0 || *zero.SnapDistance != 0 {
		t.Error("explicit zeros must survive SetDefaults")
	}
}

func TestParseAnalysis(t *testing.T) {
	for _, s := range []string{"hillshade", "Viewshed", "WATERSHED"} {
		if _, err := ParseAnalysis(s); err != nil {
			t.Errorf("ParseAnalysis(%q): %v", s, err)
		}
	}
	if _, err := ParseAnalysis("contours"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("ParseAnalysis(contours) = %v", err)
	}
}

func TestStaticLayers(t *testing.T) {
	resolve := StaticLayers(map[Layer]string{LayerDSM: "/data/dsm.tif"})
	if p, err := resolve(LayerDSM); err != nil || p != "/data/dsm.tif" {
		t.Errorf("resolve(DSM) = %q, %v", p, err)
	}
	if _, err := resolve(LayerDTM); !errors.Is(err, errors.ErrCodeInvalidLayer) {
		t.Errorf("resolve(DTM) = %v, want INVALID_LAYER", err)
	}
	if _, err := resolve("XYZ"); !errors.Is(err, errors.ErrCodeInvalidLayer) {
		t.Errorf("resolve(XYZ) = %v, want INVALID_LAYER", err)
	}
}

func TestHillshade(t *testing.T) {
	dem := writeDEM(t, valleyCols, valleyRows, valley)
	work := t.TempDir()

	res := quietRunner().Hillshade(context.Background(), Request{DEMPath: dem, WorkDir: work})
	if res.Failed() {
		t.Fatalf("Hillshade failed: %s (%s)", res.Error, res.Code)
	}
	out := res.Output
	if out.Image != filepath.Join(work, "hillshade.png") {
		t.Errorf("Image = %q", out.Image)
	}
	for _, p := range []string{out.Image, out.Footprint} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("artifact missing: %v", err)
		}
	}
	if out.Area != nil || out.Snap != nil {
		t.Error("hillshade output should not carry watershed fields")
	}

	// Full extent: top-left and bottom-right corners of the grid.
	nLat, wLng := lngLatCorner(t, 0, 0)
	sLat, eLng := lngLatCorner(t, valleyRows, valleyCols)
	b := out.Bounds
	if math.Abs(b.North-nLat) > 1e-3 || math.Abs(b.South-sLat) > 1e-3 ||
		math.Abs(b.West-wLng) > 1e-3 || math.Abs(b.East-eLng) > 1e-3 {
		t.Errorf("Bounds = %+v, want about [%v %v, %v %v]", b, sLat, wLng, nLat, eLng)
	}
}

func lngLatCorner(t *testing.T, row, col int) (lat, lng float64) {
	t.Helper()
	x := originX + float64(col)*pixelSize
	y := originY - float64(row)*pixelSize
	ll, err := geo.NewProjector().ToWGS84(orb.Point{x, y}, testCRS)
	if err != nil {
		t.Fatal(err)
	}
	return ll[1], ll[0]
}

func TestViewshed(t *testing.T) {
	dem := writeDEM(t, 40, 40, flat)
	lat, lng := lngLat(t, 20, 20)

	res := quietRunner().Viewshed(context.Background(), Request{DEMPath: dem, Lat: lat, Lng: lng, WorkDir: t.TempDir()})
	if res.Failed() {
		t.Fatalf("Viewshed failed: %s (%s)", res.Error, res.Code)
	}
	b := res.Output.Bounds
	if lat < b.South || lat > b.North || lng < b.West || lng > b.East {
		t.Errorf("observer %v,%v outside overlay bounds %+v", lat, lng, b)
	}
}

func TestViewshedOutOfBounds(t *testing.T) {
	dem := writeDEM(t, 40, 40, flat)
	for _, h := range []float64{0, 1.7, 500} {
		res := quietRunner().Viewshed(context.Background(), Request{
			DEMPath: dem, Lat: 40.0, Lng: 14.0, Height: Float(h), WorkDir: t.TempDir(),
		})
		if res.Code != errors.ErrCodeBounds {
			t.Errorf("height %v: code = %q, want BOUNDS (%s)", h, res.Code, res.Error)
		}
	}
}

func TestWatershedOutOfBounds(t *testing.T) {
	dem := writeDEM(t, valleyCols, valleyRows, valley)
	// 300 rows south of the bottom edge.
	below, _ := lngLat(t, valleyRows+300, valleyCols/2)
	_, lng := lngLat(t, valleyRows-1, valleyCols/2)

	res := quietRunner().Watershed(context.Background(), Request{
		DEMPath: dem, Lat: below, Lng: lng, WorkDir: t.TempDir(),
	})
	if res.Code != errors.ErrCodeBounds {
		t.Fatalf("code = %q, want BOUNDS (%s)", res.Code, res.Error)
	}
	if res.Output != nil {
		t.Errorf("Output = %+v, want nil", res.Output)
	}
}

func TestWatershedOnEdge(t *testing.T) {
	dem := writeDEM(t, valleyCols, valleyRows, valley)
	// A centimetre inside the bottom-right corner.
	x := originX + valleyCols*pixelSize
	y := originY - valleyRows*pixelSize
	ll, err := geo.NewProjector().ToWGS84(orb.Point{x - 0.01, y + 0.01}, testCRS)
	if err != nil {
		t.Fatal(err)
	}

	res := quietRunner().Watershed(context.Background(), Request{
		DEMPath: dem, Lat: ll[1], Lng: ll[0], WorkDir: t.TempDir(),
	})
	if res.Failed() {
		t.Fatalf("Watershed failed: %s (%s)", res.Error, res.Code)
	}
}

func TestWatershed(t *testing.T) {
	dem := writeDEM(t, valleyCols, valleyRows, valley)
	lat, lng := lngLat(t, 15, 12)

	res := quietRunner().Watershed(context.Background(), Request{
		DEMPath: dem, Lat: lat, Lng: lng, WorkDir: t.TempDir(),
	})
	if res.Failed() {
		t.Fatalf("Watershed failed: %s (%s)", res.Error, res.Code)
	}
	out := res.Output

	// 100 m at 30 m pixels is a radius of 3: the window bottoms out at row
	// 18, where the centre column carries the most flow.
	want := raster.Cell{Row: 18, Col: valleyCols / 2}
	if out.Snap == nil || out.Snap.Cell != want {
		t.Fatalf("Snap = %+v, want cell %v", out.Snap, want)
	}
	if out.Snap.Radius != 3 {
		t.Errorf("Snap.Radius = %d, want 3", out.Snap.Radius)
	}
	wantDist := math.Hypot(3*pixelSize, 2*pixelSize)
	if math.Abs(out.Snap.Distance-wantDist) > 1e-6 {
		t.Errorf("Snap.Distance = %v, want %v", out.Snap.Distance, wantDist)
	}
	if out.PixelCount != int(out.Snap.Accumulation) {
		t.Errorf("PixelCount = %d, want accumulation %v", out.PixelCount, out.Snap.Accumulation)
	}
	if out.PixelCount <= 1 || out.PixelCount >= valleyCols*valleyRows {
		t.Errorf("PixelCount = %d, want a partial watershed", out.PixelCount)
	}
	if out.Area == nil || *out.Area != float64(out.PixelCount)*pixelSize*pixelSize {
		t.Errorf("Area = %v, want %v", out.Area, float64(out.PixelCount)*pixelSize*pixelSize)
	}
	if len(out.Intermediates) != 0 {
		t.Errorf("Intermediates = %v, want none", out.Intermediates)
	}
}

func TestWatershedKeepIntermediates(t *testing.T) {
	dem := writeDEM(t, valleyCols, valleyRows, valley)
	lat, lng := lngLat(t, 25, 10)

	res := quietRunner().Watershed(context.Background(), Request{
		DEMPath: dem, Lat: lat, Lng: lng, WorkDir: t.TempDir(), KeepIntermediates: true,
	})
	if res.Failed() {
		t.Fatalf("Watershed failed: %s", res.Error)
	}
	for _, name := range []string{"breached", "directions", "accumulation"} {
		p, ok := res.Output.Intermediates[name]
		if !ok {
			t.Errorf("intermediate %s missing", name)
			continue
		}
		if _, err := raster.LoadASCII(p); err != nil {
			t.Errorf("intermediate %s unreadable: %v", name, err)
		}
	}
}

func TestWatershedNoDrainage(t *testing.T) {
	dem := writeDEM(t, valleyCols, valleyRows, valley)
	lat, lng := lngLat(t, 5, 3)

	res := quietRunner().Watershed(context.Background(), Request{
		DEMPath: dem, Lat: lat, Lng: lng, WorkDir: t.TempDir(), MinAccumulation: Float(1e9),
	})
	if res.Code != errors.ErrCodeNoDrainageFound {
		t.Fatalf("code = %q, want NO_DRAINAGE_FOUND", res.Code)
	}
	if !strings.Contains(res.Error, "search radius 3 px") {
		t.Errorf("error = %q, want radius in message", res.Error)
	}
}

func TestRunFailures(t *testing.T) {
	dem := writeDEM(t, 10, 10, flat)
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		a    Analysis
		req  Request
		code errors.Code
	}{
		{"invalid azimuth", context.Background(), Hillshade, Request{DEMPath: dem, WorkDir: t.TempDir(), Azimuth: Float(400)}, errors.ErrCodeInvalidInput},
		{"no work dir", context.Background(), Hillshade, Request{DEMPath: dem}, errors.ErrCodeInvalidInput},
		{"missing dem", context.Background(), Hillshade, Request{DEMPath: filepath.Join(t.TempDir(), "nope.asc"), WorkDir: t.TempDir()}, errors.ErrCodeIO},
		{"layer without resolver", context.Background(), Hillshade, Request{Layer: LayerDTM, WorkDir: t.TempDir()}, errors.ErrCodeInvalidLayer},
		{"cancelled", cancelled, Hillshade, Request{DEMPath: dem, WorkDir: t.TempDir()}, errors.ErrCodeComputation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := quietRunner().Run(tt.ctx, tt.a, tt.req)
			if res.Code != tt.code {
				t.Errorf("code = %q, want %q (%s)", res.Code, tt.code, res.Error)
			}
			if res.Output != nil {
				t.Error("failed result should have no output")
			}
		})
	}
}

func TestRunResolvesLayers(t *testing.T) {
	dem := writeDEM(t, 10, 10, valley)
	r := quietRunner()
	r.Layers = StaticLayers(map[Layer]string{LayerDTM: dem})

	if res := r.Hillshade(context.Background(), Request{Layer: LayerDTM, WorkDir: t.TempDir()}); res.Failed() {
		t.Errorf("DTM: %s", res.Error)
	}
	if res := r.Hillshade(context.Background(), Request{Layer: LayerDSM, WorkDir: t.TempDir()}); res.Code != errors.ErrCodeInvalidLayer {
		t.Errorf("DSM code = %q, want INVALID_LAYER", res.Code)
	}
}

func TestRunReportsStages(t *testing.T) {
	observability.Reset()
	t.Cleanup(observability.Reset)
	hooks := &stageRecorder{}
	observability.SetAnalysisHooks(hooks)

	dem := writeDEM(t, valleyCols, valleyRows, valley)
	lat, lng := lngLat(t, 25, 10)
	res := quietRunner().Watershed(context.Background(), Request{DEMPath: dem, Lat: lat, Lng: lng, WorkDir: t.TempDir()})
	if res.Failed() {
		t.Fatal(res.Error)
	}

	want := []string{"load", "locate", "breach", "directions", "accumulate", "snap", "delineate", "render", "place"}
	if strings.Join(hooks.stages, ",") != strings.Join(want, ",") {
		t.Errorf("hook stages = %v, want %v", hooks.stages, want)
	}
	if len(res.Stats.Stages) != len(want) {
		t.Errorf("Stats.Stages = %d entries, want %d", len(res.Stats.Stages), len(want))
	}
	if res.Stats.Total <= 0 || res.Stats.Total < res.Stats.Duration("breach") {
		t.Errorf("Stats.Total = %v", res.Stats.Total)
	}
	if hooks.completed != 1 || hooks.lastErr != nil {
		t.Errorf("completed = %d, err = %v", hooks.completed, hooks.lastErr)
	}
}

func TestResultJSON(t *testing.T) {
	area := 900.0
	ok := &Result{Output: &Output{Image: "/w/watershed.png", Area: &area, PixelCount: 1}}
	data, err := ok.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if _, has := raw["output"]["bounds"]; !has {
		t.Errorf("output JSON missing bounds: %s", data)
	}
	if _, has := raw["error"]; has {
		t.Errorf("success JSON should not carry error: %s", data)
	}

	failed := Failure(&errors.NoDrainageError{Radius: 3, Distance: 100})
	data, err = failed.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	back, err := UnmarshalResult(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Code != errors.ErrCodeNoDrainageFound || !errors.Is(back.Err(), errors.ErrCodeNoDrainageFound) {
		t.Errorf("decoded failure = %+v", back)
	}

	if _, err := UnmarshalResult([]byte(`{}`)); !errors.Is(err, errors.ErrCodeFormat) {
		t.Errorf("empty result err = %v, want FORMAT", err)
	}
}

func TestFailureUncoded(t *testing.T) {
	res := Failure(io.ErrUnexpectedEOF)
	if res.Code != errors.ErrCodeInternal {
		t.Errorf("Code = %q, want INTERNAL_ERROR", res.Code)
	}
	if res.Err() != io.ErrUnexpectedEOF {
		t.Errorf("Err() = %v", res.Err())
	}
}

type stageRecorder struct {
	observability.NoopAnalysisHooks
	stages    []string
	completed int
	lastErr   error
}

func (h *stageRecorder) OnStageComplete(_ context.Context, _, stage string, _ time.Duration, _ error) {
	h.stages = append(h.stages, stage)
}

func (h *stageRecorder) OnAnalysisComplete(_ context.Context, _ string, _ time.Duration, err error) {
	h.completed++
	h.lastErr = err
}
