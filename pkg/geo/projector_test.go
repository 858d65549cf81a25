package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/matzehuels/reliefkit/pkg/errors"
)

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestDefinition(t *testing.T) {
	tests := []struct {
		crs     string
		want    string
		wantErr bool
	}{
		{"EPSG:4326", epsgDefs[4326], false},
		{"epsg:3857", epsgDefs[3857], false},
		{"EPSG:32633", utmDef(33, false), false},
		{"EPSG:32718", utmDef(18, true), false},
		{"+proj=longlat +datum=WGS84", "+proj=longlat +datum=WGS84", false},
		{"", "", true},
		{"   ", "", true},
		{"EPSG:abc", "", true},
		{"EPSG:9999", "", true},
	}
	for _, tt := range tests {
		got, err := Definition(tt.crs)
		if (err != nil) != tt.wantErr {
			t.Errorf("Definition(%q) error = %v, wantErr %v", tt.crs, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, errors.ErrCodeProjection) {
			t.Errorf("Definition(%q) code = %s, want PROJECTION", tt.crs, errors.GetCode(err))
		}
		if got != tt.want {
			t.Errorf("Definition(%q) = %q, want %q", tt.crs, got, tt.want)
		}
	}
}

func TestForwardUTM(t *testing.T) {
	p := NewProjector()

	// The central meridian of zone 33 on the equator is the false origin.
	got, err := p.ToCRS(orb.Point{15, 0}, "EPSG:32633")
	if err != nil {
		t.Fatalf("ToCRS error: %v", err)
	}
	if !near(got[0], 500000, 1e-3) || !near(got[1], 0, 1e-3) {
		t.Errorf("ToCRS = %v, want [500000 0]", got)
	}

	in := orb.Point{16.3725, 48.2083}
	xy, err := p.ToCRS(in, "EPSG:32633")
	if err != nil {
		t.Fatal(err)
	}
	back, err := p.ToWGS84(xy, "EPSG:32633")
	if err != nil {
		t.Fatal(err)
	}
	if !near(back[0], in[0], 1e-7) || !near(back[1], in[1], 1e-7) {
		t.Errorf("round trip = %v, want %v", back, in)
	}
}

func TestForwardWebMercator(t *testing.T) {
	p := NewProjector()
	got, err := p.Forward(orb.Point{180, 0}, WGS84, "EPSG:3857")
	if err != nil {
		t.Fatal(err)
	}
	if !near(got[0], 20037508.342789244, 1e-3) || !near(got[1], 0, 1e-3) {
		t.Errorf("Forward = %v", got)
	}
}

func TestForwardIdentity(t *testing.T) {
	p := NewProjector()
	in := orb.Point{7.5, 46.9}
	got, err := p.Forward(in, "EPSG:4326", "epsg:4326")
	if err != nil {
		t.Fatal(err)
	}
	if got != in {
		t.Errorf("Forward = %v, want %v", got, in)
	}
}

func TestForwardErrors(t *testing.T) {
	p := NewProjector()
	tests := []struct {
		name     string
		src, dst string
	}{
		{"undefined source", "", "EPSG:4326"},
		{"undefined target", "EPSG:4326", ""},
		{"unknown code", "EPSG:1", "EPSG:4326"},
		{"garbage proj4", "+proj=nonsense", "EPSG:4326"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Forward(orb.Point{1, 1}, tt.src, tt.dst)
			if !errors.Is(err, errors.ErrCodeProjection) {
				t.Errorf("Forward error = %v, want PROJECTION", err)
			}
		})
	}
}

func TestProjectorCachesTransforms(t *testing.T) {
	p := NewProjector()
	for i := 0; i < 3; i++ {
		if _, err := p.ToCRS(orb.Point{15, 1}, "EPSG:32633"); err != nil {
			t.Fatal(err)
		}
	}
	if len(p.transforms) != 1 {
		t.Errorf("cached transforms = %d, want 1", len(p.transforms))
	}
	if len(p.systems) != 2 {
		t.Errorf("cached systems = %d, want 2", len(p.systems))
	}
}

func TestIsGeographic(t *testing.T) {
	tests := []struct {
		crs  string
		want bool
	}{
		{"EPSG:4326", true},
		{"epsg:4269", true},
		{"EPSG:32633", false},
		{"EPSG:3857", false},
		{"+proj=longlat +datum=WGS84", true},
		{`GEOGCS["WGS 84",DATUM["WGS_1984"]]`, true},
		{`PROJCS["WGS 84 / UTM zone 33N"]`, false},
		{"", false},
		{"EPSG:99999", false},
	}
	for _, tt := range tests {
		if got := IsGeographic(tt.crs); got != tt.want {
			t.Errorf("IsGeographic(%q) = %v, want %v", tt.crs, got, tt.want)
		}
	}
}
