package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/pipeline"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.File != "" {
		t.Errorf("File = %q, want none", cfg.File)
	}
	want := Default()
	if cfg.Analysis != want.Analysis {
		t.Errorf("Analysis = %+v, want %+v", cfg.Analysis, want.Analysis)
	}
	if cfg.Results.Backend != StoreFile || cfg.ResultsTTL() != 24*time.Hour {
		t.Errorf("Results = %+v", cfg.Results)
	}
	if cfg.Telemetry.TracingEnabled() {
		t.Error("tracing should be off by default")
	}
}

func TestLoadFile(t *testing.T) {
	dir := isolate(t)
	body := `
default_crs = "EPSG:32633"

[analysis]
snap_distance = 250.0
padding = 4

[viewshed]
backend = "gdal_viewshed"

[results]
backend = "redis"
ttl = "2h"

[results.redis]
addr = "cache:6379"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if filepath.Base(cfg.File) != FileName {
		t.Errorf("File = %q", cfg.File)
	}
	if cfg.Analysis.SnapDistance != 250 || cfg.Analysis.Padding != 4 {
		t.Errorf("Analysis = %+v", cfg.Analysis)
	}
	if cfg.Analysis.Azimuth != pipeline.DefaultAzimuth {
		t.Errorf("unset azimuth = %g, want default", cfg.Analysis.Azimuth)
	}
	if cfg.Viewshed.Backend != BackendGDALViewshed {
		t.Errorf("viewshed.backend = %q", cfg.Viewshed.Backend)
	}
	if cfg.Results.Redis.Addr != "cache:6379" || cfg.Results.Redis.Prefix != "reliefkit:" {
		t.Errorf("Redis = %+v", cfg.Results.Redis)
	}
	if cfg.ResultsTTL() != 2*time.Hour {
		t.Errorf("TTL = %v", cfg.ResultsTTL())
	}
}

func TestLoadFromConfigDir(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "xdg", "reliefkit", FileName)
	cfg := Default()
	cfg.Tasks.Concurrency = 3
	if err := WriteFile(path, cfg, false); err != nil {
		t.Fatal(err)
	}

	got, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if got.Tasks.Concurrency != 3 {
		t.Errorf("Concurrency = %d, want 3", got.Tasks.Concurrency)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.toml")
	if err := os.WriteFile(path, []byte("[hillshade]\nbackend = \"builtin\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RELIEFKIT_HILLSHADE_BACKEND", "gdaldem")
	t.Setenv("RELIEFKIT_ANALYSIS_MIN_ACCUMULATION", "50")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Hillshade.Backend != BackendGDALDEM {
		t.Errorf("hillshade.backend = %q, want gdaldem", cfg.Hillshade.Backend)
	}
	if cfg.Analysis.MinAccumulation != 50 {
		t.Errorf("min_accumulation = %g, want 50", cfg.Analysis.MinAccumulation)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	dir := isolate(t)
	if _, err := Load(filepath.Join(dir, "nope.toml")); err == nil {
		t.Error("missing explicit file should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"defaults", func(*Config) {}, ""},
		{"azimuth", func(c *Config) { c.Analysis.Azimuth = 400 }, "azimuth"},
		{"altitude", func(c *Config) { c.Analysis.Altitude = -1 }, "altitude"},
		{"min accumulation", func(c *Config) { c.Analysis.MinAccumulation = -1 }, "analysis.min_accumulation"},
		{"padding", func(c *Config) { c.Analysis.Padding = -2 }, "analysis.padding"},
		{"hillshade backend", func(c *Config) { c.Hillshade.Backend = "grass" }, "hillshade.backend"},
		{"viewshed backend", func(c *Config) { c.Viewshed.Backend = "gdaldem" }, "viewshed.backend"},
		{"results backend", func(c *Config) { c.Results.Backend = "s3" }, "results.backend"},
		{"redis addr", func(c *Config) { c.Results.Backend = StoreRedis; c.Results.Redis.Addr = "" }, "results.redis.addr"},
		{"ttl", func(c *Config) { c.Results.TTL = "forever" }, "results.ttl"},
		{"exporter", func(c *Config) { c.Telemetry.Exporter = "jaeger" }, "telemetry.exporter"},
		{"sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 2 }, "telemetry.sample_ratio"},
		{"crs", func(c *Config) { c.DefaultCRS = "EPSG:99999" }, "default_crs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate = %v, want mention of %q", err, tt.want)
			}
			if !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("code = %q, want INVALID_INPUT", errors.GetCode(err))
			}
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Analysis.Padding = -1
	cfg.Tasks.Concurrency = -1
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"analysis.padding", "tasks.concurrency"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", FileName)
	if err := WriteFile(path, Default(), false); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := WriteFile(path, Default(), false); err == nil {
		t.Error("second write without overwrite should fail")
	}
	if err := WriteFile(path, Default(), true); err != nil {
		t.Errorf("overwrite: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load written file: %v", err)
	}
	if cfg.Analysis != Default().Analysis {
		t.Errorf("round trip Analysis = %+v", cfg.Analysis)
	}
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, Default()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"[analysis]", "[results.redis]", `backend = "builtin"`} {
		if !strings.Contains(out, want) {
			t.Errorf("encoded config missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "File") {
		t.Error("File field should not be encoded")
	}
}

func TestApply(t *testing.T) {
	a := Default().Analysis
	a.SnapDistance = 42

	req := pipeline.Request{Azimuth: pipeline.Float(0)}
	a.Apply(&req)
	if *req.Azimuth != 0 {
		t.Errorf("explicit azimuth overwritten: %g", *req.Azimuth)
	}
	if *req.SnapDistance != 42 || *req.Padding != a.Padding || *req.MinAccumulation != a.MinAccumulation {
		t.Errorf("defaults not applied: %+v", req)
	}

	zero := pipeline.Request{MinAccumulation: pipeline.Float(0)}
	a.Apply(&zero)
	if *zero.MinAccumulation != 0 {
		t.Errorf("explicit zero threshold overwritten: %g", *zero.MinAccumulation)
	}
}

func TestLayerResolver(t *testing.T) {
	cfg := Default()
	cfg.Layers.DSM = "/data/dsm.tif"
	resolve := cfg.LayerResolver()

	if p, err := resolve(pipeline.LayerDSM); err != nil || p != "/data/dsm.tif" {
		t.Errorf("DSM = %q, %v", p, err)
	}
	if _, err := resolve(pipeline.LayerDTM); !errors.Is(err, errors.ErrCodeInvalidLayer) {
		t.Errorf("DTM = %v, want INVALID_LAYER", err)
	}
}

func TestExampleFile(t *testing.T) {
	path, err := filepath.Abs(filepath.Join("..", "..", "examples", FileName))
	if err != nil {
		t.Fatal(err)
	}
	isolate(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%s): %v", path, err)
	}
	if cfg.Results.Backend != StoreRedis || !cfg.Telemetry.TracingEnabled() {
		t.Errorf("example config = %+v", cfg)
	}
}
