package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/geo"
)

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}
	check := func(err error) {
		if err != nil {
			errs = append(errs, errors.UserMessage(err))
		}
	}

	if c.DefaultCRS != "" {
		if _, err := geo.Definition(c.DefaultCRS); err != nil {
			add("default_crs: %s", errors.UserMessage(err))
		}
	}

	a := c.Analysis
	check(errors.ValidateAzimuth(a.Azimuth))
	check(errors.ValidateAltitude(a.Altitude))
	check(errors.ValidateNonNegative("analysis.height", a.Height))
	check(errors.ValidateNonNegative("analysis.snap_distance", a.SnapDistance))
	check(errors.ValidateNonNegative("analysis.min_accumulation", a.MinAccumulation))
	if a.Padding < 0 {
		add("analysis.padding must not be negative, got %d", a.Padding)
	}

	if !oneOf(c.Hillshade.Backend, BackendBuiltin, BackendGDALDEM) {
		add("hillshade.backend must be %s or %s, got %q", BackendBuiltin, BackendGDALDEM, c.Hillshade.Backend)
	}
	if !oneOf(c.Viewshed.Backend, BackendBuiltin, BackendGDALViewshed) {
		add("viewshed.backend must be %s or %s, got %q", BackendBuiltin, BackendGDALViewshed, c.Viewshed.Backend)
	}
	check(errors.ValidateNonNegative("viewshed.max_distance", c.Viewshed.MaxDistance))

	switch c.Results.Backend {
	case StoreFile:
		if c.Results.Dir == "" {
			add("results.dir is required for the file backend")
		}
	case StoreRedis:
		if c.Results.Redis.Addr == "" {
			add("results.redis.addr is required for the redis backend")
		}
		if c.Results.Redis.Prefix == "" {
			add("results.redis.prefix is required for the redis backend")
		}
	case StoreNone:
	default:
		add("results.backend must be %s, %s or %s, got %q", StoreFile, StoreRedis, StoreNone, c.Results.Backend)
	}
	if d, err := time.ParseDuration(c.Results.TTL); err != nil || d <= 0 {
		add("results.ttl must be a positive duration such as \"24h\", got %q", c.Results.TTL)
	}

	if c.Tasks.Concurrency < 0 {
		add("tasks.concurrency must not be negative, got %d", c.Tasks.Concurrency)
	}

	t := c.Telemetry
	if !oneOf(t.Exporter, "", ExporterNone, ExporterStdout, ExporterOTLP) {
		add("telemetry.exporter must be %s, %s or %s, got %q", ExporterNone, ExporterStdout, ExporterOTLP, t.Exporter)
	}
	if t.Exporter == ExporterOTLP && t.Endpoint == "" {
		add("telemetry.endpoint is required for the otlp exporter")
	}
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		add("telemetry.sample_ratio must be between 0 and 1, got %g", t.SampleRatio)
	}

	if len(errs) > 0 {
		return errors.New(errors.ErrCodeInvalidInput, "config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// TracingEnabled reports whether spans are exported.
func (t TelemetryConfig) TracingEnabled() bool {
	return t.Exporter != "" && t.Exporter != ExporterNone
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
