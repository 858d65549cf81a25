// Package config loads reliefkit settings.
//
// Values are resolved in order of increasing precedence:
//
//  1. built-in defaults ([Default])
//  2. a reliefkit.toml file, found in the working directory or in
//     $XDG_CONFIG_HOME/reliefkit, or named explicitly
//  3. RELIEFKIT_* environment variables, with dots replaced by
//     underscores (RELIEFKIT_RESULTS_BACKEND sets results.backend)
//
// # Example file
//
//	default_crs = "EPSG:32633"
//
//	[analysis]
//	snap_distance = 150.0
//
//	[results]
//	backend = "redis"
//	ttl = "12h"
//
//	[results.redis]
//	addr = "localhost:6379"
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/matzehuels/reliefkit/pkg/pipeline"
)

// FileName is the config file name without directory.
const FileName = "reliefkit.toml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RELIEFKIT"

// Backend names.
const (
	BackendBuiltin      = "builtin"
	BackendGDALDEM      = "gdaldem"
	BackendGDALViewshed = "gdal_viewshed"

	StoreFile  = "file"
	StoreRedis = "redis"
	StoreNone  = "none"

	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Config holds all reliefkit configuration.
type Config struct {
	// DefaultCRS is assigned to DEMs that carry no CRS of their own.
	DefaultCRS string          `mapstructure:"default_crs" toml:"default_crs"`
	Analysis   AnalysisConfig  `mapstructure:"analysis" toml:"analysis"`
	Hillshade  HillshadeConfig `mapstructure:"hillshade" toml:"hillshade"`
	Viewshed   ViewshedConfig  `mapstructure:"viewshed" toml:"viewshed"`
	Layers     LayersConfig    `mapstructure:"layers" toml:"layers"`
	Results    ResultsConfig   `mapstructure:"results" toml:"results"`
	Tasks      TasksConfig     `mapstructure:"tasks" toml:"tasks"`
	Telemetry  TelemetryConfig `mapstructure:"telemetry" toml:"telemetry"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" toml:"-"`
}

// AnalysisConfig holds the defaults for unset request parameters.
type AnalysisConfig struct {
	Azimuth         float64 `mapstructure:"azimuth" toml:"azimuth"`
	Altitude        float64 `mapstructure:"altitude" toml:"altitude"`
	Height          float64 `mapstructure:"height" toml:"height"`
	SnapDistance    float64 `mapstructure:"snap_distance" toml:"snap_distance"`
	MinAccumulation float64 `mapstructure:"min_accumulation" toml:"min_accumulation"`
	Padding         int     `mapstructure:"padding" toml:"padding"`
}

type HillshadeConfig struct {
	Backend string `mapstructure:"backend" toml:"backend"`
	Binary  string `mapstructure:"binary" toml:"binary"`
}

type ViewshedConfig struct {
	Backend   string `mapstructure:"backend" toml:"backend"`
	Binary    string `mapstructure:"binary" toml:"binary"`
	Translate string `mapstructure:"translate" toml:"translate"`
	// MaxDistance limits the builtin line-of-sight radius; zero means the
	// whole DEM.
	MaxDistance float64 `mapstructure:"max_distance" toml:"max_distance"`
}

// LayersConfig maps the DSM and DTM layers to DEM files.
type LayersConfig struct {
	DSM string `mapstructure:"dsm" toml:"dsm"`
	DTM string `mapstructure:"dtm" toml:"dtm"`
}

type ResultsConfig struct {
	Backend string      `mapstructure:"backend" toml:"backend"`
	Dir     string      `mapstructure:"dir" toml:"dir"`
	TTL     string      `mapstructure:"ttl" toml:"ttl"`
	Redis   RedisConfig `mapstructure:"redis" toml:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" toml:"addr"`
	Password string `mapstructure:"password" toml:"password"`
	DB       int    `mapstructure:"db" toml:"db"`
	Prefix   string `mapstructure:"prefix" toml:"prefix"`
}

type TasksConfig struct {
	// Concurrency bounds parallel analyses; zero means GOMAXPROCS.
	Concurrency int    `mapstructure:"concurrency" toml:"concurrency"`
	WorkRoot    string `mapstructure:"work_root" toml:"work_root"`
}

type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name" toml:"service_name"`
	Exporter    string  `mapstructure:"exporter" toml:"exporter"`
	Endpoint    string  `mapstructure:"endpoint" toml:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio" toml:"sample_ratio"`
	// MetricsFile receives Prometheus metrics in text format after each
	// command; empty disables the export.
	MetricsFile string `mapstructure:"metrics_file" toml:"metrics_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Analysis: AnalysisConfig{
			Azimuth:         pipeline.DefaultAzimuth,
			Altitude:        pipeline.DefaultAltitude,
			Height:          pipeline.DefaultHeight,
			SnapDistance:    pipeline.DefaultSnapDistance,
			MinAccumulation: pipeline.DefaultMinAccumulation,
			Padding:         pipeline.DefaultPadding,
		},
		Hillshade: HillshadeConfig{Backend: BackendBuiltin, Binary: "gdaldem"},
		Viewshed:  ViewshedConfig{Backend: BackendBuiltin, Binary: "gdal_viewshed", Translate: "gdal_translate"},
		Results: ResultsConfig{
			Backend: StoreFile,
			Dir:     defaultResultsDir(),
			TTL:     "24h",
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "reliefkit:"},
		},
		Tasks: TasksConfig{WorkRoot: filepath.Join(os.TempDir(), "reliefkit")},
		Telemetry: TelemetryConfig{
			ServiceName: "reliefkit",
			Exporter:    ExporterNone,
			Endpoint:    "localhost:4317",
			SampleRatio: 1,
		},
	}
}

func defaultResultsDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "reliefkit", "results")
	}
	return filepath.Join(os.TempDir(), "reliefkit", "results")
}

// Dir returns the per-user config directory, $XDG_CONFIG_HOME/reliefkit.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(base, "reliefkit"), nil
}

// DefaultPath returns the path `config init` writes to.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load resolves the configuration. An empty path searches the working
// directory and [Dir]; a missing file is not an error in that case. A
// non-empty path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.AddConfigPath(".")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every field of d so that environment variables
// can override keys absent from the file.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("default_crs", d.DefaultCRS)

	v.SetDefault("analysis.azimuth", d.Analysis.Azimuth)
	v.SetDefault("analysis.altitude", d.Analysis.Altitude)
	v.SetDefault("analysis.height", d.Analysis.Height)
	v.SetDefault("analysis.snap_distance", d.Analysis.SnapDistance)
	v.SetDefault("analysis.min_accumulation", d.Analysis.MinAccumulation)
	v.SetDefault("analysis.padding", d.Analysis.Padding)

	v.SetDefault("hillshade.backend", d.Hillshade.Backend)
	v.SetDefault("hillshade.binary", d.Hillshade.Binary)

	v.SetDefault("viewshed.backend", d.Viewshed.Backend)
	v.SetDefault("viewshed.binary", d.Viewshed.Binary)
	v.SetDefault("viewshed.translate", d.Viewshed.Translate)
	v.SetDefault("viewshed.max_distance", d.Viewshed.MaxDistance)

	v.SetDefault("layers.dsm", d.Layers.DSM)
	v.SetDefault("layers.dtm", d.Layers.DTM)

	v.SetDefault("results.backend", d.Results.Backend)
	v.SetDefault("results.dir", d.Results.Dir)
	v.SetDefault("results.ttl", d.Results.TTL)
	v.SetDefault("results.redis.addr", d.Results.Redis.Addr)
	v.SetDefault("results.redis.password", d.Results.Redis.Password)
	v.SetDefault("results.redis.db", d.Results.Redis.DB)
	v.SetDefault("results.redis.prefix", d.Results.Redis.Prefix)

	v.SetDefault("tasks.concurrency", d.Tasks.Concurrency)
	v.SetDefault("tasks.work_root", d.Tasks.WorkRoot)

	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	v.SetDefault("telemetry.exporter", d.Telemetry.Exporter)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	v.SetDefault("telemetry.sample_ratio", d.Telemetry.SampleRatio)
	v.SetDefault("telemetry.metrics_file", d.Telemetry.MetricsFile)
}

// ResultsTTL returns the parsed results TTL.
func (c *Config) ResultsTTL() time.Duration {
	d, _ := time.ParseDuration(c.Results.TTL)
	return d
}

// LayerResolver returns a resolver over the configured layer files.
func (c *Config) LayerResolver() pipeline.LayerResolver {
	return pipeline.StaticLayers(map[pipeline.Layer]string{
		pipeline.LayerDSM: c.Layers.DSM,
		pipeline.LayerDTM: c.Layers.DTM,
	})
}

// Apply fills the unset parameters of req from the analysis defaults.
func (a AnalysisConfig) Apply(req *pipeline.Request) {
	if req.Azimuth == nil {
		req.Azimuth = pipeline.Float(a.Azimuth)
	}
	if req.Altitude == nil {
		req.Altitude = pipeline.Float(a.Altitude)
	}
	if req.Height == nil {
		req.Height = pipeline.Float(a.Height)
	}
	if req.SnapDistance == nil {
		req.SnapDistance = pipeline.Float(a.SnapDistance)
	}
	if req.MinAccumulation == nil {
		req.MinAccumulation = pipeline.Float(a.MinAccumulation)
	}
	if req.Padding == nil {
		req.Padding = pipeline.Int(a.Padding)
	}
}
