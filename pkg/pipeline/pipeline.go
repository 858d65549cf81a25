// Package pipeline runs reliefkit analyses end to end.
//
// Every analysis has the same shape: resolve and load a DEM, run a raster
// algorithm, render a semi-transparent overlay, and place the overlay on a
// map by reprojecting its pixel bounds to WGS84. The watershed analysis
// inserts hydrological conditioning, flow modelling and pour-point snapping
// before rendering.
//
// # Stages
//
//	hillshade:  load → shade → render → place
//	viewshed:   load → locate → visibility → render → place
//	watershed:  load → locate → breach → directions → accumulate → snap →
//	            delineate → render → place
//
// Each stage is timed, logged, wrapped in an OpenTelemetry span and reported
// to the registered [observability.AnalysisHooks].
//
// # Usage
//
//	runner := pipeline.NewRunner(logger)
//	req := pipeline.Request{DEMPath: "dtm.tif", Lat: 46.55, Lng: 7.98, WorkDir: dir}
//	if err := req.ValidateAndSetDefaults(pipeline.Watershed); err != nil {
//	    return err // reject synchronously
//	}
//	res := runner.Run(ctx, pipeline.Watershed, req)
//	if res.Failed() {
//	    fmt.Println(res.Code, res.Error)
//	}
//
// Runner methods never return Go errors for analysis failures; they return a
// [Result] carrying the error message and code, the shape a poller observes.
package pipeline

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/hillshade"
	"github.com/matzehuels/reliefkit/pkg/hydro"
	"github.com/matzehuels/reliefkit/pkg/overlay"
	"github.com/matzehuels/reliefkit/pkg/viewshed"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Task Runner
// =============================================================================

const (
	// DefaultAzimuth is the hillshade light direction in degrees from north.
	DefaultAzimuth = hillshade.DefaultAzimuth

	// DefaultAltitude is the hillshade light elevation in degrees.
	DefaultAltitude = hillshade.DefaultAltitude

	// DefaultHeight is the viewshed observer height in metres.
	DefaultHeight = viewshed.DefaultHeight

	// DefaultSnapDistance is the watershed pour-point search distance in
	// DEM linear units.
	DefaultSnapDistance = 100.0

	// DefaultMinAccumulation is the accumulation a snapped cell must exceed.
	DefaultMinAccumulation = hydro.DefaultMinAccumulation

	// DefaultPadding is the watershed crop padding in pixels.
	DefaultPadding = overlay.DefaultPadding
)

// =============================================================================
// Analyses and Layers
// =============================================================================

// Analysis names one of the supported analyses.
type Analysis string

// Supported analyses.
const (
	Hillshade Analysis = "hillshade"
	Viewshed  Analysis = "viewshed"
	Watershed Analysis = "watershed"
)

// Analyses lists every supported analysis.
var Analyses = []Analysis{Hillshade, Viewshed, Watershed}

// ParseAnalysis returns the analysis named s.
func ParseAnalysis(s string) (Analysis, error) {
	for _, a := range Analyses {
		if strings.EqualFold(s, string(a)) {
			return a, nil
		}
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unknown analysis %q (must be one of: hillshade, viewshed, watershed)", s)
}

// NeedsPoint reports whether the analysis requires an input coordinate.
func (a Analysis) NeedsPoint() bool { return a == Viewshed || a == Watershed }

// Layer selects which elevation model of a dataset to analyse.
type Layer string

// Supported layers.
const (
	LayerDSM Layer = "DSM" // surface model, including buildings and vegetation
	LayerDTM Layer = "DTM" // bare-earth terrain model
)

// ValidateLayer checks that l names a supported layer.
func ValidateLayer(l Layer) error {
	switch l {
	case LayerDSM, LayerDTM:
		return nil
	}
	return errors.New(errors.ErrCodeInvalidLayer, "%s is not a valid layer", l)
}

// LayerResolver maps a layer to the DEM file backing it. It returns an
// [errors.ErrCodeInvalidLayer] error when the dataset has no such layer.
type LayerResolver func(Layer) (string, error)

// StaticLayers resolves layers from a fixed table.
func StaticLayers(paths map[Layer]string) LayerResolver {
	return func(l Layer) (string, error) {
		if err := ValidateLayer(l); err != nil {
			return "", err
		}
		p, ok := paths[l]
		if !ok || p == "" {
			return "", errors.New(errors.ErrCodeInvalidLayer, "no %s layer is available", l)
		}
		return p, nil
	}
}

// =============================================================================
// Request - Analysis Parameters
// =============================================================================

// Request carries the parameters of one analysis run. Optional numeric
// parameters are pointers so that an explicit zero (azimuth 0, snap
// distance 0) is distinguishable from "use the default".
type Request struct {
	// DEM selection: either a path, or a layer resolved through the
	// runner's LayerResolver.
	Layer   Layer  `json:"layer,omitempty"`
	DEMPath string `json:"dem_path,omitempty"`

	// Input point in WGS84 degrees. Required by viewshed and watershed.
	Lat float64 `json:"lat,omitempty"`
	Lng float64 `json:"lng,omitempty"`

	// Hillshade
	Azimuth  *float64 `json:"azimuth,omitempty"`
	Altitude *float64 `json:"altitude,omitempty"`

	// Viewshed
	Height *float64 `json:"height,omitempty"`

	// Watershed
	SnapDistance    *float64 `json:"snap_distance,omitempty"`
	MinAccumulation *float64 `json:"min_accumulation,omitempty"`
	Padding         *int     `json:"padding,omitempty"`

	// Artifacts
	WorkDir           string `json:"-"`
	KeepIntermediates bool   `json:"keep_intermediates,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	validated bool
}

// Float returns a pointer to v, for filling optional Request fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for filling optional Request fields.
func Int(v int) *int { return &v }

// Validate checks the request for analysis a without modifying it. Every
// failure is an input error raised before any work is dispatched.
func (r *Request) Validate(a Analysis) error {
	if _, err := ParseAnalysis(string(a)); err != nil {
		return err
	}
	if r.DEMPath == "" {
		if r.Layer == "" {
			return errors.New(errors.ErrCodeInvalidInput, "a DEM path or layer is required")
		}
		if err := ValidateLayer(r.Layer); err != nil {
			return err
		}
	} else if err := errors.ValidatePath(r.DEMPath); err != nil {
		return err
	}

	if a.NeedsPoint() {
		if err := errors.ValidateCoordinates(r.Lat, r.Lng); err != nil {
			return err
		}
	}

	switch a {
	case Hillshade:
		if r.Azimuth != nil {
			if err := errors.ValidateAzimuth(*r.Azimuth); err != nil {
				return err
			}
		}
		if r.Altitude != nil {
			if err := errors.ValidateAltitude(*r.Altitude); err != nil {
				return err
			}
		}
	case Viewshed:
		if r.Height != nil {
			if err := errors.ValidateNonNegative("height", *r.Height); err != nil {
				return err
			}
		}
	case Watershed:
		if r.SnapDistance != nil {
			if err := errors.ValidateNonNegative("snap distance", *r.SnapDistance); err != nil {
				return err
			}
		}
		if r.MinAccumulation != nil {
			if err := errors.ValidateNonNegative("minimum accumulation", *r.MinAccumulation); err != nil {
				return err
			}
		}
		if r.Padding != nil && *r.Padding < 0 {
			return errors.New(errors.ErrCodeInvalidInput, "padding must not be negative")
		}
	}
	return nil
}

// ValidateAndSetDefaults validates the request for analysis a and fills in
// defaults. It is idempotent.
func (r *Request) ValidateAndSetDefaults(a Analysis) error {
	if r.validated {
		return nil
	}
	if err := r.Validate(a); err != nil {
		return err
	}
	r.SetDefaults()
	r.validated = true
	return nil
}

// SetDefaults fills every unset optional parameter.
func (r *Request) SetDefaults() {
	if r.Azimuth == nil {
		r.Azimuth = Float(DefaultAzimuth)
	}
	if r.Altitude == nil {
		r.Altitude = Float(DefaultAltitude)
	}
	if r.Height == nil {
		r.Height = Float(DefaultHeight)
	}
	if r.SnapDistance == nil {
		r.SnapDistance = Float(DefaultSnapDistance)
	}
	if r.MinAccumulation == nil {
		r.MinAccumulation = Float(DefaultMinAccumulation)
	}
	if r.Padding == nil {
		r.Padding = Int(DefaultPadding)
	}
	if r.Logger == nil {
		r.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// String summarises the request for log lines.
func (r Request) String() string {
	src := r.DEMPath
	if src == "" {
		src = string(r.Layer)
	}
	if r.Lat == 0 && r.Lng == 0 {
		return src
	}
	return fmt.Sprintf("%s @ %.5f,%.5f", src, r.Lat, r.Lng)
}
