package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/geo"
	"github.com/matzehuels/reliefkit/pkg/hillshade"
	"github.com/matzehuels/reliefkit/pkg/observability"
	"github.com/matzehuels/reliefkit/pkg/raster"
	"github.com/matzehuels/reliefkit/pkg/viewshed"
)

// Runner executes analyses.
//
// The Runner holds no per-analysis state. Multiple goroutines can safely use
// the same Runner with different requests.
type Runner struct {
	// Shading computes hillshades.
	Shading *hillshade.Engine
	// Visibility computes viewsheds.
	Visibility *viewshed.Engine
	// Projector converts between WGS84 and DEM coordinates. It caches
	// transforms and is shared across analyses.
	Projector *geo.Projector
	// Layers resolves Request.Layer when no DEM path is given.
	Layers LayerResolver
	// DefaultCRS is assigned to DEMs whose file carries no CRS.
	DefaultCRS string
	Logger     *log.Logger
}

// NewRunner creates a runner with the in-process engines. If logger is nil,
// the default charmbracelet logger is used.
func NewRunner(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	shading := hillshade.Default()
	shading.Logger = logger
	visibility := viewshed.NewEngine(viewshed.LineOfSight{})
	visibility.Logger = logger
	return &Runner{
		Shading:    shading,
		Visibility: visibility,
		Projector:  geo.NewProjector(),
		Logger:     logger,
	}
}

// Hillshade runs the hillshade analysis.
func (r *Runner) Hillshade(ctx context.Context, req Request) *Result {
	return r.Run(ctx, Hillshade, req)
}

// Viewshed runs the viewshed analysis.
func (r *Runner) Viewshed(ctx context.Context, req Request) *Result {
	return r.Run(ctx, Viewshed, req)
}

// Watershed runs the watershed analysis.
func (r *Runner) Watershed(ctx context.Context, req Request) *Result {
	return r.Run(ctx, Watershed, req)
}

// Run executes analysis a. Every failure, validation included, is returned
// as a failed Result.
func (r *Runner) Run(ctx context.Context, a Analysis, req Request) *Result {
	start := time.Now()
	if req.Logger == nil {
		req.Logger = r.Logger
	}
	if err := req.ValidateAndSetDefaults(a); err != nil {
		return Failure(err)
	}
	logger := req.Logger.With("analysis", a)

	ctx, span := observability.Tracer().Start(ctx, "reliefkit."+string(a),
		trace.WithAttributes(
			attribute.String("reliefkit.analysis", string(a)),
			attribute.String("reliefkit.source", req.String()),
		))
	defer span.End()

	hooks := observability.Analysis()
	hooks.OnAnalysisStart(ctx, string(a))

	x := &run{Runner: r, analysis: a, req: &req, logger: logger}
	out, err := x.execute(ctx)
	x.stats.Total = time.Since(start)
	hooks.OnAnalysisComplete(ctx, string(a), x.stats.Total, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.UserMessage(err))
		logger.Error("analysis failed", "code", errors.GetCode(err), "err", errors.UserMessage(err), "duration", x.stats.Total)
		res := Failure(err)
		res.Stats = x.stats
		return res
	}
	logger.Info("analysis complete", "image", out.Image, "duration", x.stats.Total)
	return &Result{Output: out, Stats: x.stats}
}

// run carries the state of one analysis invocation.
type run struct {
	*Runner
	analysis Analysis
	req      *Request
	logger   *log.Logger
	stats    Stats
	dem      *raster.Raster
	proj     *geo.Projector
	kept     map[string]string
}

func (x *run) execute(ctx context.Context) (*Output, error) {
	if x.req.WorkDir == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "a work directory is required")
	}
	if err := os.MkdirAll(x.req.WorkDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "create work directory")
	}
	x.proj = x.Projector
	if x.proj == nil {
		x.proj = geo.NewProjector()
	}
	if err := x.stage(ctx, "load", x.load); err != nil {
		return nil, err
	}
	switch x.analysis {
	case Hillshade:
		return x.hillshade(ctx)
	case Viewshed:
		return x.viewshed(ctx)
	default:
		return x.watershed(ctx)
	}
}

// stage runs fn as a named, timed and traced pipeline stage.
func (x *run) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeComputation, err, "%s cancelled before %s", x.analysis, name)
	}
	ctx, span := observability.Tracer().Start(ctx, string(x.analysis)+"."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	d := time.Since(start)

	x.stats.Stages = append(x.stats.Stages, StageStat{Name: name, Duration: d})
	observability.Analysis().OnStageComplete(ctx, string(x.analysis), name, d, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.UserMessage(err))
		x.logger.Debug("stage failed", "stage", name, "duration", d)
		return err
	}
	x.logger.Debug("stage complete", "stage", name, "duration", d)
	return nil
}

func (x *run) load(ctx context.Context) error {
	path := x.req.DEMPath
	if path == "" {
		if x.Layers == nil {
			return errors.New(errors.ErrCodeInvalidLayer, "no %s layer is available", x.req.Layer)
		}
		var err error
		if path, err = x.Layers(x.req.Layer); err != nil {
			return err
		}
	}
	dem, err := raster.Load(path, raster.WithDefaultCRS(x.DefaultCRS))
	if err != nil {
		return err
	}
	x.dem = dem
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("reliefkit.dem.width", dem.Width),
		attribute.Int("reliefkit.dem.height", dem.Height),
	)
	x.logger.Info("loaded DEM", "path", path, "cols", dem.Width, "rows", dem.Height, "crs", shortCRS(dem.CRS))
	return nil
}

func shortCRS(crs string) string {
	if len(crs) > 40 {
		return crs[:37] + "..."
	}
	return crs
}
