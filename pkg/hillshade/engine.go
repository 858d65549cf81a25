package hillshade

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/raster"
)

// Engine computes a hillshade with a fallback strategy.
type Engine struct {
	Primary  Shader
	Fallback Shader
	Logger   *log.Logger
}

// NewEngine returns an Engine trying primary first and fallback second.
// Either may be nil.
func NewEngine(primary, fallback Shader) *Engine {
	return &Engine{Primary: primary, Fallback: fallback}
}

// Default returns the in-process engine: multidirectional shading with a
// single-direction fallback.
func Default() *Engine {
	return NewEngine(MultiDirectional{}, Directional{})
}

// Process returns an engine running gdaldem's multidirectional mode first
// and the in-process single-direction shader second, so the requested
// azimuth still applies when binary is missing or fails.
func Process(binary string) *Engine {
	return NewEngine(ProcessShader{Binary: binary, Multidirectional: true}, Directional{})
}

// Compute shades dem. The fallback runs with the original parameters when
// the primary shader fails or produces no valid cell. If neither succeeds
// the result is an [errors.ErrCodeComputation] error.
func (e *Engine) Compute(ctx context.Context, dem *raster.Raster, p Params) (*raster.Raster, error) {
	logger := e.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	var causes []error
	for _, s := range []Shader{e.Primary, e.Fallback} {
		if s == nil {
			continue
		}
		out, err := s.Shade(ctx, dem, p)
		if err == nil && out.ValidCount() == 0 {
			err = errors.New(errors.ErrCodeEmptyResult, "%s produced no valid cells", s.Name())
		}
		if err == nil {
			logger.Debug("hillshade computed", "shader", s.Name())
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.ErrCodeComputation, ctx.Err(), "hillshade cancelled")
		}
		logger.Warn("hillshade attempt failed", "shader", s.Name(), "err", err)
		causes = append(causes, err)
	}

	if len(causes) == 0 {
		return nil, errors.New(errors.ErrCodeComputation, "no hillshade shader configured")
	}
	return nil, errors.Wrap(errors.ErrCodeComputation, causes[len(causes)-1], "hillshade failed after %d attempt(s)", len(causes))
}
