package pipeline

import (
	"context"
	"math"
	"path/filepath"

	"github.com/paulmach/orb"

	"github.com/matzehuels/reliefkit/pkg/errors"
	"github.com/matzehuels/reliefkit/pkg/geo"
	"github.com/matzehuels/reliefkit/pkg/hillshade"
	"github.com/matzehuels/reliefkit/pkg/hydro"
	"github.com/matzehuels/reliefkit/pkg/overlay"
	"github.com/matzehuels/reliefkit/pkg/raster"
	"github.com/matzehuels/reliefkit/pkg/viewshed"
)

// metresPerDegree scales geographic DEMs for slope computation.
const metresPerDegree = 111120.0

// =============================================================================
// Hillshade
// =============================================================================

func (x *run) hillshade(ctx context.Context) (*Output, error) {
	if x.Shading == nil {
		return nil, errors.New(errors.ErrCodeComputation, "no hillshade engine configured")
	}
	params := hillshade.Params{
		Azimuth:  *x.req.Azimuth,
		Altitude: *x.req.Altitude,
	}
	if geo.IsGeographic(x.dem.CRS) {
		params.Scale = metresPerDegree
	}
	if x.req.KeepIntermediates {
		params.WorkDir = x.req.WorkDir
	}

	var ov *overlay.Overlay
	err := x.stage(ctx, "shade", func(ctx context.Context) error {
		shade, err := x.Shading.Compute(ctx, x.dem, params)
		if err != nil {
			return err
		}
		if err := x.keep("hillshade", shade); err != nil {
			return err
		}
		ov, err = overlay.RenderHillshade(shade)
		return err
	})
	if err != nil {
		return nil, err
	}
	return x.place(ctx, ov, nil)
}

// =============================================================================
// Viewshed
// =============================================================================

func (x *run) viewshed(ctx context.Context) (*Output, error) {
	if x.Visibility == nil {
		return nil, errors.New(errors.ErrCodeComputation, "no viewshed engine configured")
	}
	var pt orb.Point
	if err := x.stage(ctx, "locate", func(context.Context) error {
		var err error
		pt, err = x.proj.ToCRS(orb.Point{x.req.Lng, x.req.Lat}, x.dem.CRS)
		return err
	}); err != nil {
		return nil, err
	}

	var ov *overlay.Overlay
	err := x.stage(ctx, "visibility", func(ctx context.Context) error {
		grid, err := x.Visibility.Compute(ctx, x.dem, viewshed.Observer{Point: pt, Height: *x.req.Height})
		if err != nil {
			return err
		}
		x.logger.Info("computed visibility", "visible", grid.Count(), "height", *x.req.Height)
		ov, err = overlay.RenderViewshed(grid)
		return err
	})
	if err != nil {
		return nil, err
	}
	return x.place(ctx, ov, nil)
}

// =============================================================================
// Watershed
// =============================================================================

func (x *run) watershed(ctx context.Context) (*Output, error) {
	var (
		clicked raster.Cell
		dirs    *hydro.DirectionGrid
		acc     *hydro.AccumulationGrid
		pp      hydro.PourPoint
		mask    *hydro.Mask
		ov      *overlay.Overlay
		crs     = x.dem.CRS
	)

	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"locate", func(context.Context) error {
			pt, err := x.proj.ToCRS(orb.Point{x.req.Lng, x.req.Lat}, crs)
			if err != nil {
				return err
			}
			if b := x.dem.Bounds(); !b.Contains(pt[0], pt[1]) {
				return errors.New(errors.ErrCodeBounds, "Selected point is outside the DEM bounds.")
			}
			cell, err := x.dem.WorldToPixel(pt[0], pt[1])
			if err != nil {
				return err
			}
			// Points on the right or bottom edge index one past the grid.
			clicked = x.dem.Clamp(cell)
			return nil
		}},
		{"breach", func(context.Context) error {
			pits := hydro.Pits(x.dem)
			breached, err := hydro.Breach(x.dem, hydro.BreachOptions{})
			if err != nil {
				return err
			}
			x.logger.Info("conditioned DEM", "pits", pits, "remaining", hydro.Pits(breached))
			x.dem = breached
			return x.keep("breached", breached)
		}},
		{"directions", func(context.Context) error {
			dirs = hydro.FlowDirections(x.dem)
			return x.keep("directions", dirs.Raster(crs))
		}},
		{"accumulate", func(context.Context) error {
			var err error
			if acc, err = hydro.FlowAccumulation(dirs); err != nil {
				return err
			}
			x.logger.Debug("accumulated flow", "max", acc.Max())
			return x.keep("accumulation", acc.Raster(crs))
		}},
		{"snap", func(context.Context) error {
			var err error
			pp, err = hydro.SnapPourPoint(acc, clicked, *x.req.SnapDistance,
				hydro.SnapOptions{MinAccumulation: x.req.MinAccumulation})
			if err != nil {
				return err
			}
			x.logger.Info("snapped pour point",
				"from", clicked, "to", pp.Cell, "accumulation", pp.Accumulation, "radius", pp.Radius)
			return nil
		}},
		{"delineate", func(context.Context) error {
			var err error
			mask, err = hydro.Delineate(dirs, pp)
			return err
		}},
		{"render", func(context.Context) error {
			var err error
			ov, err = overlay.RenderWatershed(mask, *x.req.Padding)
			return err
		}},
	}
	for _, s := range stages {
		if err := x.stage(ctx, s.name, s.fn); err != nil {
			return nil, err
		}
	}

	area := mask.Area(x.dem.Transform)
	x.logger.Info("delineated watershed", "cells", mask.Count(), "area", area, "box", ov.Box)
	out, err := x.place(ctx, ov, map[string]any{"pixel_count": mask.Count(), "area": area})
	if err != nil {
		return nil, err
	}
	out.Area = &area
	out.PixelCount = mask.Count()
	out.Snap = &Snap{PourPoint: pp, Distance: cellDistance(x.dem, clicked, pp.Cell)}
	return out, nil
}

// cellDistance is the projected distance between the centres of a and b.
func cellDistance(r *raster.Raster, a, b raster.Cell) float64 {
	ax, ay := r.PixelToWorld(float64(a.Col)+0.5, float64(a.Row)+0.5)
	bx, by := r.PixelToWorld(float64(b.Col)+0.5, float64(b.Row)+0.5)
	return math.Hypot(bx-ax, by-ay)
}

// =============================================================================
// Shared Stages
// =============================================================================

// place reprojects the overlay box and writes the PNG and GeoJSON footprint
// into the work directory.
func (x *run) place(ctx context.Context, ov *overlay.Overlay, props map[string]any) (*Output, error) {
	out := &Output{}
	err := x.stage(ctx, "place", func(context.Context) error {
		bounds, err := overlay.Reproject(x.dem, ov.Box, x.proj)
		if err != nil {
			return err
		}
		out.Bounds = bounds

		name := string(x.analysis)
		out.Image = filepath.Join(x.req.WorkDir, name+".png")
		if err := ov.WritePNG(out.Image); err != nil {
			return err
		}

		fp := map[string]any{"analysis": name, "image": filepath.Base(out.Image)}
		for k, v := range props {
			fp[k] = v
		}
		out.Footprint = filepath.Join(x.req.WorkDir, name+".geojson")
		if err := overlay.WriteFootprint(out.Footprint, bounds, fp); err != nil {
			return err
		}
		x.logger.Debug("placed overlay", "bounds", bounds.Bound(), "box", ov.Box)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(x.kept) > 0 {
		out.Intermediates = x.kept
	}
	return out, nil
}

// keep writes an intermediate grid to the work directory when the request
// asks for it.
func (x *run) keep(name string, r *raster.Raster) error {
	if !x.req.KeepIntermediates {
		return nil
	}
	path := filepath.Join(x.req.WorkDir, name+".asc")
	if err := raster.WriteASCII(path, r); err != nil {
		return err
	}
	if x.kept == nil {
		x.kept = make(map[string]string)
	}
	x.kept[name] = path
	return nil
}
