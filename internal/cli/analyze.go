package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/reliefkit/pkg/pipeline"
	"github.com/matzehuels/reliefkit/pkg/tasks"
)

// analysisOpts holds the command-line flags shared by the analysis commands.
// Flags the user did not set are left to the config defaults.
type analysisOpts struct {
	layer    string        // DSM or DTM, resolved through the configured layers
	lat, lng float64       // WGS84 input point
	azimuth  float64       // hillshade light direction
	altitude float64       // hillshade light elevation
	height   float64       // viewshed observer height above ground
	snap     float64       // watershed pour-point snap distance
	minAcc   float64       // watershed channel threshold
	padding  int           // watershed overlay margin in pixels
	keep     bool          // keep breached DEM, directions and accumulation
	output   string        // directory receiving copies of the artifacts
	json     bool          // print the result as JSON
	interval time.Duration // polling interval
}

var analysisShort = map[pipeline.Analysis]string{
	pipeline.Hillshade: "Render a shaded-relief overlay",
	pipeline.Viewshed:  "Render the area visible from a point",
	pipeline.Watershed: "Render the watershed draining to a point",
}

// analysisCommand creates the command running analysis a.
func (c *CLI) analysisCommand(a pipeline.Analysis) *cobra.Command {
	opts := analysisOpts{interval: 200 * time.Millisecond}

	cmd := &cobra.Command{
		Use:               string(a) + " [dem-file]",
		Short:             analysisShort[a],
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeDEM,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := opts.request(cmd, args)
			return c.runAnalysis(cmd.Context(), cmd.OutOrStdout(), a, req, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.layer, "layer", "l", "", "use a configured layer (dsm, dtm) instead of a file")
	if a.NeedsPoint() {
		f.Float64Var(&opts.lat, "lat", 0, "latitude of the point (WGS84)")
		f.Float64Var(&opts.lng, "lng", 0, "longitude of the point (WGS84)")
	}
	switch a {
	case pipeline.Hillshade:
		f.Float64Var(&opts.azimuth, "azimuth", pipeline.DefaultAzimuth, "light direction in degrees clockwise from north")
		f.Float64Var(&opts.altitude, "altitude", pipeline.DefaultAltitude, "light elevation in degrees above the horizon")
	case pipeline.Viewshed:
		f.Float64Var(&opts.height, "height", pipeline.DefaultHeight, "observer height above ground")
	case pipeline.Watershed:
		f.Float64Var(&opts.snap, "snap", pipeline.DefaultSnapDistance, "pour-point snap distance in DEM units")
		f.Float64Var(&opts.minAcc, "min-accumulation", pipeline.DefaultMinAccumulation, "accumulation a snapped cell must exceed")
		f.IntVar(&opts.padding, "padding", pipeline.DefaultPadding, "overlay margin around the watershed in pixels")
	}
	f.BoolVar(&opts.keep, "keep", false, "keep intermediate grids in the task work directory")
	_ = cmd.RegisterFlagCompletionFunc("layer", completeLayers)
	f.StringVarP(&opts.output, "output", "o", "", "copy the overlay and footprint into this directory")
	f.BoolVar(&opts.json, "json", false, "print the result as JSON")
	f.DurationVar(&opts.interval, "poll", opts.interval, "task polling interval")

	return cmd
}

// request builds the analysis request from the parsed flags.
func (o *analysisOpts) request(cmd *cobra.Command, args []string) pipeline.Request {
	req := pipeline.Request{Lat: o.lat, Lng: o.lng, KeepIntermediates: o.keep}
	if len(args) == 1 {
		req.DEMPath = args[0]
	}
	if o.layer != "" {
		req.Layer = pipeline.Layer(strings.ToUpper(o.layer))
	}

	f := cmd.Flags()
	if f.Changed("azimuth") {
		req.Azimuth = pipeline.Float(o.azimuth)
	}
	if f.Changed("altitude") {
		req.Altitude = pipeline.Float(o.altitude)
	}
	if f.Changed("height") {
		req.Height = pipeline.Float(o.height)
	}
	if f.Changed("snap") {
		req.SnapDistance = pipeline.Float(o.snap)
	}
	if f.Changed("min-accumulation") {
		req.MinAccumulation = pipeline.Float(o.minAcc)
	}
	if f.Changed("padding") {
		req.Padding = pipeline.Int(o.padding)
	}
	return req
}

// runAnalysis submits the request to the task runner and waits for it.
func (c *CLI) runAnalysis(ctx context.Context, w io.Writer, a pipeline.Analysis, req pipeline.Request, opts *analysisOpts) error {
	rt, err := c.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	rt.cfg.Analysis.Apply(&req)
	req.Logger = rt.logger

	prog := newProgress(rt.logger)
	h, err := rt.runner.Submit(ctx, tasks.Job{Analysis: a, Request: req})
	if err != nil {
		return err
	}
	rt.logger.Debug("task submitted", "id", h.ID, "request", req.String())

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Computing %s...", a))
	spinner.Start()
	res, err := tasks.Wait(ctx, rt.runner, h.ID, opts.interval)
	spinner.Stop()
	if err != nil {
		return err
	}
	if res.Failed() {
		return res.Err()
	}
	prog.done(fmt.Sprintf("Computed %s", a))

	if opts.output != "" {
		if err := exportArtifacts(res.Output, opts.output); err != nil {
			return err
		}
	}
	if opts.json {
		return printJSON(w, res)
	}
	printOutput(w, h.ID, a, res.Output)
	return nil
}

// exportArtifacts copies the overlay and footprint into dir and points out
// at the copies.
func exportArtifacts(out *pipeline.Output, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, p := range []*string{&out.Image, &out.Footprint} {
		if *p == "" {
			continue
		}
		dst := filepath.Join(dir, filepath.Base(*p))
		if err := copyFile(*p, dst); err != nil {
			return err
		}
		*p = dst
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return out.Close()
}
