// Package cli implements the reliefkit command-line interface.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/reliefkit/pkg/buildinfo"
	"github.com/matzehuels/reliefkit/pkg/config"
	"github.com/matzehuels/reliefkit/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const appName = "reliefkit"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath is the --config flag; empty searches the default locations.
	configPath string
	// layers holds the --dsm and --dtm flags, which override the config.
	layers config.LayersConfig
	cfg    *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "reliefkit computes terrain overlays from elevation models",
		Long: `reliefkit turns a digital elevation model into map overlays: a shaded
relief, the area visible from a point, or the watershed draining to a point.
Each analysis writes a PNG overlay and its WGS84 bounds.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ./reliefkit.toml, then $XDG_CONFIG_HOME/reliefkit)")
	root.PersistentFlags().StringVar(&c.layers.DSM, "dsm", "", "DEM file backing the DSM layer")
	root.PersistentFlags().StringVar(&c.layers.DTM, "dtm", "", "DEM file backing the DTM layer")

	for _, a := range pipeline.Analyses {
		root.AddCommand(c.analysisCommand(a))
	}
	root.AddCommand(c.resultCommand())
	root.AddCommand(c.resultsCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// config loads the configuration once per process and applies the layer
// flags on top of it.
func (c *CLI) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.layers.DSM != "" {
		cfg.Layers.DSM = c.layers.DSM
	}
	if c.layers.DTM != "" {
		cfg.Layers.DTM = c.layers.DTM
	}
	c.cfg = cfg
	return cfg, nil
}
