package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/reliefkit/pkg/cache"
	"github.com/matzehuels/reliefkit/pkg/tasks"
)

// resultCommand creates the "result" command reading a stored task.
func (c *CLI) resultCommand() *cobra.Command {
	var image string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "result <task-id>",
		Short: "Show the status and result of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResult(cmd.Context(), cmd.OutOrStdout(), args[0], image, asJSON)
		},
	}

	cmd.Flags().StringVar(&image, "image", "", "copy the overlay PNG to this path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func (c *CLI) runResult(ctx context.Context, w io.Writer, id, image string, asJSON bool) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := tasks.LoadRecord(ctx, store, nil, id)
	if stderrors.Is(err, cache.ErrNotFound) {
		return fmt.Errorf("no task %s in the %s result store", id, cfg.Results.Backend)
	}
	if err != nil {
		return err
	}

	if !rec.Status.Done() {
		printKeyValue(w, "task", rec.ID)
		printKeyValue(w, "status", string(rec.Status))
		return nil
	}
	res := rec.Result
	if res == nil {
		return fmt.Errorf("task %s is %s but stored no result", id, rec.Status)
	}
	if res.Failed() {
		if asJSON {
			return printJSON(w, res)
		}
		printKeyValue(w, "task", rec.ID)
		printKeyValue(w, "status", string(rec.Status))
		return res.Err()
	}

	if image != "" {
		if !exists(res.Output.Image) {
			return fmt.Errorf("overlay %s is gone; its work directory was removed", res.Output.Image)
		}
		if err := copyFile(res.Output.Image, image); err != nil {
			return err
		}
		res.Output.Image = image
	}
	if asJSON {
		return printJSON(w, res)
	}
	printOutput(w, rec.ID, rec.Analysis, res.Output)
	printKeyValue(w, "duration", rec.Duration().String())
	return nil
}

// resultsCommand creates the result store management command.
func (c *CLI) resultsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Manage the result store",
	}

	cmd.AddCommand(c.resultsClearCommand())
	cmd.AddCommand(c.resultsPathCommand())

	return cmd
}

// resultsClearCommand creates the "results clear" subcommand.
func (c *CLI) resultsClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored task record",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			clearer, ok := store.(cache.Clearer)
			if !ok {
				printInfo("The %s result store keeps nothing to clear", cfg.Results.Backend)
				return nil
			}
			n, err := clearer.Clear(cmd.Context())
			if err != nil {
				return err
			}
			printSuccess("Cleared %d stored results", n)
			if dir, err := resultsDir(cfg); err == nil {
				printDetail("Directory: %s", dir)
			}
			return nil
		},
	}
}

// resultsPathCommand creates the "results path" subcommand.
func (c *CLI) resultsPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the result store directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			dir, err := resultsDir(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}
