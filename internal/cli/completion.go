package cli

import (
	"github.com/spf13/cobra"
)

// completionCommand creates the command printing shell completion scripts.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Print a completion script for the given shell.

  bash:        source <(reliefkit completion bash)
  zsh:         reliefkit completion zsh > "${fpath[1]}/_reliefkit"
  fish:        reliefkit completion fish > ~/.config/fish/completions/reliefkit.fish
  powershell:  reliefkit completion powershell | Out-String | Invoke-Expression

Layer names (dsm, dtm) are completed for --layer.`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}

// completeLayers completes the --layer flag.
func completeLayers(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return []string{"dsm\tsurface model", "dtm\tbare-earth terrain model"}, cobra.ShellCompDirectiveNoFileComp
}

// completeDEM completes the DEM file argument.
func completeDEM(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return []string{"asc", "txt", "tif", "tiff", "vrt", "img"}, cobra.ShellCompDirectiveFilterFileExt
}
