package cli

import (
	"github.com/kilupskalvis/clipvault/internal/models"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "completion [bash|zsh|fish]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion script for clipvault.

To load completions:

Bash:
  $ source <(clipvault completion bash)
  # Or add to ~/.bashrc:
  $ echo 'source <(clipvault completion bash)' >> ~/.bashrc

Zsh:
  $ source <(clipvault completion zsh)
  # Or add to ~/.zshrc:
  $ echo 'source <(clipvault completion zsh)' >> ~/.zshrc

Fish:
  $ clipvault completion fish | source
  # Or add to config:
  $ clipvault completion fish > ~/.config/fish/completions/clipvault.fish
`,
		ValidArgs:             []string{"bash", "zsh", "fish"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		DisableFlagsInUseLine: true,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				rootCmd.GenBashCompletion(w)
			case "zsh":
				rootCmd.GenZshCompletion(w)
			case "fish":
				rootCmd.GenFishCompletion(w, true)
			}
		},
	})

	tagCmd.ValidArgsFunction = completeTag
	clearCmd.RegisterFlagCompletionFunc("policy", completeClearPolicy)
}

func tagNames() []string {
	names := []string{"none"}
	for _, t := range models.Tags {
		names = append(names, string(t))
	}
	return names
}

// completeTag completes the tag argument of "tag <id> <tag>".
func completeTag(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 1 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return tagNames(), cobra.ShellCompDirectiveNoFileComp
}

func completeClearPolicy(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return []string{
		models.KeepPinnedAndTagged.String(),
		models.ClearAll.String(),
		models.KeepAll.String(),
	}, cobra.ShellCompDirectiveNoFileComp
}
