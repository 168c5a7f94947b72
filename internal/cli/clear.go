package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/clipvault/internal/core"
	"github.com/kilupskalvis/clipvault/internal/models"
	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the history",
	Long: `Remove entries from the history.

Policies:
  keep-pinned-and-tagged  remove everything except pinned and tagged entries (default)
  clear-all               remove every entry
  keep-all                remove nothing`,
	Args: cobra.NoArgs,
	Run:  runClear,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the history length and age limits now",
	Long: `Evict unprotected entries beyond history.length or older than
history.time minutes. Pinned and tagged entries are never evicted.`,
	Args: cobra.NoArgs,
	Run:  runPrune,
}

var (
	clearPolicy string
	clearAll    bool
)

func init() {
	clearCmd.Flags().StringVar(&clearPolicy, "policy", models.KeepPinnedAndTagged.String(), "Which entries survive")
	clearCmd.Flags().BoolVar(&clearAll, "all", false, "Shorthand for --policy clear-all")
}

func runClear(cmd *cobra.Command, args []string) {
	policy, err := models.ParseClearPolicy(clearPolicy)
	if err != nil {
		exitError("%v", err)
	}
	if clearAll {
		policy = models.ClearAll
	}

	ctx := context.Background()
	c := initContext(ctx, nil)
	defer c.Close()

	ids := c.Tracker.Clear(ctx, policy)
	reportRemoved(cmd, len(ids), len(c.Tracker.Entries()))
}

func runPrune(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	// opening the history already runs an eviction pass
	removed := 0
	c := initContext(ctx, core.ObserverFuncs{Removed: func(int64) { removed++ }})
	defer c.Close()

	c.Tracker.DeleteOldest(ctx)
	reportRemoved(cmd, removed, len(c.Tracker.Entries()))
}

func reportRemoved(cmd *cobra.Command, removed, remaining int) {
	w := cmd.OutOrStdout()
	if removed == 0 {
		fmt.Fprintf(w, "Nothing removed, %d entries kept\n", remaining)
		return
	}
	color.New(color.FgRed).Fprintf(w, "Removed %d entries", removed)
	fmt.Fprintf(w, ", %d kept\n", remaining)
}
