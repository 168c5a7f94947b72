package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/kilupskalvis/clipvault/internal/clipboard"
	"github.com/kilupskalvis/clipvault/internal/core"
	"github.com/kilupskalvis/clipvault/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Record clipboard changes",
	Long: `Watch the clipboard and record every change in the history until
interrupted. Expired entries are evicted every history.check_interval.

Examples:
  clipvault watch
  clipvault watch --incognito
  clipvault watch --quiet --log-level info`,
	Args: cobra.NoArgs,
	Run:  runWatch,
}

var (
	watchIncognito bool
	watchQuiet     bool
)

func init() {
	watchCmd.Flags().BoolVar(&watchIncognito, "incognito", false, "Start without recording (overrides capture.incognito)")
	watchCmd.Flags().BoolVarP(&watchQuiet, "quiet", "q", false, "Do not print captured entries")
}

func runWatch(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var observer core.Observer
	if !watchQuiet {
		observer = watchPrinter(cmd)
	}

	c := initContext(ctx, observer)
	defer c.Close()

	m := newCaptureManager(c, clipboard.NewSystem())
	if cmd.Flags().Changed("incognito") {
		m.SetIncognito(watchIncognito)
	}
	janitor := core.NewJanitor(c.Tracker, c.Config.CheckInterval(), c.Logger)

	c.Logger.Info("watching clipboard",
		"entries", len(c.Tracker.Entries()),
		"backend", c.Config.Database.Backend,
		"incognito", m.Incognito())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.RunWithRetry(gctx, core.DefaultRetryConfig()) })
	g.Go(func() error { return janitor.Run(gctx) })

	if err := g.Wait(); err != nil {
		c.Close()
		exitError("%v", err)
	}
}

// watchPrinter reports history changes on stdout.
func watchPrinter(cmd *cobra.Command) core.Observer {
	w := cmd.OutOrStdout()
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	return core.ObserverFuncs{
		Added: func(e *models.Entry) {
			green.Fprint(w, "+ ")
			printEntryLine(w, e)
		},
		Removed: func(id int64) {
			red.Fprintf(w, "- %d\n", id)
		},
		Changed: func(id int64, field models.Field) {
			fmt.Fprintf(w, "~ %d %s\n", id, field)
		},
	}
}
