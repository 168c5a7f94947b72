package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/kilupskalvis/clipvault/internal/classify"
	"github.com/kilupskalvis/clipvault/internal/clipboard"
	"github.com/kilupskalvis/clipvault/internal/core"
	"github.com/kilupskalvis/clipvault/internal/models"
	"github.com/spf13/cobra"
)

var pasteCmd = &cobra.Command{
	Use:   "paste <id>",
	Short: "Put an entry back on the clipboard",
	Long: `Put an entry back on the clipboard so it can be pasted elsewhere.

On X11 the clipboard is served by the process that set it, so paste keeps
running until another program takes over the clipboard. Use --print to
write the entry to stdout instead.`,
	Args: cobra.ExactArgs(1),
	Run:  runPaste,
}

var copyCmd = &cobra.Command{
	Use:   "copy <text...>",
	Short: "Put text on the clipboard without recording it",
	Args:  cobra.MinimumNArgs(1),
	Run:   runCopy,
}

var (
	pastePrint  bool
	pasteNoWait bool
)

func init() {
	pasteCmd.Flags().BoolVar(&pastePrint, "print", false, "Write the entry content to stdout")
	pasteCmd.Flags().BoolVar(&pasteNoWait, "no-wait", false, "Exit right after setting the clipboard")
	copyCmd.Flags().BoolVar(&pasteNoWait, "no-wait", false, "Exit right after setting the clipboard")
	rootCmd.AddCommand(copyCmd)
}

func runPaste(cmd *cobra.Command, args []string) {
	id := parseID(args[0])
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := initContext(ctx, nil)
	defer c.Close()

	if pastePrint {
		e, ok := c.Tracker.Get(id)
		if !ok {
			c.Close()
			exitError("entry not found: %d", id)
		}
		printContent(cmd, c, e)
		return
	}

	sel := clipboard.NewSystem()
	m := newCaptureManager(c, sel)
	if err := m.PasteEntry(ctx, id); err != nil {
		c.Close()
		exitError("%v", describe(err, id))
	}
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Entry %d is on the clipboard\n", id)

	// the history is not needed while holding the selection
	c.Close()
	if !pasteNoWait {
		sel.Hold(ctx)
	}
}

func runCopy(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sel := clipboard.NewSystem()
	m := core.NewCaptureManager(core.CaptureConfig{Selection: sel})
	if err := m.CopyText(ctx, strings.Join(args, " ")); err != nil {
		exitError("%v", err)
	}
	if !pasteNoWait {
		sel.Hold(ctx)
	}
}

func printContent(cmd *cobra.Command, c *cmdContext, e *models.Entry) {
	w := cmd.OutOrStdout()
	if e.Type != models.ItemImage {
		fmt.Fprintln(w, e.Content)
		return
	}
	data, err := c.Cache.ReadImage(e.Content)
	if err != nil {
		c.Close()
		exitError("failed to read image: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		exitError("failed to write image: %v", err)
	}
}

// newCaptureManager wires a capture manager to the opened history.
func newCaptureManager(c *cmdContext, sel clipboard.Selection) *core.CaptureManager {
	return core.NewCaptureManager(core.CaptureConfig{
		Selection:         sel,
		Classifier:        classify.New(classifierConfig(c.Config, c.Logger)),
		Tracker:           c.Tracker,
		Cache:             c.Cache,
		ExcludedMimeTypes: c.Config.Capture.ExcludedMimeTypes,
		Incognito:         c.Config.Capture.Incognito,
		UpdateDateOnPaste: c.Config.History.UpdateDateOnPaste,
		Logger:            c.Logger,
	})
}
