package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/kilupskalvis/clipvault/internal/core"
	"github.com/kilupskalvis/clipvault/internal/models"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <id>...",
	Aliases: []string{"rm"},
	Short:   "Delete entries",
	Args:    cobra.MinimumNArgs(1),
	Run:     runDelete,
}

var pinCmd = &cobra.Command{
	Use:   "pin <id>",
	Short: "Pin an entry so it never expires",
	Args:  cobra.ExactArgs(1),
	Run:   func(cmd *cobra.Command, args []string) { runSetPinned(cmd, args, true) },
}

var unpinCmd = &cobra.Command{
	Use:   "unpin <id>",
	Short: "Unpin an entry",
	Args:  cobra.ExactArgs(1),
	Run:   func(cmd *cobra.Command, args []string) { runSetPinned(cmd, args, false) },
}

var tagCmd = &cobra.Command{
	Use:   "tag <id> <tag>",
	Short: "Tag an entry",
	Long: `Attach a color tag to an entry. Tagged entries never expire.
Use "none" to remove the tag.

Tags: blue, teal, green, yellow, orange, red, pink, purple, slate`,
	Args: cobra.ExactArgs(2),
	Run:  runTag,
}

var titleCmd = &cobra.Command{
	Use:   "title <id> [title...]",
	Short: "Set or clear an entry's title",
	Args:  cobra.MinimumNArgs(1),
	Run:   runTitle,
}

var editCmd = &cobra.Command{
	Use:   "edit <id> <content...>",
	Short: "Replace the content of a text entry",
	Long: `Replace the content of a text entry. If another entry already has the
new content the two are merged and the surviving entry is reported.`,
	Args: cobra.MinimumNArgs(2),
	Run:  runEdit,
}

func runDelete(cmd *cobra.Command, args []string) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		ids = append(ids, parseID(a))
	}

	ctx := context.Background()
	c := initContext(ctx, nil)
	defer c.Close()

	w := cmd.OutOrStdout()
	failed := false
	for _, id := range ids {
		if err := c.Tracker.Delete(ctx, id); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", describe(err, id))
			failed = true
			continue
		}
		color.New(color.FgRed).Fprintf(w, "Deleted entry %d\n", id)
	}
	if failed {
		c.Close()
		exitError("some entries could not be deleted")
	}
}

func runSetPinned(cmd *cobra.Command, args []string, pinned bool) {
	id := parseID(args[0])
	mutate(cmd, id, func(ctx context.Context, t *core.Tracker) (*models.Entry, error) {
		return t.SetPinned(ctx, id, pinned)
	})
}

func runTag(cmd *cobra.Command, args []string) {
	id := parseID(args[0])
	tag, err := models.ParseTag(args[1])
	if err != nil {
		exitError("%v", err)
	}
	mutate(cmd, id, func(ctx context.Context, t *core.Tracker) (*models.Entry, error) {
		return t.SetTag(ctx, id, tag)
	})
}

func runTitle(cmd *cobra.Command, args []string) {
	id := parseID(args[0])
	title := strings.Join(args[1:], " ")
	mutate(cmd, id, func(ctx context.Context, t *core.Tracker) (*models.Entry, error) {
		return t.SetTitle(ctx, id, title)
	})
}

func runEdit(cmd *cobra.Command, args []string) {
	id := parseID(args[0])
	content := strings.Join(args[1:], " ")
	mutate(cmd, id, func(ctx context.Context, t *core.Tracker) (*models.Entry, error) {
		return t.SetContent(ctx, id, content)
	})
}

// mutate opens the history, applies fn and prints the resulting entry.
func mutate(cmd *cobra.Command, id int64, fn func(context.Context, *core.Tracker) (*models.Entry, error)) {
	ctx := context.Background()
	c := initContext(ctx, nil)
	defer c.Close()

	e, err := fn(ctx, c.Tracker)
	if err != nil {
		c.Close()
		exitError("%v", describe(err, id))
	}
	printEntryLine(cmd.OutOrStdout(), e)
}

func describe(err error, id int64) error {
	switch {
	case errors.Is(err, core.ErrUnknownEntry):
		return fmt.Errorf("entry not found: %d", id)
	case errors.Is(err, core.ErrNotEditable):
		return fmt.Errorf("entry %d is not text and cannot be edited", id)
	default:
		return err
	}
}
