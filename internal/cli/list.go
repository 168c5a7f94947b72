package cli

import (
	"context"
	"fmt"

	"github.com/kilupskalvis/clipvault/internal/models"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Show clipboard history",
	Long:    `Display clipboard history, newest first.`,
	Args:    cobra.NoArgs,
	Run:     runList,
}

var (
	listLimit  int
	listType   string
	listTag    string
	listPinned bool
	listJSON   bool
)

func init() {
	listCmd.Flags().IntVarP(&listLimit, "n", "n", 0, "Limit the number of entries to show")
	listCmd.Flags().StringVar(&listType, "type", "", "Only show entries of this type (Text, Code, Link, ...)")
	listCmd.Flags().StringVar(&listTag, "tag", "", "Only show entries with this tag")
	listCmd.Flags().BoolVar(&listPinned, "pinned", false, "Only show pinned entries")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print entries as JSON")

	listCmd.RegisterFlagCompletionFunc("tag", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return tagNames(), cobra.ShellCompDirectiveNoFileComp
	})
	listCmd.RegisterFlagCompletionFunc("type", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		names := make([]string, 0, len(models.ItemTypes))
		for _, t := range models.ItemTypes {
			names = append(names, string(t))
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})
}

type entryFilter struct {
	typ    models.ItemType
	tag    models.Tag
	pinned bool
	limit  int
}

func (f entryFilter) apply(entries []*models.Entry) []*models.Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if f.typ != "" && e.Type != f.typ {
			continue
		}
		if f.tag != models.TagNone && e.Tag != f.tag {
			continue
		}
		if f.pinned && !e.Pinned {
			continue
		}
		out = append(out, e)
		if f.limit > 0 && len(out) == f.limit {
			break
		}
	}
	return out
}

func runList(cmd *cobra.Command, args []string) {
	filter := entryFilter{pinned: listPinned, limit: listLimit}
	if listType != "" {
		t, err := models.ParseItemType(listType)
		if err != nil {
			exitError("%v", err)
		}
		filter.typ = t
	}
	if listTag != "" {
		tag, err := models.ParseTag(listTag)
		if err != nil {
			exitError("%v", err)
		}
		filter.tag = tag
	}

	c := initContext(context.Background(), nil)
	defer c.Close()

	entries := filter.apply(c.Tracker.Entries())
	w := cmd.OutOrStdout()

	if listJSON {
		if err := writeJSON(w, entries); err != nil {
			exitError("failed to encode entries: %v", err)
		}
		return
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries")
		return
	}
	for _, e := range entries {
		printEntryLine(w, e)
	}
}
