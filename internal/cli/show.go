package cli

import (
	"context"

	"github.com/kilupskalvis/clipvault/internal/models"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show entry details",
	Long:  `Show an entry's full content together with its metadata.`,
	Args:  cobra.ExactArgs(1),
	Run:   runShow,
}

var showJSON bool

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the entry as JSON")
}

func runShow(cmd *cobra.Command, args []string) {
	id := parseID(args[0])

	c := initContext(context.Background(), nil)
	defer c.Close()

	e, ok := c.Tracker.Get(id)
	if !ok {
		exitError("entry not found: %d", id)
	}

	w := cmd.OutOrStdout()
	if showJSON {
		if err := writeJSON(w, []*models.Entry{e}); err != nil {
			exitError("failed to encode entry: %v", err)
		}
		return
	}
	printEntry(w, e)
}
