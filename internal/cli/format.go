package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/kilupskalvis/clipvault/internal/models"
	"github.com/rivo/uniseg"
)

const (
	previewWidth = 60
	timeLayout   = "2006-01-02 15:04"
)

var tagColors = map[models.Tag]color.Attribute{
	models.TagBlue:   color.FgBlue,
	models.TagTeal:   color.FgCyan,
	models.TagGreen:  color.FgGreen,
	models.TagYellow: color.FgYellow,
	models.TagOrange: color.FgHiYellow,
	models.TagRed:    color.FgRed,
	models.TagPink:   color.FgHiMagenta,
	models.TagPurple: color.FgMagenta,
	models.TagSlate:  color.FgHiBlack,
}

// preview returns the first line of s cut to width grapheme clusters.
func preview(s string, width int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if uniseg.GraphemeClusterCount(line) <= width {
		return line
	}

	var b strings.Builder
	g := uniseg.NewGraphemes(line)
	for n := 0; n < width-1 && g.Next(); n++ {
		b.WriteString(g.Str())
	}
	b.WriteString("…")
	return b.String()
}

// printEntryLine writes the one-line form used by list.
func printEntryLine(w io.Writer, e *models.Entry) {
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	yellow.Fprintf(w, "%5d ", e.ID)
	cyan.Fprintf(w, "%-9s ", e.Type)
	fmt.Fprintf(w, "%s ", e.Datetime.Local().Format(timeLayout))
	if e.Pinned {
		color.New(color.FgRed).Fprint(w, "* ")
	}
	if e.Tag != models.TagNone {
		color.New(tagColors[e.Tag]).Fprintf(w, "[%s] ", e.Tag)
	}
	if e.Title != "" {
		color.New(color.Bold).Fprintf(w, "%s: ", e.Title)
	}
	fmt.Fprintln(w, preview(e.Content, previewWidth))
}

// printEntry writes the detailed form used by show.
func printEntry(w io.Writer, e *models.Entry) {
	yellow := color.New(color.FgYellow)

	yellow.Fprintf(w, "entry %d", e.ID)
	if e.Pinned {
		color.New(color.FgRed).Fprint(w, " (pinned)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Type:   %s\n", e.Type)
	fmt.Fprintf(w, "Title:  %s\n", e.DisplayTitle())
	if e.Tag != models.TagNone {
		fmt.Fprint(w, "Tag:    ")
		color.New(tagColors[e.Tag]).Fprintln(w, e.Tag)
	}
	fmt.Fprintf(w, "Date:   %s (%s)\n", e.Datetime.Local().Format("Mon Jan 2 15:04:05 2006"), formatAge(time.Since(e.Datetime)))

	switch m := e.Metadata.(type) {
	case *models.CodeMetadata:
		if m.Language != nil {
			fmt.Fprintf(w, "Lang:   %s\n", m.Language.Name)
		}
	case *models.FileMetadata:
		fmt.Fprintf(w, "Op:     %s\n", m.Operation)
	case *models.LinkMetadata:
		if m.Title != nil {
			fmt.Fprintf(w, "Page:   %s\n", *m.Title)
		}
		if m.Description != nil {
			fmt.Fprintf(w, "About:  %s\n", *m.Description)
		}
	}

	fmt.Fprintln(w)
	for _, line := range strings.Split(e.Content, "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
}

// jsonEntry is the --json representation of an entry.
type jsonEntry struct {
	*models.Entry
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

func writeJSON(w io.Writer, entries []*models.Entry) error {
	out := make([]jsonEntry, 0, len(entries))
	for _, e := range entries {
		je := jsonEntry{Entry: e}
		if e.Metadata != nil {
			data, err := models.MarshalMetadata(e.Metadata)
			if err != nil {
				return err
			}
			je.Metadata = data
		}
		out = append(out, je)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
