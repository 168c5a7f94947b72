package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/kilupskalvis/clipvault/internal/classify"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add [text...]",
	Short: "Add an entry to the history",
	Long: `Classify content and add it to the history without touching the clipboard.

Text is taken from the arguments, or from stdin when none are given.

Examples:
  clipvault add "some text"
  echo '#ff8800' | clipvault add
  clipvault add --image screenshot.png
  clipvault add --files ./a.txt ./b.txt`,
	Run: runAdd,
}

var (
	addImage string
	addFiles bool
	addCut   bool
)

func init() {
	addCmd.Flags().StringVar(&addImage, "image", "", "Add the image stored in this file")
	addCmd.Flags().BoolVar(&addFiles, "files", false, "Treat the arguments as file paths")
	addCmd.Flags().BoolVar(&addCut, "cut", false, "Record a file list as cut instead of copied (with --files)")
}

func runAdd(cmd *cobra.Command, args []string) {
	payload, err := addPayload(cmd.InOrStdin(), args)
	if err != nil {
		exitError("%v", err)
	}

	ctx := context.Background()
	c := initContext(ctx, nil)
	defer c.Close()

	e := newCaptureManager(c, nil).CaptureContent(ctx, payload)
	if e == nil {
		c.Close()
		exitError("nothing was added")
	}

	w := cmd.OutOrStdout()
	color.New(color.FgGreen).Fprintf(w, "Added entry %d ", e.ID)
	fmt.Fprintf(w, "(%s)\n", e.Type)
}

func addPayload(stdin io.Reader, args []string) (classify.Payload, error) {
	switch {
	case addImage != "":
		data, err := os.ReadFile(addImage)
		if err != nil {
			return classify.Payload{}, fmt.Errorf("failed to read image: %w", err)
		}
		mime := http.DetectContentType(data)
		if !strings.HasPrefix(mime, "image/") {
			return classify.Payload{}, fmt.Errorf("%s is not an image (%s)", addImage, mime)
		}
		return classify.ImagePayload(mime, data), nil

	case addFiles:
		if len(args) == 0 {
			return classify.Payload{}, fmt.Errorf("--files needs at least one path")
		}
		return filesPayload(args, addCut)

	default:
		if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
			return classify.TextPayload(strings.Join(args, " ")), nil
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return classify.Payload{}, fmt.Errorf("failed to read stdin: %w", err)
		}
		return classify.TextPayload(strings.TrimSuffix(string(data), "\n")), nil
	}
}

// filesPayload builds the file-manager form of a file list.
func filesPayload(paths []string, cut bool) (classify.Payload, error) {
	op := "copy"
	if cut {
		op = "cut"
	}
	lines := []string{op}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return classify.Payload{}, fmt.Errorf("invalid path %s: %w", p, err)
		}
		lines = append(lines, "file://"+abs)
	}

	payload, ok := classify.FilesPayload([]byte(strings.Join(lines, "\n")))
	if !ok {
		return classify.Payload{}, fmt.Errorf("no usable file paths")
	}
	return payload, nil
}
