// Package clipboard abstracts the host selection that clipboard content is
// captured from and pasted to.
package clipboard

import (
	"context"
	"errors"
	"slices"
)

// Mime types understood by the capture pipeline.
const (
	MimePNG  = "image/png"
	MimeJXL  = "image/jxl"
	MimeWebP = "image/webp"
	MimeAVIF = "image/avif"
	MimeJPEG = "image/jpeg"

	MimeGnomeFiles = "x-special/gnome-copied-files"
	MimeURIList    = "text/uri-list"

	MimeText       = "text/plain"
	MimeTextUTF8   = "text/plain;charset=utf-8"
	MimeString     = "STRING"
	MimeUTF8String = "UTF8_STRING"

	// MimePasswordHint is set by password managers on secrets.
	MimePasswordHint = "x-kde-passwordManagerHint"
)

// Mime types in order of preference per content kind.
var (
	ImageMimeTypes = []string{MimePNG, MimeJXL, MimeWebP, MimeAVIF, MimeJPEG}
	FileMimeTypes  = []string{MimeGnomeFiles, MimeURIList}
	TextMimeTypes  = []string{MimeText, MimeTextUTF8, MimeString, MimeUTF8String}
)

// ErrUnavailable is returned when the host clipboard cannot be used.
var ErrUnavailable = errors.New("clipboard unavailable")

// Content is one representation of clipboard data.
type Content struct {
	MimeType string
	Data     []byte
}

// Selection is the host clipboard.
type Selection interface {
	// Changes delivers a value whenever the selection owner changes. The
	// channel is closed when ctx is done.
	Changes(ctx context.Context) <-chan struct{}
	// MimeTypes lists the representations the current owner offers.
	MimeTypes(ctx context.Context) ([]string, error)
	// Read returns the data for one offered mime type.
	Read(ctx context.Context, mimeType string) ([]byte, error)
	// Write takes ownership of the selection with the given content.
	Write(ctx context.Context, c Content) error
}

// FirstOffered returns the first preferred mime type that is offered.
func FirstOffered(offered, preferred []string) (string, bool) {
	for _, p := range preferred {
		if slices.Contains(offered, p) {
			return p, true
		}
	}
	return "", false
}
