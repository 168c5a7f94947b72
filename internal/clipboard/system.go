package clipboard

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.design/x/clipboard"
)

const fileScheme = "file://"

// System is the desktop clipboard. It only exposes text and PNG formats, so
// text made of file URIs is additionally offered as a file list.
type System struct {
	mu    sync.Mutex
	ready bool
	lost  <-chan struct{}
}

// NewSystem returns a handle to the desktop clipboard. The clipboard is
// initialized on first use; a failed initialization is retried on the next
// call.
func NewSystem() *System {
	return &System{}
}

func (s *System) init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if err := clipboard.Init(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.ready = true
	return nil
}

func (s *System) Changes(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	if err := s.init(); err != nil {
		close(out)
		return out
	}

	text := clipboard.Watch(ctx, clipboard.FmtText)
	image := clipboard.Watch(ctx, clipboard.FmtImage)

	go func() {
		defer close(out)
		for text != nil || image != nil {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-text:
				if !ok {
					text = nil
					continue
				}
			case _, ok := <-image:
				if !ok {
					image = nil
					continue
				}
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out
}

func (s *System) MimeTypes(ctx context.Context) ([]string, error) {
	if err := s.init(); err != nil {
		return nil, err
	}

	if len(clipboard.Read(clipboard.FmtImage)) > 0 {
		return []string{MimePNG}, nil
	}

	text := clipboard.Read(clipboard.FmtText)
	if len(text) == 0 {
		return nil, nil
	}
	if isFileList(string(text)) {
		return append(append([]string{}, FileMimeTypes...), TextMimeTypes...), nil
	}
	return append([]string{}, TextMimeTypes...), nil
}

func (s *System) Read(ctx context.Context, mimeType string) ([]byte, error) {
	if err := s.init(); err != nil {
		return nil, err
	}

	switch {
	case mimeType == MimePNG:
		return clipboard.Read(clipboard.FmtImage), nil
	case mimeType == MimeGnomeFiles:
		text := string(clipboard.Read(clipboard.FmtText))
		if first, _, _ := strings.Cut(strings.TrimSpace(text), "\n"); strings.HasPrefix(first, fileScheme) {
			text = "copy\n" + text
		}
		return []byte(text), nil
	case mimeType == MimeURIList || isTextMime(mimeType):
		return clipboard.Read(clipboard.FmtText), nil
	default:
		return nil, fmt.Errorf("mime type %q not supported", mimeType)
	}
}

func (s *System) Write(ctx context.Context, c Content) error {
	if err := s.init(); err != nil {
		return err
	}

	var lost <-chan struct{}
	switch {
	case c.MimeType == MimePNG:
		lost = clipboard.Write(clipboard.FmtImage, c.Data)
	case c.MimeType == MimeGnomeFiles:
		lost = clipboard.Write(clipboard.FmtText, []byte(stripOperation(string(c.Data))))
	case c.MimeType == MimeURIList || isTextMime(c.MimeType):
		lost = clipboard.Write(clipboard.FmtText, c.Data)
	default:
		return fmt.Errorf("mime type %q not supported", c.MimeType)
	}

	s.mu.Lock()
	s.lost = lost
	s.mu.Unlock()
	return nil
}

// Hold blocks until another program takes over the clipboard written by the
// last Write, or ctx is done. On X11 the content is only available while the
// writing process keeps running.
func (s *System) Hold(ctx context.Context) {
	s.mu.Lock()
	lost := s.lost
	s.mu.Unlock()
	if lost == nil {
		return
	}

	select {
	case <-lost:
	case <-ctx.Done():
	}
}

func isTextMime(mimeType string) bool {
	for _, m := range TextMimeTypes {
		if strings.EqualFold(m, mimeType) {
			return true
		}
	}
	return false
}

// isFileList reports whether every non-blank line is a file URI, allowing a
// leading copy/cut token.
func isFileList(text string) bool {
	lines := strings.Split(strings.TrimSpace(stripOperation(text)), "\n")
	found := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, fileScheme) {
			return false
		}
		found = true
	}
	return found
}

// stripOperation drops a leading copy/cut line.
func stripOperation(text string) string {
	first, rest, ok := strings.Cut(strings.TrimSpace(text), "\n")
	switch strings.ToLower(strings.TrimSpace(first)) {
	case "copy", "cut":
		if ok {
			return rest
		}
		return ""
	}
	return text
}
