package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kilupskalvis/clipvault/internal/checksum"
	"github.com/kilupskalvis/clipvault/internal/classify"
	"github.com/kilupskalvis/clipvault/internal/clipboard"
	"github.com/kilupskalvis/clipvault/internal/models"
)

// ErrSelectionClosed is returned by Run when the selection stops delivering
// changes before the context is done.
var ErrSelectionClosed = errors.New("selection closed")

// CaptureConfig configures a CaptureManager.
type CaptureConfig struct {
	Selection  clipboard.Selection
	Classifier *classify.Classifier
	Tracker    *Tracker
	Cache      *Cache
	// ExcludedMimeTypes mark content that must never be recorded.
	ExcludedMimeTypes []string
	Incognito         bool
	// UpdateDateOnPaste refreshes an entry's datetime when it is pasted.
	UpdateDateOnPaste bool
	Logger            *slog.Logger
}

// fingerprint identifies clipboard content for self-dedup.
type fingerprint struct {
	kind classify.Kind
	sum  string
}

// CaptureManager turns selection changes into tracked entries and puts
// entries back on the selection.
type CaptureManager struct {
	selection         clipboard.Selection
	classifier        *classify.Classifier
	tracker           *Tracker
	cache             *Cache
	excluded          []string
	updateDateOnPaste bool
	logger            *slog.Logger

	incognito atomic.Bool
	captured  atomic.Int64

	mu   sync.Mutex
	prev *fingerprint
}

// NewCaptureManager creates a capture manager.
func NewCaptureManager(cfg CaptureConfig) *CaptureManager {
	m := &CaptureManager{
		selection:         cfg.Selection,
		classifier:        cfg.Classifier,
		tracker:           cfg.Tracker,
		cache:             cfg.Cache,
		excluded:          cfg.ExcludedMimeTypes,
		updateDateOnPaste: cfg.UpdateDateOnPaste,
		logger:            cfg.Logger,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.classifier == nil {
		m.classifier = classify.New(classify.Config{MaxCharacters: classify.DefaultMaxCharacters})
	}
	m.incognito.Store(cfg.Incognito)
	return m
}

// SetIncognito turns recording off or back on.
func (m *CaptureManager) SetIncognito(on bool) {
	m.incognito.Store(on)
}

// Incognito reports whether recording is off.
func (m *CaptureManager) Incognito() bool {
	return m.incognito.Load()
}

// Run captures every selection change until ctx is done.
func (m *CaptureManager) Run(ctx context.Context) error {
	for range m.selection.Changes(ctx) {
		if e := m.Capture(ctx); e != nil {
			m.captured.Add(1)
			m.logger.Info("captured entry", "id", e.ID, "type", e.Type)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil
	}
	return ErrSelectionClosed
}

// Capture handles one selection change and returns the new entry, if any.
func (m *CaptureManager) Capture(ctx context.Context) *models.Entry {
	mimes, err := m.selection.MimeTypes(ctx)
	if err != nil {
		m.logger.Warn("failed to list clipboard mime types", "error", err)
		return nil
	}

	payload, ok := m.readPayload(ctx, mimes)
	if !ok {
		return nil
	}

	fp, ok := fingerprintOf(payload)
	if !ok {
		m.logger.Debug("cannot fingerprint clipboard content")
		return nil
	}
	if !m.observe(fp) {
		return nil
	}

	if m.incognito.Load() {
		return nil
	}
	for _, mime := range mimes {
		if slices.Contains(m.excluded, mime) {
			m.logger.Debug("skipping sensitive clipboard content", "mime", mime)
			return nil
		}
	}

	return m.CaptureContent(ctx, payload)
}

// observe records fp as the latest clipboard content. It returns false when
// the content is what this process last saw or set.
func (m *CaptureManager) observe(fp fingerprint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.prev != nil {
		if *m.prev == fp {
			return false
		}
		// a file manager giving up ownership re-offers the paths as text
		if m.prev.kind == classify.KindFiles && fp.kind == classify.KindText && m.prev.sum == fp.sum {
			return false
		}
	}
	m.prev = &fp
	return true
}

func (m *CaptureManager) readPayload(ctx context.Context, mimes []string) (classify.Payload, bool) {
	if mime, ok := clipboard.FirstOffered(mimes, clipboard.ImageMimeTypes); ok {
		data, err := m.selection.Read(ctx, mime)
		if err != nil {
			m.logger.Warn("failed to read clipboard image", "mime", mime, "error", err)
			return classify.Payload{}, false
		}
		return classify.ImagePayload(mime, data), len(data) > 0
	}

	if mime, ok := clipboard.FirstOffered(mimes, clipboard.FileMimeTypes); ok {
		data, err := m.selection.Read(ctx, mime)
		if err != nil {
			m.logger.Warn("failed to read clipboard files", "mime", mime, "error", err)
			return classify.Payload{}, false
		}
		return classify.FilesPayload(data)
	}

	if mime, ok := clipboard.FirstOffered(mimes, clipboard.TextMimeTypes); ok {
		data, err := m.selection.Read(ctx, mime)
		if err != nil {
			m.logger.Warn("failed to read clipboard text", "mime", mime, "error", err)
			return classify.Payload{}, false
		}
		return classify.TextPayload(string(data)), len(data) > 0
	}

	return classify.Payload{}, false
}

func fingerprintOf(p classify.Payload) (fingerprint, bool) {
	switch p.Kind {
	case classify.KindText:
		return fingerprint{kind: p.Kind, sum: checksum.Text(p.Text)}, true
	case classify.KindImage:
		return fingerprint{kind: p.Kind, sum: checksum.Bytes(p.Data)}, true
	case classify.KindFiles:
		sum, err := checksum.Files(p.Paths)
		if err != nil {
			return fingerprint{}, false
		}
		return fingerprint{kind: p.Kind, sum: sum}, true
	}
	return fingerprint{}, false
}

// CaptureContent classifies a payload and records it, bypassing self-dedup
// and exclusion checks.
func (m *CaptureManager) CaptureContent(ctx context.Context, p classify.Payload) *models.Entry {
	res := m.classifier.Classify(p)
	if res == nil {
		return nil
	}

	if res.Type == models.ItemImage {
		if m.cache == nil {
			m.logger.Warn("no image cache configured, dropping image")
			return nil
		}
		uri, created, err := m.cache.storeImage(res.Image)
		if err != nil {
			m.logger.Error("failed to cache image", "error", err)
			return nil
		}
		res.Content = uri

		e := m.tracker.Insert(ctx, res.Type, uri, res.Metadata)
		if e == nil && created && !m.tracker.Tracks(res.Type, uri) {
			m.cache.Remove(uri)
		}
		return e
	}

	return m.tracker.Insert(ctx, res.Type, res.Content, res.Metadata)
}

// PasteEntry puts a tracked entry on the selection.
func (m *CaptureManager) PasteEntry(ctx context.Context, id int64) error {
	e, ok := m.tracker.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntry, id)
	}

	content, err := m.PayloadFor(e)
	if err != nil {
		return err
	}

	if m.updateDateOnPaste {
		if _, err := m.tracker.Touch(ctx, id); err != nil {
			m.logger.Warn("failed to refresh pasted entry", "id", id, "error", err)
		}
	}
	return m.write(ctx, content, e)
}

// CopyText puts arbitrary text on the selection without recording it.
func (m *CaptureManager) CopyText(ctx context.Context, text string) error {
	m.setPrev(fingerprint{kind: classify.KindText, sum: checksum.Text(text)})
	return m.selection.Write(ctx, clipboard.Content{MimeType: clipboard.MimeTextUTF8, Data: []byte(text)})
}

func (m *CaptureManager) write(ctx context.Context, content clipboard.Content, e *models.Entry) error {
	switch {
	case e.Type == models.ItemImage:
		m.setPrev(fingerprint{kind: classify.KindImage, sum: checksum.Bytes(content.Data)})
	case e.Type == models.ItemFile || e.Type == models.ItemFiles:
		if sum, err := checksum.Files(strings.Split(e.Content, "\n")); err == nil {
			m.setPrev(fingerprint{kind: classify.KindFiles, sum: sum})
		}
	default:
		m.setPrev(fingerprint{kind: classify.KindText, sum: checksum.Text(e.Content)})
	}

	if err := m.selection.Write(ctx, content); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

func (m *CaptureManager) setPrev(fp fingerprint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prev = &fp
}

// PayloadFor converts an entry into the clipboard representation that
// reproduces it.
func (m *CaptureManager) PayloadFor(e *models.Entry) (clipboard.Content, error) {
	switch e.Type {
	case models.ItemImage:
		if m.cache == nil {
			return clipboard.Content{}, errors.New("no image cache configured")
		}
		data, err := m.cache.ReadImage(e.Content)
		if err != nil {
			return clipboard.Content{}, fmt.Errorf("read cached image: %w", err)
		}
		return clipboard.Content{MimeType: http.DetectContentType(data), Data: data}, nil
	case models.ItemFile, models.ItemFiles:
		return clipboard.Content{MimeType: clipboard.MimeGnomeFiles, Data: []byte("copy\n" + e.Content)}, nil
	default:
		return clipboard.Content{MimeType: clipboard.MimeTextUTF8, Data: []byte(e.Content)}, nil
	}
}
