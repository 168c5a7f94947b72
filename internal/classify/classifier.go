// Package classify maps raw clipboard payloads to typed history items.
//
// Text is matched against an ordered rule set (first match wins):
//
//	Link → Character → Color → Code → Text
//
// Images and file lists are typed directly from the payload kind.
package classify

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kilupskalvis/clipvault/internal/checksum"
	"github.com/kilupskalvis/clipvault/internal/models"
	"github.com/rivo/uniseg"
)

const (
	DefaultMaxCharacters = 1
	DefaultMaxCodeScan   = 10000

	// codeThreshold is the minimum detector relevance per 100 characters.
	codeThreshold = 3
)

// Kind is the raw payload kind reported by the clipboard.
type Kind int

const (
	KindText Kind = iota
	KindImage
	KindFiles
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindFiles:
		return "files"
	}
	return "unknown"
}

// Payload is a raw captured clipboard payload.
type Payload struct {
	Kind Kind

	// KindText
	Text string

	// KindImage
	MimeType string
	Data     []byte

	// KindFiles
	Paths     []string
	Operation models.FileOperation
}

// TextPayload builds a text payload.
func TextPayload(s string) Payload {
	return Payload{Kind: KindText, Text: s}
}

// ImagePayload builds an image payload.
func ImagePayload(mimeType string, data []byte) Payload {
	return Payload{Kind: KindImage, MimeType: mimeType, Data: data}
}

// FilesPayload parses a file-list clipboard body. Lines are trimmed and blank
// lines dropped; a leading "copy" or "cut" line selects the operation, which
// otherwise defaults to copy. Returns false when no paths remain.
func FilesPayload(raw []byte) (Payload, bool) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return Payload{}, false
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	op := models.FileCopy
	if parsed, ok := models.ParseFileOperation(lines[0]); ok {
		op = parsed
		lines = lines[1:]
	}
	if len(lines) == 0 {
		return Payload{}, false
	}

	return Payload{Kind: KindFiles, Paths: lines, Operation: op}, true
}

// Image carries image bytes forward to the file cache.
type Image struct {
	MimeType string
	Data     []byte
	Checksum string
}

// Extension returns the file extension derived from the mime subtype.
func (i *Image) Extension() string {
	if _, sub, ok := strings.Cut(i.MimeType, "/"); ok && sub != "" {
		return sub
	}
	return "bin"
}

// Result is the outcome of classifying a payload.
type Result struct {
	Type     models.ItemType
	Content  string
	Metadata models.Metadata

	// Image is set for ItemImage results; Content is filled in once the
	// bytes have been written to the cache.
	Image *Image
}

// Config configures a Classifier.
type Config struct {
	Detector      CodeDetector
	Validator     URIValidator
	MaxCharacters int
	MaxCodeScan   int
	Logger        *slog.Logger
}

// Classifier assigns item types to raw payloads.
type Classifier struct {
	detector      CodeDetector
	validator     URIValidator
	maxCharacters int
	maxCodeScan   int
	logger        *slog.Logger
}

// New creates a Classifier. A nil Validator uses ValidateURI; a nil Detector
// disables the Code rule.
func New(cfg Config) *Classifier {
	c := &Classifier{
		detector:      cfg.Detector,
		validator:     cfg.Validator,
		maxCharacters: cfg.MaxCharacters,
		maxCodeScan:   cfg.MaxCodeScan,
		logger:        cfg.Logger,
	}
	if c.validator == nil {
		c.validator = URIValidatorFunc(ValidateURI)
	}
	if c.maxCodeScan <= 0 {
		c.maxCodeScan = DefaultMaxCodeScan
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Classify returns the item type, content and metadata for a payload, or nil
// when the payload is not worth recording.
func (c *Classifier) Classify(p Payload) *Result {
	switch p.Kind {
	case KindText:
		return c.classifyText(p.Text)
	case KindImage:
		if len(p.Data) == 0 {
			return nil
		}
		return &Result{
			Type:  models.ItemImage,
			Image: &Image{MimeType: p.MimeType, Data: p.Data, Checksum: checksum.Bytes(p.Data)},
		}
	case KindFiles:
		return classifyFiles(p)
	}
	return nil
}

func (c *Classifier) classifyText(text string) *Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if c.isLink(trimmed) {
		return &Result{Type: models.ItemLink, Content: text}
	}

	if c.isCharacter(trimmed) {
		return &Result{Type: models.ItemCharacter, Content: text}
	}

	if c.isColor(trimmed) {
		return &Result{Type: models.ItemColor, Content: text}
	}

	if lang := c.detectCode(trimmed); lang != nil {
		return &Result{Type: models.ItemCode, Content: text, Metadata: &models.CodeMetadata{Language: lang}}
	}

	return &Result{Type: models.ItemText, Content: text}
}

func (c *Classifier) isLink(trimmed string) bool {
	if !strings.HasPrefix(trimmed, "http") {
		return false
	}
	return c.probe("link", func() bool {
		return c.validator.ValidateURI(trimmed) == nil
	})
}

func (c *Classifier) isCharacter(trimmed string) bool {
	return c.probe("character", func() bool {
		return uniseg.GraphemeClusterCount(trimmed) <= c.maxCharacters
	})
}

func (c *Classifier) isColor(trimmed string) bool {
	return c.probe("color", func() bool {
		_, err := ParseColor(trimmed)
		return err == nil
	})
}

func (c *Classifier) detectCode(trimmed string) *models.Language {
	if c.detector == nil {
		return nil
	}

	var lang *models.Language
	c.probe("code", func() bool {
		slice := truncateRunes(trimmed, c.maxCodeScan)
		n := max(1, float64(utf8.RuneCountInString(slice))/100)

		d := c.detector.Detect(slice)
		if d.Language == "" || d.Relevance/n < codeThreshold {
			return false
		}

		lang = &models.Language{ID: d.Language, Name: languageName(d.Language, c.detector.DisplayName(d.Language))}
		return true
	})
	return lang
}

// probe runs a rule, treating a panic in an injected capability as no match.
func (c *Classifier) probe(rule string, fn func() bool) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug("classifier rule failed", "rule", rule, "panic", r)
			matched = false
		}
	}()
	return fn()
}

// languageName picks the display name for a detected language. When the id
// is more than three characters shorter than the suggested name, the
// capitalized id is used instead.
func languageName(id, name string) string {
	if name == "" {
		name = id
	}
	if utf8.RuneCountInString(id) < utf8.RuneCountInString(name)-3 {
		return capitalize(id)
	}
	return name
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func classifyFiles(p Payload) *Result {
	if len(p.Paths) == 0 {
		return nil
	}

	op := p.Operation
	if op == "" {
		op = models.FileCopy
	}
	meta := &models.FileMetadata{Operation: op}

	if len(p.Paths) == 1 {
		return &Result{Type: models.ItemFile, Content: p.Paths[0], Metadata: meta}
	}
	return &Result{Type: models.ItemFiles, Content: strings.Join(p.Paths, "\n"), Metadata: meta}
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
