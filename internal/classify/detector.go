package classify

import (
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
)

// Detection is the result of scoring a text sample for source code.
type Detection struct {
	// Language is the detected language id, empty when nothing matched.
	Language string
	// Relevance is a highlight.js-style score that grows with sample length.
	Relevance float64
}

// CodeDetector scores text for source code.
type CodeDetector interface {
	Detect(text string) Detection
	DisplayName(language string) string
}

// chromaRelevance converts a chroma confidence in [0,1] into relevance per
// 100 characters of input.
const chromaRelevance = 10

// ChromaDetector detects languages with the chroma lexer analysers.
type ChromaDetector struct{}

// NewChromaDetector creates a detector backed by chroma's lexer registry.
func NewChromaDetector() *ChromaDetector {
	return &ChromaDetector{}
}

// Detect picks the best lexer for the text.
func (d *ChromaDetector) Detect(text string) Detection {
	lexer := lexers.Analyse(text)
	if lexer == nil {
		return Detection{}
	}

	score := float32(1)
	if a, ok := lexer.(chroma.Analyser); ok {
		score = a.AnalyseText(text)
	}
	if score <= 0 {
		return Detection{}
	}

	n := max(1, float64(utf8.RuneCountInString(text))/100)
	return Detection{
		Language:  lexerID(lexer.Config()),
		Relevance: float64(score) * chromaRelevance * n,
	}
}

// DisplayName returns the lexer's human-readable name.
func (d *ChromaDetector) DisplayName(language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		return language
	}
	return lexer.Config().Name
}

func lexerID(cfg *chroma.Config) string {
	if len(cfg.Aliases) > 0 {
		return strings.ToLower(cfg.Aliases[0])
	}
	return strings.ToLower(cfg.Name)
}
