package classify

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// ErrInvalidURI is returned for text that is not a syntactically valid URI.
var ErrInvalidURI = errors.New("invalid uri")

// URIValidator checks URI syntax.
type URIValidator interface {
	ValidateURI(s string) error
}

// URIValidatorFunc adapts a function to URIValidator.
type URIValidatorFunc func(s string) error

// ValidateURI calls f(s).
func (f URIValidatorFunc) ValidateURI(s string) error {
	return f(s)
}

// ValidateURI accepts absolute URIs with a scheme and no whitespace or
// control characters.
func ValidateURI(s string) error {
	if s == "" {
		return ErrInvalidURI
	}
	if strings.IndexFunc(s, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return fmt.Errorf("%w: contains whitespace", ErrInvalidURI)
	}

	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("%w: missing scheme", ErrInvalidURI)
	}
	if u.Opaque == "" && u.Host == "" && u.Path == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURI)
	}
	return nil
}
