// Package checksum computes content fingerprints used to deduplicate
// clipboard captures and to name cached files.
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

const fileScheme = "file://"

// Text returns the fingerprint of a UTF-8 string.
func Text(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Bytes returns the fingerprint of a binary payload such as image data.
func Bytes(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// Files returns the fingerprint of a file-list payload. Each URI is
// percent-decoded and stripped of its file:// scheme before hashing, so
// a list fingerprints the same as the newline-joined local paths.
func Files(uris []string) (string, error) {
	paths := make([]string, len(uris))
	for i, u := range uris {
		p, err := StripFileScheme(u)
		if err != nil {
			return "", err
		}
		paths[i] = p
	}
	return Text(strings.Join(paths, "\n")), nil
}

// StripFileScheme decodes a file URI into its local path.
func StripFileScheme(uri string) (string, error) {
	decoded, err := url.PathUnescape(uri)
	if err != nil {
		return "", fmt.Errorf("decode uri %q: %w", uri, err)
	}
	return strings.TrimPrefix(decoded, fileScheme), nil
}
