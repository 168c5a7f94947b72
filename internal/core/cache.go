package core

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kilupskalvis/clipvault/internal/checksum"
	"github.com/kilupskalvis/clipvault/internal/classify"
)

// validChecksum matches a lowercase hex-encoded MD5 checksum.
var validChecksum = regexp.MustCompile(`^[0-9a-f]{32}$`)

// validExtension keeps mime-derived extensions filename safe.
var validExtension = regexp.MustCompile(`^[a-z0-9.+-]{1,16}$`)

// Cache stores captured images and link thumbnails on the filesystem.
// Images are content addressed as images/{checksum}.{ext} under the data
// directory; thumbnails are named by the MD5 of their source URL under the
// cache directory.
type Cache struct {
	imagesDir     string
	thumbnailsDir string
	logger        *slog.Logger
}

// NewCache creates a cache rooted at the given directories. Directories are
// created lazily on first write.
func NewCache(dataDir, cacheDir string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		imagesDir:     filepath.Join(dataDir, "images"),
		thumbnailsDir: cacheDir,
		logger:        logger,
	}
}

// ImagesDir returns the directory images are written to.
func (c *Cache) ImagesDir() string {
	return c.imagesDir
}

// StoreImage writes image bytes and returns the file URI of the cached copy.
// Idempotent: if the file already exists it is not rewritten.
func (c *Cache) StoreImage(img *classify.Image) (string, error) {
	uri, _, err := c.storeImage(img)
	return uri, err
}

// storeImage is StoreImage that also reports whether the file was written
// by this call.
func (c *Cache) storeImage(img *classify.Image) (string, bool, error) {
	if !validChecksum.MatchString(img.Checksum) {
		return "", false, fmt.Errorf("invalid image checksum: %q", img.Checksum)
	}
	ext := img.Extension()
	if !validExtension.MatchString(ext) {
		ext = "bin"
	}

	path := filepath.Join(c.imagesDir, img.Checksum+"."+ext)
	uri := fileURI(path)

	if _, err := os.Stat(path); err == nil {
		return uri, false, nil
	}

	if err := os.MkdirAll(c.imagesDir, 0755); err != nil {
		return "", false, fmt.Errorf("create images dir: %w", err)
	}

	// Write to temp file, verify checksum, rename
	tmpFile, err := os.CreateTemp(c.imagesDir, ".image-*")
	if err != nil {
		return "", false, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	hasher := md5.New()
	writer := io.MultiWriter(tmpFile, hasher)
	if _, err := writer.Write(img.Data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", false, fmt.Errorf("write image data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", false, fmt.Errorf("close temp file: %w", err)
	}

	if computed := hex.EncodeToString(hasher.Sum(nil)); computed != img.Checksum {
		os.Remove(tmpPath)
		return "", false, fmt.Errorf("image checksum mismatch: expected %s, got %s", img.Checksum, computed)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", false, fmt.Errorf("rename image: %w", err)
	}
	return uri, true, nil
}

// ReadImage returns the bytes of a cached image.
func (c *Cache) ReadImage(uri string) ([]byte, error) {
	path, err := checksum.StripFileScheme(uri)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// ThumbnailPath returns where the thumbnail for a link image URL is cached.
func (c *Cache) ThumbnailPath(imageURL string) string {
	return filepath.Join(c.thumbnailsDir, checksum.Text(imageURL))
}

// Remove deletes a cached file given its path or file URI. Failures are
// logged and files outside the cache directories are left alone.
func (c *Cache) Remove(uri string) {
	path, err := checksum.StripFileScheme(uri)
	if err != nil {
		c.logger.Warn("cannot remove cached file", "uri", uri, "error", err)
		return
	}
	if !c.owns(path) {
		c.logger.Warn("refusing to remove file outside cache", "path", path)
		return
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Error("failed to remove cached file", "path", path, "error", err)
	}
}

func (c *Cache) owns(path string) bool {
	clean := filepath.Clean(path)
	for _, dir := range []string{c.imagesDir, c.thumbnailsDir} {
		if dir == "" {
			continue
		}
		rel, err := filepath.Rel(filepath.Clean(dir), clean)
		if err == nil && rel != "." && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel) {
			return true
		}
	}
	return false
}

func fileURI(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}
