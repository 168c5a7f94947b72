package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kilupskalvis/clipvault/internal/checksum"
	"github.com/kilupskalvis/clipvault/internal/classify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, string, string) {
	t.Helper()
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	cacheDir := filepath.Join(dir, "cache")
	return NewCache(dataDir, cacheDir, nil), dataDir, cacheDir
}

func TestCache_StoreImage(t *testing.T) {
	c, dataDir, _ := newTestCache(t)
	img := &classify.Image{MimeType: "image/png", Data: pngData, Checksum: checksum.Bytes(pngData)}

	uri, err := c.StoreImage(img)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "file://"))

	path := filepath.Join(dataDir, "images", img.Checksum+".png")
	stored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngData, stored)

	// idempotent
	again, err := c.StoreImage(img)
	require.NoError(t, err)
	assert.Equal(t, uri, again)

	data, err := c.ReadImage(uri)
	require.NoError(t, err)
	assert.Equal(t, pngData, data)
}

func TestCache_StoreImageRejectsBadChecksum(t *testing.T) {
	c, dataDir, _ := newTestCache(t)

	_, err := c.StoreImage(&classify.Image{MimeType: "image/png", Data: pngData, Checksum: "../../etc"})
	assert.Error(t, err)

	_, err = c.StoreImage(&classify.Image{MimeType: "image/png", Data: pngData, Checksum: checksum.Text("other")})
	assert.Error(t, err)

	// no temp files left behind
	entries, _ := os.ReadDir(filepath.Join(dataDir, "images"))
	assert.Empty(t, entries)
}

func TestCache_UnsafeExtension(t *testing.T) {
	c, dataDir, _ := newTestCache(t)
	img := &classify.Image{MimeType: "image/../x", Data: pngData, Checksum: checksum.Bytes(pngData)}

	_, err := c.StoreImage(img)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dataDir, "images", img.Checksum+".bin"))
}

func TestCache_ThumbnailPath(t *testing.T) {
	c, _, cacheDir := newTestCache(t)
	url := "https://example.org/og.png"
	assert.Equal(t, filepath.Join(cacheDir, checksum.Text(url)), c.ThumbnailPath(url))
}

func TestCache_Remove(t *testing.T) {
	c, _, _ := newTestCache(t)
	uri, err := c.StoreImage(&classify.Image{MimeType: "image/png", Data: pngData, Checksum: checksum.Bytes(pngData)})
	require.NoError(t, err)
	path, _ := checksum.StripFileScheme(uri)

	c.Remove(uri)
	assert.NoFileExists(t, path)

	// removing again is harmless
	c.Remove(uri)
}

func TestCache_RemoveOutsideCacheIsRefused(t *testing.T) {
	c, _, _ := newTestCache(t)
	outside := filepath.Join(t.TempDir(), "important.txt")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0644))

	c.Remove("file://" + outside)
	assert.FileExists(t, outside)

	_, err := c.StoreImage(&classify.Image{MimeType: "image/png", Data: pngData, Checksum: checksum.Bytes(pngData)})
	require.NoError(t, err)
	c.Remove("file://" + c.ImagesDir())
	assert.DirExists(t, c.ImagesDir())
}
