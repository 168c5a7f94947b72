package clipboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstOffered(t *testing.T) {
	offered := []string{MimeUTF8String, MimeGnomeFiles, MimeText}

	m, ok := FirstOffered(offered, FileMimeTypes)
	require.True(t, ok)
	assert.Equal(t, MimeGnomeFiles, m)

	m, ok = FirstOffered(offered, TextMimeTypes)
	require.True(t, ok)
	assert.Equal(t, MimeText, m)

	_, ok = FirstOffered(offered, ImageMimeTypes)
	assert.False(t, ok)
}

func TestIsFileList(t *testing.T) {
	assert.True(t, isFileList("file:///a\nfile:///b"))
	assert.True(t, isFileList("cut\nfile:///a\n"))
	assert.False(t, isFileList("file:///a\nhello"))
	assert.False(t, isFileList("copy\n"))
	assert.False(t, isFileList("https://example.org"))
}

func TestStripOperation(t *testing.T) {
	assert.Equal(t, "file:///a\nfile:///b", stripOperation("COPY\nfile:///a\nfile:///b"))
	assert.Equal(t, "file:///a", stripOperation("file:///a"))
	assert.Equal(t, "", stripOperation("cut"))
}

func TestMockSelection_OfferAndRead(t *testing.T) {
	m := NewMockSelection()
	ctx := context.Background()
	m.Offer(
		Content{MimeType: MimePasswordHint, Data: []byte("secret")},
		Content{MimeType: MimeText, Data: []byte("hunter2")},
	)

	types, err := m.MimeTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{MimePasswordHint, MimeText}, types)

	data, err := m.Read(ctx, MimeText)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(data))

	_, err = m.Read(ctx, MimePNG)
	assert.Error(t, err)
}

func TestMockSelection_WriteSignalsChange(t *testing.T) {
	m := NewMockSelection()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := m.Changes(ctx)

	require.NoError(t, m.Write(ctx, Content{MimeType: MimeTextUTF8, Data: []byte("hi")}))

	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("expected owner change")
	}

	last, ok := m.LastWritten()
	require.True(t, ok)
	assert.Equal(t, "hi", string(last.Data))

	cancel()
	for range changes {
	}
}

func TestMockSelection_Err(t *testing.T) {
	m := NewMockSelection()
	m.Err = errors.New("no display")

	_, err := m.MimeTypes(context.Background())
	assert.Error(t, err)
	assert.Error(t, m.Write(context.Background(), Content{MimeType: MimeText}))
	assert.Empty(t, m.Written)
}

func TestMockSelection_Disconnect(t *testing.T) {
	m := NewMockSelection()
	ctx := context.Background()

	open := m.Changes(ctx)
	m.Disconnect()
	m.Disconnect()

	select {
	case _, ok := <-open:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected changes to close")
	}

	// channels opened while disconnected close right away
	_, ok := <-m.Changes(ctx)
	assert.False(t, ok)

	m.Reconnect()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	changes := m.Changes(ctx)
	m.Notify()
	select {
	case _, ok := <-changes:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected owner change after reconnect")
	}
}
