package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Text(""))
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", Text("hello"))
	assert.Equal(t, Text("hello"), Bytes([]byte("hello")))
}

func TestFiles_MatchesDecodedPaths(t *testing.T) {
	sum, err := Files([]string{"file:///home/me/My%20File.txt", "file:///tmp/b"})
	require.NoError(t, err)
	assert.Equal(t, Text("/home/me/My File.txt\n/tmp/b"), sum)
}

func TestFiles_Deterministic(t *testing.T) {
	a, err := Files([]string{"file:///a", "file:///b"})
	require.NoError(t, err)
	b, err := Files([]string{"file:///a", "file:///b"})
	require.NoError(t, err)
	c, err := Files([]string{"file:///b", "file:///a"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestFiles_MalformedEscape(t *testing.T) {
	_, err := Files([]string{"file:///bad%zz"})
	assert.Error(t, err)
}
