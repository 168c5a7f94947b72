package classify

import (
	"errors"
	"testing"

	"github.com/kilupskalvis/clipvault/internal/checksum"
	"github.com/kilupskalvis/clipvault/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDetector returns a fixed detection for every input.
type fakeDetector struct {
	detection Detection
	names     map[string]string
	panics    bool
	calls     []string
}

func (f *fakeDetector) Detect(text string) Detection {
	f.calls = append(f.calls, text)
	if f.panics {
		panic("detector exploded")
	}
	return f.detection
}

func (f *fakeDetector) DisplayName(language string) string {
	return f.names[language]
}

func newTestClassifier(d CodeDetector) *Classifier {
	return New(Config{Detector: d, MaxCharacters: 1})
}

func TestClassify_Link(t *testing.T) {
	c := newTestClassifier(nil)

	res := c.Classify(TextPayload("https://example.org"))
	require.NotNil(t, res)
	assert.Equal(t, models.ItemLink, res.Type)
	assert.Equal(t, "https://example.org", res.Content)
	assert.Nil(t, res.Metadata)
}

func TestClassify_LinkKeepsOriginalText(t *testing.T) {
	c := newTestClassifier(nil)

	res := c.Classify(TextPayload("  https://example.org/path?q=1\n"))
	require.NotNil(t, res)
	assert.Equal(t, models.ItemLink, res.Type)
	assert.Equal(t, "  https://example.org/path?q=1\n", res.Content)
}

func TestClassify_LinkRejectedByValidator(t *testing.T) {
	c := New(Config{
		Validator:     URIValidatorFunc(func(string) error { return errors.New("nope") }),
		MaxCharacters: 1,
	})

	res := c.Classify(TextPayload("https://example.org"))
	require.NotNil(t, res)
	assert.Equal(t, models.ItemText, res.Type)
}

func TestClassify_LinkValidatorPanicFallsThrough(t *testing.T) {
	c := New(Config{
		Validator:     URIValidatorFunc(func(string) error { panic("boom") }),
		MaxCharacters: 1,
	})

	res := c.Classify(TextPayload("http://example.org"))
	require.NotNil(t, res)
	assert.Equal(t, models.ItemText, res.Type)
}

func TestClassify_HTTPPrefixWithSpacesIsText(t *testing.T) {
	c := newTestClassifier(nil)

	res := c.Classify(TextPayload("http is a protocol"))
	require.NotNil(t, res)
	assert.Equal(t, models.ItemText, res.Type)
}

func TestClassify_Character(t *testing.T) {
	c := newTestClassifier(nil)

	for _, s := range []string{"🙂", "a", " x ", "👨‍👩‍👧", "é"} {
		res := c.Classify(TextPayload(s))
		require.NotNil(t, res, s)
		assert.Equal(t, models.ItemCharacter, res.Type, s)
		assert.Equal(t, s, res.Content)
	}
}

func TestClassify_CharacterLimit(t *testing.T) {
	c := New(Config{MaxCharacters: 3})

	assert.Equal(t, models.ItemCharacter, c.Classify(TextPayload("abc")).Type)
	assert.Equal(t, models.ItemText, c.Classify(TextPayload("abcd")).Type)

	none := New(Config{MaxCharacters: 0})
	assert.Equal(t, models.ItemText, none.Classify(TextPayload("a")).Type)
}

func TestClassify_Color(t *testing.T) {
	c := newTestClassifier(nil)

	for _, s := range []string{"#FF0000", "rgb(1, 2, 3)", "hsl(120deg 50% 50%)", "rebeccapurple"} {
		res := c.Classify(TextPayload(s))
		require.NotNil(t, res, s)
		assert.Equal(t, models.ItemColor, res.Type, s)
	}
}

func TestClassify_Code(t *testing.T) {
	d := &fakeDetector{
		detection: Detection{Language: "javascript", Relevance: 5},
		names:     map[string]string{"javascript": "JavaScript"},
	}
	c := newTestClassifier(d)

	res := c.Classify(TextPayload("console.log('x')"))
	require.NotNil(t, res)
	assert.Equal(t, models.ItemCode, res.Type)

	meta, ok := res.Metadata.(*models.CodeMetadata)
	require.True(t, ok)
	require.NotNil(t, meta.Language)
	assert.Equal(t, "javascript", meta.Language.ID)
	assert.Equal(t, "JavaScript", meta.Language.Name)
}

func TestClassify_CodeRelevanceScalesWithLength(t *testing.T) {
	d := &fakeDetector{detection: Detection{Language: "go", Relevance: 5}}
	c := newTestClassifier(d)

	// 300 characters: n = 3, 5/3 < 3
	long := ""
	for len(long) < 300 {
		long += "abcdefghij"
	}
	res := c.Classify(TextPayload(long))
	require.NotNil(t, res)
	assert.Equal(t, models.ItemText, res.Type)
}

func TestClassify_CodeScanIsTruncated(t *testing.T) {
	d := &fakeDetector{detection: Detection{}}
	c := New(Config{Detector: d, MaxCharacters: 1, MaxCodeScan: 20})

	text := ""
	for len(text) < 100 {
		text += "0123456789"
	}
	c.Classify(TextPayload(text))

	require.Len(t, d.calls, 1)
	assert.Len(t, d.calls[0], 20)
}

func TestClassify_BelowThresholdIsText(t *testing.T) {
	d := &fakeDetector{detection: Detection{Language: "markdown", Relevance: 2}}
	c := newTestClassifier(d)

	res := c.Classify(TextPayload("The quick brown fox jumps over the lazy dog."))
	require.NotNil(t, res)
	assert.Equal(t, models.ItemText, res.Type)
	assert.Nil(t, res.Metadata)
}

func TestClassify_DetectorPanicIsText(t *testing.T) {
	c := newTestClassifier(&fakeDetector{panics: true})

	res := c.Classify(TextPayload("some words here"))
	require.NotNil(t, res)
	assert.Equal(t, models.ItemText, res.Type)
}

func TestLanguageName(t *testing.T) {
	// id much shorter than the name: capitalized id wins
	assert.Equal(t, "Js", languageName("js", "JavaScript"))
	// comparable lengths: the display name wins
	assert.Equal(t, "JavaScript", languageName("javascript", "JavaScript"))
	assert.Equal(t, "Go", languageName("go", "Go"))
	// exactly three shorter is not enough
	assert.Equal(t, "Bash", languageName("b", "Bash"))
	assert.Equal(t, "Ts", languageName("ts", "TypeScript"))
	// missing display name falls back to the id
	assert.Equal(t, "rust", languageName("rust", ""))
}

func TestClassify_EmptyText(t *testing.T) {
	c := newTestClassifier(nil)

	assert.Nil(t, c.Classify(TextPayload("")))
	assert.Nil(t, c.Classify(TextPayload("  \n\t ")))
}

func TestClassify_Image(t *testing.T) {
	c := newTestClassifier(nil)
	data := []byte{0x89, 'P', 'N', 'G'}

	res := c.Classify(ImagePayload("image/png", data))
	require.NotNil(t, res)
	assert.Equal(t, models.ItemImage, res.Type)
	require.NotNil(t, res.Image)
	assert.Equal(t, checksum.Bytes(data), res.Image.Checksum)
	assert.Equal(t, "png", res.Image.Extension())
	assert.Empty(t, res.Content)

	assert.Nil(t, c.Classify(ImagePayload("image/png", nil)))
}

func TestClassify_Files(t *testing.T) {
	c := newTestClassifier(nil)

	res := c.Classify(Payload{Kind: KindFiles, Paths: []string{"file:///a"}})
	require.NotNil(t, res)
	assert.Equal(t, models.ItemFile, res.Type)
	assert.Equal(t, "file:///a", res.Content)
	assert.Equal(t, &models.FileMetadata{Operation: models.FileCopy}, res.Metadata)

	res = c.Classify(Payload{Kind: KindFiles, Paths: []string{"file:///a", "file:///b"}, Operation: models.FileCut})
	require.NotNil(t, res)
	assert.Equal(t, models.ItemFiles, res.Type)
	assert.Equal(t, "file:///a\nfile:///b", res.Content)
	assert.Equal(t, &models.FileMetadata{Operation: models.FileCut}, res.Metadata)

	assert.Nil(t, c.Classify(Payload{Kind: KindFiles}))
}

func TestFilesPayload(t *testing.T) {
	p, ok := FilesPayload([]byte("cut\nfile:///a\n\n  file:///b  \n"))
	require.True(t, ok)
	assert.Equal(t, models.FileCut, p.Operation)
	assert.Equal(t, []string{"file:///a", "file:///b"}, p.Paths)

	p, ok = FilesPayload([]byte("file:///only"))
	require.True(t, ok)
	assert.Equal(t, models.FileCopy, p.Operation)
	assert.Equal(t, []string{"file:///only"}, p.Paths)

	_, ok = FilesPayload([]byte("copy\n"))
	assert.False(t, ok)

	_, ok = FilesPayload([]byte("   "))
	assert.False(t, ok)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "abc", truncateRunes("abc", 10))
}
