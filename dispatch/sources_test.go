package dispatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

func TestParseSources_ArrayOfMixedEntries(t *testing.T) {
	data := []byte(`[
		"https://a.example/feed",
		{"url": "https://b.example", "name": "B Blog", "type": "page"},
		{"url": "https://c.example/rss", "type": "feed"}
	]`)

	sources, err := ParseSources(data)
	require.NoError(t, err)
	require.Len(t, sources, 3)

	assert.Equal(t, "https://a.example/feed", sources[0].URL)
	assert.Equal(t, models.SourceTypeUnknown, sources[0].DeclaredType())
	assert.Equal(t, "B Blog", sources[1].Name)
	assert.Equal(t, models.SourceTypePage, sources[1].Type)
	assert.Equal(t, models.SourceTypeFeed, sources[2].Type)
}

func TestParseSources_WrappedObject(t *testing.T) {
	data := []byte(`{"sources": ["https://a.example/feed"]}`)

	sources, err := ParseSources(data)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "https://a.example/feed", sources[0].URL)
}

func TestParseSources_RejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"empty url":     `[""]`,
		"bad scheme":    `["ftp://a.example/feed"]`,
		"not json":      `not json at all`,
		"missing url":   `[{"name": "no url"}]`,
		"numeric entry": `[42]`,
	}
	for name, data := range cases {
		_, err := ParseSources([]byte(data))
		require.Error(t, err, name)
		assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err), name)
	}
}

func TestLoadSources_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.json")
	require.NoError(t, os.WriteFile(path, []byte(`["https://a.example/feed"]`), 0o644))

	sources, err := LoadSources(path)
	require.NoError(t, err)
	assert.Len(t, sources, 1)
}

func TestLoadSources_MissingFile(t *testing.T) {
	_, err := LoadSources(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))
}
