package rss

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kentaroh-toyoda/ai-security-feed/config"
	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

func testFeedCfg() config.FeedConfig {
	return config.FeedConfig{
		Title:       "AI Security Digest",
		Description: "Curated AI security articles",
		Link:        "https://digest.example.com",
	}
}

func sampleArticles() []models.Article {
	return []models.Article{
		{
			ID:          uuid.New(),
			Title:       "Older post",
			Link:        "https://a.example/old",
			Summary:     "An older write-up.",
			GUID:        "https://a.example/old",
			PublishedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			SourceURL:   "https://a.example/feed",
			SourceName:  "A Blog",
		},
		{
			ID:          uuid.New(),
			Title:       "Newer post <with markup>",
			Link:        "https://b.example/new",
			Categories:  []string{"llm", "red-team"},
			Author:      "J. Doe",
			GUID:        "tag:b.example,2026:7",
			PublishedAt: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
			SourceURL:   "https://b.example",
			SourceName:  "B Blog",
		},
	}
}

func TestMarshal_ProducesParseableRSS(t *testing.T) {
	out, err := Marshal(sampleArticles(), testFeedCfg())
	require.NoError(t, err)

	// The output must survive a real feed parser round-trip.
	feed, err := gofeed.NewParser().ParseString(string(out))
	require.NoError(t, err)

	assert.Equal(t, "AI Security Digest", feed.Title)
	require.Len(t, feed.Items, 2)

	// Newest first.
	assert.Equal(t, "Newer post <with markup>", feed.Items[0].Title)
	assert.Equal(t, "Older post", feed.Items[1].Title)

	assert.Equal(t, []string{"llm", "red-team"}, feed.Items[0].Categories)
	assert.Equal(t, "tag:b.example,2026:7", feed.Items[0].GUID)
	assert.Equal(t, 25, feed.Items[0].PublishedParsed.Day())
}

func TestMarshal_EmptyArticleList(t *testing.T) {
	out, err := Marshal(nil, testFeedCfg())
	require.NoError(t, err)

	feed, err := gofeed.NewParser().ParseString(string(out))
	require.NoError(t, err)
	assert.Empty(t, feed.Items)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.rss")
	require.NoError(t, WriteFile(path, sampleArticles(), testFeedCfg()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<rss")
}
