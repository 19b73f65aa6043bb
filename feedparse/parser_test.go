package feedparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

const rssSample = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Security Weekly</title>
    <link>https://secweekly.example.com</link>
    <item>
      <title>New prompt injection technique</title>
      <link>https://secweekly.example.com/posts/prompt-injection</link>
      <guid>tag:secweekly,2026:1</guid>
      <description>A novel injection bypass.</description>
      <category>llm</category>
      <category>injection</category>
      <pubDate>Mon, 24 Aug 2026 10:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Relative link entry</title>
      <link>/posts/relative</link>
      <description>Entry with a relative link.</description>
    </item>
  </channel>
</rss>`

const atomSample = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Model Safety Notes</title>
  <entry>
    <title>Jailbreak taxonomy update</title>
    <link href="https://safety.example.org/notes/taxonomy"/>
    <id>urn:uuid:f47ac10b</id>
    <updated>2026-08-20T09:30:00Z</updated>
    <summary>Classification of recent jailbreaks.</summary>
    <author><name>R. Ortiz</name></author>
  </entry>
</feed>`

func feedSource() models.Source {
	return models.Source{URL: "https://secweekly.example.com/feed", Name: "SecWeekly"}
}

func TestParse_RSS(t *testing.T) {
	articles, err := New().Parse(rssSample, feedSource())
	require.NoError(t, err)
	require.Len(t, articles, 2)

	a := articles[0]
	assert.Equal(t, "New prompt injection technique", a.Title)
	assert.Equal(t, "https://secweekly.example.com/posts/prompt-injection", a.Link)
	assert.Equal(t, "tag:secweekly,2026:1", a.GUID)
	assert.Equal(t, []string{"llm", "injection"}, a.Categories)
	assert.Equal(t, "SecWeekly", a.SourceName)
	assert.Equal(t, "https://secweekly.example.com/feed", a.SourceURL)
	assert.Equal(t, time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC), a.PublishedAt.UTC())
	assert.NotEqual(t, a.ID, articles[1].ID)
}

func TestParse_ResolvesRelativeLinks(t *testing.T) {
	articles, err := New().Parse(rssSample, feedSource())
	require.NoError(t, err)

	assert.Equal(t, "https://secweekly.example.com/posts/relative", articles[1].Link)
}

func TestParse_MissingDateGetsStamped(t *testing.T) {
	before := time.Now().Add(-time.Minute)
	articles, err := New().Parse(rssSample, feedSource())
	require.NoError(t, err)

	assert.True(t, articles[1].PublishedAt.After(before), "undated entries are stamped with the parse time")
}

func TestParse_MissingGUIDFallsBackToLink(t *testing.T) {
	articles, err := New().Parse(rssSample, feedSource())
	require.NoError(t, err)

	assert.Equal(t, articles[1].Link, articles[1].GUID)
}

func TestParse_Atom(t *testing.T) {
	src := models.Source{URL: "https://safety.example.org/feed.atom"}
	articles, err := New().Parse(atomSample, src)
	require.NoError(t, err)
	require.Len(t, articles, 1)

	a := articles[0]
	assert.Equal(t, "Jailbreak taxonomy update", a.Title)
	assert.Equal(t, "R. Ortiz", a.Author)
	// Source had no display name; the feed title fills in.
	assert.Equal(t, "Model Safety Notes", a.SourceName)
}

func TestParse_HTMLPageIsStructuralFailure(t *testing.T) {
	page := "<html><body><h1>Not a feed</h1><p>Just a page.</p></body></html>"
	_, err := New().Parse(page, feedSource())

	require.Error(t, err)
	assert.Equal(t, models.ErrCodeFeedParse, models.CodeOf(err))
}

func TestParse_EmptyFeedYieldsNoArticles(t *testing.T) {
	empty := `<?xml version="1.0"?><rss version="2.0"><channel><title>Empty</title></channel></rss>`
	articles, err := New().Parse(empty, feedSource())

	require.NoError(t, err)
	assert.Empty(t, articles)
}
