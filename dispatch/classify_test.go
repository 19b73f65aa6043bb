package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

func TestClassifySource_DeclaredTypeWins(t *testing.T) {
	// A declared page type overrides a feed-looking URL.
	src := models.Source{URL: "https://blog.example.com/feed", Type: models.SourceTypePage}
	assert.Equal(t, models.SourceTypePage, classifySource(src))

	src = models.Source{URL: "https://blog.example.com/about", Type: models.SourceTypeFeed}
	assert.Equal(t, models.SourceTypeFeed, classifySource(src))
}

func TestClassifySource_URLPatterns(t *testing.T) {
	feedURLs := []string{
		"https://blog.example.com/feed",
		"https://blog.example.com/feed/",
		"https://blog.example.com/rss",
		"https://blog.example.com/atom",
		"https://blog.example.com/index.xml",
		"https://blog.example.com/posts.rss",
		"https://blog.example.com/updates.atom",
		"https://blog.example.com/?feed=rss2",
	}
	for _, u := range feedURLs {
		assert.Equal(t, models.SourceTypeFeed, classifySource(models.Source{URL: u}), u)
	}

	unknownURLs := []string{
		"https://blog.example.com/",
		"https://blog.example.com/posts/feedback", // "feed" inside a word does not count
		"https://blog.example.com/articles",
	}
	for _, u := range unknownURLs {
		assert.Equal(t, models.SourceTypeUnknown, classifySource(models.Source{URL: u}), u)
	}
}

func TestLooksLikeFeed_ContentType(t *testing.T) {
	assert.True(t, looksLikeFeed("application/rss+xml; charset=utf-8", ""))
	assert.True(t, looksLikeFeed("application/atom+xml", ""))
	assert.True(t, looksLikeFeed("text/xml", ""))
	assert.False(t, looksLikeFeed("text/html; charset=utf-8", "<html><body></body></html>"))
}

func TestLooksLikeFeed_BodySniffing(t *testing.T) {
	// Servers that serve feeds as text/html are common; the body decides.
	rss := `<?xml version="1.0"?><rss version="2.0"><channel></channel></rss>`
	assert.True(t, looksLikeFeed("text/html", rss))

	atom := `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`
	assert.True(t, looksLikeFeed("text/plain", atom))

	html := "<html><head><title>Site</title></head><body><p>hello</p></body></html>"
	assert.False(t, looksLikeFeed("text/html", html))
}
