package dispatch

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

// feedPathPattern matches URL paths that conventionally serve feeds.
var feedPathPattern = regexp.MustCompile(`(?i)(\.(rss|atom|xml)$|/(feed|rss|atom)/?$)`)

// feedContentTypes are Content-Type fragments that identify a feed payload.
var feedContentTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
	"application/xml",
	"text/xml",
	"application/feed+json",
}

// feedBodyMarkers are markup fragments near the top of a document that
// identify RSS or Atom regardless of what Content-Type the server claims.
var feedBodyMarkers = []string{
	"<rss",
	"<feed",
	"<channel>",
	"<rdf:rdf",
	"http://www.w3.org/2005/atom",
}

// classifySource decides routing from the source alone, before any network
// traffic. A declared type always wins; otherwise the URL shape is a strong
// hint; anything else stays unknown and gets sniffed after a probe fetch.
func classifySource(src models.Source) models.SourceType {
	if t := src.DeclaredType(); t != models.SourceTypeUnknown {
		return t
	}
	if u, err := url.Parse(src.URL); err == nil {
		probe := u.Path
		if strings.Contains(u.RawQuery, "feed=") || strings.Contains(u.RawQuery, "format=rss") {
			return models.SourceTypeFeed
		}
		if feedPathPattern.MatchString(probe) {
			return models.SourceTypeFeed
		}
	}
	return models.SourceTypeUnknown
}

// looksLikeFeed sniffs a fetched payload. Servers routinely lie about feed
// Content-Types (text/html feeds are common), so the body markers are
// checked as well.
func looksLikeFeed(contentType, body string) bool {
	ct := strings.ToLower(contentType)
	for _, t := range feedContentTypes {
		if strings.Contains(ct, t) {
			return true
		}
	}

	head := strings.ToLower(body)
	if len(head) > 2048 {
		head = head[:2048]
	}
	for _, marker := range feedBodyMarkers {
		if strings.Contains(head, marker) {
			return true
		}
	}
	return false
}
