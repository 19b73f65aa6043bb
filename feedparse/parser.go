package feedparse

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

// Parser turns raw RSS/Atom/JSON-feed payloads into normalized articles.
// It tolerates the usual real-world feed damage (missing dates, relative
// links, absent GUIDs) and only fails on structurally unparseable input.
type Parser struct{}

// New creates a Parser.
func New() *Parser {
	return &Parser{}
}

// Parse parses a raw feed payload. A structural parse failure returns a
// FEED_PARSE_FAILED error so the caller can re-route the source as a page.
func (p *Parser) Parse(raw string, src models.Source) ([]models.Article, error) {
	feed, err := gofeed.NewParser().ParseString(raw)
	if err != nil {
		return nil, models.NewFetchError(models.ErrCodeFeedParse,
			"structural feed parse failed for "+src.URL, err)
	}

	sourceName := src.Name
	if sourceName == "" {
		sourceName = feed.Title
	}

	articles := make([]models.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		title := strings.TrimSpace(item.Title)
		link := resolveLink(src.URL, item.Link)
		if title == "" && link == "" {
			// Nothing to identify the entry by; skip it.
			continue
		}

		guid := item.GUID
		if guid == "" {
			guid = link
		}

		articles = append(articles, models.Article{
			ID:          uuid.New(),
			Title:       title,
			Link:        link,
			Summary:     itemSummary(item),
			Categories:  item.Categories,
			Author:      itemAuthor(item),
			GUID:        guid,
			PublishedAt: itemTime(item),
			SourceURL:   src.URL,
			SourceName:  sourceName,
		})
	}
	return articles, nil
}

// resolveLink makes relative entry links absolute against the feed URL.
func resolveLink(feedURL, link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if u.IsAbs() {
		return link
	}
	base, err := url.Parse(feedURL)
	if err != nil {
		return link
	}
	return base.ResolveReference(u).String()
}

func itemSummary(item *gofeed.Item) string {
	if s := strings.TrimSpace(item.Description); s != "" {
		return s
	}
	return strings.TrimSpace(item.Content)
}

func itemAuthor(item *gofeed.Item) string {
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	return ""
}

// itemTime prefers the published date, falls back to the update date, and
// stamps undated entries with the parse time so downstream sorting stays
// total.
func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Now().UTC()
}
