package rss

import (
	"encoding/xml"
	"os"
	"sort"
	"time"

	"github.com/kentaroh-toyoda/ai-security-feed/config"
	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

// rss 2.0 document shape.
type rssDoc struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel channel  `xml:"channel"`
}

type channel struct {
	Title         string `xml:"title"`
	Link          string `xml:"link"`
	Description   string `xml:"description"`
	LastBuildDate string `xml:"lastBuildDate"`
	Generator     string `xml:"generator"`
	Items         []item `xml:"item"`
}

type item struct {
	Title       string      `xml:"title"`
	Link        string      `xml:"link"`
	Description string      `xml:"description,omitempty"`
	Author      string      `xml:"author,omitempty"`
	Categories  []string    `xml:"category,omitempty"`
	GUID        *guid       `xml:"guid,omitempty"`
	PubDate     string      `xml:"pubDate"`
	Source      *itemSource `xml:"source,omitempty"`
}

type guid struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type itemSource struct {
	URL   string `xml:"url,attr"`
	Value string `xml:",chardata"`
}

// Marshal renders articles as an RSS 2.0 feed, newest first.
func Marshal(articles []models.Article, feedCfg config.FeedConfig) ([]byte, error) {
	sorted := make([]models.Article, len(articles))
	copy(sorted, articles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})

	items := make([]item, 0, len(sorted))
	for _, a := range sorted {
		it := item{
			Title:       a.Title,
			Link:        a.Link,
			Description: a.Summary,
			Author:      a.Author,
			Categories:  a.Categories,
			PubDate:     a.PublishedAt.Format(time.RFC1123Z),
		}
		if a.GUID != "" {
			it.GUID = &guid{IsPermaLink: a.GUID == a.Link, Value: a.GUID}
		}
		if a.SourceURL != "" {
			it.Source = &itemSource{URL: a.SourceURL, Value: a.SourceName}
		}
		items = append(items, it)
	}

	doc := rssDoc{
		Version: "2.0",
		Channel: channel{
			Title:         feedCfg.Title,
			Link:          feedCfg.Link,
			Description:   feedCfg.Description,
			LastBuildDate: time.Now().UTC().Format(time.RFC1123Z),
			Generator:     "aisfeed",
			Items:         items,
		},
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// WriteFile renders the feed and writes it to path.
func WriteFile(path string, articles []models.Article, feedCfg config.FeedConfig) error {
	data, err := Marshal(articles, feedCfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
