package models

import (
	"time"

	"github.com/google/uuid"
)

// Article is one normalized article record, produced either by the feed
// parser or by LLM extraction from a resolved page.
type Article struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Summary     string     `json:"summary,omitempty"`
	Categories  []string   `json:"categories,omitempty"`
	Author      string     `json:"author,omitempty"`
	GUID        string     `json:"guid,omitempty"`
	PublishedAt time.Time  `json:"published_at"`
	SourceURL   string     `json:"source_url"`
	SourceName  string     `json:"source_name,omitempty"`
}
