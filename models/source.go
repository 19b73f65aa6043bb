package models

// SourceType is the declared kind of a content source.
type SourceType string

const (
	// SourceTypeFeed marks a machine-readable RSS/Atom feed.
	SourceTypeFeed SourceType = "feed"

	// SourceTypePage marks an arbitrary web page.
	SourceTypePage SourceType = "page"

	// SourceTypeUnknown means the type must be auto-detected.
	SourceTypeUnknown SourceType = "unknown"
)

// Source is one configured content source. It is immutable input: created
// from the sources file (or an API request) and consumed once per run.
type Source struct {
	URL  string     `json:"url"`
	Name string     `json:"name,omitempty"`
	Type SourceType `json:"type,omitempty"`
}

// DeclaredType normalizes the declared type, defaulting to unknown.
func (s Source) DeclaredType() SourceType {
	switch s.Type {
	case SourceTypeFeed, SourceTypePage:
		return s.Type
	default:
		return SourceTypeUnknown
	}
}
