package dispatch

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

// LoadSources reads a sources file. Two layouts are accepted:
//
//	["https://a.example/feed", {"url": "https://b.example", "type": "page"}]
//	{"sources": [...same entries...]}
//
// Bare strings become sources with an auto-detected type.
func LoadSources(path string) ([]models.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewFetchError(models.ErrCodeInvalidInput, "cannot read sources file "+path, err)
	}
	return ParseSources(data)
}

// ParseSources parses sources-file content.
func ParseSources(data []byte) ([]models.Source, error) {
	var entries []json.RawMessage

	if err := json.Unmarshal(data, &entries); err != nil {
		var wrapper struct {
			Sources []json.RawMessage `json:"sources"`
		}
		if werr := json.Unmarshal(data, &wrapper); werr != nil || wrapper.Sources == nil {
			return nil, models.NewFetchError(models.ErrCodeInvalidInput, "sources file is neither a JSON array nor a {\"sources\": [...]} object", err)
		}
		entries = wrapper.Sources
	}

	sources := make([]models.Source, 0, len(entries))
	for i, raw := range entries {
		src, err := parseEntry(raw)
		if err != nil {
			return nil, models.NewFetchError(models.ErrCodeInvalidInput,
				fmt.Sprintf("sources entry %d is invalid", i), err)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func parseEntry(raw json.RawMessage) (models.Source, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return validateSource(models.Source{URL: strings.TrimSpace(s)})
	}

	var src models.Source
	if err := json.Unmarshal(raw, &src); err != nil {
		return models.Source{}, err
	}
	src.URL = strings.TrimSpace(src.URL)
	return validateSource(src)
}

func validateSource(src models.Source) (models.Source, error) {
	if src.URL == "" {
		return src, fmt.Errorf("source has no URL")
	}
	u, err := url.Parse(src.URL)
	if err != nil {
		return src, fmt.Errorf("invalid URL %q: %w", src.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return src, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	return src, nil
}
