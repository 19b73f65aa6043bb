package quality

import (
	"math"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// boilerplate matches markup that carries no readable article text.
var boilerplate = cascadia.MustCompile("script, style, noscript, template, iframe, svg, head")

// structural matches paragraph-like and heading-like blocks. A real article
// page has many of these; an SPA shell or a blocked page has almost none.
var structural = cascadia.MustCompile("p, h1, h2, h3, h4, h5, h6, article, section, blockquote, pre, li")

var whitespace = regexp.MustCompile(`\s+`)

// Normalization ceilings for the composite terms. Pages at or beyond these
// values saturate the corresponding term at 1.0.
const (
	textLenCeiling = 100_000 // characters of extracted text
	ratioCeiling   = 0.30    // text-to-markup ratio of a content-dense page
	blockCeiling   = 40      // structural blocks
)

// Config holds the scorer weights and the reject floor.
type Config struct {
	// MinContentLength is the extracted-text length below which the score
	// clamps to zero regardless of the other components.
	MinContentLength int

	TextWeight  float64
	RatioWeight float64
	BlockWeight float64
}

// DefaultConfig returns empirically chosen weights.
func DefaultConfig() Config {
	return Config{
		MinContentLength: 200,
		TextWeight:       0.5,
		RatioWeight:      0.3,
		BlockWeight:      0.2,
	}
}

// Scorer estimates how much usable article content a fetched payload
// contains. Scoring is pure and deterministic: same content, same score,
// no side effects, and it never fails — malformed or empty input yields
// the minimum score.
type Scorer struct {
	cfg Config
}

// NewScorer creates a Scorer. Zero-valued weights fall back to defaults so
// a partially filled Config stays usable.
func NewScorer(cfg Config) *Scorer {
	def := DefaultConfig()
	if cfg.MinContentLength <= 0 {
		cfg.MinContentLength = def.MinContentLength
	}
	if cfg.TextWeight <= 0 && cfg.RatioWeight <= 0 && cfg.BlockWeight <= 0 {
		cfg.TextWeight = def.TextWeight
		cfg.RatioWeight = def.RatioWeight
		cfg.BlockWeight = def.BlockWeight
	}
	return &Scorer{cfg: cfg}
}

// Score computes the composite quality score in [0, 1].
//
// Components:
//   - extracted-text length after stripping markup and boilerplate
//     (log-scaled so the first few kilobytes matter most)
//   - ratio of text length to raw markup length (penalizes pages that are
//     mostly script and scaffolding)
//   - count of paragraph-like and heading-like structural blocks
//
// Below MinContentLength of extracted text the score clamps to 0.
func (s *Scorer) Score(content string) float64 {
	if strings.TrimSpace(content) == "" {
		return 0
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		// golang.org/x/net/html is error-tolerant, so this is effectively
		// unreachable; treat it as unusable content rather than failing.
		return 0
	}

	doc.FindMatcher(boilerplate).Remove()

	text := whitespace.ReplaceAllString(strings.TrimSpace(doc.Text()), " ")
	textLen := len(text)
	if textLen < s.cfg.MinContentLength {
		return 0
	}

	ratio := float64(textLen) / float64(len(content))
	blocks := doc.FindMatcher(structural).Length()

	textTerm := math.Log1p(float64(textLen)) / math.Log1p(textLenCeiling)
	ratioTerm := ratio / ratioCeiling
	blockTerm := float64(blocks) / blockCeiling

	score := s.cfg.TextWeight*clamp01(textTerm) +
		s.cfg.RatioWeight*clamp01(ratioTerm) +
		s.cfg.BlockWeight*clamp01(blockTerm)

	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
