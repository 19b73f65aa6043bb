package models

import "time"

// SourceFailure records one source that produced no usable content.
type SourceFailure struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// RunSummary aggregates per-source outcomes for one batch run. It is the
// caller-facing report: no individual source failure escalates beyond a
// failure entry here.
type RunSummary struct {
	Sources      int             `json:"sources"`
	Succeeded    int             `json:"succeeded"`
	FallbackUsed int             `json:"fallback_used"`
	Failed       int             `json:"failed"`
	FeedSources  int             `json:"feed_sources"`
	PageSources  int             `json:"page_sources"`
	Articles     int             `json:"articles"`
	Elapsed      time.Duration   `json:"elapsed"`
	Failures     []SourceFailure `json:"failures,omitempty"`
}

// PoolStats reports the state of the browser session pool.
type PoolStats struct {
	Capacity int `json:"capacity"`
	InUse    int `json:"in_use"`
}
