package models

import "time"

// FetchMethod identifies which fetch strategy produced an attempt.
type FetchMethod string

const (
	MethodStatic  FetchMethod = "static"
	MethodDynamic FetchMethod = "dynamic"
)

// FetchAttempt is one fetch of a URL by one method. Attempts are immutable
// records: a fetcher creates one, the arbiter scores it once, and nothing
// mutates it afterwards. Failures are data, not control flow — a timeout or
// blocked page produces Succeeded=false with a FailureReason, never a panic
// or a batch-level error.
type FetchAttempt struct {
	Method        FetchMethod   `json:"method"`
	Content       string        `json:"-"`
	ContentType   string        `json:"content_type,omitempty"`
	Elapsed       time.Duration `json:"elapsed"`
	Succeeded     bool          `json:"succeeded"`
	FailureReason string        `json:"failure_reason,omitempty"`
	Score         float64       `json:"score"`
}

// Usable reports whether the attempt carries content a downstream consumer
// can work with. A failed dynamic attempt may still be usable when partial
// content survived the protocol failure.
func (a FetchAttempt) Usable() bool {
	return a.Content != ""
}

// FetchDecision is the arbiter's final output for one source: the chosen
// attempt plus the full attempt history. When both methods failed, Chosen is
// nil and Err carries an ALL_METHODS_FAILED error.
type FetchDecision struct {
	Source       Source         `json:"source"`
	Chosen       *FetchAttempt  `json:"chosen,omitempty"`
	MethodUsed   FetchMethod    `json:"method_used,omitempty"`
	Attempts     []FetchAttempt `json:"attempts"`
	FallbackUsed bool           `json:"fallback_used"`
	Err          *FetchError    `json:"-"`
}

// Failed reports whether no method produced usable content.
func (d *FetchDecision) Failed() bool {
	return d.Chosen == nil
}
