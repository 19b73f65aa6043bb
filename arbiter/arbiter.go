package arbiter

import (
	"context"
	"log/slog"
	"time"

	"github.com/kentaroh-toyoda/ai-security-feed/browser"
	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

// StaticFetcher retrieves a URL without executing scripts.
type StaticFetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) models.FetchAttempt
}

// DynamicFetcher retrieves a URL through a borrowed browser session. The
// boolean reports whether the session is still healthy.
type DynamicFetcher interface {
	Fetch(ctx context.Context, sess *browser.Session, url string) (models.FetchAttempt, bool)
}

// SessionPool lends browser sessions.
type SessionPool interface {
	Acquire(ctx context.Context) (*browser.Session, error)
	Release(*browser.Session)
	Discard(*browser.Session)
}

// Scorer rates fetched content in [0, 1].
type Scorer interface {
	Score(content string) float64
}

// Config tunes the arbitration policy.
type Config struct {
	// StaticTimeout bounds each static attempt.
	StaticTimeout time.Duration

	// QualityThreshold is the static score at or above which the cheap
	// result is accepted and the browser is never touched.
	QualityThreshold float64
}

// Arbitration states, in the order a resolution moves through them.
type state string

const (
	stateInit             state = "INIT"
	stateStaticAttempt    state = "STATIC_ATTEMPT"
	stateStaticEvaluated  state = "STATIC_EVALUATED"
	stateAcceptStatic     state = "ACCEPT_STATIC"
	stateDynamicAttempt   state = "DYNAMIC_ATTEMPT"
	stateDynamicEvaluated state = "DYNAMIC_EVALUATED"
	stateSelectBest       state = "SELECT_BEST"
	stateDone             state = "DONE"
)

// Arbiter decides, per URL, whether the cheap static fetch suffices or the
// page needs full browser rendering. It always tries static first; the
// browser is a fallback, never the default. Fetch failures are inputs to
// the decision, not control-flow exceptions: the arbiter only fails when
// every method produced nothing usable.
type Arbiter struct {
	static  StaticFetcher
	dynamic DynamicFetcher
	pool    SessionPool
	scorer  Scorer
	cfg     Config
}

// New creates an Arbiter. pool and dynamic may be nil, which disables the
// browser fallback and makes the arbiter static-only.
func New(static StaticFetcher, dynamic DynamicFetcher, pool SessionPool, scorer Scorer, cfg Config) *Arbiter {
	return &Arbiter{
		static:  static,
		dynamic: dynamic,
		pool:    pool,
		scorer:  scorer,
		cfg:     cfg,
	}
}

// Resolve runs the full arbitration for one source.
func (a *Arbiter) Resolve(ctx context.Context, src models.Source) models.FetchDecision {
	a.logState(src.URL, stateInit, stateStaticAttempt)
	st := a.static.Fetch(ctx, src.URL, a.cfg.StaticTimeout)
	return a.resolveFrom(ctx, src, st)
}

// ResolveWithStatic runs the arbitration reusing an already-performed
// static attempt, so a caller that probed the URL (for content sniffing)
// does not fetch it twice.
func (a *Arbiter) ResolveWithStatic(ctx context.Context, src models.Source, st models.FetchAttempt) models.FetchDecision {
	return a.resolveFrom(ctx, src, st)
}

func (a *Arbiter) resolveFrom(ctx context.Context, src models.Source, st models.FetchAttempt) models.FetchDecision {
	a.logState(src.URL, stateStaticAttempt, stateStaticEvaluated)
	if st.Usable() {
		st.Score = a.scorer.Score(st.Content)
	}

	dec := models.FetchDecision{
		Source:   src,
		Attempts: []models.FetchAttempt{st},
	}

	if st.Succeeded && st.Score >= a.cfg.QualityThreshold {
		a.logState(src.URL, stateStaticEvaluated, stateAcceptStatic)
		dec.Chosen = &dec.Attempts[0]
		dec.MethodUsed = models.MethodStatic
		slog.Debug("arbiter: static result accepted",
			"url", src.URL, "score", st.Score, "threshold", a.cfg.QualityThreshold)
		return dec
	}

	a.logState(src.URL, stateStaticEvaluated, stateDynamicAttempt)
	dec.FallbackUsed = true

	dyn := a.dynamicAttempt(ctx, src.URL)
	a.logState(src.URL, stateDynamicAttempt, stateDynamicEvaluated)
	if dyn.Usable() {
		dyn.Score = a.scorer.Score(dyn.Content)
	}
	dec.Attempts = append(dec.Attempts, dyn)

	a.logState(src.URL, stateDynamicEvaluated, stateSelectBest)
	return a.selectBest(dec)
}

// dynamicAttempt borrows a session, runs the dynamic fetch, and guarantees
// the session goes back to the pool on every path. Pool exhaustion and
// acquisition errors become failed attempts, not resolution errors.
func (a *Arbiter) dynamicAttempt(ctx context.Context, url string) models.FetchAttempt {
	if a.pool == nil || a.dynamic == nil {
		return models.FetchAttempt{
			Method:        models.MethodDynamic,
			FailureReason: "dynamic fetching disabled",
		}
	}

	sess, err := a.pool.Acquire(ctx)
	if err != nil {
		slog.Warn("arbiter: could not acquire browser session", "url", url, "error", err)
		return models.FetchAttempt{
			Method:        models.MethodDynamic,
			FailureReason: err.Error(),
		}
	}

	healthy := false
	defer func() {
		if healthy {
			a.pool.Release(sess)
		} else {
			a.pool.Discard(sess)
		}
	}()

	attempt, ok := a.dynamic.Fetch(ctx, sess, url)
	healthy = ok
	return attempt
}

// selectBest picks the highest-scoring attempt that produced any content.
// A failed attempt with partial content still competes. On a score tie the
// earlier attempt wins, which prefers static over dynamic: equal quality
// for less cost.
func (a *Arbiter) selectBest(dec models.FetchDecision) models.FetchDecision {
	best := -1
	for i := range dec.Attempts {
		if !dec.Attempts[i].Usable() {
			continue
		}
		if best == -1 || dec.Attempts[i].Score > dec.Attempts[best].Score {
			best = i
		}
	}

	a.logState(dec.Source.URL, stateSelectBest, stateDone)

	if best == -1 {
		dec.Err = models.NewFetchError(models.ErrCodeAllMethodsFailed,
			"no fetch method produced usable content for "+dec.Source.URL, nil)
		slog.Warn("arbiter: all methods failed", "url", dec.Source.URL)
		return dec
	}

	dec.Chosen = &dec.Attempts[best]
	dec.MethodUsed = dec.Attempts[best].Method
	slog.Debug("arbiter: resolution complete",
		"url", dec.Source.URL,
		"method", dec.MethodUsed,
		"score", dec.Chosen.Score,
		"fallback", dec.FallbackUsed)
	return dec
}

func (a *Arbiter) logState(url string, from, to state) {
	slog.Debug("arbiter: transition", "url", url, "from", from, "to", to)
}
