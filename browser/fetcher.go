package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

// pageDriver abstracts the browser operations the fetch protocol needs.
// rodDriver is the production implementation; tests substitute a scripted one.
type pageDriver interface {
	Navigate(ctx context.Context, url string) error
	Extract(ctx context.Context) (string, error)
	Scroll(ctx context.Context) error
}

// ScrollConfig tunes the load/wait/scroll protocol.
type ScrollConfig struct {
	// InitialWait is how long to let scripts settle after navigation before
	// the first extraction.
	InitialWait time.Duration

	// ScrollAttempts caps how many scroll-and-extract rounds run after the
	// initial extraction.
	ScrollAttempts int

	// ScrollWait is the settle time after each scroll.
	ScrollWait time.Duration

	// Stealth injects anti-detection scripts before navigation.
	Stealth bool
}

// DynamicFetcher retrieves a URL through a full browser session so that
// script-driven pages render their real content. It drives a borrowed
// session through navigate, wait, extract, then bounded scroll rounds with
// plateau detection: once an extraction stops growing the page is assumed
// fully loaded and the loop ends early.
type DynamicFetcher struct {
	cfg   ScrollConfig
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDynamicFetcher creates a DynamicFetcher.
func NewDynamicFetcher(cfg ScrollConfig) *DynamicFetcher {
	return &DynamicFetcher{cfg: cfg, sleep: sleepCtx}
}

// Fetch runs the fetch protocol on a borrowed session. The second return
// value reports whether the session is still healthy: false means the
// caller must discard it instead of returning it to the pool.
func (f *DynamicFetcher) Fetch(ctx context.Context, sess *Session, url string) (models.FetchAttempt, bool) {
	return f.run(ctx, &rodDriver{page: sess.Page(), stealth: f.cfg.Stealth}, url)
}

func (f *DynamicFetcher) run(ctx context.Context, d pageDriver, url string) (models.FetchAttempt, bool) {
	start := time.Now()
	attempt := models.FetchAttempt{Method: models.MethodDynamic}

	// Content extracted so far. A failure mid-protocol keeps whatever was
	// already extracted: partial content is still scoreable.
	partial := ""

	fail := func(reason string, err error) (models.FetchAttempt, bool) {
		attempt.Content = partial
		attempt.FailureReason = reason
		attempt.Elapsed = time.Since(start)
		return attempt, !sessionFatal(err)
	}

	if err := d.Navigate(ctx, url); err != nil {
		return fail(fmt.Sprintf("navigation failed: %v", err), err)
	}

	if err := f.sleep(ctx, f.cfg.InitialWait); err != nil {
		return fail("timeout while waiting for initial render", err)
	}

	content, err := d.Extract(ctx)
	if err != nil {
		return fail(fmt.Sprintf("extraction failed: %v", err), err)
	}
	partial = content

	prev := len(content)
	for i := 0; i < f.cfg.ScrollAttempts; i++ {
		if err := d.Scroll(ctx); err != nil {
			return fail(fmt.Sprintf("scroll failed: %v", err), err)
		}
		if err := f.sleep(ctx, f.cfg.ScrollWait); err != nil {
			return fail("timeout while waiting after scroll", err)
		}
		content, err = d.Extract(ctx)
		if err != nil {
			return fail(fmt.Sprintf("extraction failed: %v", err), err)
		}
		partial = content

		if len(content) <= prev {
			// Plateau: the page stopped producing new content.
			break
		}
		prev = len(content)
	}

	attempt.Content = content
	attempt.Succeeded = true
	attempt.Elapsed = time.Since(start)
	return attempt, true
}

// sessionFatal reports whether an error indicates a broken session rather
// than a slow or misbehaving page. Context expiry means the page was slow;
// the session itself is fine.
func sessionFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
