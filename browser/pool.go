package browser

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"golang.org/x/sync/semaphore"

	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

// Session retirement triggers. Long-lived tabs accumulate DOM and listener
// garbage, so sessions are recycled after enough use or age.
const (
	maxSessionUses = 50
	maxSessionAge  = 50 * time.Minute
)

// Session is one live browser automation session (a navigable page context).
// It is exclusively owned by the pool while idle and lent to exactly one
// borrower at a time.
type Session struct {
	id       int64
	page     *rod.Page
	useCount int
	created  time.Time
	mu       sync.Mutex
}

// ID returns the session identifier (for logging).
func (s *Session) ID() int64 { return s.id }

// Page returns the underlying rod page.
func (s *Session) Page() *rod.Page { return s.page }

func (s *Session) recordUse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.useCount++
}

func (s *Session) shouldRetire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.useCount >= maxSessionUses || time.Since(s.created) >= maxSessionAge
}

// SessionFactory creates the underlying page for a new session.
type SessionFactory func() (*rod.Page, error)

// Pool manages a bounded set of browser sessions. Capacity is fixed at
// construction and enforced by a weighted semaphore: the pool never lends
// more sessions than capacity, and no two concurrent borrowers ever hold
// the same session. Browser sessions are expensive (a whole renderer
// process each), which is why this is the one shared mutable structure in
// the engine.
type Pool struct {
	capacity       int
	acquireTimeout time.Duration
	factory        SessionFactory

	sem    *semaphore.Weighted
	mu     sync.Mutex
	idle   []*Session
	closed bool

	nextID  atomic.Int64
	inUse   atomic.Int32
	onClose func()
}

// NewPool creates a Pool with the given fixed capacity. Sessions are created
// lazily through the factory; Warm pre-creates them. acquireTimeout bounds
// how long Acquire waits for a free session before failing with
// RESOURCE_EXHAUSTED.
func NewPool(capacity int, acquireTimeout time.Duration, factory SessionFactory) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		capacity:       capacity,
		acquireTimeout: acquireTimeout,
		factory:        factory,
		sem:            semaphore.NewWeighted(int64(capacity)),
	}
}

// Warm pre-creates sessions up to capacity. Creation failures are logged and
// left to lazy creation on first acquire.
func (p *Pool) Warm() {
	for i := 0; i < p.capacity; i++ {
		s, err := p.newSession()
		if err != nil {
			slog.Warn("pool: failed to pre-create session", "error", err)
			return
		}
		p.mu.Lock()
		p.idle = append(p.idle, s)
		p.mu.Unlock()
	}
}

// Acquire borrows a session, suspending the caller until one is free or the
// acquisition timeout elapses. Waiters are served FIFO by the semaphore, so
// no caller starves. On timeout it fails with a RESOURCE_EXHAUSTED error.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, models.NewFetchError(models.ErrCodeResourceExhausted,
			"no browser session available within timeout", err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		return nil, models.NewFetchError(models.ErrCodeBrowserCrash, "session pool is closed", nil)
	}
	var s *Session
	if n := len(p.idle); n > 0 {
		s = p.idle[n-1]
		p.idle = p.idle[:n-1]
	}
	p.mu.Unlock()

	if s == nil {
		var err error
		s, err = p.newSession()
		if err != nil {
			p.sem.Release(1)
			return nil, models.NewFetchError(models.ErrCodeBrowserCrash,
				"failed to create browser session", err)
		}
	}

	s.recordUse()
	p.inUse.Add(1)
	return s, nil
}

// Release returns a healthy session to the pool. Worn-out sessions are
// destroyed instead; a fresh one is created lazily by the next acquirer so
// capacity is preserved.
func (p *Pool) Release(s *Session) {
	p.inUse.Add(-1)
	defer p.sem.Release(1)

	if s.shouldRetire() {
		slog.Debug("pool: retiring session", "id", s.id, "uses", s.useCount)
		p.destroy(s)
		return
	}

	// Reset the page so no state carries into the next borrower.
	if s.page != nil {
		if err := s.page.Navigate("about:blank"); err != nil {
			slog.Warn("pool: session reset failed, destroying", "id", s.id, "error", err)
			p.destroy(s)
			return
		}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.destroy(s)
		return
	}
	p.idle = append(p.idle, s)
	p.mu.Unlock()
}

// Discard destroys a session that errored irrecoverably and immediately
// provisions a replacement, best-effort. If replacement creation fails the
// next acquirer retries through the factory.
func (p *Pool) Discard(s *Session) {
	p.inUse.Add(-1)
	defer p.sem.Release(1)

	slog.Debug("pool: discarding session", "id", s.id)
	p.destroy(s)

	ns, err := p.newSession()
	if err != nil {
		slog.Warn("pool: failed to provision replacement session", "error", err)
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.destroy(ns)
		return
	}
	p.idle = append(p.idle, ns)
	p.mu.Unlock()
}

// Stats returns a snapshot of the pool's current state.
func (p *Pool) Stats() models.PoolStats {
	return models.PoolStats{
		Capacity: p.capacity,
		InUse:    int(p.inUse.Load()),
	}
}

// Close destroys all idle sessions and shuts down the browser. Sessions
// still lent out are destroyed when returned.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, s := range idle {
		p.destroy(s)
	}
	if p.onClose != nil {
		p.onClose()
	}
}

func (p *Pool) newSession() (*Session, error) {
	page, err := p.factory()
	if err != nil {
		return nil, err
	}
	return &Session{
		id:      p.nextID.Add(1),
		page:    page,
		created: time.Now(),
	}, nil
}

func (p *Pool) destroy(s *Session) {
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			slog.Debug("pool: page close failed", "id", s.id, "error", err)
		}
	}
}
