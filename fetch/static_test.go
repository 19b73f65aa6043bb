package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

func newTestFetcher() *StaticFetcher {
	return NewStaticFetcherWithClient(&http.Client{})
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body><p>hello</p></body></html>")
	}))
	defer srv.Close()

	attempt := newTestFetcher().Fetch(context.Background(), srv.URL, 5*time.Second)

	assert.True(t, attempt.Succeeded)
	assert.Equal(t, models.MethodStatic, attempt.Method)
	assert.Contains(t, attempt.Content, "hello")
	assert.Contains(t, attempt.ContentType, "text/html")
	assert.Empty(t, attempt.FailureReason)
}

func TestFetch_NonSuccessStatusIsDataNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	attempt := newTestFetcher().Fetch(context.Background(), srv.URL, 5*time.Second)

	assert.False(t, attempt.Succeeded)
	assert.Equal(t, "HTTP 403", attempt.FailureReason)
	assert.False(t, attempt.Usable())
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	start := time.Now()
	attempt := newTestFetcher().Fetch(context.Background(), srv.URL, 50*time.Millisecond)

	assert.False(t, attempt.Succeeded)
	assert.Equal(t, "timeout", attempt.FailureReason)
	assert.Less(t, time.Since(start), 400*time.Millisecond, "timeout should cut the attempt short")
}

func TestFetch_ConnectionRefused(t *testing.T) {
	// Grab a port that nothing listens on.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	attempt := newTestFetcher().Fetch(context.Background(), url, time.Second)

	assert.False(t, attempt.Succeeded)
	assert.NotEmpty(t, attempt.FailureReason)
}

func TestFetch_FollowsRedirects(t *testing.T) {
	var final *httptest.Server
	final = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "landed")
	}))
	defer final.Close()

	hops := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusFound)
	}))
	defer hops.Close()

	attempt := newTestFetcher().Fetch(context.Background(), hops.URL, 5*time.Second)

	require.True(t, attempt.Succeeded)
	assert.Equal(t, "landed", attempt.Content)
}

func TestFetch_RedirectLoopBounded(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL, http.StatusFound)
	}))
	defer srv.Close()

	attempt := newTestFetcher().Fetch(context.Background(), srv.URL, 5*time.Second)

	assert.False(t, attempt.Succeeded)
	assert.Contains(t, attempt.FailureReason, "redirects")
}

func TestFetch_InvalidURL(t *testing.T) {
	attempt := newTestFetcher().Fetch(context.Background(), "://not-a-url", time.Second)

	assert.False(t, attempt.Succeeded)
	assert.NotEmpty(t, attempt.FailureReason)
}
