package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kentaroh-toyoda/ai-security-feed/config"
	"github.com/kentaroh-toyoda/ai-security-feed/dispatch"
	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

type staticPool struct {
	stats models.PoolStats
}

func (p staticPool) Stats() models.PoolStats { return p.stats }

// resolverForAPI serves every URL with a fixed successful decision.
type resolverForAPI struct{ fail bool }

func (r resolverForAPI) decide(src models.Source) models.FetchDecision {
	if r.fail {
		return models.FetchDecision{
			Source: src,
			Err:    models.NewFetchError(models.ErrCodeAllMethodsFailed, "nothing usable", nil),
		}
	}
	dec := models.FetchDecision{
		Source:   src,
		Attempts: []models.FetchAttempt{{Method: models.MethodStatic, Content: "<p>ok</p>", Succeeded: true, Score: 0.9}},
	}
	dec.Chosen = &dec.Attempts[0]
	dec.MethodUsed = models.MethodStatic
	return dec
}

func (r resolverForAPI) Resolve(ctx context.Context, src models.Source) models.FetchDecision {
	return r.decide(src)
}

func (r resolverForAPI) ResolveWithStatic(ctx context.Context, src models.Source, st models.FetchAttempt) models.FetchDecision {
	return r.decide(src)
}

type probeForAPI struct{}

func (probeForAPI) Fetch(ctx context.Context, url string, timeout time.Duration) models.FetchAttempt {
	return models.FetchAttempt{Method: models.MethodStatic, Content: "<html>shell</html>", ContentType: "text/html", Succeeded: true}
}

type parserForAPI struct{}

func (parserForAPI) Parse(raw string, src models.Source) ([]models.Article, error) {
	return nil, models.NewFetchError(models.ErrCodeFeedParse, "not a feed", nil)
}

func testRouter(fail bool, pool PoolStats) *gin.Engine {
	d := dispatch.New(resolverForAPI{fail: fail}, probeForAPI{}, parserForAPI{}, dispatch.Config{Concurrency: 2})
	cfg := &config.Config{Server: config.ServerConfig{Mode: gin.TestMode}}
	return NewRouter(Deps{Dispatcher: d, Pool: pool, StartTime: time.Now()}, cfg)
}

func TestHealth_Healthy(t *testing.T) {
	r := testRouter(false, staticPool{models.PoolStats{Capacity: 3, InUse: 1}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestHealth_DegradedUnderPressure(t *testing.T) {
	r := testRouter(false, staticPool{models.PoolStats{Capacity: 3, InUse: 3}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}

func TestHealth_NoPool(t *testing.T) {
	r := testRouter(false, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestResolve_Success(t *testing.T) {
	r := testRouter(false, nil)

	body := strings.NewReader(`{"url": "https://blog.example.com/post", "type": "page"}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/resolve", body))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"method_used":"static"`)
}

func TestResolve_MissingURL(t *testing.T) {
	r := testRouter(false, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/resolve", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeInvalidInput)
}

func TestResolve_AllMethodsFailed(t *testing.T) {
	r := testRouter(true, nil)

	body := strings.NewReader(`{"url": "https://down.example.com", "type": "page"}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/resolve", body))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeAllMethodsFailed)
}

func TestRun_Batch(t *testing.T) {
	r := testRouter(false, nil)

	body := strings.NewReader(`{"sources": [{"url": "https://a.example", "type": "page"}, {"url": "https://b.example", "type": "page"}]}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/run", body))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sources":2`)
	assert.Contains(t, w.Body.String(), `"succeeded":2`)
}

func TestRun_DeliversCompletionWebhook(t *testing.T) {
	received := make(chan string, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Get("X-AISFeed-Signature")
	}))
	defer hook.Close()

	d := dispatch.New(resolverForAPI{}, probeForAPI{}, parserForAPI{}, dispatch.Config{Concurrency: 2})
	cfg := &config.Config{Server: config.ServerConfig{Mode: gin.TestMode}}
	r := NewRouter(Deps{
		Dispatcher: d,
		Webhook:    config.WebhookConfig{URL: hook.URL, Secret: "s3cret"},
		StartTime:  time.Now(),
	}, cfg)

	body := strings.NewReader(`{"sources": [{"url": "https://a.example", "type": "page"}]}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/run", body))
	require.Equal(t, http.StatusOK, w.Code)

	// Delivery is asynchronous; the response must not wait for it.
	select {
	case sig := <-received:
		assert.True(t, strings.HasPrefix(sig, "sha256="), "webhook request is HMAC-signed")
	case <-time.After(2 * time.Second):
		t.Fatal("run completion webhook was not delivered")
	}
}

func TestRun_EmptySources(t *testing.T) {
	r := testRouter(false, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/run", strings.NewReader(`{"sources": []}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
