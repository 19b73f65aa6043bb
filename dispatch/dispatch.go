package dispatch

import (
	"context"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kentaroh-toyoda/ai-security-feed/metrics"
	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

// cacheSize bounds the per-run decision cache. Sources files are small;
// this mostly guards against pathological duplicate-heavy inputs.
const cacheSize = 512

// Resolver arbitrates one source into a FetchDecision.
type Resolver interface {
	Resolve(ctx context.Context, src models.Source) models.FetchDecision
	ResolveWithStatic(ctx context.Context, src models.Source, st models.FetchAttempt) models.FetchDecision
}

// ProbeFetcher performs the cheap static fetch used for content sniffing.
type ProbeFetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) models.FetchAttempt
}

// FeedParser turns a raw feed payload into articles.
type FeedParser interface {
	Parse(raw string, src models.Source) ([]models.Article, error)
}

// PageExtractor turns a resolved page into articles. Optional; without one,
// page sources still resolve but yield no articles.
type PageExtractor interface {
	ExtractArticles(ctx context.Context, dec *models.FetchDecision) ([]models.Article, error)
}

// ArticleEnricher rewrites a feed article's summary and categories from the
// article's own page content. Optional; without one, feed articles keep
// whatever summary the feed carried.
type ArticleEnricher interface {
	EnrichArticle(ctx context.Context, article models.Article, pageHTML string) (models.Article, error)
}

// Config tunes the batch runner.
type Config struct {
	// Concurrency bounds how many sources are processed at once.
	Concurrency int

	// Timeout is the whole-batch deadline. Zero disables it.
	Timeout time.Duration

	// MaxArticlesPerSource caps the articles taken from one source.
	MaxArticlesPerSource int

	// StaticTimeout bounds the probe fetch for unknown sources.
	StaticTimeout time.Duration

	// RequestDelay spaces out fetch starts across the whole run, including
	// the per-article page fetches done for enrichment.
	RequestDelay time.Duration
}

// SourceResult is the outcome for one source.
type SourceResult struct {
	Source   models.Source         `json:"source"`
	Kind     models.SourceType     `json:"kind"`
	Articles []models.Article      `json:"articles,omitempty"`
	Decision *models.FetchDecision `json:"decision,omitempty"`
	Err      *models.FetchError    `json:"-"`
}

// Failed reports whether the source produced no usable outcome.
func (r *SourceResult) Failed() bool {
	return r.Err != nil
}

// Dispatcher routes sources to the feed path or the arbitration path and
// runs batches under bounded concurrency. One source failing never stops
// the batch; failures land in the summary.
type Dispatcher struct {
	arbiter   Resolver
	probe     ProbeFetcher
	feeds     FeedParser
	extractor PageExtractor
	enricher  ArticleEnricher
	cfg       Config

	limiter *rate.Limiter
	metrics *metrics.Metrics
}

// New creates a Dispatcher.
func New(arbiter Resolver, probe ProbeFetcher, feeds FeedParser, cfg Config) *Dispatcher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	d := &Dispatcher{
		arbiter: arbiter,
		probe:   probe,
		feeds:   feeds,
		cfg:     cfg,
	}
	if cfg.RequestDelay > 0 {
		d.limiter = rate.NewLimiter(rate.Every(cfg.RequestDelay), 1)
	}
	return d
}

// SetExtractor installs the optional page-to-articles extractor.
func (d *Dispatcher) SetExtractor(e PageExtractor) { d.extractor = e }

// SetEnricher installs the optional per-article enricher for feed sources.
func (d *Dispatcher) SetEnricher(e ArticleEnricher) { d.enricher = e }

// SetMetrics installs the optional metrics recorder.
func (d *Dispatcher) SetMetrics(m *metrics.Metrics) { d.metrics = m }

// Run processes all sources and returns per-source results in input order
// plus an aggregate summary.
func (d *Dispatcher) Run(ctx context.Context, sources []models.Source) ([]SourceResult, models.RunSummary) {
	start := time.Now()

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	// The decision cache lives and dies with this run so the engine stays
	// stateless across runs. lru.New only fails on a non-positive size.
	cache, _ := lru.New[string, *SourceResult](cacheSize)

	results := make([]SourceResult, len(sources))
	g := new(errgroup.Group)
	g.SetLimit(d.cfg.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = d.processSource(ctx, cache, src)
			return nil
		})
	}
	// Workers never return errors; failures are data in the results.
	_ = g.Wait()

	summary := summarize(results, time.Since(start))
	if d.metrics != nil {
		d.metrics.BatchDuration.Observe(summary.Elapsed.Seconds())
	}
	slog.Info("batch complete",
		"sources", summary.Sources,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"fallbacks", summary.FallbackUsed,
		"articles", summary.Articles,
		"elapsed", summary.Elapsed)
	return results, summary
}

// processSource handles one source end to end, including the run's decision
// cache and the politeness delay.
func (d *Dispatcher) processSource(ctx context.Context, cache *lru.Cache[string, *SourceResult], src models.Source) SourceResult {
	if err := ctx.Err(); err != nil {
		// Batch deadline already passed; mark the source without touching
		// the network.
		return SourceResult{
			Source: src,
			Err:    models.NewFetchError(models.ErrCodeAllMethodsFailed, "batch deadline exceeded before source was processed", err),
		}
	}

	if cached, ok := cache.Get(src.URL); ok {
		r := *cached
		r.Source = src
		return r
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return SourceResult{
				Source: src,
				Err:    models.NewFetchError(models.ErrCodeAllMethodsFailed, "batch deadline exceeded while rate limited", err),
			}
		}
	}

	res := d.route(ctx, src)
	d.record(res)
	if !res.Failed() {
		cached := res
		cache.Add(src.URL, &cached)
	}
	return res
}

// route picks the processing path for one source.
func (d *Dispatcher) route(ctx context.Context, src models.Source) SourceResult {
	switch classifySource(src) {
	case models.SourceTypeFeed:
		return d.processFeed(ctx, src, nil)
	case models.SourceTypePage:
		dec := d.arbiter.Resolve(ctx, src)
		return d.finishPage(ctx, src, dec)
	default:
		// Unknown: probe once, sniff the payload, and reuse the probe on
		// whichever path wins so the URL is not fetched twice.
		probe := d.probe.Fetch(ctx, src.URL, d.cfg.StaticTimeout)
		if probe.Succeeded && looksLikeFeed(probe.ContentType, probe.Content) {
			return d.processFeed(ctx, src, &probe)
		}
		dec := d.arbiter.ResolveWithStatic(ctx, src, probe)
		return d.finishPage(ctx, src, dec)
	}
}

// processFeed fetches (or reuses) the feed payload and parses it. A payload
// that fails structural parsing is re-routed through the arbiter as a page:
// classification is a hint, not a verdict.
func (d *Dispatcher) processFeed(ctx context.Context, src models.Source, probe *models.FetchAttempt) SourceResult {
	att := models.FetchAttempt{}
	if probe != nil {
		att = *probe
	} else {
		att = d.probe.Fetch(ctx, src.URL, d.cfg.StaticTimeout)
	}

	if !att.Usable() {
		return SourceResult{
			Source: src,
			Kind:   models.SourceTypeFeed,
			Err:    models.NewFetchError(models.ErrCodeNetwork, "feed fetch failed: "+att.FailureReason, nil),
		}
	}

	articles, err := d.feeds.Parse(att.Content, src)
	if err != nil {
		slog.Warn("feed parse failed, re-routing source as page", "url", src.URL, "error", err)
		dec := d.arbiter.ResolveWithStatic(ctx, src, att)
		return d.finishPage(ctx, src, dec)
	}

	articles = d.truncate(articles)
	if d.enricher != nil {
		articles = d.enrichArticles(ctx, articles)
	}

	return SourceResult{
		Source:   src,
		Kind:     models.SourceTypeFeed,
		Articles: articles,
	}
}

// enrichArticles fetches each article's own page and lets the enricher
// rewrite the summary and categories from the full content. Any per-article
// failure keeps the feed's version of that article; enrichment never fails
// the source.
func (d *Dispatcher) enrichArticles(ctx context.Context, articles []models.Article) []models.Article {
	for i := range articles {
		if ctx.Err() != nil {
			break
		}
		if articles[i].Link == "" {
			continue
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				break
			}
		}
		page := d.probe.Fetch(ctx, articles[i].Link, d.cfg.StaticTimeout)
		if !page.Usable() {
			slog.Warn("article page fetch failed, keeping feed summary", "url", articles[i].Link, "reason", page.FailureReason)
			continue
		}
		enriched, err := d.enricher.EnrichArticle(ctx, articles[i], page.Content)
		if err != nil {
			slog.Warn("article enrichment failed, keeping feed summary", "url", articles[i].Link, "error", err)
			continue
		}
		articles[i] = enriched
	}
	return articles
}

// finishPage wraps an arbitration outcome and, when an extractor is
// configured, pulls articles out of the resolved content. Extraction
// failure degrades to a resolved-but-empty result rather than failing the
// source: the fetch itself worked.
func (d *Dispatcher) finishPage(ctx context.Context, src models.Source, dec models.FetchDecision) SourceResult {
	res := SourceResult{
		Source:   src,
		Kind:     models.SourceTypePage,
		Decision: &dec,
	}
	if dec.Failed() {
		res.Err = dec.Err
		return res
	}
	if d.extractor != nil {
		articles, err := d.extractor.ExtractArticles(ctx, &dec)
		if err != nil {
			slog.Warn("article extraction failed", "url", src.URL, "error", err)
		} else {
			res.Articles = d.truncate(articles)
		}
	}
	return res
}

func (d *Dispatcher) truncate(articles []models.Article) []models.Article {
	if max := d.cfg.MaxArticlesPerSource; max > 0 && len(articles) > max {
		return articles[:max]
	}
	return articles
}

// record feeds the per-source outcome into the metrics collectors.
func (d *Dispatcher) record(res SourceResult) {
	if d.metrics == nil {
		return
	}
	d.metrics.SourcesHandled.WithLabelValues(string(res.Kind)).Inc()
	d.metrics.Articles.Add(float64(len(res.Articles)))
	if res.Err != nil {
		d.metrics.FetchFailures.WithLabelValues(res.Err.Code).Inc()
	}
	if res.Decision != nil {
		if res.Decision.FallbackUsed {
			d.metrics.Fallbacks.Inc()
		}
		for _, att := range res.Decision.Attempts {
			outcome := "failure"
			if att.Succeeded {
				outcome = "success"
			}
			d.metrics.FetchAttempts.WithLabelValues(string(att.Method), outcome).Inc()
		}
	}
}

func summarize(results []SourceResult, elapsed time.Duration) models.RunSummary {
	s := models.RunSummary{
		Sources: len(results),
		Elapsed: elapsed,
	}
	for i := range results {
		r := &results[i]
		switch r.Kind {
		case models.SourceTypeFeed:
			s.FeedSources++
		case models.SourceTypePage:
			s.PageSources++
		}
		s.Articles += len(r.Articles)
		if r.Failed() {
			s.Failed++
			s.Failures = append(s.Failures, models.SourceFailure{
				URL:    r.Source.URL,
				Reason: r.Err.Error(),
			})
			continue
		}
		s.Succeeded++
		if r.Decision != nil && r.Decision.FallbackUsed {
			s.FallbackUsed++
		}
	}
	return s
}
