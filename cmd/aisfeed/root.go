package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kentaroh-toyoda/ai-security-feed/arbiter"
	"github.com/kentaroh-toyoda/ai-security-feed/browser"
	"github.com/kentaroh-toyoda/ai-security-feed/config"
	"github.com/kentaroh-toyoda/ai-security-feed/dispatch"
	"github.com/kentaroh-toyoda/ai-security-feed/extract"
	"github.com/kentaroh-toyoda/ai-security-feed/feedparse"
	"github.com/kentaroh-toyoda/ai-security-feed/fetch"
	"github.com/kentaroh-toyoda/ai-security-feed/metrics"
	"github.com/kentaroh-toyoda/ai-security-feed/quality"
)

var (
	flagNoBrowser bool
	flagNoLLM     bool
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "aisfeed",
	Short: "Adaptive content acquisition engine for AI security sources",
	Long: `aisfeed ingests a list of feeds and pages, fetches each one with the
cheapest method that yields acceptable content (static HTTP first, a headless
browser only when needed), and aggregates the articles into a single RSS feed.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		if flagLogLevel != "" {
			cfg.Log.Level = flagLogLevel
		}
		initLogger(cfg.Log)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagNoBrowser, "no-browser", false, "disable the browser fallback (static fetching only)")
	rootCmd.PersistentFlags().BoolVar(&flagNoLLM, "no-llm", false, "disable LLM article extraction for page sources")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

// engineParts is everything a command needs to process sources.
type engineParts struct {
	dispatcher *dispatch.Dispatcher
	pool       *browser.Pool
	metrics    *metrics.Metrics
}

// close releases the browser (if one was launched).
func (p *engineParts) close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// buildEngine wires the full pipeline from configuration. Browser launch
// failure degrades to static-only mode instead of aborting: a partially
// capable run beats no run.
func buildEngine(cfg *config.Config) *engineParts {
	scorer := quality.NewScorer(quality.Config{
		MinContentLength: cfg.Quality.MinContentLength,
		TextWeight:       cfg.Quality.TextWeight,
		RatioWeight:      cfg.Quality.RatioWeight,
		BlockWeight:      cfg.Quality.BlockWeight,
	})
	static := fetch.NewStaticFetcher()

	var pool *browser.Pool
	var dynamic *browser.DynamicFetcher
	if cfg.Browser.Enabled && !flagNoBrowser {
		var err error
		pool, err = browser.Launch(cfg.Browser)
		if err != nil {
			slog.Warn("browser launch failed, continuing static-only", "error", err)
			pool = nil
		} else {
			dynamic = browser.NewDynamicFetcher(browser.ScrollConfig{
				InitialWait:    cfg.Browser.InitialWait,
				ScrollAttempts: cfg.Browser.ScrollAttempts,
				ScrollWait:     cfg.Browser.ScrollWait,
				Stealth:        cfg.Browser.Stealth,
			})
		}
	}

	arb := newArbiter(static, dynamic, pool, scorer, cfg)

	d := dispatch.New(arb, static, feedparse.New(), dispatch.Config{
		Concurrency:          cfg.Batch.Concurrency,
		Timeout:              cfg.Batch.Timeout,
		MaxArticlesPerSource: cfg.Batch.MaxArticlesPerSource,
		StaticTimeout:        cfg.Fetch.StaticTimeout,
		RequestDelay:         cfg.Fetch.RequestDelay,
	})

	if cfg.LLM.Enabled && !flagNoLLM {
		client := extract.NewClient(cfg.LLM, nil)
		d.SetExtractor(client)
		d.SetEnricher(client)
		slog.Info("LLM extraction enabled", "model", cfg.LLM.Model)
	}

	m := metrics.New(func() int {
		if pool == nil {
			return 0
		}
		return pool.Stats().InUse
	})
	d.SetMetrics(m)

	return &engineParts{dispatcher: d, pool: pool, metrics: m}
}

// newArbiter keeps the nil-interface plumbing in one place: a nil *Pool
// must become a nil interface, not an interface holding a nil pointer.
func newArbiter(static *fetch.StaticFetcher, dynamic *browser.DynamicFetcher, pool *browser.Pool, scorer *quality.Scorer, cfg *config.Config) *arbiter.Arbiter {
	var dynIface arbiter.DynamicFetcher
	var poolIface arbiter.SessionPool
	if dynamic != nil && pool != nil {
		dynIface = dynamic
		poolIface = pool
	}
	return arbiter.New(static, dynIface, poolIface, scorer, arbiter.Config{
		StaticTimeout:    cfg.Fetch.StaticTimeout,
		QualityThreshold: cfg.Quality.StaticThreshold,
	})
}
