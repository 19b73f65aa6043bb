package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kentaroh-toyoda/ai-security-feed/config"
	"github.com/kentaroh-toyoda/ai-security-feed/dispatch"
	"github.com/kentaroh-toyoda/ai-security-feed/models"
	"github.com/kentaroh-toyoda/ai-security-feed/rss"
	"github.com/kentaroh-toyoda/ai-security-feed/webhook"
)

var (
	flagSourcesFile  string
	flagOutputFile   string
	flagMaxArticles  int
	flagValidateOnly bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process all sources once and write the aggregated RSS feed",
	RunE:  runBatch,
}

func init() {
	runCmd.Flags().StringVarP(&flagSourcesFile, "sources", "s", "sources.json", "path to the sources file")
	runCmd.Flags().StringVarP(&flagOutputFile, "output", "o", "", "output RSS file (overrides AISFEED_OUTPUT_FILE)")
	runCmd.Flags().IntVar(&flagMaxArticles, "max-articles", 0, "cap articles per source (overrides AISFEED_MAX_ARTICLES_PER_SOURCE)")
	runCmd.Flags().BoolVar(&flagValidateOnly, "validate-only", false, "validate the sources file and exit")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if flagOutputFile != "" {
		cfg.Batch.OutputFile = flagOutputFile
	}
	if flagMaxArticles > 0 {
		cfg.Batch.MaxArticlesPerSource = flagMaxArticles
	}

	sources, err := dispatch.LoadSources(flagSourcesFile)
	if err != nil {
		return err
	}
	slog.Info("sources loaded", "file", flagSourcesFile, "count", len(sources))

	if flagValidateOnly {
		fmt.Printf("%s: %d sources, all valid\n", flagSourcesFile, len(sources))
		return nil
	}

	parts := buildEngine(cfg)
	defer parts.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results, summary := parts.dispatcher.Run(ctx, sources)

	articles := collectArticles(results)
	if err := rss.WriteFile(cfg.Batch.OutputFile, articles, cfg.Feed); err != nil {
		return fmt.Errorf("write output feed: %w", err)
	}
	slog.Info("feed written", "file", cfg.Batch.OutputFile, "articles", len(articles))

	if cfg.Webhook.URL != "" {
		event := webhook.NewRunCompleted(summary)
		if err := webhook.Deliver(ctx, cfg.Webhook.URL, cfg.Webhook.Secret, event); err != nil {
			slog.Warn("webhook delivery failed", "error", err)
		}
	}

	printSummary(summary)
	return nil
}

func collectArticles(results []dispatch.SourceResult) []models.Article {
	var articles []models.Article
	for i := range results {
		articles = append(articles, results[i].Articles...)
	}
	return articles
}

func printSummary(s models.RunSummary) {
	fmt.Printf("\nProcessed %d sources in %s\n", s.Sources, s.Elapsed.Round(10*time.Millisecond))
	fmt.Printf("  succeeded: %d (%d via browser fallback)\n", s.Succeeded, s.FallbackUsed)
	fmt.Printf("  feeds: %d, pages: %d\n", s.FeedSources, s.PageSources)
	fmt.Printf("  articles: %d\n", s.Articles)
	if s.Failed > 0 {
		fmt.Printf("  failed: %d\n", s.Failed)
		for _, f := range s.Failures {
			fmt.Fprintf(os.Stderr, "    %s: %s\n", f.URL, f.Reason)
		}
	}
}
