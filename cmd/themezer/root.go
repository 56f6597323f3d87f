package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aluiziolira/go-scrape-themezer/checkpoint"
	"github.com/aluiziolira/go-scrape-themezer/config"
	"github.com/aluiziolira/go-scrape-themezer/models"
	"github.com/aluiziolira/go-scrape-themezer/pipeline"
	"github.com/aluiziolira/go-scrape-themezer/queue"
	"github.com/aluiziolira/go-scrape-themezer/scraper"
)

// runScrape is swapped out in tests.
var runScrape = run

type rootOptions struct {
	configFile string
	noDownload bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:           "themezer",
		Short:         "Crawl the Themezer catalog and download theme packs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, opts)
			if err != nil {
				return err
			}
			return runScrape(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "config", "", "Config file (yaml, json or toml)")
	flags.BoolVar(&opts.noDownload, "no-download", false, "Only collect metadata, skip asset downloads")
	flags.Int("pages", 0, "Maximum catalog pages to scrape")
	flags.Int("concurrency", 0, "Maximum packs processed at once")
	flags.String("base-url", "", "Catalog base URL")
	flags.String("output-dir", "", "Directory for pack folders")
	flags.String("summary", "", "Run summary file")
	flags.String("format", "", "Summary format: json, csv, or dual")
	flags.Float64("rps", 0, "Requests per second limit (0 disables)")
	flags.Int("dedupe", 0, "Drop packs already seen on earlier pages, remembering this many ids (0 disables)")
	flags.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	flags.BoolP("verbose", "v", false, "Enable verbose logging")

	for key, flag := range map[string]string{
		"max_pages":           "pages",
		"concurrency":         "concurrency",
		"base_url":            "base-url",
		"output_dir":          "output-dir",
		"summary_file":        "summary",
		"summary_format":      "format",
		"requests_per_second": "rps",
		"dedupe_max_size":     "dedupe",
		"metrics_addr":        "metrics-addr",
		"verbose":             "verbose",
	} {
		// Only flags that were set override lower layers.
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}

func loadConfig(v *viper.Viper, opts *rootOptions) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.LoadWith(v, opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if opts.noDownload {
		cfg.DownloadAssets = false
	}
	return cfg, nil
}

func run(parent context.Context, cfg *config.Config) error {
	logger, syncLogs, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer syncLogs()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("pages", cfg.MaxPages),
		slog.Int("concurrency", cfg.Concurrency),
		slog.Bool("download_assets", cfg.DownloadAssets),
	)

	metrics := scraper.NewMetrics()
	metricsServer := startMetricsServer(cfg.MetricsAddr, metrics)

	store, err := checkpoint.NewStore(cfg.OutputDir)
	if err != nil {
		return err
	}
	writer, err := pipeline.NewOutputWriter(cfg.SummaryFormat, cfg.SummaryFile)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}

	fetcher := scraper.NewFetcher(cfg, metrics)
	p, err := pipeline.New(
		scraper.NewPageScraper(fetcher, cfg.BaseURL, metrics),
		scraper.NewProcessor(fetcher, store, cfg.BaseURL, metrics),
		queue.New(cfg.Concurrency),
		pipeline.Options{
			PageDelay:     cfg.PageDelay,
			DedupeMaxSize: cfg.DedupeMaxSize,
			Writer:        writer,
		},
	)
	if err != nil {
		return err
	}
	p.StartMetricsReporting(cfg.ProgressInterval)

	summary, runErr := p.Run(ctx, cfg.MaxPages, cfg.DownloadAssets)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			slog.Warn("scrape interrupted, summary not written",
				slog.Int("packs", len(summary.Packs)),
			)
		}
		return fmt.Errorf("scraping failed: %w", runErr)
	}

	printSummary(summary, pipeline.SummaryFiles(cfg.SummaryFormat, cfg.SummaryFile), p.GetMetrics())
	return nil
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func printSummary(summary *models.RunSummary, outputFiles []string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	duration := summary.EndTime.Sub(summary.StartTime)
	packsPerSec := 0.0
	if duration.Seconds() > 0 {
		packsPerSec = float64(len(summary.Packs)) / duration.Seconds()
	}

	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")
	fmt.Printf("  Run ID:         %s\n", summary.RunID)
	fmt.Printf("  Pages:          %d\n", summary.PageCount)
	fmt.Printf("  Packs:          %d\n", len(summary.Packs))
	for _, outcome := range []models.Outcome{models.OutcomeCached, models.OutcomeFetched, models.OutcomeSaved, models.OutcomeFailed} {
		if n := summary.Outcomes[outcome]; n > 0 {
			fmt.Printf("  %-15s %d\n", string(outcome)+":", n)
		}
	}
	fmt.Printf("  Detail errors:  %d\n", summary.DetailErrors)
	fmt.Printf("  Asset failures: %d\n", summary.AssetFailures)
	if summary.Duplicates > 0 {
		fmt.Printf("  Duplicates:     %d\n", summary.Duplicates)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:     %v\n", valErrors)
	}
	fmt.Printf("  Duration:       %v\n", duration.Round(time.Millisecond))
	fmt.Printf("  Packs/sec:      %.2f\n", packsPerSec)
	fmt.Printf("  Summary file:   %s\n", strings.Join(outputFiles, ", "))
	fmt.Println(separator)
}
