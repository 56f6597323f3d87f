// Package pipeline drives a crawl page by page and persists the run summary.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-themezer/models"
	"github.com/aluiziolira/go-scrape-themezer/parser"
	"github.com/aluiziolira/go-scrape-themezer/queue"
)

// OutputWriter persists the run summary. Write may be called more than once;
// nothing is guaranteed to reach disk before Close.
type OutputWriter interface {
	Write(results []*models.PackResult) error
	Close() error
	Validate() error
}

// PageSource scrapes one listing page.
type PageSource interface {
	ScrapePage(ctx context.Context, page int) models.PageOutcome
}

// ItemHandler processes one pack stub.
type ItemHandler interface {
	Process(ctx context.Context, stub models.PackStub, downloadAssets bool) models.PackReport
}

// Options tunes a Pipeline. The zero value means no page delay, no
// cross-page dedupe and no summary file.
type Options struct {
	PageDelay     time.Duration
	DedupeMaxSize int
	Writer        OutputWriter
}

// Pipeline scrapes pages sequentially and fans each page's packs out to a
// bounded queue, waiting for the whole page before moving on.
type Pipeline struct {
	pages  PageSource
	items  ItemHandler
	queue  *queue.Queue
	writer OutputWriter

	pageDelay time.Duration
	seen      *lru.Cache[string, struct{}]

	metrics metrics

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// New builds a pipeline. q is shared by every page of the run.
func New(pages PageSource, items ItemHandler, q *queue.Queue, opts Options) (*Pipeline, error) {
	p := &Pipeline{
		pages:     pages,
		items:     items,
		queue:     q,
		writer:    opts.Writer,
		pageDelay: opts.PageDelay,
		metrics:   newMetrics(),
		shutdown:  make(chan struct{}),
	}
	if opts.DedupeMaxSize > 0 {
		cache, err := lru.New[string, struct{}](opts.DedupeMaxSize)
		if err != nil {
			return nil, fmt.Errorf("create dedupe cache: %w", err)
		}
		p.seen = cache
	}
	return p, nil
}

// Run crawls up to maxPages pages. It stops early when a page yields no
// packs or reports no further pages. The summary is written once, after the
// last page. If ctx is canceled the partial summary is returned with the ctx
// error and nothing is written.
func (p *Pipeline) Run(ctx context.Context, maxPages int, downloadAssets bool) (*models.RunSummary, error) {
	defer p.signalShutdown()

	summary := &models.RunSummary{
		RunID:     uuid.NewString(),
		Packs:     make([]*models.PackResult, 0),
		StartTime: time.Now(),
		Outcomes:  make(map[models.Outcome]int),
	}
	logger := slog.With(slog.String("run_id", summary.RunID))

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return p.finish(summary), err
		}

		outcome := p.pages.ScrapePage(ctx, page)
		if len(outcome.Packs) == 0 {
			logger.Info("no packs found, stopping", slog.Int("page", page))
			break
		}
		summary.PageCount++
		p.metrics.incrementPages()

		reports, err := p.processPage(ctx, outcome.Packs, downloadAssets, summary)
		for _, r := range reports {
			summary.Packs = append(summary.Packs, r.Result)
			summary.Outcomes[r.Outcome]++
			summary.AssetFailures += r.AssetFailures
			if r.DetailsFailed {
				summary.DetailErrors++
			}
			p.metrics.record(r)
		}
		if err != nil {
			return p.finish(summary), err
		}

		logger.Debug("page complete",
			slog.Int("page", page),
			slog.Int("packs", len(reports)),
			slog.Int("total", len(summary.Packs)),
		)

		if !outcome.HasMore {
			logger.Info("no more pages", slog.Int("page", page))
			break
		}
		if page < maxPages {
			if err := sleep(ctx, p.pageDelay); err != nil {
				return p.finish(summary), err
			}
		}
	}

	p.finish(summary)
	logger.Info(fmt.Sprintf("Scrape complete: %d packs", len(summary.Packs)),
		slog.Int("pages", summary.PageCount),
		slog.Duration("elapsed", summary.EndTime.Sub(summary.StartTime)),
	)

	if err := p.persist(summary.Packs); err != nil {
		return summary, err
	}
	return summary, nil
}

// processPage submits every stub and collects reports in submission order.
func (p *Pipeline) processPage(ctx context.Context, stubs []models.PackStub, downloadAssets bool, summary *models.RunSummary) ([]models.PackReport, error) {
	handles := make([]*queue.Handle[models.PackReport], 0, len(stubs))
	for _, stub := range stubs {
		if err := parser.ValidateStub(&stub); err != nil {
			p.metrics.addValidation("invalid_stub")
			slog.Warn("skipping invalid pack", slog.String("id", stub.ID), slog.Any("error", err))
			continue
		}
		if p.duplicate(stub.ID) {
			summary.Duplicates++
			p.metrics.addValidation("duplicate_id")
			continue
		}

		handles = append(handles, queue.Submit(ctx, p.queue, func(ctx context.Context) (models.PackReport, error) {
			return p.items.Process(ctx, stub, downloadAssets), nil
		}))
	}

	reports := make([]models.PackReport, 0, len(handles))
	for _, h := range handles {
		report, err := h.Wait(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Let in-flight tasks settle before the caller returns.
			_ = p.queue.Drain(context.Background())
			return reports, ctxErr
		}
		if err != nil {
			p.metrics.addValidation("task_failed")
			slog.Error("pack task failed", slog.Any("error", err))
			continue
		}
		if report.Result == nil {
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (p *Pipeline) duplicate(id string) bool {
	if p.seen == nil {
		return false
	}
	found, _ := p.seen.ContainsOrAdd(id, struct{}{})
	return found
}

func (p *Pipeline) finish(summary *models.RunSummary) *models.RunSummary {
	summary.EndTime = time.Now()
	return summary
}

func (p *Pipeline) persist(results []*models.PackResult) error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Write(results); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close summary: %w", err)
	}
	if err := p.writer.Validate(); err != nil {
		return fmt.Errorf("validate summary: %w", err)
	}
	return nil
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs until Run returns.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				snapshot := p.GetMetrics()
				slog.Info("progress",
					slog.Int64("pages", snapshot["pages"].(int64)),
					slog.Int64("packs", snapshot["processed_packs"].(int64)),
					slog.Int("running", p.queue.Running()),
					slog.Int("pending", p.queue.Pending()),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

type metrics struct {
	mu         sync.Mutex
	pages      int64
	processed  int64
	outcomes   map[models.Outcome]int
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		outcomes:   make(map[models.Outcome]int),
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementPages() {
	m.mu.Lock()
	m.pages++
	m.mu.Unlock()
}

func (m *metrics) record(r models.PackReport) {
	m.mu.Lock()
	m.processed++
	m.outcomes[r.Outcome]++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	outcomes := make(map[models.Outcome]int, len(m.outcomes))
	for k, v := range m.outcomes {
		outcomes[k] = v
	}
	validation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		validation[k] = v
	}

	return map[string]interface{}{
		"pages":             m.pages,
		"processed_packs":   m.processed,
		"outcomes":          outcomes,
		"validation_errors": validation,
	}
}
