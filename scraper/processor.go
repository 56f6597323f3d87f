package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-themezer/checkpoint"
	"github.com/aluiziolira/go-scrape-themezer/models"
	"github.com/aluiziolira/go-scrape-themezer/parser"
)

// Processor enriches a pack stub with its detail links, downloads its assets
// and checkpoints the result.
type Processor struct {
	fetcher Getter
	store   *checkpoint.Store
	baseURL string
	metrics *Metrics
	now     func() time.Time
}

// NewProcessor returns a processor writing pack directories through store.
func NewProcessor(fetcher Getter, store *checkpoint.Store, baseURL string, metrics *Metrics) *Processor {
	return &Processor{
		fetcher: fetcher,
		store:   store,
		baseURL: baseURL,
		metrics: metrics,
		now:     time.Now,
	}
}

// Process handles one pack. A readable checkpoint is returned as-is without
// touching the network. Without assets to download nothing is written, so a
// later run will process the pack again.
func (p *Processor) Process(ctx context.Context, stub models.PackStub, downloadAssets bool) models.PackReport {
	if cached, ok := p.store.Load(stub.Title); ok {
		slog.Info("skipping existing pack",
			slog.String("id", stub.ID),
			slog.String("title", stub.Title),
		)
		return p.report(models.PackReport{Result: cached, Outcome: models.OutcomeCached})
	}

	slog.Info("processing pack", slog.String("id", stub.ID), slog.String("title", stub.Title))

	details, ok := p.fetchDetails(ctx, stub)
	result := &models.PackResult{
		PackStub:    stub,
		PackDetails: details,
		ScrapedAt:   p.now().UTC().Truncate(time.Second),
	}
	report := models.PackReport{Result: result, DetailsFailed: !ok}

	if !downloadAssets || details.Empty() {
		report.Outcome = models.OutcomeFetched
		return p.report(report)
	}

	dir, err := p.store.EnsureDir(stub.Title)
	if err != nil {
		slog.Error("failed to create pack directory",
			slog.String("title", stub.Title),
			slog.Any("error", err),
		)
		report.Outcome = models.OutcomeFailed
		return p.report(report)
	}

	if details.DownloadURL != "" {
		name := "theme" + parser.AssetExtension(details.DownloadURL)
		result.Assets = append(result.Assets, p.download(ctx, dir, models.AssetTheme, details.DownloadURL, name))
	}
	if details.Preview != "" {
		name := "preview" + parser.PreviewExtension(details.Preview)
		result.Assets = append(result.Assets, p.download(ctx, dir, models.AssetPreview, details.Preview, name))
	}
	for _, a := range result.Assets {
		if !a.Downloaded {
			report.AssetFailures++
		}
	}

	if err := p.store.Save(result); err != nil {
		slog.Error("failed to save checkpoint",
			slog.String("title", stub.Title),
			slog.Any("error", err),
		)
		report.Outcome = models.OutcomeFailed
		return p.report(report)
	}

	slog.Info("saved pack",
		slog.String("id", stub.ID),
		slog.String("title", stub.Title),
		slog.Int("asset_failures", report.AssetFailures),
	)
	report.Outcome = models.OutcomeSaved
	return p.report(report)
}

func (p *Processor) fetchDetails(ctx context.Context, stub models.PackStub) (models.PackDetails, bool) {
	res := p.fetcher.Fetch(ctx, PhaseDetail, stub.URL)
	if !res.OK() {
		slog.Warn("failed to fetch pack details",
			slog.String("id", stub.ID),
			slog.String("url", stub.URL),
			slog.Any("error", res.Err),
		)
		return models.PackDetails{}, false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Response.Body))
	if err != nil {
		slog.Warn("failed to parse pack details",
			slog.String("id", stub.ID),
			slog.String("url", stub.URL),
			slog.Any("error", err),
		)
		return models.PackDetails{}, false
	}
	return parser.ExtractDetailLinks(doc, p.baseURL), true
}

func (p *Processor) download(ctx context.Context, dir string, kind models.AssetKind, rawURL, name string) models.AssetRecord {
	record := models.AssetRecord{Kind: kind, URL: rawURL, File: name}

	res := p.fetcher.Fetch(ctx, PhaseAsset, rawURL)
	if !res.OK() {
		record.Error = res.Err.Error()
		p.metrics.IncAsset(string(kind), false)
		slog.Warn("failed to download asset",
			slog.String("kind", string(kind)),
			slog.String("url", rawURL),
			slog.Any("error", res.Err),
		)
		return record
	}

	path := filepath.Join(dir, name)
	if err := checkpoint.WriteFileAtomic(path, res.Response.Body); err != nil {
		record.Error = fmt.Sprintf("write %s: %v", name, err)
		p.metrics.IncAsset(string(kind), false)
		slog.Warn("failed to write asset",
			slog.String("path", path),
			slog.Any("error", err),
		)
		return record
	}

	record.Downloaded = true
	p.metrics.IncAsset(string(kind), true)
	slog.Debug("downloaded asset", slog.String("kind", string(kind)), slog.String("path", path))
	return record
}

func (p *Processor) report(r models.PackReport) models.PackReport {
	p.metrics.IncPack(string(r.Outcome))
	return r
}
