package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-themezer/models"
	"github.com/aluiziolira/go-scrape-themezer/parser"
)

const listingPath = "/switch/packs"

// PageScraper turns a listing page index into pack stubs.
type PageScraper struct {
	fetcher Getter
	baseURL string
	metrics *Metrics
}

// NewPageScraper returns a page scraper for the catalog at baseURL.
func NewPageScraper(fetcher Getter, baseURL string, metrics *Metrics) *PageScraper {
	return &PageScraper{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
	}
}

// PageURL returns the listing URL for page. Page 1 has no query parameter.
func (s *PageScraper) PageURL(page int) string {
	if page <= 1 {
		return s.baseURL + listingPath
	}
	return fmt.Sprintf("%s%s?page=%d", s.baseURL, listingPath, page)
}

// ScrapePage fetches and parses one listing page. A fetch or parse failure
// yields an empty outcome with HasMore false, which ends the crawl.
func (s *PageScraper) ScrapePage(ctx context.Context, page int) models.PageOutcome {
	pageURL := s.PageURL(page)
	res := s.fetcher.Fetch(ctx, PhaseListing, pageURL)
	if !res.OK() {
		slog.Error("failed to fetch listing page",
			slog.Int("page", page),
			slog.String("url", pageURL),
			slog.Any("error", res.Err),
		)
		return models.PageOutcome{}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Response.Body))
	if err != nil {
		slog.Error("failed to parse listing page",
			slog.Int("page", page),
			slog.String("url", pageURL),
			slog.Any("error", err),
		)
		return models.PageOutcome{}
	}

	packs := parser.ExtractListings(doc, page, s.baseURL)
	s.metrics.IncPages()
	slog.Info(fmt.Sprintf("Found %d packs on page %d", len(packs), page),
		slog.Int("page", page),
		slog.Int("packs", len(packs)),
	)

	return models.PageOutcome{
		Packs:   packs,
		HasMore: parser.HasMorePages(doc),
	}
}
