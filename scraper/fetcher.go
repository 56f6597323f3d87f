// Package scraper fetches Themezer listing and detail pages and downloads
// pack assets.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/aluiziolira/go-scrape-themezer/config"
)

// Request phases used for logging and metric labels.
const (
	PhaseListing = "listing"
	PhaseDetail  = "detail"
	PhaseAsset   = "asset"
)

// Response is a successful fetch.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// FetchResult is either a Response or a classified failure. Callers branch on
// OK and never see a raised error.
type FetchResult struct {
	Response *Response
	Err      error
}

// OK reports whether the fetch produced a usable response.
func (r FetchResult) OK() bool {
	return r.Err == nil && r.Response != nil
}

// Getter performs a single GET.
type Getter interface {
	Fetch(ctx context.Context, phase, rawURL string) FetchResult
}

// Fetcher issues single GET requests through a colly collector with a fixed
// request timeout and no retries.
type Fetcher struct {
	base    *colly.Collector
	limiter *rate.Limiter
	Metrics *Metrics
}

// NewFetcher builds a fetcher configured from cfg. metrics may be nil.
func NewFetcher(cfg *config.Config, metrics *Metrics) *Fetcher {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(0),
	)
	collector.IgnoreRobotsTxt = true
	// Every status reaches OnResponse; Fetch decides what counts as success.
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: cfg.Concurrency,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})
	collector.SetRequestTimeout(cfg.Timeout)

	f := &Fetcher{
		base:    collector,
		Metrics: metrics,
	}
	if cfg.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return f
}

// WithTransport swaps the HTTP transport, mainly for tests.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.base.WithTransport(rt)
}

// Fetch GETs rawURL. Timeouts, non-2xx statuses and transport failures come
// back as a FetchResult with Err set.
func (f *Fetcher) Fetch(ctx context.Context, phase, rawURL string) FetchResult {
	if err := ctx.Err(); err != nil {
		return f.fail(phase, rawURL, 0, err)
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return f.fail(phase, rawURL, 0, err)
		}
	}

	f.Metrics.IncRequest(phase)
	start := time.Now()

	var (
		resp   *Response
		status int
	)
	c := f.base.Clone()
	c.ParseHTTPErrorResponse = true
	c.OnResponse(func(r *colly.Response) {
		resp = &Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       r.Body,
		}
		if r.Headers != nil {
			resp.Headers = r.Headers.Clone()
		}
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return f.fail(phase, rawURL, 0, ctx.Err())
	case err := <-done:
		f.Metrics.ObserveDuration(phase, time.Since(start))
		if err != nil {
			return f.fail(phase, rawURL, status, err)
		}
		if resp == nil {
			return f.fail(phase, rawURL, status, fmt.Errorf("no response received"))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return f.fail(phase, rawURL, resp.StatusCode, nil)
		}
		return FetchResult{Response: resp}
	}
}

func (f *Fetcher) fail(phase, rawURL string, status int, err error) FetchResult {
	classified := classifyError(err, status)
	if classified == nil {
		classified = err
	}
	category := errorTypeLabel(classified)
	f.Metrics.IncError(category)
	slog.Warn("fetch failed",
		slog.String("phase", phase),
		slog.String("url", rawURL),
		slog.Int("status", status),
		slog.String("category", category),
		slog.Any("error", classified),
	)
	return FetchResult{Err: classified}
}
