// Package models defines data structures for the scraper.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// PackStub is the listing-derived identity of a theme pack.
type PackStub struct {
	ID        string        `json:"id" csv:"id"`
	Title     string        `json:"title" csv:"title"`
	Author    string        `json:"author" csv:"author"`
	Downloads DownloadCount `json:"downloads" csv:"downloads"`
	URL       string        `json:"url" csv:"url"`
	Page      int           `json:"page" csv:"page"`
}

// DownloadCount is a pack's download counter. It decodes from a JSON number
// or a numeric string, which is how older info.json files store it.
type DownloadCount int

// UnmarshalJSON accepts 12, "12" and null.
func (d *DownloadCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*d = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("downloads: %w", err)
		}
		*d = DownloadCount(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("downloads: %w", err)
	}
	*d = DownloadCount(n)
	return nil
}

// PackDetails holds the asset links found on a pack's detail page.
// Empty strings mean the link was not found.
type PackDetails struct {
	Preview     string `json:"preview,omitempty" csv:"preview"`
	DownloadURL string `json:"downloadUrl,omitempty" csv:"download_url"`
}

// Empty reports whether the details yield nothing to download.
func (d PackDetails) Empty() bool {
	return d.Preview == "" && d.DownloadURL == ""
}

// AssetKind names a downloadable file of a pack.
type AssetKind string

const (
	AssetTheme   AssetKind = "theme"
	AssetPreview AssetKind = "preview"
)

// AssetRecord captures one download attempt.
type AssetRecord struct {
	Kind       AssetKind `json:"kind"`
	URL        string    `json:"url"`
	File       string    `json:"file"`
	Downloaded bool      `json:"downloaded"`
	Error      string    `json:"error,omitempty"`
}

// PackResult is the durable record for one pack. It is what gets written to
// the checkpoint and aggregated into the run summary.
type PackResult struct {
	PackStub
	PackDetails
	Assets    []AssetRecord `json:"assets,omitempty"`
	ScrapedAt time.Time     `json:"scraped_at"`
}

// PageOutcome is the result of scraping a single listing page.
type PageOutcome struct {
	Packs   []PackStub
	HasMore bool
}

// Outcome tags how a pack was handled.
type Outcome string

const (
	// OutcomeCached means a valid checkpoint was found and returned as-is.
	OutcomeCached Outcome = "cached"
	// OutcomeFetched means details were fetched but nothing was written to disk.
	OutcomeFetched Outcome = "fetched"
	// OutcomeSaved means assets were attempted and the checkpoint was written.
	OutcomeSaved Outcome = "saved"
	// OutcomeFailed means the pack directory or checkpoint could not be written.
	OutcomeFailed Outcome = "failed"
)

// PackReport is the tagged result of processing one pack.
type PackReport struct {
	Result        *PackResult
	Outcome       Outcome
	AssetFailures int
	DetailsFailed bool
}

// RunSummary holds the ordered results of a run plus counters.
type RunSummary struct {
	RunID         string
	Packs         []*PackResult
	StartTime     time.Time
	EndTime       time.Time
	PageCount     int
	Outcomes      map[Outcome]int
	AssetFailures int
	DetailErrors  int
	Duplicates    int
}
