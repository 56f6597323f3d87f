package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-themezer/checkpoint"
	"github.com/aluiziolira/go-scrape-themezer/models"
)

var csvHeader = []string{
	"id", "title", "author", "downloads", "page", "url",
	"preview", "download_url", "assets_downloaded", "scraped_at",
}

// CSVWriter collects results and writes them as a CSV file on Close.
type CSVWriter struct {
	path    string
	results []*models.PackResult
	mu      sync.Mutex
}

// NewCSVWriter prepares a CSV writer for filename. Nothing is created until
// Close.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if filename == "" {
		return nil, fmt.Errorf("csv filename cannot be empty")
	}
	return &CSVWriter{path: filename}, nil
}

// Write appends results in order.
func (cw *CSVWriter) Write(results []*models.PackResult) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.results = append(cw.results, results...)
	return nil
}

// Close renders the header and all rows and replaces the file atomically.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range cw.results {
		record := []string{
			r.ID,
			r.Title,
			r.Author,
			strconv.Itoa(int(r.Downloads)),
			strconv.Itoa(r.Page),
			r.URL,
			r.Preview,
			r.DownloadURL,
			strconv.Itoa(downloadedAssets(r)),
			r.ScrapedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}

	return writeFile(cw.path, buf.Bytes())
}

// Validate ensures the file exists and has content.
func (cw *CSVWriter) Validate() error {
	return validateFile(cw.path, "csv")
}

// JSONWriter collects results and writes them as one indented JSON array on
// Close.
type JSONWriter struct {
	path    string
	results []*models.PackResult
	mu      sync.Mutex
}

// NewJSONWriter prepares a JSON writer for filename.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if filename == "" {
		return nil, fmt.Errorf("json filename cannot be empty")
	}
	return &JSONWriter{path: filename}, nil
}

// Write appends results in order.
func (jw *JSONWriter) Write(results []*models.PackResult) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	jw.results = append(jw.results, results...)
	return nil
}

// Close encodes the collected results and replaces the file atomically.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	results := jw.results
	if results == nil {
		results = []*models.PackResult{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return writeFile(jw.path, append(data, '\n'))
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	return validateFile(jw.path, "json")
}

func downloadedAssets(r *models.PackResult) int {
	n := 0
	for _, a := range r.Assets {
		if a.Downloaded {
			n++
		}
	}
	return n
}

func writeFile(path string, data []byte) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := checkpoint.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func validateFile(path, kind string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s file: %w", kind, err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("%s file is empty", kind)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
