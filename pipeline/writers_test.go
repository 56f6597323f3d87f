package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-themezer/models"
)

func sampleResult() *models.PackResult {
	return &models.PackResult{
		PackStub: models.PackStub{
			ID:        "abc",
			Title:     "Dark Neon",
			Author:    "alice",
			Downloads: 12,
			URL:       "http://themezer.test/switch/packs/abc",
			Page:      1,
		},
		PackDetails: models.PackDetails{
			Preview:     "http://themezer.test/img/abc.png",
			DownloadURL: "http://themezer.test/switch/packs/abc/download",
		},
		Assets: []models.AssetRecord{
			{Kind: models.AssetTheme, URL: "http://themezer.test/switch/packs/abc/download", File: "theme.zip", Downloaded: true},
			{Kind: models.AssetPreview, URL: "http://themezer.test/img/abc.png", File: "preview.png", Error: "status 500"},
		},
		ScrapedAt: time.Date(2025, 11, 4, 13, 9, 13, 0, time.UTC),
	}
}

func TestCSVWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "summary.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Write([]*models.PackResult{sampleResult()}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("csv written before close, stat err = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	if records[0][0] != "id" || records[0][1] != "title" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	row := records[1]
	if row[0] != "abc" || row[3] != "12" || row[8] != "1" || row[9] != "2025-11-04T13:09:13Z" {
		t.Fatalf("unexpected row: %v", row)
	}
}

func TestJSONWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	second := sampleResult()
	second.ID = "def"
	if err := writer.Write([]*models.PackResult{sampleResult()}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Write([]*models.PackResult{second}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	if !strings.HasPrefix(string(data), "[\n  {\n    \"id\": \"abc\"") {
		t.Fatalf("expected two-space indented array, got:\n%s", data)
	}

	var decoded []models.PackResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal json: %v", err)
	}
	if len(decoded) != 2 || decoded[0].ID != "abc" || decoded[1].ID != "def" {
		t.Fatalf("decoded = %+v", decoded)
	}
	if decoded[0].DownloadURL == "" || len(decoded[0].Assets) != 2 {
		t.Fatalf("details not preserved: %+v", decoded[0])
	}
}

func TestJSONWriterEmptyRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Fatalf("empty summary = %q, want []", data)
	}
}

func TestValidateMissingFile(t *testing.T) {
	writer, err := NewJSONWriter(filepath.Join(t.TempDir(), "never.json"))
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	if err := writer.Validate(); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCSVFormatUsesCSVName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "themezer_summary.json")
	writer, err := NewOutputWriter("csv", path)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("csv written to %s, stat err = %v", path, err)
	}
	data, err := os.ReadFile(strings.TrimSuffix(path, ".json") + ".csv")
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !strings.HasPrefix(string(data), "id,title,") {
		t.Fatalf("unexpected csv content: %q", data)
	}
}

func TestNewOutputWriter(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		format  string
		wantErr bool
		files   []string
	}{
		{format: "json", files: []string{"summary.json"}},
		{format: "CSV", files: []string{"summary.csv"}},
		{format: "dual", files: []string{"summary.json", "summary.csv"}},
		{format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			sub := filepath.Join(dir, tt.format)
			writer, err := NewOutputWriter(tt.format, filepath.Join(sub, "summary.json"))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("new writer: %v", err)
			}
			if err := writer.Write([]*models.PackResult{sampleResult()}); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := writer.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			if err := writer.Validate(); err != nil {
				t.Fatalf("validate: %v", err)
			}
			for _, name := range tt.files {
				if _, err := os.Stat(filepath.Join(sub, name)); err != nil {
					t.Fatalf("missing %s: %v", name, err)
				}
			}
			entries, err := os.ReadDir(sub)
			if err != nil {
				t.Fatalf("read dir: %v", err)
			}
			if len(entries) != len(tt.files) {
				t.Fatalf("files = %d, want %d", len(entries), len(tt.files))
			}
			got := SummaryFiles(tt.format, filepath.Join(sub, "summary.json"))
			if len(got) != len(tt.files) {
				t.Fatalf("SummaryFiles = %v, want %v", got, tt.files)
			}
			for _, path := range got {
				if _, err := os.Stat(path); err != nil {
					t.Fatalf("SummaryFiles lists missing %s: %v", path, err)
				}
			}
		})
	}
}
