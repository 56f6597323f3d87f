package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-themezer/models"
)

func sampleResult() *models.PackResult {
	return &models.PackResult{
		PackStub: models.PackStub{
			ID:        "abc",
			Title:     "Dark: Neon/Pack",
			Author:    "alice",
			Downloads: 12,
			URL:       "https://themezer.test/switch/packs/abc",
			Page:      1,
		},
		PackDetails: models.PackDetails{
			Preview:     "https://cdn.test/abc.png",
			DownloadURL: "https://themezer.test/api/abc/download",
		},
		Assets: []models.AssetRecord{
			{Kind: models.AssetTheme, URL: "https://themezer.test/api/abc/download", File: "theme.zip", Downloaded: true},
		},
		ScrapedAt: time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC),
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	result := sampleResult()
	require.NoError(t, store.Save(result))

	assert.Equal(t, filepath.Join(store.root, "Dark__Neon_Pack", FileName), store.Path(result.Title))
	assert.FileExists(t, store.Path(result.Title))

	loaded, ok := store.Load(result.Title)
	require.True(t, ok)
	assert.Equal(t, result, loaded)

	entries, err := os.ReadDir(store.Dir(result.Title))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestStoreLoadMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	loaded, ok := store.Load("never saved")
	assert.False(t, ok)
	assert.Nil(t, loaded)
}

func TestStoreLoadCorrupt(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	dir, err := store.EnsureDir("Broken")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0o644))

	_, ok := store.Load("Broken")
	assert.False(t, ok)

	require.NoError(t, store.Save(&models.PackResult{PackStub: models.PackStub{ID: "b", Title: "Broken", Page: 1}}))
	loaded, ok := store.Load("Broken")
	require.True(t, ok)
	assert.Equal(t, "b", loaded.ID)
}

func TestStoreLoadLegacyStringDownloads(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	legacy := `{
  "id": "legacy1",
  "title": "Legacy",
  "author": "bob",
  "downloads": "12",
  "url": "https://themezer.net/switch/packs/legacy1",
  "page": 3,
  "preview": null,
  "downloadUrl": "https://themezer.net/switch/packs/legacy1/download"
}`
	dir, err := store.EnsureDir("Legacy")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(legacy), 0o644))

	loaded, ok := store.Load("Legacy")
	require.True(t, ok)
	assert.Equal(t, models.DownloadCount(12), loaded.Downloads)
	assert.Equal(t, 3, loaded.Page)
	assert.Empty(t, loaded.Preview)
	assert.Equal(t, "https://themezer.net/switch/packs/legacy1/download", loaded.DownloadURL)
}

func TestDownloadCountDecoding(t *testing.T) {
	tests := []struct {
		in      string
		want    models.DownloadCount
		wantErr bool
	}{
		{in: `{"downloads": 7}`, want: 7},
		{in: `{"downloads": "7"}`, want: 7},
		{in: `{"downloads": ""}`, want: 0},
		{in: `{"downloads": null}`, want: 0},
		{in: `{"downloads": "many"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var stub models.PackStub
			err := json.Unmarshal([]byte(tt.in), &stub)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, stub.Downloads)
		})
	}
}

func TestNewStoreRequiresRoot(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)
}
