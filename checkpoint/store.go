package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aluiziolira/go-scrape-themezer/models"
	"github.com/aluiziolira/go-scrape-themezer/parser"
)

// FileName is the checkpoint file inside each pack directory.
const FileName = "info.json"

// Store reads and writes pack checkpoints under a root directory.
type Store struct {
	root string
}

// NewStore returns a store rooted at root. The directory is created lazily.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("checkpoint root cannot be empty")
	}
	return &Store{root: root}, nil
}

// Dir returns the directory for a pack title.
func (s *Store) Dir(title string) string {
	return filepath.Join(s.root, parser.SanitizeTitle(title))
}

// Path returns the checkpoint file path for a pack title.
func (s *Store) Path(title string) string {
	return filepath.Join(s.Dir(title), FileName)
}

// Load returns the stored result for title. The boolean is false when no
// checkpoint exists or it cannot be decoded.
func (s *Store) Load(title string) (*models.PackResult, bool) {
	path := s.Path(title)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("read checkpoint", slog.String("path", path), slog.Any("error", err))
		}
		return nil, false
	}

	var result models.PackResult
	if err := json.Unmarshal(data, &result); err != nil {
		slog.Warn("corrupt checkpoint, reprocessing",
			slog.String("title", title),
			slog.String("path", path),
			slog.Any("error", err),
		)
		return nil, false
	}
	return &result, true
}

// EnsureDir creates the pack directory for title.
func (s *Store) EnsureDir(title string) (string, error) {
	dir := s.Dir(title)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create pack directory %q: %w", dir, err)
	}
	return dir, nil
}

// Save writes result as the checkpoint for its title.
func (s *Store) Save(result *models.PackResult) error {
	if result == nil {
		return fmt.Errorf("checkpoint result is nil")
	}
	dir, err := s.EnsureDir(result.Title)
	if err != nil {
		return err
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return WriteFileAtomic(filepath.Join(dir, FileName), payload)
}

// WriteFileAtomic writes data to a temporary file next to path, syncs it and
// renames it over path.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary file for %q: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %q: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync %q: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %q: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod %q: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %q: %w", path, err)
	}
	return nil
}
