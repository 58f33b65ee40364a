package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yutingko/teascout/internal/types"
)

// FileStorage writes run artifacts as indented JSON files in one directory.
type FileStorage struct {
	dir    string
	logger *slog.Logger
}

// NewFileStorage creates a JSON file storage rooted at dir.
func NewFileStorage(dir string, logger *slog.Logger) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &types.StorageError{Backend: "json", Err: fmt.Errorf("create output dir: %w", err)}
	}
	return &FileStorage{
		dir:    dir,
		logger: logger.With("component", "file_storage"),
	}, nil
}

func (s *FileStorage) Name() string { return "json" }

func (s *FileStorage) SaveDataset(_ context.Context, ds *types.Dataset) error {
	path := filepath.Join(s.dir, "dataset.json")
	data, err := ds.ToJSON()
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	if err := writeAtomic(path, data); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	s.logger.Info("dataset written", "path", path, "stores", ds.StoreCount)
	return nil
}

func (s *FileStorage) SaveRawStores(_ context.Context, stores []types.Store) error {
	path := filepath.Join(s.dir, "raw_stores.json")
	if err := s.writeJSON(path, stores); err != nil {
		return err
	}
	s.logger.Info("raw stores written", "path", path, "stores", len(stores))
	return nil
}

func (s *FileStorage) SaveOutcomes(_ context.Context, outcomes []types.CategoryOutcome) error {
	path := filepath.Join(s.dir, "outcomes.json")
	if err := s.writeJSON(path, outcomes); err != nil {
		return err
	}
	s.logger.Debug("outcome report written", "path", path, "categories", len(outcomes))
	return nil
}

func (s *FileStorage) Close() error { return nil }

func (s *FileStorage) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	if err := writeAtomic(path, data); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	return nil
}

// writeAtomic writes via a temp file and rename so a crash mid-write never
// leaves a truncated artifact.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
