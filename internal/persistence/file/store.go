// Package file persists collections and blobs as JSON files in a data directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"example.com/workoutcache/internal/domain"
	"example.com/workoutcache/internal/observability"
)

// Store keeps one <name>.json file per collection or blob.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates the data directory if needed.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger.Named("filestore")}, nil
}

// Path returns the file backing a collection or blob.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Load reads a collection. A missing file is an empty collection; so is an unparseable one,
// which is logged and counted rather than returned.
func (s *Store) Load(_ context.Context, c domain.Collection) ([]domain.Record, error) {
	path := s.Path(string(c))
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var records []domain.Record
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("cache file unreadable, treating as empty",
			zap.String("path", path),
			zap.Error(fmt.Errorf("%w: %w", domain.ErrCacheCorrupt, err)))
		observability.RecordCacheCorrupt(string(c))
		return nil, nil
	}
	return records, nil
}

// Save replaces a collection file. The write goes through a temp file and a rename so readers
// see either the previous or the new snapshot.
func (s *Store) Save(_ context.Context, c domain.Collection, records []domain.Record) error {
	if records == nil {
		records = []domain.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", domain.ErrCacheWriteFailure, c, err)
	}
	return s.writeAtomic(s.Path(string(c)), data)
}

// LoadBlob returns the stored bytes, or nil when the blob was never saved.
func (s *Store) LoadBlob(_ context.Context, name string) (json.RawMessage, error) {
	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SaveBlob stores the payload verbatim.
func (s *Store) SaveBlob(_ context.Context, name string, payload json.RawMessage) error {
	return s.writeAtomic(s.Path(name), payload)
}

func (s *Store) writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCacheWriteFailure, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", domain.ErrCacheWriteFailure, path, err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync %s: %w", domain.ErrCacheWriteFailure, path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", domain.ErrCacheWriteFailure, path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: rename %s: %w", domain.ErrCacheWriteFailure, path, err)
	}
	return nil
}
