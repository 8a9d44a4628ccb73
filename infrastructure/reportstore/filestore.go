// Package reportstore persists analysis results as JSON documents on disk.
package reportstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/citescope/citescope/internal/domain"
	"github.com/citescope/citescope/internal/ports"
)

// document is the on-disk envelope. Fields are additive; readers must
// ignore ones they do not know.
type document struct {
	SavedAt time.Time            `json:"savedAt"`
	Results []domain.QueryResult `json:"results"`
}

// FileStore implements ports.ReportStore over a single JSON file. Writes
// go through a temp file and rename so a crash never leaves a half-written
// report.
type FileStore struct {
	path string
	log  *zap.Logger
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *FileStore) { s.log = log }
}

// New creates a FileStore writing to path.
func New(path string, opts ...Option) *FileStore {
	s := &FileStore{path: path, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save writes the result set, replacing any previous report.
func (s *FileStore) Save(ctx context.Context, results []domain.QueryResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(document{
		SavedAt: time.Now().UTC(),
		Results: results,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp report file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close report file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace report %s: %w", s.path, err)
	}

	s.log.Debug("analysis report saved",
		zap.String("path", s.path),
		zap.Int("results", len(results)))
	return nil
}

// Load reads the last saved result set. A missing file returns
// ports.ErrNoResults.
func (s *FileStore) Load(ctx context.Context) ([]domain.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ports.ErrNoResults
		}
		return nil, fmt.Errorf("failed to read report %s: %w", s.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", s.path, err)
	}
	return doc.Results, nil
}
