package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/deepnoodle-ai/stateflow"
	"github.com/klauspost/compress/gzip"
)

// FileRunStore persists one file per run under a base directory. Records
// are human-readable JSON; the compressed variant stores the same logical
// record gzip-encoded, transparently to the executor. Writes are atomic
// via a temp file and rename.
type FileRunStore struct {
	basePath string
	compress bool
	mutex    sync.RWMutex
}

// NewFileRunStore creates a file-backed run store writing plain JSON
func NewFileRunStore(basePath string) *FileRunStore {
	return &FileRunStore{basePath: basePath}
}

// NewCompressedFileRunStore creates a file-backed run store writing
// gzip-compressed JSON, for high-volume retention.
func NewCompressedFileRunStore(basePath string) *FileRunStore {
	return &FileRunStore{basePath: basePath, compress: true}
}

func (s *FileRunStore) runPath(runID string) string {
	name := runID + ".json"
	if s.compress {
		name += ".gz"
	}
	return filepath.Join(s.basePath, name)
}

func (s *FileRunStore) Save(ctx context.Context, run *Run) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}
	data, err := s.encode(run)
	if err != nil {
		return err
	}

	runPath := s.runPath(run.ID)
	tempPath := runPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}
	if err := os.Rename(tempPath, runPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename run file: %w", err)
	}
	return nil
}

func (s *FileRunStore) Load(ctx context.Context, runID string) (*Run, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.load(runID)
}

func (s *FileRunStore) load(runID string) (*Run, error) {
	data, err := os.ReadFile(s.runPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, stateflow.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}
	return s.decode(data)
}

func (s *FileRunStore) List(ctx context.Context, filter RunFilter) ([]*RunSummary, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*RunSummary{}, nil
		}
		return nil, fmt.Errorf("failed to read run directory: %w", err)
	}

	suffix := ".json"
	if s.compress {
		suffix = ".json.gz"
	}
	summaries := []*RunSummary{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		run, err := s.load(strings.TrimSuffix(entry.Name(), suffix))
		if err != nil {
			continue
		}
		if filter.matches(run) {
			summaries = append(summaries, run.Summary())
		}
	}
	return filter.page(summaries), nil
}

func (s *FileRunStore) Delete(ctx context.Context, runID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := os.Remove(s.runPath(runID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete run file: %w", err)
	}
	return nil
}

// Cleanup removes terminal runs last updated before the given time
func (s *FileRunStore) Cleanup(ctx context.Context, olderThan time.Time) error {
	summaries, err := s.List(ctx, RunFilter{})
	if err != nil {
		return err
	}
	for _, summary := range summaries {
		if summary.Status.Terminal() && summary.UpdatedAt.Before(olderThan) {
			if err := s.Delete(ctx, summary.RunID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *FileRunStore) encode(run *Run) ([]byte, error) {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode run: %w", err)
	}
	if !s.compress {
		return data, nil
	}
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress run: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress run: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *FileRunStore) decode(data []byte) (*Run, error) {
	if s.compress {
		reader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decompress run: %w", err)
		}
		defer reader.Close()
		if data, err = io.ReadAll(reader); err != nil {
			return nil, fmt.Errorf("failed to decompress run: %w", err)
		}
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to decode run: %w", err)
	}
	return &run, nil
}
