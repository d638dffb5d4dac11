package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/deepnoodle-ai/stateflow"
	"github.com/fsnotify/fsnotify"
)

// DirectoryDefinitionStore resolves workflows from a directory holding one
// YAML file per workflow. Files are indexed by the name declared inside
// them, not by filename. The index is built lazily and can be kept fresh
// with Watch.
type DirectoryDefinitionStore struct {
	dirPath   string
	workflows map[string]*Workflow
	loaded    bool
	mutex     sync.RWMutex
}

func NewDirectoryDefinitionStore(dirPath string) *DirectoryDefinitionStore {
	return &DirectoryDefinitionStore{dirPath: dirPath}
}

func (s *DirectoryDefinitionStore) Get(ctx context.Context, name string) (*Workflow, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	w, ok := s.workflows[name]
	if !ok {
		return nil, fmt.Errorf("workflow %q: %w", name, stateflow.ErrWorkflowNotFound)
	}
	return w, nil
}

func (s *DirectoryDefinitionStore) List(ctx context.Context) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(s.workflows))
	for name := range s.workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ensureLoaded scans the directory if the index is stale. Files are read
// in lexicographic order; a later file redeclaring a name overrides the
// earlier one.
func (s *DirectoryDefinitionStore) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	entries, err := os.ReadDir(s.dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			s.workflows = map[string]*Workflow{}
			s.loaded = true
			return nil
		}
		return fmt.Errorf("failed to read workflow directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yml" || ext == ".yaml" {
			files = append(files, filepath.Join(s.dirPath, entry.Name()))
		}
	}
	sort.Strings(files)

	workflows := make(map[string]*Workflow, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		w, err := ParseDefinition(data)
		if err != nil {
			if defErr, ok := err.(*DefinitionError); ok {
				defErr.Path = file
			}
			return err
		}
		workflows[w.Name()] = w
	}
	s.workflows = workflows
	s.loaded = true
	return nil
}

// Watch invalidates the index whenever a file in the directory changes, so
// subsequent lookups see edits without restarting. It blocks until the
// context is cancelled.
func (s *DirectoryDefinitionStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dirPath); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.dirPath, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.Invalidate()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch error: %w", err)
		}
	}
}

// Invalidate forces a rescan on the next lookup
func (s *DirectoryDefinitionStore) Invalidate() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.loaded = false
}
