package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/deepnoodle-ai/stateflow"
)

// DefinitionStore resolves workflow definitions by name
type DefinitionStore interface {
	// Get returns the named workflow, or stateflow.ErrWorkflowNotFound
	Get(ctx context.Context, name string) (*Workflow, error)

	// List returns the names of all workflows the store can resolve
	List(ctx context.Context) ([]string, error)
}

// MemoryDefinitionStore holds workflow definitions in memory
type MemoryDefinitionStore struct {
	workflows map[string]*Workflow
	mutex     sync.RWMutex
}

func NewMemoryDefinitionStore(workflows ...*Workflow) *MemoryDefinitionStore {
	store := &MemoryDefinitionStore{workflows: make(map[string]*Workflow)}
	for _, w := range workflows {
		store.workflows[w.Name()] = w
	}
	return store
}

// Put registers a workflow, replacing any prior definition with that name
func (s *MemoryDefinitionStore) Put(w *Workflow) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.workflows[w.Name()] = w
}

func (s *MemoryDefinitionStore) Get(ctx context.Context, name string) (*Workflow, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	w, ok := s.workflows[name]
	if !ok {
		return nil, fmt.Errorf("workflow %q: %w", name, stateflow.ErrWorkflowNotFound)
	}
	return w, nil
}

func (s *MemoryDefinitionStore) List(ctx context.Context) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	names := make([]string, 0, len(s.workflows))
	for name := range s.workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ResolverSource pairs a definition store with the provenance it supplies
type ResolverSource struct {
	Store  DefinitionStore
	Source Source
}

// Resolver composes ordered definition sources with later sources
// overriding earlier ones on a name collision. An override is total: the
// later definition fully replaces the earlier one, never merges with it.
// The resolver is an explicit object constructed once with its source
// list; there is no process-wide registry.
type Resolver struct {
	sources []ResolverSource
}

// NewResolver creates a resolver over the given sources, in precedence
// order from lowest (built-in) to highest (user).
func NewResolver(sources ...ResolverSource) *Resolver {
	return &Resolver{sources: sources}
}

// Get resolves a workflow by name, consulting sources from highest
// precedence to lowest. The returned workflow is stamped with the source
// it was resolved from.
func (r *Resolver) Get(ctx context.Context, name string) (*Workflow, error) {
	for i := len(r.sources) - 1; i >= 0; i-- {
		source := r.sources[i]
		w, err := source.Store.Get(ctx, name)
		if err == nil {
			return w.WithSource(source.Source), nil
		}
		if !isNotFound(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("workflow %q: %w", name, stateflow.ErrWorkflowNotFound)
}

// List returns the union of all resolvable workflow names
func (r *Resolver) List(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	for _, source := range r.sources {
		names, err := source.Store.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, stateflow.ErrWorkflowNotFound)
}
