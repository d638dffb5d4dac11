package workflow

import (
	"context"
	"sort"
	"sync"

	"github.com/deepnoodle-ai/stateflow"
)

// RunFilter specifies criteria for listing runs
type RunFilter struct {
	Status       *stateflow.RunStatus `json:"status,omitempty"`
	WorkflowName *string              `json:"workflow_name,omitempty"`
	Limit        int                  `json:"limit,omitempty"`
	Offset       int                  `json:"offset,omitempty"`
}

func (f RunFilter) matches(run *Run) bool {
	if f.Status != nil && run.Status != *f.Status {
		return false
	}
	if f.WorkflowName != nil && run.WorkflowName != *f.WorkflowName {
		return false
	}
	return true
}

func (f RunFilter) page(summaries []*RunSummary) []*RunSummary {
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	start := f.Offset
	if start >= len(summaries) {
		return []*RunSummary{}
	}
	end := len(summaries)
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}
	return summaries[start:end]
}

// RunStore persists workflow runs. Implementations must be safe for
// concurrent saves of different run ids; serializing concurrent saves of
// the same run id is the caller's responsibility.
type RunStore interface {
	// Save persists the run, overwriting any prior checkpoint
	Save(ctx context.Context, run *Run) error

	// Load retrieves a run by id, or stateflow.ErrRunNotFound
	Load(ctx context.Context, runID string) (*Run, error)

	// List returns summaries of runs matching the filter, newest first
	List(ctx context.Context, filter RunFilter) ([]*RunSummary, error)

	// Delete removes a run's persisted state. Deleting a missing run is
	// not an error.
	Delete(ctx context.Context, runID string) error
}

// MemoryRunStore is an in-memory RunStore for tests and ephemeral runs
type MemoryRunStore struct {
	runs  map[string]*Run
	mutex sync.RWMutex
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]*Run)}
}

func (s *MemoryRunStore) Save(ctx context.Context, run *Run) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.runs[run.ID] = run.Clone()
	return nil
}

func (s *MemoryRunStore) Load(ctx context.Context, runID string) (*Run, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, stateflow.ErrRunNotFound
	}
	return run.Clone(), nil
}

func (s *MemoryRunStore) List(ctx context.Context, filter RunFilter) ([]*RunSummary, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	summaries := []*RunSummary{}
	for _, run := range s.runs {
		if filter.matches(run) {
			summaries = append(summaries, run.Summary())
		}
	}
	return filter.page(summaries), nil
}

func (s *MemoryRunStore) Delete(ctx context.Context, runID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.runs, runID)
	return nil
}
