package execution

import (
	"runtime"
	"sync"
	"time"

	"github.com/deepnoodle-ai/stateflow"
)

// MetricsCollector observes run and step lifecycle events. Implementations
// must be safe for concurrent use; the executor calls them from multiple
// run goroutines.
type MetricsCollector interface {
	RunStarted(runID, workflowName string)
	RunCompleted(runID string, status stateflow.RunStatus, duration time.Duration)
	StepObserved(runID, stateID string, duration time.Duration, success bool)
}

// NopMetrics discards all observations
type NopMetrics struct{}

func (NopMetrics) RunStarted(runID, workflowName string) {}

func (NopMetrics) RunCompleted(runID string, status stateflow.RunStatus, duration time.Duration) {}

func (NopMetrics) StepObserved(runID, stateID string, duration time.Duration, success bool) {}

// memorySampleCount bounds the retained heap high-water samples
const memorySampleCount = 64

// StateMetrics aggregates observations for one state id
type StateMetrics struct {
	Entries       int           `json:"entries"`
	Failures      int           `json:"failures"`
	TotalDuration time.Duration `json:"total_duration"`
}

// MetricsSnapshot is a point-in-time copy of collected metrics
type MetricsSnapshot struct {
	RunsStarted   int                      `json:"runs_started"`
	RunsCompleted map[string]int           `json:"runs_completed"`
	States        map[string]*StateMetrics `json:"states"`
	TotalRunTime  time.Duration            `json:"total_run_time"`
	HeapSamples   []uint64                 `json:"heap_samples"`
}

// ExecutionMetrics is the default in-memory collector. It tracks per-state
// entry counts and cumulative durations, run totals by terminal status,
// and a bounded ring of heap high-water samples taken at run completion.
type ExecutionMetrics struct {
	mutex         sync.Mutex
	runsStarted   int
	runsCompleted map[string]int
	states        map[string]*StateMetrics
	totalRunTime  time.Duration
	heapSamples   []uint64
	sampleIndex   int
}

// NewExecutionMetrics creates an empty collector
func NewExecutionMetrics() *ExecutionMetrics {
	return &ExecutionMetrics{
		runsCompleted: map[string]int{},
		states:        map[string]*StateMetrics{},
		heapSamples:   make([]uint64, 0, memorySampleCount),
	}
}

func (m *ExecutionMetrics) RunStarted(runID, workflowName string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.runsStarted++
}

func (m *ExecutionMetrics) RunCompleted(runID string, status stateflow.RunStatus, duration time.Duration) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.runsCompleted[string(status)]++
	m.totalRunTime += duration
	if len(m.heapSamples) < memorySampleCount {
		m.heapSamples = append(m.heapSamples, stats.HeapInuse)
	} else {
		m.heapSamples[m.sampleIndex] = stats.HeapInuse
		m.sampleIndex = (m.sampleIndex + 1) % memorySampleCount
	}
}

func (m *ExecutionMetrics) StepObserved(runID, stateID string, duration time.Duration, success bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	entry, ok := m.states[stateID]
	if !ok {
		entry = &StateMetrics{}
		m.states[stateID] = entry
	}
	entry.Entries++
	entry.TotalDuration += duration
	if !success {
		entry.Failures++
	}
}

// Snapshot returns a deep copy of current metrics
func (m *ExecutionMetrics) Snapshot() *MetricsSnapshot {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	snapshot := &MetricsSnapshot{
		RunsStarted:   m.runsStarted,
		RunsCompleted: make(map[string]int, len(m.runsCompleted)),
		States:        make(map[string]*StateMetrics, len(m.states)),
		TotalRunTime:  m.totalRunTime,
		HeapSamples:   append([]uint64(nil), m.heapSamples...),
	}
	for status, count := range m.runsCompleted {
		snapshot.RunsCompleted[status] = count
	}
	for id, entry := range m.states {
		dup := *entry
		snapshot.States[id] = &dup
	}
	return snapshot
}
