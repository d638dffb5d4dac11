package execution

import (
	"context"
	"sync"
)

// SignalBus is an in-memory signal source. A run blocked on a
// wait-for-input action registers a waiter under its run id; Deliver
// hands input to that waiter. At most one waiter per run id exists at a
// time because steps within a run are strictly sequential.
type SignalBus struct {
	mutex   sync.Mutex
	waiters map[string]chan string
	prompts map[string]string
}

// NewSignalBus creates an empty bus
func NewSignalBus() *SignalBus {
	return &SignalBus{
		waiters: make(map[string]chan string),
		prompts: make(map[string]string),
	}
}

// AwaitSignal blocks until input is delivered for the run or the context
// is done.
func (b *SignalBus) AwaitSignal(ctx context.Context, runID, prompt string) (string, error) {
	ch := make(chan string, 1)
	b.mutex.Lock()
	b.waiters[runID] = ch
	b.prompts[runID] = prompt
	b.mutex.Unlock()

	defer func() {
		b.mutex.Lock()
		if b.waiters[runID] == ch {
			delete(b.waiters, runID)
			delete(b.prompts, runID)
		}
		b.mutex.Unlock()
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case text := <-ch:
		return text, nil
	}
}

// Deliver hands input to the run currently waiting under the given id.
// Returns false if no run is waiting.
func (b *SignalBus) Deliver(runID, text string) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	ch, ok := b.waiters[runID]
	if !ok {
		return false
	}
	delete(b.waiters, runID)
	delete(b.prompts, runID)
	ch <- text
	return true
}

// Pending returns the prompts of runs currently waiting for input,
// keyed by run id.
func (b *SignalBus) Pending() map[string]string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	out := make(map[string]string, len(b.prompts))
	for id, prompt := range b.prompts {
		out[id] = prompt
	}
	return out
}
