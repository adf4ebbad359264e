package importer

// locks.go provides per-dataset mutual exclusion for ingestion runs.
//
// Re-triggering an import for a dataset id that is already mid-ingestion
// would race on the target table and the import record. Instead of
// letting the two runs interleave, the second trigger is rejected
// synchronously; the caller can retry once the first run finishes.

import (
	"context"
	"sync"
	"time"
)

// datasetLocks tracks which dataset ids have an ingestion run in flight.
type datasetLocks struct {
	mu     sync.Mutex
	active map[string]bool
}

func newDatasetLocks() *datasetLocks {
	return &datasetLocks{active: make(map[string]bool)}
}

// TryAcquire claims the dataset id. Returns false when a run already
// holds it; it never blocks, since the trigger path answers immediately.
func (l *datasetLocks) TryAcquire(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active[id] {
		return false
	}
	l.active[id] = true
	return true
}

// Release frees the dataset id. Must be called exactly once per
// successful TryAcquire (use defer in the run).
func (l *datasetLocks) Release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, id)
}

// ActiveCount returns the number of ingestion runs in flight.
func (l *datasetLocks) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.active)
}

// WaitForDrain blocks until all in-flight runs complete or ctx is
// cancelled. Used for graceful shutdown.
func (l *datasetLocks) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}
