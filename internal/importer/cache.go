package importer

// cache.go holds a read-optimized snapshot of all import records.
//
// The orchestrator is the cache's only writer: it refreshes the snapshot
// after an import starts and again when one completes or fails. Readers
// (the list endpoint) get a consistent copy and never observe a
// half-applied update.

import (
	"context"
	"sync"

	"github.com/civiclab/socrata-import/internal/store"
)

// StatusCache is a single-writer, many-reader snapshot of the import
// record table.
type StatusCache struct {
	mu       sync.RWMutex
	snapshot []store.ImportRecord
}

// Refresh replaces the snapshot from the store. Only the orchestrator
// calls this.
func (c *StatusCache) Refresh(ctx context.Context, records RecordStore) error {
	imports, err := records.ListImports(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.snapshot = imports
	c.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current snapshot, safe for the caller
// to hold across the cache's next refresh.
func (c *StatusCache) Snapshot() []store.ImportRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]store.ImportRecord, len(c.snapshot))
	copy(out, c.snapshot)
	return out
}
