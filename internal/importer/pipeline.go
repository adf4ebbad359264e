package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/civiclab/socrata-import/internal/csvstream"
	"github.com/civiclab/socrata-import/internal/logging"
	"github.com/civiclab/socrata-import/internal/socrata"
	"github.com/civiclab/socrata-import/internal/typeinfer"
)

// recordTimeout bounds the terminal-state writes. The run's own context
// may already be expired when an error is recorded, so these writes use
// a fresh one.
const recordTimeout = 10 * time.Second

// run drives one detached ingestion: stream -> parse -> infer -> batch
// -> write, then the type rewrite and the completion stamp. Every
// failure is caught here, written to the import record, and the run
// exits cleanly; nothing propagates to the process.
func (s *Service) run(src socrata.Source, handle *Handle) {
	log := logging.ForImport(src.ID, handle.RunID)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StreamTimeout)

	var failure error
	defer func() {
		cancel()
		if r := recover(); r != nil {
			log.Error("panic in ingestion run", "panic", r)
			failure = fmt.Errorf("internal error: %v", r)
		}
		s.finish(log, src.ID, handle, failure)
	}()

	log.Info("ingestion started", "table", handle.Table)
	failure = s.stream(ctx, src, handle, log)
}

// stream runs the streaming and finalizing states. A nil return means
// the run completed and the completion timestamp may be stamped.
func (s *Service) stream(ctx context.Context, src socrata.Source, handle *Handle, log *slog.Logger) error {
	body, err := s.source.OpenRowStream(ctx, src)
	if err != nil {
		return fmt.Errorf("opening row export: %w", err)
	}
	defer body.Close()

	reader := csvstream.NewRecordReader(csvstream.NewLineReader(body))
	tracker := typeinfer.NewTracker()
	writer := s.newWriter(src.ID, handle.Table)

	columns, err := reader.Columns()
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}

	batch := make([]csvstream.Record, 0, s.cfg.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		// Admission check immediately before every write.
		if s.guard.IsLow() {
			return ErrDiskSpaceLow
		}
		rows := tracker.Wrap(batch)
		if err := writer.WriteBatch(ctx, columns, rows); err != nil {
			return err
		}
		log.Info("batch committed", "rows", len(batch))
		batch = batch[:0]
		return nil
	}

	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading row stream: %w", err)
		}
		batch = append(batch, rec)
		if len(batch) >= s.cfg.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	// Finalizing: settle the provisional text columns on the inferred
	// types, then stamp completion.
	if err := writer.RewriteTypes(ctx, tracker.Types()); err != nil {
		return fmt.Errorf("rewriting column types: %w", err)
	}

	rctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.records.RecordComplete(rctx, src.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("recording completion: %w", err)
	}
	return nil
}

// finish records the terminal state, refreshes the status snapshot and
// releases the per-dataset lock.
func (s *Service) finish(log *slog.Logger, datasetID string, handle *Handle, failure error) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if failure != nil {
		log.Error("ingestion failed", "error", failure)
		if err := s.records.RecordError(ctx, datasetID, failure.Error()); err != nil {
			log.Error("recording ingestion error failed", "error", err)
		}
	} else {
		log.Info("ingestion completed")
	}

	if err := s.cache.Refresh(ctx, s.records); err != nil {
		log.Error("status cache refresh failed", "error", err)
	}

	s.locks.Release(datasetID)
	close(handle.done)
}
