package store

import (
	"context"
	"fmt"

	"github.com/civiclab/socrata-import/internal/typeinfer"
)

// TableWriter appends batches to one import's target table. It owns the
// table's declared column order: the first batch establishes the table,
// later batches may widen it with new columns. Each WriteBatch is a
// single transaction covering the row inserts and the rows_written
// increment on the import record, so the counter can never run ahead of
// (or behind) the data.
//
// A TableWriter belongs to one ingestion run; it is not safe for
// concurrent use. Commit serialization across runs for the same dataset
// id is the orchestrator's responsibility.
type TableWriter struct {
	store     *Store
	datasetID string
	table     string

	columns []string
	known   map[string]bool
	created bool
}

// NewTableWriter returns a writer for the dataset's target table. The
// table itself is created lazily by the first batch.
func (s *Store) NewTableWriter(datasetID, table string) *TableWriter {
	return &TableWriter{
		store:     s,
		datasetID: datasetID,
		table:     table,
		known:     make(map[string]bool),
	}
}

// DropTable removes a target table if present. Called at import start so
// no rows from a prior import survive.
func (s *Store) DropTable(ctx context.Context, table string) error {
	if _, err := s.pool.Exec(ctx, "drop table if exists "+quoteIdentifier(table)); err != nil {
		return fmt.Errorf("dropping %s: %w", table, err)
	}
	return nil
}

// WriteBatch commits one batch: table/column DDL as needed, the inserts,
// and the progress increment, all in one transaction. columns carries
// the batch's field order; rows hold wrapped values (nil for NULL).
// Values are stored in the provisional text columns in their canonical
// text rendering, which is what makes the final type rewrite's casts
// safe.
func (w *TableWriter) WriteBatch(ctx context.Context, columns []string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}

	added := w.mergeColumns(columns)

	tx, err := w.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if committed

	if !w.created {
		if _, err := tx.Exec(ctx, buildCreateTable(w.table, w.columns)); err != nil {
			return fmt.Errorf("creating %s: %w", w.table, err)
		}
	} else {
		for _, col := range added {
			if _, err := tx.Exec(ctx, buildAddColumn(w.table, col)); err != nil {
				return fmt.Errorf("adding column %s to %s: %w", col, w.table, err)
			}
		}
	}

	sql, args := buildInsert(w.table, w.columns, rows)
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("inserting batch into %s: %w", w.table, err)
	}

	if _, err := tx.Exec(ctx,
		`update socrata_imports set rows_written = rows_written + $2 where dataset_id = $1`,
		w.datasetID, len(rows),
	); err != nil {
		return fmt.Errorf("advancing rows_written for %s: %w", w.datasetID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	w.created = true
	return nil
}

// RewriteTypes converts the provisional text columns to their inferred
// types in one transaction. Text columns need no conversion.
func (w *TableWriter) RewriteTypes(ctx context.Context, types map[string]typeinfer.ColumnType) error {
	if !w.created {
		// Zero data rows; there is no table to rewrite.
		return nil
	}

	tx, err := w.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin type rewrite: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, col := range w.columns {
		sql, ok := buildAlterColumnType(w.table, col, types[col])
		if !ok {
			continue
		}
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("retyping %s.%s: %w", w.table, col, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing type rewrite: %w", err)
	}
	return nil
}

// mergeColumns folds the batch's columns into the declared order and
// returns the newly seen ones.
func (w *TableWriter) mergeColumns(columns []string) []string {
	var added []string
	for _, col := range columns {
		if w.known[col] {
			continue
		}
		w.known[col] = true
		w.columns = append(w.columns, col)
		added = append(added, col)
	}
	return added
}
