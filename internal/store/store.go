// Package store persists import state to Postgres: the durable import
// record per dataset, and the dynamically-shaped target tables the rows
// land in. Target table schemas are not known in advance; they are
// declared from the first batch's record shape, widened as later batches
// introduce new fields, and their provisional text columns are rewritten
// to the inferred types once at the end of an import.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// importsSchema is the durable state of the pipeline, one row per
// dataset import attempt. The last import for a dataset id replaces the
// prior row.
const importsSchema = `
create table if not exists socrata_imports (
	dataset_id text primary key,
	display_name text,
	source_url text,
	raw_metadata jsonb,
	expected_row_count bigint,
	rows_written bigint not null default 0,
	started_at timestamptz,
	completed_at timestamptz,
	error text
)`

// ImportRecord is one dataset import attempt.
type ImportRecord struct {
	DatasetID        string          `json:"dataset_id"`
	DisplayName      string          `json:"display_name"`
	SourceURL        string          `json:"source_url"`
	RawMetadata      json.RawMessage `json:"raw_metadata,omitempty"`
	ExpectedRowCount *int64          `json:"expected_row_count"`
	RowsWritten      int64           `json:"rows_written"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at"`
	Error            *string         `json:"error"`
}

// Store wraps the connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store on the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ready verifies the destination store can accept writes. Used as the
// admission check before any durable import state is touched.
func (s *Store) Ready(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the socrata_imports table if missing. Called once
// at startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, importsSchema); err != nil {
		return fmt.Errorf("creating socrata_imports: %w", err)
	}
	return nil
}

// BeginImport persists a fresh import record, replacing any prior record
// for the same dataset id: rows_written reset to zero, error and
// completed_at cleared.
func (s *Store) BeginImport(ctx context.Context, rec ImportRecord) error {
	_, err := s.pool.Exec(ctx, `
		insert into socrata_imports
			(dataset_id, display_name, source_url, raw_metadata,
			 expected_row_count, rows_written, started_at, completed_at, error)
		values ($1, $2, $3, $4, $5, 0, $6, null, null)
		on conflict (dataset_id) do update set
			display_name = excluded.display_name,
			source_url = excluded.source_url,
			raw_metadata = excluded.raw_metadata,
			expected_row_count = excluded.expected_row_count,
			rows_written = 0,
			started_at = excluded.started_at,
			completed_at = null,
			error = null`,
		rec.DatasetID, rec.DisplayName, rec.SourceURL, rec.RawMetadata,
		rec.ExpectedRowCount, rec.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("writing import record for %s: %w", rec.DatasetID, err)
	}
	return nil
}

// RecordError marks the import failed. completed_at stays null; rows
// already committed stay committed.
func (s *Store) RecordError(ctx context.Context, datasetID, msg string) error {
	_, err := s.pool.Exec(ctx,
		`update socrata_imports set error = $2 where dataset_id = $1`,
		datasetID, msg,
	)
	if err != nil {
		return fmt.Errorf("recording import error for %s: %w", datasetID, err)
	}
	return nil
}

// RecordComplete stamps the import finished without error.
func (s *Store) RecordComplete(ctx context.Context, datasetID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`update socrata_imports set completed_at = $2 where dataset_id = $1`,
		datasetID, at,
	)
	if err != nil {
		return fmt.Errorf("recording import completion for %s: %w", datasetID, err)
	}
	return nil
}

// GetImport reads the import record for a dataset id. The read never
// blocks on an in-flight ingestion; each batch commit makes its
// rows_written visible here.
func (s *Store) GetImport(ctx context.Context, datasetID string) (*ImportRecord, error) {
	row := s.pool.QueryRow(ctx, `
		select dataset_id, display_name, source_url, raw_metadata,
		       expected_row_count, rows_written, started_at, completed_at, error
		from socrata_imports where dataset_id = $1`,
		datasetID,
	)
	rec, err := scanImport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ErrNotFound is returned by GetImport for an unknown dataset id. It is
// this package's own sentinel so callers never match on a driver error.
var ErrNotFound = errors.New("import record not found")

// ListImports returns all known import records, most recent first.
func (s *Store) ListImports(ctx context.Context) ([]ImportRecord, error) {
	rows, err := s.pool.Query(ctx, `
		select dataset_id, display_name, source_url, raw_metadata,
		       expected_row_count, rows_written, started_at, completed_at, error
		from socrata_imports order by started_at desc`)
	if err != nil {
		return nil, fmt.Errorf("listing imports: %w", err)
	}
	defer rows.Close()

	var records []ImportRecord
	for rows.Next() {
		rec, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanImport(row pgx.Row) (*ImportRecord, error) {
	var rec ImportRecord
	var started *time.Time
	err := row.Scan(
		&rec.DatasetID, &rec.DisplayName, &rec.SourceURL, &rec.RawMetadata,
		&rec.ExpectedRowCount, &rec.RowsWritten, &started, &rec.CompletedAt, &rec.Error,
	)
	if err != nil {
		return nil, err
	}
	if started != nil {
		rec.StartedAt = *started
	}
	return &rec, nil
}
