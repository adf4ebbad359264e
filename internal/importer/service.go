// Package importer contains the import orchestrator: the state machine
// that takes a dataset reference through metadata capture, table
// preparation, streamed ingestion, type finalization and completion or
// error recording.
//
// A run moves through started -> streaming -> finalizing -> completed,
// with errored absorbing any failure after the trigger returns. The
// triggering caller never blocks on a run; it polls the import record,
// which every batch commit keeps current.
package importer

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/civiclab/socrata-import/internal/config"
	"github.com/civiclab/socrata-import/internal/socrata"
	"github.com/civiclab/socrata-import/internal/store"
	"github.com/civiclab/socrata-import/internal/typeinfer"
	"github.com/google/uuid"
)

// RecordStore persists import records and prepares target tables.
// *store.Store satisfies it.
type RecordStore interface {
	Ready(ctx context.Context) error
	BeginImport(ctx context.Context, rec store.ImportRecord) error
	RecordError(ctx context.Context, datasetID, msg string) error
	RecordComplete(ctx context.Context, datasetID string, at time.Time) error
	GetImport(ctx context.Context, datasetID string) (*store.ImportRecord, error)
	ListImports(ctx context.Context) ([]store.ImportRecord, error)
	DropTable(ctx context.Context, table string) error
}

// BatchWriter commits batches to one target table and rewrites its
// column types at the end. *store.TableWriter satisfies it.
type BatchWriter interface {
	WriteBatch(ctx context.Context, columns []string, rows []map[string]any) error
	RewriteTypes(ctx context.Context, types map[string]typeinfer.ColumnType) error
}

// WriterFactory opens a BatchWriter for one ingestion run.
type WriterFactory func(datasetID, table string) BatchWriter

// SourceClient reaches the remote dataset host. *socrata.Client
// satisfies it.
type SourceClient interface {
	FetchMetadata(ctx context.Context, src socrata.Source) (json.RawMessage, error)
	CountRows(ctx context.Context, src socrata.Source) (int64, bool)
	OpenRowStream(ctx context.Context, src socrata.Source) (io.ReadCloser, error)
}

// SpaceChecker is the pre-write admission guard.
type SpaceChecker interface {
	IsLow() bool
}

// Service orchestrates dataset imports.
type Service struct {
	records   RecordStore
	newWriter WriterFactory
	source    SourceClient
	guard     SpaceChecker
	cfg       config.ImportConfig

	locks *datasetLocks
	cache *StatusCache
}

// New wires an orchestrator.
func New(records RecordStore, newWriter WriterFactory, source SourceClient, guard SpaceChecker, cfg config.ImportConfig) *Service {
	return &Service{
		records:   records,
		newWriter: newWriter,
		source:    source,
		guard:     guard,
		cfg:       cfg,
		locks:     newDatasetLocks(),
		cache:     &StatusCache{},
	}
}

// Handle identifies a spawned ingestion run. The caller may wait on
// Done for a short grace period and then detach; completion is recorded
// durably either way.
type Handle struct {
	DatasetID string
	Table     string
	RunID     string
	done      chan struct{}
}

// Done is closed when the run reaches a terminal state.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Preview is the result of validating a dataset reference without
// importing it.
type Preview struct {
	DatasetID string          `json:"dataset_id"`
	Domain    string          `json:"domain"`
	Name      string          `json:"name"`
	Metadata  json.RawMessage `json:"metadata"`
	RowCount  *int64          `json:"row_count"`
}

// Validate runs the synchronous chain shared by Preview and Start:
// parse the reference, fetch metadata, probe the row count. Nothing
// durable is touched.
func (s *Service) Validate(ctx context.Context, rawURL string) (socrata.Source, *Preview, *Error) {
	src, err := socrata.ParseSourceURL(rawURL)
	if err != nil {
		return socrata.Source{}, nil, classify(err)
	}

	mctx, cancel := context.WithTimeout(ctx, s.cfg.MetadataTimeout)
	defer cancel()

	metadata, err := s.source.FetchMetadata(mctx, src)
	if err != nil {
		return socrata.Source{}, nil, classify(err)
	}

	preview := &Preview{
		DatasetID: src.ID,
		Domain:    src.Domain,
		Name:      metadataName(metadata),
		Metadata:  metadata,
	}
	if count, known := s.source.CountRows(mctx, src); known {
		preview.RowCount = &count
	}
	return src, preview, nil
}

// Start triggers an import. The synchronous part validates the
// reference, checks store admission, claims the per-dataset lock,
// replaces the import record and drops any prior target table; the
// streaming part then runs detached and records its outcome durably.
func (s *Service) Start(ctx context.Context, rawURL string) (*Handle, *Error) {
	src, preview, terr := s.Validate(ctx, rawURL)
	if terr != nil {
		return nil, terr
	}

	if err := s.records.Ready(ctx); err != nil {
		return nil, classify(err)
	}

	if !s.locks.TryAcquire(src.ID) {
		return nil, &Error{Kind: KindConflict, Message: "an import for this dataset is already running"}
	}

	rec := store.ImportRecord{
		DatasetID:        src.ID,
		DisplayName:      preview.Name,
		SourceURL:        rawURL,
		RawMetadata:      preview.Metadata,
		ExpectedRowCount: preview.RowCount,
		StartedAt:        time.Now().UTC(),
	}
	if err := s.records.BeginImport(ctx, rec); err != nil {
		s.locks.Release(src.ID)
		return nil, classify(err)
	}

	table := src.TableName()
	if err := s.records.DropTable(ctx, table); err != nil {
		s.locks.Release(src.ID)
		return nil, classify(err)
	}

	handle := &Handle{
		DatasetID: src.ID,
		Table:     table,
		RunID:     uuid.New().String(),
		done:      make(chan struct{}),
	}

	go s.run(src, handle)

	// Best effort; the next terminal-state refresh heals a miss.
	_ = s.cache.Refresh(ctx, s.records)

	return handle, nil
}

// Status returns the current import record for a dataset id, straight
// from the store so polls see every batch commit.
func (s *Service) Status(ctx context.Context, datasetID string) (*store.ImportRecord, error) {
	return s.records.GetImport(ctx, datasetID)
}

// Statuses returns the snapshot of all import records.
func (s *Service) Statuses() []store.ImportRecord {
	return s.cache.Snapshot()
}

// ActiveCount returns the number of ingestion runs in flight.
func (s *Service) ActiveCount() int {
	return s.locks.ActiveCount()
}

// WaitForDrain blocks until in-flight runs finish, for graceful
// shutdown.
func (s *Service) WaitForDrain(ctx context.Context) error {
	return s.locks.WaitForDrain(ctx)
}

// metadataName pulls the display name out of the metadata document.
func metadataName(doc json.RawMessage) string {
	var meta struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(doc, &meta); err != nil {
		return ""
	}
	return meta.Name
}

// GracePeriod exposes the configured trigger grace period to the web
// layer.
func (s *Service) GracePeriod() time.Duration {
	return s.cfg.GracePeriod
}

var _ RecordStore = (*store.Store)(nil)

// NewStoreWriterFactory adapts *store.Store into a WriterFactory.
func NewStoreWriterFactory(st *store.Store) WriterFactory {
	return func(datasetID, table string) BatchWriter {
		return st.NewTableWriter(datasetID, table)
	}
}
