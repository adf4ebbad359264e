package importer

import (
	"errors"
	"fmt"

	"github.com/civiclab/socrata-import/internal/socrata"
)

// ErrorKind tags the synchronous failures of the trigger path so the
// caller can map them without string matching.
type ErrorKind string

const (
	// KindAddress: the dataset reference itself is malformed.
	KindAddress ErrorKind = "address"
	// KindMetadata: the dataset's metadata could not be fetched.
	KindMetadata ErrorKind = "metadata"
	// KindAdmission: no writable destination store is available.
	KindAdmission ErrorKind = "admission"
	// KindConflict: an import for this dataset id is already running.
	KindConflict ErrorKind = "conflict"
)

// Error is a tagged synchronous trigger failure. These abort before any
// ingestion starts and leave no durable state behind; asynchronous
// ingestion failures never take this form (they land on the import
// record instead).
type Error struct {
	Kind     ErrorKind
	Message  string
	NotFound bool // metadata fetch hit a missing dataset, not a transport fault
}

func (e *Error) Error() string {
	return e.Message
}

// ErrDiskSpaceLow aborts ingestion when the disk-space guard refuses a
// batch. It surfaces on the import record, never to the trigger caller.
var ErrDiskSpaceLow = errors.New("disk space is below the configured minimum, import aborted")

// classify maps collaborator errors from the synchronous trigger chain
// onto tagged kinds.
func classify(err error) *Error {
	var pe *socrata.ParseError
	if errors.As(err, &pe) {
		return &Error{Kind: KindAddress, Message: pe.Error()}
	}
	var me *socrata.MetadataError
	if errors.As(err, &me) {
		return &Error{Kind: KindMetadata, Message: me.Error(), NotFound: me.NotFound}
	}
	return &Error{Kind: KindAdmission, Message: fmt.Sprintf("destination store unavailable: %v", err)}
}
