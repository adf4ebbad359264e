package csvstream

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Record maps header field names to raw string values for one row.
type Record map[string]string

// RecordReader parses the line sequence into records. The first line is
// the header; every later logical record is keyed by the header's field
// names. The sequence is finite, non-restartable, and consumed once.
//
// Two documented quirks of the row-export format:
//
//   - A duplicate header name keeps the value from its last occurrence.
//   - An empty line where a record is expected ends the sequence without
//     error. The exports terminate with a blank line, and a live stream
//     cannot distinguish that from an embedded blank without read-ahead.
type RecordReader struct {
	lines   *LineReader
	header  []string
	columns []string
	done    bool
}

// NewRecordReader wraps a LineReader. The header is not read until the
// first call to Next or Columns.
func NewRecordReader(lines *LineReader) *RecordReader {
	return &RecordReader{lines: lines}
}

// Columns returns the header's field names with duplicates collapsed,
// order preserved. Reads the header line if it has not been read yet.
func (r *RecordReader) Columns() ([]string, error) {
	if err := r.ensureHeader(); err != nil {
		return nil, err
	}
	return r.columns, nil
}

// Next returns the next record, or io.EOF when the source is exhausted
// or a blank line ends the sequence. Any other error means the stream is
// malformed or the transport failed; the sequence is unusable after it.
func (r *RecordReader) Next() (Record, error) {
	if r.done {
		return nil, io.EOF
	}
	if err := r.ensureHeader(); err != nil {
		return nil, err
	}

	line, err := r.lines.Next()
	if err != nil {
		if err == io.EOF {
			r.done = true
		}
		return nil, err
	}
	if line == "" {
		r.done = true
		return nil, io.EOF
	}

	fields, err := r.readLogicalRecord(line)
	if err != nil {
		return nil, err
	}

	rec := make(Record, len(r.header))
	for i, name := range r.header {
		if i < len(fields) {
			rec[name] = fields[i]
		} else {
			rec[name] = ""
		}
	}
	return rec, nil
}

// ensureHeader reads and parses the header line on first use.
func (r *RecordReader) ensureHeader() error {
	if r.header != nil {
		return nil
	}

	line, err := r.lines.Next()
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("stream ended before header row")
		}
		return err
	}
	if line == "" {
		return fmt.Errorf("stream ended before header row")
	}

	fields, err := r.readLogicalRecord(line)
	if err != nil {
		return fmt.Errorf("parsing header row: %w", err)
	}

	r.header = fields
	seen := make(map[string]bool, len(fields))
	for _, name := range fields {
		if !seen[name] {
			seen[name] = true
			r.columns = append(r.columns, name)
		}
	}
	return nil
}

// readLogicalRecord parses one logical CSV record starting from the
// given physical line. When a quoted field is left unterminated, the
// next physical line is pulled and rejoined with a newline until the
// record parses or the stream ends.
func (r *RecordReader) readLogicalRecord(line string) ([]string, error) {
	joined := line
	for {
		fields, err := parseLine(joined)
		if err == nil {
			return fields, nil
		}
		if !errors.Is(err, csv.ErrQuote) {
			return nil, fmt.Errorf("malformed record: %w", err)
		}

		next, lerr := r.lines.Next()
		if lerr != nil {
			if lerr == io.EOF {
				return nil, fmt.Errorf("unterminated quoted field at end of stream")
			}
			return nil, lerr
		}
		joined += "\n" + next
	}
}

// parseLine runs encoding/csv over a single logical record. Field count
// is unchecked; short rows are padded by the caller.
func parseLine(s string) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(s))
	cr.FieldsPerRecord = -1
	return cr.Read()
}
