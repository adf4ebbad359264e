// Package typeinfer watches raw CSV values and settles on a storage type
// per column. Columns start fully unconstrained and only ever widen: a
// value that fails to parse as a candidate type eliminates that
// candidate for the rest of the import, with text as the universal
// fallback. Within one import a column never becomes more specific again.
package typeinfer

import (
	"strconv"
	"strings"
	"time"

	"github.com/civiclab/socrata-import/internal/csvstream"
)

// ColumnType is the final storage classification for a column.
type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeInteger   ColumnType = "integer"
	TypeFloat     ColumnType = "float"
	TypeBool      ColumnType = "bool"
	TypeTimestamp ColumnType = "timestamp"
)

// timestampLayouts are tried in order. Kept deliberately small: the row
// export emits ISO-style timestamps.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// columnState records which classifications are still possible for one
// column. All candidates start true and are only ever cleared.
type columnState struct {
	seen      bool // at least one non-empty value observed
	couldInt  bool
	couldF64  bool
	couldBool bool
	couldTime bool
}

// Tracker observes raw string values across batches and maintains the
// per-column best-fit type. Not safe for concurrent use; one ingestion
// run owns one Tracker.
type Tracker struct {
	cols map[string]*columnState
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{cols: make(map[string]*columnState)}
}

// Wrap observes every value in the batch and returns the batch with
// values converted to the current best-fit native type. Conversions are
// best-effort with the classification as of this batch; a later
// demotion does not retroactively change already-returned values (the
// final column-type rewrite settles that).
func (t *Tracker) Wrap(batch []csvstream.Record) []map[string]any {
	// Observe first so a contradiction inside the batch demotes the
	// column before any of the batch's values are converted.
	for _, rec := range batch {
		for name, raw := range rec {
			t.observe(name, raw)
		}
	}

	wrapped := make([]map[string]any, 0, len(batch))
	for _, rec := range batch {
		row := make(map[string]any, len(rec))
		for name, raw := range rec {
			row[name] = t.convert(name, raw)
		}
		wrapped = append(wrapped, row)
	}
	return wrapped
}

// Types returns the final per-column classification. A column that never
// saw a non-empty value is text.
func (t *Tracker) Types() map[string]ColumnType {
	types := make(map[string]ColumnType, len(t.cols))
	for name, st := range t.cols {
		types[name] = st.resolved()
	}
	return types
}

func (t *Tracker) observe(name, raw string) {
	st, ok := t.cols[name]
	if !ok {
		st = &columnState{couldInt: true, couldF64: true, couldBool: true, couldTime: true}
		t.cols[name] = st
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	st.seen = true

	if st.couldInt && !isInteger(raw) {
		st.couldInt = false
	}
	if st.couldF64 && !isFloat(raw) {
		st.couldF64 = false
	}
	if st.couldBool && !isBoolToken(raw) {
		st.couldBool = false
	}
	if st.couldTime && !isTimestamp(raw) {
		st.couldTime = false
	}
}

// convert renders raw as the column's current best-fit native value.
// Empty (or whitespace-only) values become nil. Trimming applies only
// to the typed parses; a text value passes through exactly as read, so
// surrounding whitespace survives into the stored row.
func (t *Tracker) convert(name, raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	switch t.cols[name].resolved() {
	case TypeInteger:
		n, _ := strconv.ParseInt(trimmed, 10, 64)
		return n
	case TypeFloat:
		f, _ := strconv.ParseFloat(trimmed, 64)
		return f
	case TypeBool:
		b, _ := parseBoolToken(trimmed)
		return b
	case TypeTimestamp:
		ts, _ := parseTimestamp(trimmed)
		return ts
	default:
		return raw
	}
}

// resolved picks the narrowest still-possible classification. Integer
// outranks bool so a column of "0"/"1" values stays numeric.
func (st *columnState) resolved() ColumnType {
	switch {
	case !st.seen:
		return TypeText
	case st.couldInt:
		return TypeInteger
	case st.couldF64:
		return TypeFloat
	case st.couldBool:
		return TypeBool
	case st.couldTime:
		return TypeTimestamp
	default:
		return TypeText
	}
}

// isInteger accepts base-10 integers within int64 range. A digit string
// that overflows is not numeric here: out-of-range values are kept as
// text rather than silently truncated, and must not leak into float
// classification either.
func isInteger(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// isFloat accepts finite float64 values written in plain decimal or
// exponent form. Tokens that look like integers but overflow int64 are
// excluded so they stay text, and "inf"/"nan" spellings never count.
func isFloat(s string) bool {
	if !isNumericSyntax(s) {
		return false
	}
	if isIntegerSyntax(s) && !isInteger(s) {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// isIntegerSyntax reports whether s is a bare optionally-signed digit
// string, regardless of range.
func isIntegerSyntax(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '+' || s[0] == '-' {
		i = 1
	}
	if i == len(s) {
		return false
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// isNumericSyntax reports whether s looks like a decimal number
// (digits, optional sign, point, exponent) as opposed to "inf"/"nan".
func isNumericSyntax(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c == '+' || c == '-' || c == '.' || c == 'e' || c == 'E':
		default:
			return false
		}
	}
	return true
}

// Boolean classification uses a small canonical token set; any token
// outside it demotes the column to text.
func isBoolToken(s string) bool {
	_, ok := parseBoolToken(s)
	return ok
}

func parseBoolToken(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

func isTimestamp(s string) bool {
	_, ok := parseTimestamp(s)
	return ok
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
