package typeinfer

import (
	"reflect"
	"testing"
	"time"

	"github.com/civiclab/socrata-import/internal/csvstream"
)

// observeColumn runs a single-column value sequence through the tracker
// and returns its final classification.
func observeColumn(values ...string) ColumnType {
	t := NewTracker()
	for _, v := range values {
		t.Wrap([]csvstream.Record{{"col": v}})
	}
	return t.Types()["col"]
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   ColumnType
	}{
		{"integers", []string{"1", "42", "-7"}, TypeInteger},
		{"integers with empties", []string{"1", "", "2"}, TypeInteger},
		{"floats", []string{"1.5", "2"}, TypeFloat},
		{"int demoted to float", []string{"1", "2", "2.5"}, TypeFloat},
		{"float demoted to text", []string{"1.5", "apple"}, TypeText},
		{"booleans", []string{"true", "FALSE", "Yes", "n"}, TypeBool},
		{"zero one prefers integer", []string{"0", "1", "1", "0"}, TypeInteger},
		{"bool demoted by stray token", []string{"yes", "no", "maybe"}, TypeText},
		{"timestamps", []string{"2024-01-02T10:00:00Z", "2024-06-30T23:59:59Z"}, TypeTimestamp},
		{"dates", []string{"2024-01-02", "1999-12-31"}, TypeTimestamp},
		{"date then word", []string{"2024-01-02", "soonish"}, TypeText},
		{"only empties", []string{"", "  ", ""}, TypeText},
		{"no values", nil, ""},
		{"int64 overflow is text", []string{"92233720368547758080"}, TypeText},
		{"float overflow is text", []string{"1e999"}, TypeText},
		{"inf spelling is text", []string{"inf"}, TypeText},
		{"currency is text", []string{"$5"}, TypeText},
		{"mixed numeric and bool tokens", []string{"1", "t"}, TypeBool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := observeColumn(tt.values...); got != tt.want {
				t.Errorf("classification = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapConversion(t *testing.T) {
	tr := NewTracker()
	wrapped := tr.Wrap([]csvstream.Record{
		{"id": "1", "price": "2.50", "active": "yes", "note": "hello", "blank": ""},
		{"id": "2", "price": "3", "active": "NO", "note": "bye", "blank": ""},
	})

	if len(wrapped) != 2 {
		t.Fatalf("got %d rows, want 2", len(wrapped))
	}

	want := map[string]any{
		"id":     int64(1),
		"price":  2.50,
		"active": true,
		"note":   "hello",
		"blank":  nil,
	}
	for key, wv := range want {
		if got := wrapped[0][key]; !reflect.DeepEqual(got, wv) {
			t.Errorf("wrapped[0][%q] = %#v (%T), want %#v", key, got, got, wv)
		}
	}
	if wrapped[1]["active"] != false {
		t.Errorf("active = %#v, want false", wrapped[1]["active"])
	}
}

func TestWrapPreservesTextWhitespace(t *testing.T) {
	tr := NewTracker()
	wrapped := tr.Wrap([]csvstream.Record{
		{"note": "  Dog house  ", "count": " 7 "},
	})

	// Trimming is a parse aid only: a typed value parses from the
	// trimmed token, but text comes through exactly as read.
	if got := wrapped[0]["note"]; got != "  Dog house  " {
		t.Errorf("note = %#v, want %#v", got, "  Dog house  ")
	}
	if got := wrapped[0]["count"]; got != int64(7) {
		t.Errorf("count = %#v, want int64(7)", got)
	}

	// Whitespace-only stays NULL like empty.
	blank := tr.Wrap([]csvstream.Record{{"note": "   "}})
	if got := blank[0]["note"]; got != nil {
		t.Errorf("whitespace-only note = %#v, want nil", got)
	}
}

func TestWrapTimestampConversion(t *testing.T) {
	tr := NewTracker()
	wrapped := tr.Wrap([]csvstream.Record{{"at": "2024-01-02T10:00:00Z"}})

	ts, ok := wrapped[0]["at"].(time.Time)
	if !ok {
		t.Fatalf("at = %#v (%T), want time.Time", wrapped[0]["at"], wrapped[0]["at"])
	}
	if ts.Year() != 2024 || ts.Month() != time.January {
		t.Errorf("at = %s", ts)
	}
}

func TestDemotionWithinBatchAppliesToWholeBatch(t *testing.T) {
	// Observation happens before conversion, so a contradiction late in
	// a batch demotes values earlier in the same batch.
	tr := NewTracker()
	wrapped := tr.Wrap([]csvstream.Record{
		{"v": "1"},
		{"v": "apple"},
	})

	if got, ok := wrapped[0]["v"].(string); !ok || got != "1" {
		t.Errorf("wrapped[0][v] = %#v (%T), want %q", wrapped[0]["v"], wrapped[0]["v"], "1")
	}
}

func TestEarlierBatchesAreNotRewritten(t *testing.T) {
	tr := NewTracker()
	first := tr.Wrap([]csvstream.Record{{"v": "1"}})
	if _, ok := first[0]["v"].(int64); !ok {
		t.Fatalf("first batch v = %#v (%T), want int64", first[0]["v"], first[0]["v"])
	}

	second := tr.Wrap([]csvstream.Record{{"v": "apple"}})
	if _, ok := second[0]["v"].(string); !ok {
		t.Fatalf("second batch v = %#v (%T), want string", second[0]["v"], second[0]["v"])
	}

	// The earlier batch keeps its already-returned value; the final
	// classification still widened to text.
	if tr.Types()["v"] != TypeText {
		t.Errorf("final type = %q, want text", tr.Types()["v"])
	}
}

func TestIdempotentGivenSameOrdering(t *testing.T) {
	values := []csvstream.Record{
		{"a": "1", "b": "x"},
		{"a": "2.5", "b": "true"},
		{"a": "3", "b": "false"},
	}

	run := func() map[string]ColumnType {
		tr := NewTracker()
		tr.Wrap(values)
		return tr.Types()
	}

	first, second := run(), run()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("runs differ: %v vs %v", first, second)
	}
	if first["a"] != TypeFloat || first["b"] != TypeText {
		t.Errorf("types = %v", first)
	}
}

func TestLateNarrowValuesDoNotRenarrow(t *testing.T) {
	// Once demoted to text, a stretch of clean integers must not bring
	// the column back.
	got := observeColumn("apple", "1", "2", "3")
	if got != TypeText {
		t.Errorf("classification = %q, want text", got)
	}
}
