package csvstream

import (
	"io"
	"strings"
	"testing"
)

func readAll(t *testing.T, input string) ([]Record, []string) {
	t.Helper()
	rr := NewRecordReader(NewLineReader(strings.NewReader(input)))
	cols, err := rr.Columns()
	if err != nil {
		t.Fatalf("Columns() error = %v", err)
	}
	var records []Record
	for {
		rec, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		records = append(records, rec)
	}
	return records, cols
}

func TestRecordReader(t *testing.T) {
	records, cols := readAll(t, "id,species\r\n1,Dog\r\n2,Chicken")

	wantCols := []string{"id", "species"}
	for i, c := range wantCols {
		if cols[i] != c {
			t.Errorf("column %d = %q, want %q", i, cols[i], c)
		}
	}

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["id"] != "1" || records[0]["species"] != "Dog" {
		t.Errorf("record 0 = %v", records[0])
	}
	if records[1]["id"] != "2" || records[1]["species"] != "Chicken" {
		t.Errorf("record 1 = %v", records[1])
	}
}

func TestRecordReader_QuotedFields(t *testing.T) {
	records, _ := readAll(t, "id,note\n1,\"hello, world\"\n2,\"say \"\"hi\"\"\"\n")

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["note"] != "hello, world" {
		t.Errorf("note = %q, want %q", records[0]["note"], "hello, world")
	}
	if records[1]["note"] != `say "hi"` {
		t.Errorf("note = %q, want %q", records[1]["note"], `say "hi"`)
	}
}

func TestRecordReader_MultilineField(t *testing.T) {
	records, _ := readAll(t, "id,note\n1,\"line one\nline two\"\n2,plain\n")

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["note"] != "line one\nline two" {
		t.Errorf("note = %q, want %q", records[0]["note"], "line one\nline two")
	}
	if records[1]["note"] != "plain" {
		t.Errorf("note = %q", records[1]["note"])
	}
}

func TestRecordReader_BlankLineEndsSequence(t *testing.T) {
	// The row export terminates with a blank line; rows after one are
	// not read.
	records, _ := readAll(t, "id\n1\n\n2\n")

	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0]["id"] != "1" {
		t.Errorf("id = %q, want %q", records[0]["id"], "1")
	}
}

func TestRecordReader_DuplicateHeaderLastWins(t *testing.T) {
	records, cols := readAll(t, "a,b,a\n1,2,3\n")

	if len(cols) != 2 || cols[0] != "a" || cols[1] != "b" {
		t.Fatalf("columns = %v, want [a b]", cols)
	}
	if records[0]["a"] != "3" {
		t.Errorf("a = %q, want %q (last occurrence wins)", records[0]["a"], "3")
	}
	if records[0]["b"] != "2" {
		t.Errorf("b = %q, want %q", records[0]["b"], "2")
	}
}

func TestRecordReader_ShortRowPadded(t *testing.T) {
	records, _ := readAll(t, "a,b,c\n1,2\n")

	if records[0]["c"] != "" {
		t.Errorf("c = %q, want empty", records[0]["c"])
	}
}

func TestRecordReader_EmptyStream(t *testing.T) {
	rr := NewRecordReader(NewLineReader(strings.NewReader("")))
	if _, err := rr.Next(); err == nil || err == io.EOF {
		t.Fatalf("Next() error = %v, want header error", err)
	}
}

func TestRecordReader_HeaderOnly(t *testing.T) {
	records, cols := readAll(t, "a,b\n")
	if len(records) != 0 {
		t.Fatalf("got %d records, want 0", len(records))
	}
	if len(cols) != 2 {
		t.Fatalf("columns = %v", cols)
	}
}

func TestRecordReader_UnterminatedQuote(t *testing.T) {
	rr := NewRecordReader(NewLineReader(strings.NewReader("a\n\"open")))
	if _, err := rr.Next(); err == nil || err == io.EOF {
		t.Fatalf("Next() error = %v, want unterminated-quote error", err)
	}
}

func TestRecordReader_ExhaustedStaysExhausted(t *testing.T) {
	rr := NewRecordReader(NewLineReader(strings.NewReader("a\n1\n")))
	if _, err := rr.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := rr.Next(); err != io.EOF {
			t.Fatalf("Next() after exhaustion = %v, want io.EOF", err)
		}
	}
}
