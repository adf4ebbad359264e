package store

// sql.go builds the dynamic SQL the import pipeline needs. Target table
// schemas are only known at runtime, so these statements cannot be
// prepared ahead of time; identifiers are quoted and values always
// travel as bind parameters.

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/civiclab/socrata-import/internal/typeinfer"
	"github.com/jackc/pgx/v5/pgtype"
)

// quoteIdentifier makes a string safe for use as a SQL identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// buildCreateTable declares the target table with provisional text
// columns in the batch's field order.
func buildCreateTable(table string, columns []string) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = quoteIdentifier(col) + " text"
	}
	return fmt.Sprintf("create table if not exists %s (%s)",
		quoteIdentifier(table), strings.Join(defs, ", "))
}

// buildAddColumn widens the table for a field first seen after creation.
func buildAddColumn(table, column string) string {
	return fmt.Sprintf("alter table %s add column if not exists %s text",
		quoteIdentifier(table), quoteIdentifier(column))
}

// buildInsert produces a multi-row insert for the batch. Missing fields
// and nil values become NULL.
func buildInsert(table string, columns []string, rows []map[string]any) (string, []any) {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdentifier(col)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "insert into %s (%s) values ",
		quoteIdentifier(table), strings.Join(quoted, ", "))

	args := make([]any, 0, len(rows)*len(columns))
	arg := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, col := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(arg))
			arg++
			args = append(args, encodeText(row[col]))
		}
		b.WriteByte(')')
	}

	return b.String(), args
}

// columnSQLTypes maps inferred classifications to Postgres types. Text
// columns are already text and carry no entry.
var columnSQLTypes = map[typeinfer.ColumnType]string{
	typeinfer.TypeInteger:   "bigint",
	typeinfer.TypeFloat:     "double precision",
	typeinfer.TypeBool:      "boolean",
	typeinfer.TypeTimestamp: "timestamptz",
}

// buildAlterColumnType converts one provisional text column to its
// inferred type. Returns ok=false when no conversion is needed.
func buildAlterColumnType(table, column string, t typeinfer.ColumnType) (string, bool) {
	sqlType, ok := columnSQLTypes[t]
	if !ok {
		return "", false
	}
	qc := quoteIdentifier(column)
	return fmt.Sprintf("alter table %s alter column %s type %s using (%s::%s)",
		quoteIdentifier(table), qc, sqlType, qc, sqlType), true
}

// encodeText renders a wrapped value into the canonical text form stored
// in the provisional columns. The renderings are chosen so the final
// `using (col::type)` cast always succeeds: integers without padding,
// floats in Go's shortest round-trip form, booleans as true/false,
// timestamps as RFC 3339.
func encodeText(v any) pgtype.Text {
	switch val := v.(type) {
	case nil:
		return pgtype.Text{}
	case string:
		return pgtype.Text{String: val, Valid: true}
	case int64:
		return pgtype.Text{String: strconv.FormatInt(val, 10), Valid: true}
	case float64:
		return pgtype.Text{String: strconv.FormatFloat(val, 'g', -1, 64), Valid: true}
	case bool:
		return pgtype.Text{String: strconv.FormatBool(val), Valid: true}
	case time.Time:
		return pgtype.Text{String: val.Format(time.RFC3339Nano), Valid: true}
	default:
		return pgtype.Text{String: fmt.Sprint(val), Valid: true}
	}
}
