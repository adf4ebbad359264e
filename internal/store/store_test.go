package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestErrNotFoundIsOurOwnSentinel(t *testing.T) {
	if errors.Is(ErrNotFound, pgx.ErrNoRows) {
		t.Fatal("ErrNotFound aliases pgx.ErrNoRows; callers would depend on the driver")
	}
	if errors.Is(pgx.ErrNoRows, ErrNotFound) {
		t.Fatal("pgx.ErrNoRows satisfies ErrNotFound")
	}
}
