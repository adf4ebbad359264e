package importer

import (
	"context"
	"testing"
	"time"
)

func TestDatasetLocks(t *testing.T) {
	locks := newDatasetLocks()

	if !locks.TryAcquire("abcd-1234") {
		t.Fatal("first acquire failed")
	}
	if locks.TryAcquire("abcd-1234") {
		t.Fatal("second acquire succeeded while held")
	}
	if !locks.TryAcquire("wxyz-5678") {
		t.Fatal("acquire for a different dataset failed")
	}
	if got := locks.ActiveCount(); got != 2 {
		t.Fatalf("ActiveCount = %d, want 2", got)
	}

	locks.Release("abcd-1234")
	if !locks.TryAcquire("abcd-1234") {
		t.Fatal("acquire after release failed")
	}
}

func TestWaitForDrain(t *testing.T) {
	locks := newDatasetLocks()
	locks.TryAcquire("abcd-1234")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := locks.WaitForDrain(ctx); err == nil {
		t.Fatal("WaitForDrain returned nil while a run was active")
	}

	locks.Release("abcd-1234")
	ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := locks.WaitForDrain(ctx); err != nil {
		t.Fatalf("WaitForDrain after release: %v", err)
	}
}
