package ledger

import (
	"errors"
	"testing"

	"ticket-exchange/internal/model"
)

func TestLatchRejectsReentry(t *testing.T) {
	l := NewLatch()
	if err := l.Acquire("withdraw:a1:e1"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := l.Acquire("withdraw:a1:e1"); !errors.Is(err, model.ErrReentrancy) {
		t.Fatalf("expected ErrReentrancy, got %v", err)
	}
	// A different key is independent.
	if err := l.Acquire("withdraw:a2:e1"); err != nil {
		t.Fatalf("independent key: %v", err)
	}
	l.Release("withdraw:a1:e1")
	if err := l.Acquire("withdraw:a1:e1"); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}
