package ledger

import (
	"fmt"
	"sync"

	"ticket-exchange/internal/model"
)

// Latch is the per-operation reentrancy guard. An external transfer made while
// an operation is in flight may call straight back into the marketplace; the
// latch makes such a nested call fail fast instead of observing or corrupting
// in-progress state.
type Latch struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewLatch() *Latch {
	return &Latch{inFlight: make(map[string]struct{})}
}

// Acquire claims the key for the duration of one operation. A second acquire
// of the same key before Release is a reentrant call and is rejected.
func (l *Latch) Acquire(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.inFlight[key]; held {
		return fmt.Errorf("%w: %s", model.ErrReentrancy, key)
	}
	l.inFlight[key] = struct{}{}
	return nil
}

func (l *Latch) Release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, key)
}
