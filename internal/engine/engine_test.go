package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"ticket-exchange/internal/model"
)

// closeCmd drives the same shutdown path a sale, settle or cancel takes.
type closeCmd struct{ ch chan error }

func (c closeCmd) exec(e *ListingEngine) { e.close(); c.ch <- nil }
func (c closeCmd) fail(err error)        { c.ch <- err }

func newTestEngine(t *testing.T) (*Manager, *ListingEngine) {
	t.Helper()
	m := NewManager(nil, nil, nil, nil, nil, nil, ExtensionPolicy{}, zap.NewNop().Sugar())
	l := &model.Listing{
		TokenContract: "0xabc",
		TokenID:       7,
		EventID:       "ev1",
		Seller:        "s1",
		SaleType:      model.SaleFixedPrice,
		Active:        true,
	}
	e, err := newListingEngine(context.Background(), l, m)
	if err != nil {
		t.Fatal(err)
	}
	m.engines[e.key] = e
	go e.run(context.Background())
	return m, e
}

func TestEngineExitsAfterClose(t *testing.T) {
	m, e := newTestEngine(t)

	ch := make(chan error, 1)
	if !e.submit(closeCmd{ch: ch}) {
		t.Fatal("submit to a live engine must succeed")
	}
	if err := <-ch; err != nil {
		t.Fatalf("close command: %v", err)
	}

	select {
	case <-e.done:
	case <-time.After(time.Second):
		t.Fatal("engine goroutine still running after close")
	}

	if m.Engine("0xabc", 7) != nil {
		t.Fatal("closed engine must be dropped from the manager")
	}
}

func TestCommandsAfterCloseRejected(t *testing.T) {
	_, e := newTestEngine(t)

	ch := make(chan error, 1)
	if !e.submit(closeCmd{ch: ch}) {
		t.Fatal("submit to a live engine must succeed")
	}
	if err := <-ch; err != nil {
		t.Fatalf("close command: %v", err)
	}
	<-e.done

	if _, err := e.Buy("b1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after close, got %v", err)
	}
	if err := e.PlaceBid("b1", 100); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after close, got %v", err)
	}
}
