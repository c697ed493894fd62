package guard

import (
	"errors"
	"testing"
	"time"

	"ticket-exchange/internal/model"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestPriceCapAgainstLastSale(t *testing.T) {
	g := New(2000, time.Hour)
	last := LastSale{Price: 10000, At: t0, Found: true}

	if err := g.CheckPrice(12000, last, 0); err != nil {
		t.Fatalf("price at cap should pass: %v", err)
	}
	err := g.CheckPrice(12001, last, 0)
	if !errors.Is(err, model.ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestPriceCapAgainstReference(t *testing.T) {
	g := New(2000, time.Hour)
	none := LastSale{}

	if err := g.CheckPrice(6000, none, 5000); err != nil {
		t.Fatalf("price at reference cap should pass: %v", err)
	}
	if err := g.CheckPrice(6001, none, 5000); !errors.Is(err, model.ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestLastSaleOverridesReference(t *testing.T) {
	g := New(2000, time.Hour)
	// Once the item has traded, the mint price no longer matters.
	last := LastSale{Price: 100, At: t0, Found: true}
	if err := g.CheckPrice(500, last, 1000000); !errors.Is(err, model.ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestNoHistoryNoReferenceUncapped(t *testing.T) {
	g := New(2000, time.Hour)
	if err := g.CheckPrice(1<<40, LastSale{}, 0); err != nil {
		t.Fatalf("uncapped listing should pass: %v", err)
	}
}

func TestNonPositivePriceRejected(t *testing.T) {
	g := New(2000, time.Hour)
	if err := g.CheckPrice(0, LastSale{}, 0); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestCooldown(t *testing.T) {
	g := New(2000, time.Hour)
	last := LastSale{Price: 100, At: t0, Found: true}

	if err := g.CheckCooldown(t0.Add(59*time.Minute), last); !errors.Is(err, model.ErrTiming) {
		t.Fatalf("expected ErrTiming inside cooldown, got %v", err)
	}
	if err := g.CheckCooldown(t0.Add(time.Hour), last); err != nil {
		t.Fatalf("cooldown boundary should pass: %v", err)
	}
	if err := g.CheckCooldown(t0, LastSale{}); err != nil {
		t.Fatalf("no history means no cooldown: %v", err)
	}
}

func TestCheckOrdersPriceBeforeCooldown(t *testing.T) {
	g := New(2000, time.Hour)
	last := LastSale{Price: 100, At: t0, Found: true}
	// Both rules violated; the cap error wins.
	err := g.Check(t0.Add(time.Minute), 10000, last, 0)
	if !errors.Is(err, model.ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}
