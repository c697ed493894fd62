package engine

import (
	"errors"
	"testing"
	"time"

	"ticket-exchange/internal/model"
)

var (
	aStart = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	aEnd   = aStart.Add(24 * time.Hour)
	pol    = ExtensionPolicy{Window: 600 * time.Second, Extension: 600 * time.Second, Max: 5}
)

func newAuction(reserve, increment int64) *model.Auction {
	return &model.Auction{
		TokenContract: "venue-a",
		TokenID:       7,
		StartTime:     aStart,
		EndTime:       aEnd,
		ReservePrice:  reserve,
		MinIncrement:  increment,
		Status:        model.AuctionActive,
		Bids:          make(map[string]int64),
	}
}

func mustBid(t *testing.T, a *model.Auction, bidder string, amount int64, at time.Time) BidResult {
	t.Helper()
	res, err := PlaceBid(a, "seller", bidder, amount, 1000, at, pol)
	if err != nil {
		t.Fatalf("bid %s %d: %v", bidder, amount, err)
	}
	return res
}

func TestFirstBidFloorIsStartingPrice(t *testing.T) {
	a := newAuction(0, 100)
	_, err := PlaceBid(a, "seller", "b1", 999, 1000, aStart, pol)
	if !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	res := mustBid(t, a, "b1", 1000, aStart)
	if len(res.Refunds) != 0 {
		t.Fatalf("first bid refunds nobody, got %v", res.Refunds)
	}
	if a.HighestBidder != "b1" || a.HighestBid != 1000 {
		t.Fatalf("highest %s/%d", a.HighestBidder, a.HighestBid)
	}
}

func TestBidTimingWindows(t *testing.T) {
	a := newAuction(0, 100)
	if _, err := PlaceBid(a, "seller", "b1", 1000, 1000, aStart.Add(-time.Second), pol); !errors.Is(err, model.ErrTiming) {
		t.Fatalf("before start: expected ErrTiming, got %v", err)
	}
	if _, err := PlaceBid(a, "seller", "b1", 1000, 1000, aEnd, pol); !errors.Is(err, model.ErrTiming) {
		t.Fatalf("at end: expected ErrTiming, got %v", err)
	}
}

func TestSellerCannotBid(t *testing.T) {
	a := newAuction(0, 100)
	if _, err := PlaceBid(a, "seller", "seller", 1000, 1000, aStart, pol); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestEqualBidRejectedEvenWithZeroIncrement(t *testing.T) {
	a := newAuction(0, 0)
	mustBid(t, a, "b1", 1000, aStart)
	if _, err := PlaceBid(a, "seller", "b2", 1000, 1000, aStart, pol); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestOutbidRefundsDisplacedBidder(t *testing.T) {
	a := newAuction(0, 100)
	mustBid(t, a, "b1", 1000, aStart)
	res := mustBid(t, a, "b2", 1100, aStart)
	if len(res.Refunds) != 1 || res.Refunds[0] != (Refund{Bidder: "b1", Amount: 1000}) {
		t.Fatalf("expected b1 refunded 1000, got %v", res.Refunds)
	}
}

func TestRaisingOwnBidRefundsSelf(t *testing.T) {
	a := newAuction(0, 100)
	mustBid(t, a, "b1", 1000, aStart)
	res := mustBid(t, a, "b1", 1200, aStart)
	if len(res.Refunds) != 1 || res.Refunds[0] != (Refund{Bidder: "b1", Amount: 1000}) {
		t.Fatalf("expected own 1000 back, got %v", res.Refunds)
	}
	if len(a.Bidders) != 1 {
		t.Fatalf("bidder list must stay unique, got %v", a.Bidders)
	}
}

func TestAntiSnipeExtension(t *testing.T) {
	a := newAuction(0, 100)
	late := aEnd.Add(-5 * time.Minute)
	res := mustBid(t, a, "b1", 1000, late)
	if !res.Extended {
		t.Fatal("late bid should extend")
	}
	if !a.EndTime.Equal(aEnd.Add(10 * time.Minute)) {
		t.Fatalf("end time %s", a.EndTime)
	}
	if a.ExtensionCount != 1 {
		t.Fatalf("extension count %d", a.ExtensionCount)
	}

	// Extensions cap out.
	amount := int64(1000)
	for i := 0; i < 10; i++ {
		amount += 100
		mustBid(t, a, "b2", amount, a.EndTime.Add(-time.Minute))
		amount += 100
		mustBid(t, a, "b1", amount, a.EndTime.Add(-time.Minute))
	}
	if a.ExtensionCount != pol.Max {
		t.Fatalf("expected %d extensions, got %d", pol.Max, a.ExtensionCount)
	}
}

func TestEarlyBidDoesNotExtend(t *testing.T) {
	a := newAuction(0, 100)
	res := mustBid(t, a, "b1", 1000, aStart)
	if res.Extended || !a.EndTime.Equal(aEnd) {
		t.Fatalf("early bid extended to %s", a.EndTime)
	}
}

func TestSettleBeforeEndRejected(t *testing.T) {
	a := newAuction(0, 100)
	if _, err := Settle(a, aEnd.Add(-time.Second)); !errors.Is(err, model.ErrTiming) {
		t.Fatalf("expected ErrTiming, got %v", err)
	}
	if a.Status != model.AuctionActive {
		t.Fatal("failed settle must not change status")
	}
}

func TestSettleNoBids(t *testing.T) {
	a := newAuction(0, 100)
	res, err := Settle(a, aEnd)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if res.Winner != "" || len(res.Refunds) != 0 {
		t.Fatalf("expected quiet close, got %+v", res)
	}
	if a.Status != model.AuctionEnded {
		t.Fatalf("status %s", a.Status)
	}
}

func TestSettleReserveNotMet(t *testing.T) {
	a := newAuction(5000, 100)
	mustBid(t, a, "b1", 1000, aStart)
	res, err := Settle(a, aEnd)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if res.Winner != "" {
		t.Fatalf("reserve not met must not sell, winner %s", res.Winner)
	}
	if len(res.Refunds) != 1 || res.Refunds[0] != (Refund{Bidder: "b1", Amount: 1000}) {
		t.Fatalf("expected b1 refunded, got %v", res.Refunds)
	}
}

func TestSettleWithWinner(t *testing.T) {
	a := newAuction(0, 100)
	mustBid(t, a, "b1", 1000, aStart)
	mustBid(t, a, "b2", 1100, aStart)
	res, err := Settle(a, aEnd)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if res.Winner != "b2" || res.Amount != 1100 {
		t.Fatalf("expected b2/1100, got %s/%d", res.Winner, res.Amount)
	}
	if len(res.Refunds) != 0 {
		t.Fatalf("losers were refunded when outbid, got %v", res.Refunds)
	}
}

func TestSettleTwiceFails(t *testing.T) {
	a := newAuction(0, 100)
	mustBid(t, a, "b1", 1000, aStart)
	if _, err := Settle(a, aEnd); err != nil {
		t.Fatal(err)
	}
	if _, err := Settle(a, aEnd); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on second settle, got %v", err)
	}
}

func TestCancelRefundsOutstandingLock(t *testing.T) {
	a := newAuction(0, 100)
	mustBid(t, a, "b1", 1000, aStart)
	mustBid(t, a, "b2", 1100, aStart)
	refunds, err := Cancel(a)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(refunds) != 1 || refunds[0] != (Refund{Bidder: "b2", Amount: 1100}) {
		t.Fatalf("expected b2 refunded 1100, got %v", refunds)
	}
	if a.Status != model.AuctionCancelled {
		t.Fatalf("status %s", a.Status)
	}
	if _, err := Cancel(a); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("cancel twice: expected ErrInvalidState, got %v", err)
	}
}

func TestBidAfterExtensionStillInsideWindow(t *testing.T) {
	a := newAuction(0, 100)
	mustBid(t, a, "b1", 1000, aEnd.Add(-time.Minute))
	// Original end has passed but the extension keeps the auction open.
	if _, err := PlaceBid(a, "seller", "b2", 1100, 1000, aEnd.Add(time.Minute), pol); err != nil {
		t.Fatalf("bid inside extension: %v", err)
	}
}
