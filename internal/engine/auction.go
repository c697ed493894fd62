package engine

import (
	"fmt"
	"time"

	"ticket-exchange/internal/model"
)

// The auction machine is pure: it mutates a model.Auction value and tells the
// caller which funds to move. Persisting the auction and executing the
// lock/unlock instructions in one transaction is the listing engine's job.
//
// Invariant: at most one bidder holds a lock at a time, the current highest.
// A displaced bidder's funds are released the moment a higher bid lands.

// Refund is an unlock instruction for one bidder.
type Refund struct {
	Bidder string
	Amount int64
}

// ExtensionPolicy is the anti-snipe rule: a bid landing inside Window of the
// end pushes the end out by Extension, at most Max times.
type ExtensionPolicy struct {
	Window    time.Duration
	Extension time.Duration
	Max       int
}

// BidResult tells the engine what the accepted bid changed.
type BidResult struct {
	Refunds  []Refund // locks to release before locking the new bid
	Extended bool
	EndTime  time.Time
}

// PlaceBid validates and applies a bid. startingPrice is the listing price,
// the floor for the first bid.
func PlaceBid(a *model.Auction, seller, bidder string, amount, startingPrice int64, now time.Time, pol ExtensionPolicy) (BidResult, error) {
	if a.Status != model.AuctionActive {
		return BidResult{}, fmt.Errorf("%w: auction is %s", model.ErrInvalidState, a.Status)
	}
	if now.Before(a.StartTime) {
		return BidResult{}, fmt.Errorf("%w: auction has not started", model.ErrTiming)
	}
	if !now.Before(a.EndTime) {
		return BidResult{}, fmt.Errorf("%w: auction has ended", model.ErrTiming)
	}
	if bidder == seller {
		return BidResult{}, fmt.Errorf("%w: seller cannot bid", model.ErrUnauthorized)
	}
	minBid := startingPrice
	if a.HighestBidder != "" {
		minBid = a.HighestBid + a.MinIncrement
	}
	if amount < minBid || amount <= a.HighestBid {
		return BidResult{}, fmt.Errorf("%w: bid %d below minimum %d", model.ErrInvalidState, amount, minBid)
	}

	var res BidResult
	if a.HighestBidder != "" {
		// Either the bidder raising their own bid or a displaced rival;
		// one lock is outstanding either way.
		res.Refunds = append(res.Refunds, Refund{Bidder: a.HighestBidder, Amount: a.HighestBid})
	}

	if a.Bids == nil {
		a.Bids = make(map[string]int64)
	}
	if _, seen := a.Bids[bidder]; !seen {
		a.Bidders = append(a.Bidders, bidder)
	}
	a.Bids[bidder] = amount
	a.HighestBidder = bidder
	a.HighestBid = amount

	if a.EndTime.Sub(now) < pol.Window && a.ExtensionCount < pol.Max {
		a.EndTime = a.EndTime.Add(pol.Extension)
		a.ExtensionCount++
		res.Extended = true
	}
	res.EndTime = a.EndTime
	return res, nil
}

// SettleResult is the outcome of a finished auction. Winner is empty when the
// auction ends without a sale (no bids, or reserve not met).
type SettleResult struct {
	Winner  string
	Amount  int64
	Refunds []Refund
}

// Settle closes an expired auction. Callable by anyone once the end time has
// passed; the engine's serialization guarantees it runs at most once.
func Settle(a *model.Auction, now time.Time) (SettleResult, error) {
	if a.Status != model.AuctionActive {
		return SettleResult{}, fmt.Errorf("%w: auction is %s", model.ErrInvalidState, a.Status)
	}
	if now.Before(a.EndTime) {
		return SettleResult{}, fmt.Errorf("%w: auction ends at %s", model.ErrTiming, a.EndTime.UTC().Format(time.RFC3339))
	}
	a.Status = model.AuctionEnded

	if a.HighestBidder == "" || a.HighestBid < a.ReservePrice {
		var res SettleResult
		if a.HighestBidder != "" {
			res.Refunds = append(res.Refunds, Refund{Bidder: a.HighestBidder, Amount: a.HighestBid})
		}
		a.HighestBidder = ""
		a.HighestBid = 0
		return res, nil
	}
	return SettleResult{Winner: a.HighestBidder, Amount: a.HighestBid}, nil
}

// Cancel aborts an auction before settlement, releasing the outstanding lock.
func Cancel(a *model.Auction) ([]Refund, error) {
	if a.Status != model.AuctionActive {
		return nil, fmt.Errorf("%w: auction is %s", model.ErrInvalidState, a.Status)
	}
	var refunds []Refund
	if a.HighestBidder != "" {
		refunds = append(refunds, Refund{Bidder: a.HighestBidder, Amount: a.HighestBid})
	}
	a.Status = model.AuctionCancelled
	a.HighestBidder = ""
	a.HighestBid = 0
	return refunds, nil
}
