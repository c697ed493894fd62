// Package refund prices primary-ticket refunds on a time-decay schedule and
// executes them against the ledger.
package refund

import (
	"time"

	"github.com/shopspring/decimal"

	"ticket-exchange/internal/model"
)

// Calculator computes the refundable fraction of a ticket's mint price, in
// basis points. The fraction is monotone non-increasing in now.
type Calculator struct {
	// FullWindow after minting during which the refund is 100%.
	FullWindow time.Duration
}

func NewCalculator() Calculator {
	return Calculator{FullWindow: time.Hour}
}

var tenThousand = decimal.NewFromInt(model.BpsDenominator)

// Bps returns the refund fraction for a ticket minted at mintedAt for an
// event starting at eventStart, evaluated at now.
//
// Cancelled events refund in full regardless of timing. Otherwise: full
// refund within FullWindow of minting, nothing at or after the event start,
// nothing once less than half the mint-to-start window remains, and a linear
// decay from 100% to 0% in between.
func (c Calculator) Bps(mintedAt, eventStart, now time.Time, cancelled bool) int64 {
	if cancelled {
		return model.BpsDenominator
	}
	if !now.After(mintedAt.Add(c.FullWindow)) {
		return model.BpsDenominator
	}
	if !now.Before(eventStart) {
		return 0
	}
	totalWindow := eventStart.Sub(mintedAt)
	if totalWindow <= 0 {
		return 0
	}
	if eventStart.Sub(now) <= totalWindow/2 {
		return 0
	}

	// Linear from 100% at mintedAt+FullWindow down to 0% at the halfway
	// cutoff. Guard against schedules where the cutoff precedes the full
	// window's end.
	decayStart := mintedAt.Add(c.FullWindow)
	decayEnd := mintedAt.Add(totalWindow / 2)
	if !decayEnd.After(decayStart) {
		return 0
	}
	remaining := decimal.NewFromInt(int64(decayEnd.Sub(now)))
	span := decimal.NewFromInt(int64(decayEnd.Sub(decayStart)))
	bps := remaining.Mul(tenThousand).Div(span).IntPart()
	if bps > model.BpsDenominator {
		bps = model.BpsDenominator
	}
	if bps < 0 {
		bps = 0
	}
	return bps
}

// Amount applies a basis-point fraction to a mint price.
func Amount(pricePaid, bps int64) int64 {
	return decimal.NewFromInt(pricePaid).
		Mul(decimal.NewFromInt(bps)).
		Div(tenThousand).
		IntPart()
}
