package refund

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	minted = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	// Event starts 10 days after minting.
	start = minted.Add(240 * time.Hour)
)

func TestCancelledEventRefundsInFull(t *testing.T) {
	c := NewCalculator()
	// Even after the event started.
	require.EqualValues(t, 10000, c.Bps(minted, start, start.Add(time.Hour), true))
}

func TestFullRefundWithinFirstHour(t *testing.T) {
	c := NewCalculator()
	require.EqualValues(t, 10000, c.Bps(minted, start, minted.Add(30*time.Minute), false))
	require.EqualValues(t, 10000, c.Bps(minted, start, minted.Add(time.Hour), false))
}

func TestNoRefundAtOrAfterEventStart(t *testing.T) {
	c := NewCalculator()
	require.Zero(t, c.Bps(minted, start, start, false))
	require.Zero(t, c.Bps(minted, start, start.Add(time.Minute), false))
}

func TestNoRefundInsideSecondHalfOfWindow(t *testing.T) {
	c := NewCalculator()
	half := minted.Add(120 * time.Hour)
	require.Zero(t, c.Bps(minted, start, half, false))
	require.Zero(t, c.Bps(minted, start, half.Add(time.Hour), false))
}

func TestLinearDecayMidpoint(t *testing.T) {
	c := NewCalculator()
	// Decay runs from minted+1h to minted+120h; its midpoint refunds half.
	mid := minted.Add(time.Hour).Add((119 * time.Hour) / 2)
	bps := c.Bps(minted, start, mid, false)
	require.InDelta(t, 5000, bps, 1)
}

func TestDecayMonotoneNonIncreasing(t *testing.T) {
	c := NewCalculator()
	prev := int64(10000)
	for at := minted; at.Before(start.Add(time.Hour)); at = at.Add(37 * time.Minute) {
		bps := c.Bps(minted, start, at, false)
		require.LessOrEqual(t, bps, prev, "refund rose at %s", at)
		require.GreaterOrEqual(t, bps, int64(0))
		require.LessOrEqual(t, bps, int64(10000))
		prev = bps
	}
}

func TestDegenerateSchedules(t *testing.T) {
	c := NewCalculator()
	// Event starts before (or at) minting: nothing refundable after the
	// first hour, full refund inside it.
	require.EqualValues(t, 10000, c.Bps(minted, minted, minted.Add(time.Minute), false))
	require.Zero(t, c.Bps(minted, minted.Add(-time.Hour), minted.Add(2*time.Hour), false))
	// Start only 90 minutes out: the halfway cutoff precedes the end of the
	// full-refund hour.
	closeStart := minted.Add(90 * time.Minute)
	require.Zero(t, c.Bps(minted, closeStart, minted.Add(70*time.Minute), false))
}

func TestAmount(t *testing.T) {
	require.EqualValues(t, 10000, Amount(10000, 10000))
	require.EqualValues(t, 5000, Amount(10000, 5000))
	require.EqualValues(t, 0, Amount(10000, 0))
	// Rounds down.
	require.EqualValues(t, 33, Amount(100, 3333))
}
