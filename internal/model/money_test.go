package model

import (
	"errors"
	"testing"
)

func TestSplitProceedsConservation(t *testing.T) {
	cases := []struct {
		price, royaltyBps, platformBps int64
	}{
		{10000, 500, 250},
		{9999, 333, 250},
		{1, 500, 250},
		{777, 0, 0},
		{123457, 1000, 100},
	}
	for _, tc := range cases {
		d, err := SplitProceeds(tc.price, tc.royaltyBps, tc.platformBps)
		if err != nil {
			t.Fatalf("SplitProceeds(%d,%d,%d): %v", tc.price, tc.royaltyBps, tc.platformBps, err)
		}
		if sum := d.SellerAmount + d.RoyaltyAmount + d.PlatformAmount; sum != tc.price {
			t.Fatalf("split of %d sums to %d", tc.price, sum)
		}
		if d.SellerAmount < 0 || d.RoyaltyAmount < 0 || d.PlatformAmount < 0 {
			t.Fatalf("negative component in %+v", d)
		}
	}
}

func TestSplitProceedsRoyaltyCappedBelowPrice(t *testing.T) {
	d, err := SplitProceeds(100, 20000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.RoyaltyAmount != 99 {
		t.Fatalf("expected royalty capped at 99, got %d", d.RoyaltyAmount)
	}
	if d.SellerAmount != 1 {
		t.Fatalf("expected seller remainder 1, got %d", d.SellerAmount)
	}
}

func TestSplitProceedsOverflow(t *testing.T) {
	// Capped royalty (price-1) plus any platform fee exceeds the price.
	_, err := SplitProceeds(100, 20000, 250)
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestSplitProceedsRejectsZeroPrice(t *testing.T) {
	if _, err := SplitProceeds(0, 500, 250); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestSplitPrimary(t *testing.T) {
	org, plat, err := SplitPrimary(10000, 9000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org != 9000 || plat != 1000 {
		t.Fatalf("expected 9000/1000, got %d/%d", org, plat)
	}
	if _, _, err := SplitPrimary(100, 10001); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow for share > 100%%, got %v", err)
	}
}

func TestMaxListingPrice(t *testing.T) {
	if got := MaxListingPrice(10000, 2000); got != 12000 {
		t.Fatalf("expected 12000, got %d", got)
	}
	if got := MaxListingPrice(99, 2000); got != 118 {
		t.Fatalf("expected 118, got %d", got)
	}
}
