package model

import "fmt"

// All amounts are integer cents. Percentages are basis points (1/100 of a
// percent), so 10000 bp == 100%.

const BpsDenominator = 10000

// Distribution is the three-way split of one sale.
type Distribution struct {
	SellerAmount   int64 `json:"seller_amount"`
	RoyaltyAmount  int64 `json:"royalty_amount"`
	PlatformAmount int64 `json:"platform_amount"`
}

// SplitProceeds divides price between seller, royalty recipient and platform.
// Royalty is capped below the price; integer rounding remainder stays with the
// seller so the three parts always sum to price exactly.
func SplitProceeds(price, royaltyBps, platformFeeBps int64) (Distribution, error) {
	if price <= 0 {
		return Distribution{}, fmt.Errorf("%w: non-positive price %d", ErrInvalidState, price)
	}
	if royaltyBps < 0 || platformFeeBps < 0 {
		return Distribution{}, fmt.Errorf("%w: negative fee rate", ErrOverflow)
	}

	royalty := price * royaltyBps / BpsDenominator
	if royalty >= price {
		royalty = price - 1
	}
	platform := price * platformFeeBps / BpsDenominator
	if royalty+platform > price {
		return Distribution{}, fmt.Errorf("%w: royalty %d + platform fee %d exceeds price %d",
			ErrOverflow, royalty, platform, price)
	}
	return Distribution{
		SellerAmount:   price - royalty - platform,
		RoyaltyAmount:  royalty,
		PlatformAmount: platform,
	}, nil
}

// SplitPrimary divides a mint payment between the organizer and the platform.
// The remainder after the organizer share belongs to the platform.
func SplitPrimary(value, organizerShareBps int64) (organizer, platform int64, err error) {
	if value <= 0 {
		return 0, 0, fmt.Errorf("%w: non-positive value %d", ErrInvalidState, value)
	}
	if organizerShareBps < 0 || organizerShareBps > BpsDenominator {
		return 0, 0, fmt.Errorf("%w: organizer share %dbp out of range", ErrOverflow, organizerShareBps)
	}
	organizer = value * organizerShareBps / BpsDenominator
	return organizer, value - organizer, nil
}

// MaxListingPrice is the anti-manipulation cap relative to the previous sale
// (or reference mint) price.
func MaxListingPrice(lastPrice, maxIncreaseBps int64) int64 {
	return lastPrice + lastPrice*maxIncreaseBps/BpsDenominator
}
