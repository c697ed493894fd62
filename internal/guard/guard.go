package guard

import (
	"fmt"
	"time"

	"ticket-exchange/internal/model"
)

// Guard enforces the anti-gouging rules on new listings: a price ceiling
// relative to the item's last sale (or its reference mint price when it has
// never resold) and a cooldown after each sale.
type Guard struct {
	MaxIncreaseBps int64
	Cooldown       time.Duration
}

func New(maxIncreaseBps int64, cooldown time.Duration) *Guard {
	return &Guard{MaxIncreaseBps: maxIncreaseBps, Cooldown: cooldown}
}

// LastSale is what the registry knows about the most recent sale of a key.
// Found is false for an item that has never traded here.
type LastSale struct {
	Price int64
	At    time.Time
	Found bool
}

// CheckPrice validates price against the cap. referencePrice is the mint
// price from the ticket directory, zero when unknown; an item with no sale
// history and no known reference is uncapped.
func (g *Guard) CheckPrice(price int64, last LastSale, referencePrice int64) error {
	if price <= 0 {
		return fmt.Errorf("%w: listing price must be positive", model.ErrInvalidState)
	}
	base := referencePrice
	if last.Found {
		base = last.Price
	}
	if base <= 0 {
		return nil
	}
	if max := model.MaxListingPrice(base, g.MaxIncreaseBps); price > max {
		return fmt.Errorf("%w: price %d exceeds cap %d (base %d +%dbp)",
			model.ErrLimitExceeded, price, max, base, g.MaxIncreaseBps)
	}
	return nil
}

// CheckCooldown rejects a relisting too soon after the key's last sale.
func (g *Guard) CheckCooldown(now time.Time, last LastSale) error {
	if !last.Found {
		return nil
	}
	next := last.At.Add(g.Cooldown)
	if now.Before(next) {
		return fmt.Errorf("%w: resale cooldown until %s", model.ErrTiming, next.UTC().Format(time.RFC3339))
	}
	return nil
}

// Check runs both rules in order: price cap first, then cooldown.
func (g *Guard) Check(now time.Time, price int64, last LastSale, referencePrice int64) error {
	if err := g.CheckPrice(price, last, referencePrice); err != nil {
		return err
	}
	return g.CheckCooldown(now, last)
}
