package ticket

import (
	"context"
	"fmt"
	"sync"

	"ticket-exchange/internal/db"
	"ticket-exchange/internal/model"
)

// Directory is the marketplace's view of the issuance side: who owns a token,
// whether it may transfer, and the per-event policy (start time, cancellation,
// royalty, reference price). Lookups are fallible; callers decide which
// failures abort and which degrade.
type Directory interface {
	Ticket(ctx context.Context, contract string, tokenID int64) (*model.Ticket, error)
	Event(ctx context.Context, eventID string) (*model.TicketEvent, error)
	// RoyaltyInfo resolves the event's royalty policy for a sale.
	RoyaltyInfo(ctx context.Context, eventID string) (recipient string, bps int64, err error)
	// ReferencePrice is the mint-price baseline for a never-resold token.
	// Zero when no baseline is known.
	ReferencePrice(ctx context.Context, contract string, tokenID int64) (int64, error)
	// TrackMarketplaceUsage flags the token as having traded here. Best
	// effort on the caller's side.
	TrackMarketplaceUsage(ctx context.Context, contract string, tokenID int64) error
}

// StoreDirectory reads the issuance tables the deployment seeds alongside the
// marketplace schema.
type StoreDirectory struct{ Store *db.Store }

func NewStoreDirectory(store *db.Store) *StoreDirectory {
	return &StoreDirectory{Store: store}
}

func (d *StoreDirectory) Ticket(ctx context.Context, contract string, tokenID int64) (*model.Ticket, error) {
	return d.Store.GetTicket(ctx, contract, tokenID)
}

func (d *StoreDirectory) Event(ctx context.Context, eventID string) (*model.TicketEvent, error) {
	return d.Store.GetTicketEvent(ctx, eventID)
}

func (d *StoreDirectory) RoyaltyInfo(ctx context.Context, eventID string) (string, int64, error) {
	ev, err := d.Store.GetTicketEvent(ctx, eventID)
	if err != nil {
		return "", 0, err
	}
	if ev == nil {
		return "", 0, fmt.Errorf("%w: event %s", model.ErrNotFound, eventID)
	}
	return ev.RoyaltyRecipient, ev.RoyaltyBps, nil
}

func (d *StoreDirectory) ReferencePrice(ctx context.Context, contract string, tokenID int64) (int64, error) {
	t, err := d.Store.GetTicket(ctx, contract, tokenID)
	if err != nil {
		return 0, err
	}
	if t != nil && t.PricePaid > 0 {
		return t.PricePaid, nil
	}
	if t != nil {
		ev, err := d.Store.GetTicketEvent(ctx, t.EventID)
		if err != nil {
			return 0, err
		}
		if ev != nil {
			return ev.BaseReferencePrice, nil
		}
	}
	return 0, nil
}

func (d *StoreDirectory) TrackMarketplaceUsage(ctx context.Context, contract string, tokenID int64) error {
	return d.Store.MarkMarketplaceUsed(ctx, contract, tokenID)
}

// ── In-memory directory (tests) ──────────────────────

type Memory struct {
	mu      sync.Mutex
	Tickets map[string]*model.Ticket
	Events  map[string]*model.TicketEvent
	// Fail makes every lookup error, for exercising degraded paths.
	Fail bool
}

func NewMemory() *Memory {
	return &Memory{
		Tickets: make(map[string]*model.Ticket),
		Events:  make(map[string]*model.TicketEvent),
	}
}

func (m *Memory) Ticket(_ context.Context, contract string, tokenID int64) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return nil, fmt.Errorf("directory unavailable")
	}
	return m.Tickets[model.ListingKey(contract, tokenID)], nil
}

func (m *Memory) Event(_ context.Context, eventID string) (*model.TicketEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return nil, fmt.Errorf("directory unavailable")
	}
	return m.Events[eventID], nil
}

func (m *Memory) RoyaltyInfo(ctx context.Context, eventID string) (string, int64, error) {
	ev, err := m.Event(ctx, eventID)
	if err != nil {
		return "", 0, err
	}
	if ev == nil {
		return "", 0, fmt.Errorf("%w: event %s", model.ErrNotFound, eventID)
	}
	return ev.RoyaltyRecipient, ev.RoyaltyBps, nil
}

func (m *Memory) ReferencePrice(ctx context.Context, contract string, tokenID int64) (int64, error) {
	t, err := m.Ticket(ctx, contract, tokenID)
	if err != nil || t == nil {
		return 0, err
	}
	if t.PricePaid > 0 {
		return t.PricePaid, nil
	}
	ev, err := m.Event(ctx, t.EventID)
	if err != nil || ev == nil {
		return 0, err
	}
	return ev.BaseReferencePrice, nil
}

func (m *Memory) TrackMarketplaceUsage(_ context.Context, contract string, tokenID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return fmt.Errorf("directory unavailable")
	}
	if t, ok := m.Tickets[model.ListingKey(contract, tokenID)]; ok {
		t.MarketplaceUsed = true
	}
	return nil
}
