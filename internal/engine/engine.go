package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ticket-exchange/internal/db"
	"ticket-exchange/internal/escrow"
	"ticket-exchange/internal/guard"
	"ticket-exchange/internal/ledger"
	"ticket-exchange/internal/model"
	"ticket-exchange/internal/monitoring"
	"ticket-exchange/internal/ticket"
	"ticket-exchange/internal/verify"
)

// PublishFunc broadcasts a WS message for a listing.
type PublishFunc func(listingKey, msgType string, data any)

// ── Manager ──────────────────────────────────────────

type Manager struct {
	engines map[string]*ListingEngine
	mu      sync.RWMutex
	store   *db.Store
	guard   *guard.Guard
	vault   *escrow.Vault
	dir     ticket.Directory
	gate    verify.Gate
	publish PublishFunc
	policy  ExtensionPolicy
	log     *zap.SugaredLogger
}

func NewManager(store *db.Store, g *guard.Guard, vault *escrow.Vault, dir ticket.Directory,
	gate verify.Gate, pub PublishFunc, policy ExtensionPolicy, log *zap.SugaredLogger) *Manager {
	return &Manager{
		engines: make(map[string]*ListingEngine),
		store:   store,
		guard:   g,
		vault:   vault,
		dir:     dir,
		gate:    gate,
		publish: pub,
		policy:  policy,
		log:     log.Named("engine"),
	}
}

// Boot restarts an engine for every active listing.
func (m *Manager) Boot(ctx context.Context) error {
	listings, err := m.store.ListActiveListings(ctx)
	if err != nil {
		return err
	}
	for i := range listings {
		l := &listings[i]
		if err := m.startEngine(ctx, l); err != nil {
			return fmt.Errorf("boot %s: %w", l.Key(), err)
		}
	}
	monitoring.SetActiveListings(len(listings))
	m.log.Infow("booted listing engines", "count", len(listings))
	return nil
}

func (m *Manager) startEngine(ctx context.Context, l *model.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.engines[l.Key()]; ok {
		return nil
	}
	eng, err := newListingEngine(ctx, l, m)
	if err != nil {
		return err
	}
	m.engines[l.Key()] = eng
	// Background context so the engine outlives the HTTP request that created it.
	go eng.run(context.Background())
	return nil
}

func (m *Manager) Engine(contract string, tokenID int64) *ListingEngine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.engines[model.ListingKey(contract, tokenID)]
}

func (m *Manager) dropEngine(key string) {
	m.mu.Lock()
	delete(m.engines, key)
	m.mu.Unlock()
}

// CreateListingReq carries both fixed-price and auction parameters; the
// auction fields are ignored for fixed-price listings.
type CreateListingReq struct {
	TokenContract string         `json:"token_contract"`
	TokenID       int64          `json:"token_id"`
	Price         int64          `json:"price"`
	SaleType      model.SaleType `json:"sale_type"`
	ReservePrice  int64          `json:"reserve_price"`
	MinIncrement  int64          `json:"min_bid_increment"`
	Duration      time.Duration  `json:"-"`
	DurationSecs  int64          `json:"duration_seconds"`
}

// CreateListing validates ownership, transfer approval and the price guard,
// persists the listing (and auction) and starts its engine.
func (m *Manager) CreateListing(ctx context.Context, seller string, req CreateListingReq) (*model.Listing, error) {
	if req.SaleType != model.SaleFixedPrice && req.SaleType != model.SaleAuction {
		return nil, fmt.Errorf("%w: unknown sale type %q", model.ErrInvalidState, req.SaleType)
	}
	tk, err := m.dir.Ticket(ctx, req.TokenContract, req.TokenID)
	if err != nil {
		return nil, fmt.Errorf("ticket lookup: %w", err)
	}
	if tk == nil {
		return nil, fmt.Errorf("%w: ticket %s", model.ErrNotFound, model.ListingKey(req.TokenContract, req.TokenID))
	}
	if tk.Owner != seller {
		return nil, fmt.Errorf("%w: not the ticket owner", model.ErrUnauthorized)
	}
	if !tk.Approved {
		return nil, fmt.Errorf("%w: marketplace not approved for this ticket", model.ErrUnauthorized)
	}
	if tk.IsUsed || !tk.IsTransferable {
		return nil, fmt.Errorf("%w: ticket cannot transfer", model.ErrInvalidState)
	}

	// Fast path; InsertListing enforces this again under the row lock.
	existing, err := m.store.GetListing(ctx, req.TokenContract, req.TokenID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Active {
		return nil, fmt.Errorf("%w: already listed", model.ErrInvalidState)
	}

	now := time.Now()
	last := guard.LastSale{}
	if sale, err := m.store.LastSale(ctx, req.TokenContract, req.TokenID); err != nil {
		return nil, err
	} else if sale != nil {
		last = guard.LastSale{Price: sale.Price, At: sale.SoldAt, Found: true}
	}
	ref, err := m.dir.ReferencePrice(ctx, req.TokenContract, req.TokenID)
	if err != nil {
		return nil, err
	}
	if err := m.guard.Check(now, req.Price, last, ref); err != nil {
		return nil, err
	}

	l := &model.Listing{
		TokenContract: req.TokenContract,
		TokenID:       req.TokenID,
		EventID:       tk.EventID,
		Seller:        seller,
		Price:         req.Price,
		SaleType:      req.SaleType,
		Active:        true,
		ListedAt:      now,
	}

	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := db.InsertListing(tx, l); err != nil {
		return nil, err
	}
	if req.SaleType == model.SaleAuction {
		dur := req.Duration
		if dur <= 0 {
			dur = time.Duration(req.DurationSecs) * time.Second
		}
		if dur <= 0 {
			return nil, fmt.Errorf("%w: auction duration must be positive", model.ErrInvalidState)
		}
		a := &model.Auction{
			TokenContract: req.TokenContract,
			TokenID:       req.TokenID,
			StartTime:     now,
			EndTime:       now.Add(dur),
			ReservePrice:  req.ReservePrice,
			MinIncrement:  req.MinIncrement,
			Status:        model.AuctionActive,
			Bids:          make(map[string]int64),
		}
		if err := db.UpsertAuction(tx, a); err != nil {
			return nil, err
		}
	}
	key := l.Key()
	if err := db.AppendEvent(tx, &key, "ListingCreated", map[string]any{
		"seller": seller, "price": req.Price, "sale_type": req.SaleType,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if err := m.startEngine(ctx, l); err != nil {
		return nil, err
	}
	monitoring.ListingOpened()
	if m.publish != nil {
		m.publish(key, "listing_created", l)
	}
	m.log.Infow("listing created", "key", key, "seller", seller, "type", req.SaleType, "price", req.Price)
	return l, nil
}

// ── ListingEngine ────────────────────────────────────

// ListingEngine serializes every state change for one (contract,token) key
// through a single goroutine, so a bid, buy, settle or cancel can never
// interleave with another.
type ListingEngine struct {
	key      string
	contract string
	tokenID  int64
	listing  *model.Listing
	auction  *model.Auction // nil for fixed-price listings
	cmdCh    chan command
	done     chan struct{}
	stop     bool // set by the engine goroutine once the listing closes
	m        *Manager
}

func newListingEngine(ctx context.Context, l *model.Listing, m *Manager) (*ListingEngine, error) {
	e := &ListingEngine{
		key:      l.Key(),
		contract: l.TokenContract,
		tokenID:  l.TokenID,
		listing:  l,
		cmdCh:    make(chan command, 16),
		done:     make(chan struct{}),
		m:        m,
	}
	if l.SaleType == model.SaleAuction {
		a, err := m.store.GetAuction(ctx, l.TokenContract, l.TokenID)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return nil, fmt.Errorf("auction row missing for %s", e.key)
		}
		e.auction = a
	}
	return e, nil
}

func (e *ListingEngine) run(ctx context.Context) {
	defer e.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.cmdCh:
			cmd.exec(e)
			if e.stop {
				return
			}
		}
	}
}

// shutdown fails whatever is still queued, then signals waiters. The close
// comes after the drain, so every command accepted before the drain finished
// has its reply buffered by the time done is observable.
func (e *ListingEngine) shutdown() {
	for {
		select {
		case cmd := <-e.cmdCh:
			cmd.fail(errListingClosed())
		default:
			close(e.done)
			return
		}
	}
}

func errListingClosed() error {
	return fmt.Errorf("%w: listing closed", model.ErrNotFound)
}

// ── Commands ─────────────────────────────────────────

type command interface {
	exec(e *ListingEngine)
	fail(err error)
}

type buyCmd struct {
	buyer string
	ch    chan<- buyResult
}

type bidCmd struct {
	bidder string
	amount int64
	ch     chan<- error
}

type settleCmd struct {
	ch chan<- settleResultErr
}

type cancelCmd struct {
	caller string
	ch     chan<- error
}

type buyResult struct {
	sale *model.Sale
	err  error
}

type settleResultErr struct {
	res SettleResult
	err error
}

func (c buyCmd) exec(e *ListingEngine)    { c.ch <- e.buy(c.buyer) }
func (c bidCmd) exec(e *ListingEngine)    { c.ch <- e.bid(c.bidder, c.amount) }
func (c settleCmd) exec(e *ListingEngine) { c.ch <- e.settle() }
func (c cancelCmd) exec(e *ListingEngine) { c.ch <- e.cancel(c.caller) }

func (c buyCmd) fail(err error)    { c.ch <- buyResult{err: err} }
func (c bidCmd) fail(err error)    { c.ch <- err }
func (c settleCmd) fail(err error) { c.ch <- settleResultErr{err: err} }
func (c cancelCmd) fail(err error) { c.ch <- err }

// submit hands a command to the engine goroutine. A false return means the
// engine is gone and no reply will come.
func (e *ListingEngine) submit(cmd command) bool {
	select {
	case <-e.done:
		return false
	default:
	}
	select {
	case e.cmdCh <- cmd:
		return true
	case <-e.done:
		return false
	}
}

// awaitDone pairs with submit: once done is closed every accepted command has
// its reply buffered, so a final non-blocking read settles the race between
// the reply and the shutdown the command itself may have triggered.
func awaitDone[T any](e *ListingEngine, ch <-chan T, closed T) T {
	select {
	case r := <-ch:
		return r
	case <-e.done:
		select {
		case r := <-ch:
			return r
		default:
			return closed
		}
	}
}

// Buy sends a fixed-price purchase to the listing goroutine and waits.
func (e *ListingEngine) Buy(buyer string) (*model.Sale, error) {
	ch := make(chan buyResult, 1)
	if !e.submit(buyCmd{buyer: buyer, ch: ch}) {
		return nil, errListingClosed()
	}
	r := awaitDone(e, ch, buyResult{err: errListingClosed()})
	return r.sale, r.err
}

func (e *ListingEngine) PlaceBid(bidder string, amount int64) error {
	ch := make(chan error, 1)
	if !e.submit(bidCmd{bidder: bidder, amount: amount, ch: ch}) {
		return errListingClosed()
	}
	return awaitDone(e, ch, errListingClosed())
}

func (e *ListingEngine) Settle() (SettleResult, error) {
	ch := make(chan settleResultErr, 1)
	if !e.submit(settleCmd{ch: ch}) {
		return SettleResult{}, errListingClosed()
	}
	r := awaitDone(e, ch, settleResultErr{err: errListingClosed()})
	return r.res, r.err
}

func (e *ListingEngine) Cancel(caller string) error {
	ch := make(chan error, 1)
	if !e.submit(cancelCmd{caller: caller, ch: ch}) {
		return errListingClosed()
	}
	return awaitDone(e, ch, errListingClosed())
}

// ── Fixed-price buy ──────────────────────────────────

func (e *ListingEngine) buy(buyer string) buyResult {
	ctx := context.Background()
	l := e.listing
	if !l.Active || l.SaleType != model.SaleFixedPrice {
		return buyResult{err: fmt.Errorf("%w: not an active fixed-price listing", model.ErrInvalidState)}
	}
	if buyer == l.Seller {
		return buyResult{err: fmt.Errorf("%w: seller cannot buy own listing", model.ErrUnauthorized)}
	}
	if err := verify.RequireVerified(ctx, e.m.gate, buyer); err != nil {
		return buyResult{err: err}
	}

	tx, err := e.m.store.BeginTx(ctx)
	if err != nil {
		return buyResult{err: err}
	}
	defer tx.Rollback()

	if err := ledger.SpendAvailableTx(tx, buyer, l.EventID, l.Price); err != nil {
		return buyResult{err: err}
	}
	split, err := e.m.vault.DistributeTx(ctx, tx, l.EventID, l.Seller, l.Price)
	if err != nil {
		return buyResult{err: err}
	}
	if err := db.SetTicketOwner(tx, e.contract, e.tokenID, buyer); err != nil {
		return buyResult{err: err}
	}
	if err := db.SetListingActive(tx, e.contract, e.tokenID, false); err != nil {
		return buyResult{err: err}
	}
	sale := &model.Sale{
		ID:            uuid.NewString(),
		TokenContract: e.contract,
		TokenID:       e.tokenID,
		EventID:       l.EventID,
		Seller:        l.Seller,
		Buyer:         buyer,
		Price:         l.Price,
		SaleType:      model.SaleFixedPrice,
		SoldAt:        time.Now(),
	}
	if err := db.InsertSale(tx, sale); err != nil {
		return buyResult{err: err}
	}
	if err := db.AppendEvent(tx, &e.key, "ListingSold", map[string]any{
		"buyer": buyer, "price": l.Price, "split": split,
	}); err != nil {
		return buyResult{err: err}
	}
	if err := tx.Commit(); err != nil {
		return buyResult{err: err}
	}

	l.Active = false
	e.afterSale(ctx, sale)
	return buyResult{sale: sale}
}

// ── Auction ops ──────────────────────────────────────

func (e *ListingEngine) bid(bidder string, amount int64) error {
	ctx := context.Background()
	l := e.listing
	if !l.Active || l.SaleType != model.SaleAuction {
		return fmt.Errorf("%w: not an active auction", model.ErrInvalidState)
	}
	if err := verify.RequireVerified(ctx, e.m.gate, bidder); err != nil {
		monitoring.TrackBid("rejected")
		return err
	}

	next := snapshotAuction(e.auction)
	res, err := PlaceBid(next, l.Seller, bidder, amount, l.Price, time.Now(), e.m.policy)
	if err != nil {
		monitoring.TrackBid("rejected")
		return err
	}

	tx, err := e.m.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range res.Refunds {
		if err := ledger.UnlockTx(tx, r.Bidder, l.EventID, r.Amount); err != nil {
			return err
		}
	}
	if err := ledger.LockTx(tx, bidder, l.EventID, amount); err != nil {
		return err
	}
	if err := db.UpsertAuction(tx, next); err != nil {
		return err
	}
	if err := db.UpsertAuctionBid(tx, e.contract, e.tokenID, bidder, amount); err != nil {
		return err
	}
	if err := db.AppendEvent(tx, &e.key, "BidAccepted", map[string]any{
		"bidder": bidder, "amount": amount, "end_time": res.EndTime,
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	e.auction = next
	monitoring.TrackBid("accepted")
	if e.m.publish != nil {
		e.m.publish(e.key, "bid_accepted", map[string]any{
			"bidder": bidder, "amount": amount, "end_time": res.EndTime,
		})
		if res.Extended {
			e.m.publish(e.key, "auction_extended", map[string]any{"end_time": res.EndTime})
		}
	}
	return nil
}

func (e *ListingEngine) settle() settleResultErr {
	ctx := context.Background()
	l := e.listing
	if !l.Active || l.SaleType != model.SaleAuction {
		return settleResultErr{err: fmt.Errorf("%w: not an active auction", model.ErrInvalidState)}
	}

	next := snapshotAuction(e.auction)
	res, err := Settle(next, time.Now())
	if err != nil {
		return settleResultErr{err: err}
	}

	tx, err := e.m.store.BeginTx(ctx)
	if err != nil {
		return settleResultErr{err: err}
	}
	defer tx.Rollback()

	for _, r := range res.Refunds {
		if err := ledger.UnlockTx(tx, r.Bidder, l.EventID, r.Amount); err != nil {
			return settleResultErr{err: err}
		}
	}

	var sale *model.Sale
	if res.Winner != "" {
		if err := ledger.SpendLockedTx(tx, res.Winner, l.EventID, res.Amount); err != nil {
			return settleResultErr{err: err}
		}
		split, err := e.m.vault.DistributeTx(ctx, tx, l.EventID, l.Seller, res.Amount)
		if err != nil {
			return settleResultErr{err: err}
		}
		if err := db.SetTicketOwner(tx, e.contract, e.tokenID, res.Winner); err != nil {
			return settleResultErr{err: err}
		}
		sale = &model.Sale{
			ID:            uuid.NewString(),
			TokenContract: e.contract,
			TokenID:       e.tokenID,
			EventID:       l.EventID,
			Seller:        l.Seller,
			Buyer:         res.Winner,
			Price:         res.Amount,
			SaleType:      model.SaleAuction,
			SoldAt:        time.Now(),
		}
		if err := db.InsertSale(tx, sale); err != nil {
			return settleResultErr{err: err}
		}
		if err := db.AppendEvent(tx, &e.key, "AuctionSettled", map[string]any{
			"winner": res.Winner, "amount": res.Amount, "split": split,
		}); err != nil {
			return settleResultErr{err: err}
		}
	} else {
		if err := db.AppendEvent(tx, &e.key, "AuctionSettled", map[string]any{
			"winner": "", "reason": "no sale",
		}); err != nil {
			return settleResultErr{err: err}
		}
	}
	if err := db.UpsertAuction(tx, next); err != nil {
		return settleResultErr{err: err}
	}
	if err := db.SetListingActive(tx, e.contract, e.tokenID, false); err != nil {
		return settleResultErr{err: err}
	}
	if err := tx.Commit(); err != nil {
		return settleResultErr{err: err}
	}

	e.auction = next
	l.Active = false
	if res.Winner != "" {
		monitoring.TrackSettlement("sold")
		e.afterSale(ctx, sale)
	} else {
		monitoring.TrackSettlement("no_sale")
		monitoring.ListingClosed()
		if e.m.publish != nil {
			e.m.publish(e.key, "auction_settled", map[string]any{"winner": ""})
		}
	}
	e.close()
	return settleResultErr{res: res}
}

func (e *ListingEngine) cancel(caller string) error {
	ctx := context.Background()
	l := e.listing
	if !l.Active {
		return fmt.Errorf("%w: listing not active", model.ErrInvalidState)
	}
	if caller != l.Seller {
		return fmt.Errorf("%w: only the seller can cancel", model.ErrUnauthorized)
	}

	tx, err := e.m.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next *model.Auction
	if l.SaleType == model.SaleAuction {
		next = snapshotAuction(e.auction)
		refunds, err := Cancel(next)
		if err != nil {
			return err
		}
		for _, r := range refunds {
			if err := ledger.UnlockTx(tx, r.Bidder, l.EventID, r.Amount); err != nil {
				return err
			}
		}
		if err := db.UpsertAuction(tx, next); err != nil {
			return err
		}
	}
	if err := db.SetListingActive(tx, e.contract, e.tokenID, false); err != nil {
		return err
	}
	if err := db.AppendEvent(tx, &e.key, "ListingCancelled", map[string]any{"seller": caller}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if next != nil {
		e.auction = next
	}
	l.Active = false
	monitoring.ListingClosed()
	if e.m.publish != nil {
		e.m.publish(e.key, "listing_cancelled", map[string]any{"seller": caller})
	}
	e.close()
	return nil
}

// afterSale runs the best-effort follow-ups common to both sale paths.
func (e *ListingEngine) afterSale(ctx context.Context, sale *model.Sale) {
	monitoring.TrackSale(string(sale.SaleType))
	monitoring.ListingClosed()
	// Resale tracking gates the refund path; a failed notification must not
	// undo the sale.
	if err := e.m.dir.TrackMarketplaceUsage(ctx, e.contract, e.tokenID); err != nil {
		e.m.log.Warnw("marketplace-usage tracking failed", "key", e.key, "err", err)
	}
	if e.m.publish != nil {
		e.m.publish(e.key, "sale", sale)
	}
	if sale.SaleType == model.SaleFixedPrice {
		e.close()
	}
}

// close retires the engine. Runs on the engine goroutine; run exits (and
// fails any queued commands) once the current command finishes.
func (e *ListingEngine) close() {
	e.stop = true
	e.m.dropEngine(e.key)
}

// snapshotAuction copies the auction so a failed transaction leaves the
// in-memory state untouched.
func snapshotAuction(a *model.Auction) *model.Auction {
	next := *a
	next.Bids = make(map[string]int64, len(a.Bids))
	for k, v := range a.Bids {
		next.Bids[k] = v
	}
	next.Bidders = append([]string(nil), a.Bidders...)
	return &next
}
