package refund

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ticket-exchange/internal/db"
	"ticket-exchange/internal/ledger"
	"ticket-exchange/internal/model"
	"ticket-exchange/internal/ticket"
)

// Quote is the preview a holder sees before requesting a refund.
type Quote struct {
	Bps         int64  `json:"bps"`
	Amount      int64  `json:"amount"`
	RefundsUsed int    `json:"refunds_used"`
	RefundsCap  int    `json:"refunds_cap"`
	Eligible    bool   `json:"eligible"`
	Reason      string `json:"reason,omitempty"`
}

type Service struct {
	store *db.Store
	dir   ticket.Directory
	latch *ledger.Latch
	calc  Calculator
	cap   int
	log   *zap.SugaredLogger
}

func NewService(store *db.Store, dir ticket.Directory, latch *ledger.Latch, calc Calculator, refundCap int, log *zap.SugaredLogger) *Service {
	return &Service{store: store, dir: dir, latch: latch, calc: calc, cap: refundCap, log: log.Named("refund")}
}

// Ineligibility reasons, surfaced verbatim in quotes.
const (
	reasonEmergency  = "emergency refund enabled for this event"
	reasonUsed       = "ticket already used"
	reasonResold     = "ticket was resold on the marketplace"
	reasonCapReached = "refund limit reached"
	reasonWindow     = "refund window closed"
)

// rejectionError maps an ineligibility reason onto its sentinel.
func rejectionError(reason string) error {
	switch reason {
	case reasonCapReached:
		return fmt.Errorf("%w: %s", model.ErrLimitExceeded, reason)
	case reasonWindow:
		return fmt.Errorf("%w: %s", model.ErrTiming, reason)
	default:
		return fmt.Errorf("%w: %s", model.ErrInvalidState, reason)
	}
}

// evaluate applies the eligibility rules shared by Quote and Execute.
func (s *Service) evaluate(ctx context.Context, caller, contract string, tokenID int64, now time.Time) (*model.Ticket, *Quote, error) {
	t, err := s.dir.Ticket(ctx, contract, tokenID)
	if err != nil {
		return nil, nil, err
	}
	if t == nil {
		return nil, nil, fmt.Errorf("%w: ticket %s/%d", model.ErrNotFound, contract, tokenID)
	}
	if t.Owner != caller {
		return nil, nil, fmt.Errorf("%w: not the ticket owner", model.ErrUnauthorized)
	}
	ev, err := s.dir.Event(ctx, t.EventID)
	if err != nil {
		return nil, nil, err
	}
	if ev == nil {
		return nil, nil, fmt.Errorf("%w: event %s", model.ErrNotFound, t.EventID)
	}
	used, err := s.store.GetRefundCount(ctx, caller)
	if err != nil {
		return nil, nil, err
	}
	info, err := s.store.GetEventInfo(ctx, t.EventID)
	if err != nil {
		return nil, nil, err
	}

	q := &Quote{RefundsUsed: used, RefundsCap: s.cap}
	switch {
	case info != nil && info.EmergencyRefund:
		q.Reason = reasonEmergency
	case t.IsUsed:
		q.Reason = reasonUsed
	case t.MarketplaceUsed:
		q.Reason = reasonResold
	case used >= s.cap:
		q.Reason = reasonCapReached
	default:
		q.Bps = s.calc.Bps(t.MintedAt, ev.StartTime, now, ev.Cancelled)
		q.Amount = Amount(t.PricePaid, q.Bps)
		if q.Amount > 0 {
			q.Eligible = true
		} else {
			q.Reason = reasonWindow
		}
	}
	return t, q, nil
}

// QuoteRefund previews the refund without changing anything.
func (s *Service) QuoteRefund(ctx context.Context, caller, contract string, tokenID int64) (*Quote, error) {
	_, q, err := s.evaluate(ctx, caller, contract, tokenID, time.Now())
	return q, err
}

// Execute refunds the ticket: retires it, counts the refund against the
// holder's cap, releases one mint-count slot and credits the refund amount to
// the holder's available balance.
func (s *Service) Execute(ctx context.Context, caller, contract string, tokenID int64) (*Quote, error) {
	key := "refund:" + model.ListingKey(contract, tokenID)
	if err := s.latch.Acquire(key); err != nil {
		return nil, err
	}
	defer s.latch.Release(key)

	t, q, err := s.evaluate(ctx, caller, contract, tokenID, time.Now())
	if err != nil {
		return nil, err
	}
	if !q.Eligible {
		return nil, rejectionError(q.Reason)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Re-check under lock: once claims run against the full original deposit,
	// a partial refund credited here would be paid twice.
	info, err := db.GetEventInfoForUpdate(tx, t.EventID)
	if err != nil {
		return nil, err
	}
	if info.EmergencyRefund {
		return nil, rejectionError(reasonEmergency)
	}
	count, err := db.IncRefundCount(tx, caller)
	if err != nil {
		return nil, err
	}
	if count > s.cap {
		return nil, fmt.Errorf("%w: refund limit reached", model.ErrLimitExceeded)
	}
	if err := db.AdjustMintCount(tx, caller, t.EventID, -1); err != nil {
		return nil, err
	}
	if err := db.MarkTicketRefunded(tx, contract, tokenID); err != nil {
		return nil, err
	}
	bal, err := db.GetBalanceForUpdate(tx, caller, t.EventID)
	if err != nil {
		return nil, err
	}
	if err := ledger.ApplyTicketRefund(bal, q.Amount); err != nil {
		return nil, err
	}
	if err := db.PutBalance(tx, bal); err != nil {
		return nil, err
	}
	if err := db.AppendEvent(tx, nil, "TicketRefunded", map[string]any{
		"account": caller, "event_id": t.EventID,
		"token_contract": contract, "token_id": tokenID,
		"bps": q.Bps, "amount": q.Amount,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	q.RefundsUsed = count
	s.log.Infow("ticket refunded", "account", caller, "token", model.ListingKey(contract, tokenID),
		"bps", q.Bps, "amount", q.Amount)
	return q, nil
}
