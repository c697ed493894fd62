// Package ledger is the source of truth for all fund movement. Every balance
// field mutation in the system goes through its operations or its tx-scoped
// primitives; no other component touches a balance row directly.
package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"ticket-exchange/internal/db"
	"ticket-exchange/internal/model"
	"ticket-exchange/internal/monitoring"
	"ticket-exchange/internal/payout"
	"ticket-exchange/internal/verify"
)

type Ledger struct {
	store *db.Store
	payer payout.Transfer
	gate  verify.Gate
	latch *Latch
	log   *zap.SugaredLogger
}

func New(store *db.Store, payer payout.Transfer, gate verify.Gate, log *zap.SugaredLogger) *Ledger {
	return &Ledger{
		store: store,
		payer: payer,
		gate:  gate,
		latch: NewLatch(),
		log:   log.Named("ledger"),
	}
}

// Latch exposes the reentrancy guard so sibling services protect their own
// operations with the same latch instance.
func (l *Ledger) Latch() *Latch { return l.latch }

// Balance returns the account's record for an event, zero-valued when the
// account has never deposited.
func (l *Ledger) Balance(ctx context.Context, account, event string) (*model.AccountBalance, error) {
	b, err := l.store.GetBalance(ctx, account, event)
	if err != nil {
		return nil, err
	}
	if b == nil {
		b = &model.AccountBalance{AccountID: account, EventID: event}
	}
	return b, nil
}

func (l *Ledger) EventInfo(ctx context.Context, event string) (*model.EventInfo, error) {
	info, err := l.store.GetEventInfo(ctx, event)
	if err != nil {
		return nil, err
	}
	if info == nil {
		info = &model.EventInfo{EventID: event}
	}
	return info, nil
}

// ── Public operations ────────────────────────────────

// Deposit credits available funds for an event. The caller must be verified.
func (l *Ledger) Deposit(ctx context.Context, account, event string, amount int64) (*model.AccountBalance, error) {
	if err := verify.RequireVerified(ctx, l.gate, account); err != nil {
		return nil, err
	}
	key := "deposit:" + account + ":" + event
	if err := l.latch.Acquire(key); err != nil {
		return nil, err
	}
	defer l.latch.Release(key)

	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	info, err := db.GetEventInfoForUpdate(tx, event)
	if err != nil {
		return nil, err
	}
	bal, err := db.GetBalanceForUpdate(tx, account, event)
	if err != nil {
		return nil, err
	}
	if err := ApplyDeposit(bal, info, amount); err != nil {
		return nil, err
	}
	if err := db.PutBalance(tx, bal); err != nil {
		return nil, err
	}
	if err := db.PutEventInfo(tx, info); err != nil {
		return nil, err
	}
	if err := db.AppendEvent(tx, nil, "DepositReceived", map[string]any{
		"account": account, "event": event, "amount": amount,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	monitoring.TrackDeposit(event, amount)
	l.log.Infow("deposit", "account", account, "event", event, "amount", amount)
	return bal, nil
}

// Withdraw debits available funds, commits, then attempts the external
// transfer. A failed transfer restores the debit so the operation is
// all-or-nothing from the caller's point of view.
func (l *Ledger) Withdraw(ctx context.Context, account, event string, amount int64) error {
	key := "withdraw:" + account + ":" + event
	if err := l.latch.Acquire(key); err != nil {
		return err
	}
	defer l.latch.Release(key)

	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	info, err := db.GetEventInfoForUpdate(tx, event)
	if err != nil {
		return err
	}
	bal, err := db.GetBalanceForUpdate(tx, account, event)
	if err != nil {
		return err
	}
	origBefore := bal.OriginalDeposit
	if err := ApplyWithdraw(bal, info, amount); err != nil {
		return err
	}
	origDelta := origBefore - bal.OriginalDeposit
	if err := db.PutBalance(tx, bal); err != nil {
		return err
	}
	if err := db.AppendEvent(tx, nil, "WithdrawalRequested", map[string]any{
		"account": account, "event": event, "amount": amount,
	}); err != nil {
		return err
	}
	// Commit before the transfer: a reentrant call from the rail sees the
	// debited balance and cannot double-spend.
	if err := tx.Commit(); err != nil {
		return err
	}

	if err := l.payOrRestore(ctx, account, amount, "withdraw:"+event, func(ctx context.Context) error {
		return l.restoreWithdrawal(ctx, account, event, amount, origDelta)
	}); err != nil {
		return err
	}
	monitoring.TrackWithdrawal(event, amount)
	l.log.Infow("withdraw", "account", account, "event", event, "amount", amount)
	return nil
}

// CollectProfits releases the caller's escrowed balance after the event ends.
func (l *Ledger) CollectProfits(ctx context.Context, account, event string) (int64, error) {
	key := "collect:" + account + ":" + event
	if err := l.latch.Acquire(key); err != nil {
		return 0, err
	}
	defer l.latch.Release(key)

	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	info, err := db.GetEventInfoForUpdate(tx, event)
	if err != nil {
		return 0, err
	}
	bal, err := db.GetBalanceForUpdate(tx, account, event)
	if err != nil {
		return 0, err
	}
	amount, err := ApplyCollect(bal, info)
	if err != nil {
		return 0, err
	}
	if err := db.PutBalance(tx, bal); err != nil {
		return 0, err
	}
	if err := db.AppendEvent(tx, nil, "ProfitsCollected", map[string]any{
		"account": account, "event": event, "amount": amount,
	}); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	l.log.Infow("profits collected", "account", account, "event", event, "amount", amount)
	return amount, nil
}

// EndEvent flips the one-way ended flag, opening profit collection.
func (l *Ledger) EndEvent(ctx context.Context, event string) error {
	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	info, err := db.GetEventInfoForUpdate(tx, event)
	if err != nil {
		return err
	}
	if info.Ended {
		return fmt.Errorf("%w: event already ended", model.ErrInvalidState)
	}
	info.Ended = true
	if err := db.PutEventInfo(tx, info); err != nil {
		return err
	}
	if err := db.AppendEvent(tx, nil, "EventEnded", map[string]any{"event": event}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	l.log.Infow("event ended", "event", event)
	return nil
}

// payOrRestore runs the external transfer against an already-committed debit
// and undoes the debit when the rail fails.
func (l *Ledger) payOrRestore(ctx context.Context, account string, amount int64, ref string, restore func(context.Context) error) error {
	if err := l.payer.Payout(ctx, account, amount, ref); err != nil {
		l.log.Warnw("payout failed, restoring balance", "account", account, "ref", ref, "amount", amount, "err", err)
		if rerr := restore(ctx); rerr != nil {
			// The debit stands but the rail owes the account; surface both.
			return fmt.Errorf("%w: %v (restore also failed: %v)", model.ErrTransferFailed, err, rerr)
		}
		return fmt.Errorf("%w: %v", model.ErrTransferFailed, err)
	}
	return nil
}

// restoreWithdrawal re-credits a debited withdrawal as a delta against the
// current row, never by writing back a snapshot: a deposit that committed
// while the transfer was in flight must not be erased.
func (l *Ledger) restoreWithdrawal(ctx context.Context, account, event string, amount, origDelta int64) error {
	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	bal, err := db.GetBalanceForUpdate(tx, account, event)
	if err != nil {
		return err
	}
	ApplyWithdrawRestore(bal, amount, origDelta)
	if err := db.PutBalance(tx, bal); err != nil {
		return err
	}
	return tx.Commit()
}

// ── Tx-scoped primitives ─────────────────────────────
//
// The engine and escrow run multi-account movements inside one transaction;
// these helpers keep all of that movement behind the ledger's rules.

func LockTx(tx *sql.Tx, account, event string, amount int64) error {
	bal, err := db.GetBalanceForUpdate(tx, account, event)
	if err != nil {
		return err
	}
	if err := ApplyLock(bal, amount); err != nil {
		return err
	}
	return db.PutBalance(tx, bal)
}

func UnlockTx(tx *sql.Tx, account, event string, amount int64) error {
	bal, err := db.GetBalanceForUpdate(tx, account, event)
	if err != nil {
		return err
	}
	if err := ApplyUnlock(bal, amount); err != nil {
		return err
	}
	return db.PutBalance(tx, bal)
}

func SpendAvailableTx(tx *sql.Tx, account, event string, amount int64) error {
	bal, err := db.GetBalanceForUpdate(tx, account, event)
	if err != nil {
		return err
	}
	if err := ApplySpendAvailable(bal, amount); err != nil {
		return err
	}
	return db.PutBalance(tx, bal)
}

func SpendLockedTx(tx *sql.Tx, account, event string, amount int64) error {
	bal, err := db.GetBalanceForUpdate(tx, account, event)
	if err != nil {
		return err
	}
	if err := ApplySpendLocked(bal, amount); err != nil {
		return err
	}
	return db.PutBalance(tx, bal)
}

func CreditLockedTx(tx *sql.Tx, account, event string, amount int64) error {
	bal, err := db.GetBalanceForUpdate(tx, account, event)
	if err != nil {
		return err
	}
	if err := ApplyCreditLocked(bal, amount); err != nil {
		return err
	}
	return db.PutBalance(tx, bal)
}

func RecordPrimaryDepositTx(tx *sql.Tx, account, event string, amount int64) error {
	info, err := db.GetEventInfoForUpdate(tx, event)
	if err != nil {
		return err
	}
	bal, err := db.GetBalanceForUpdate(tx, account, event)
	if err != nil {
		return err
	}
	if err := ApplyRecordPrimaryDeposit(bal, info, amount); err != nil {
		return err
	}
	if err := db.PutBalance(tx, bal); err != nil {
		return err
	}
	return db.PutEventInfo(tx, info)
}
