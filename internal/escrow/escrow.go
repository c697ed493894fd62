// Package escrow holds sale proceeds and fee accruals until events end, and
// handles the emergency-refund path when an event is cancelled.
package escrow

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ticket-exchange/internal/db"
	"ticket-exchange/internal/ledger"
	"ticket-exchange/internal/model"
	"ticket-exchange/internal/payout"
	"ticket-exchange/internal/ticket"
)

type Vault struct {
	store          *db.Store
	dir            ticket.Directory
	payer          payout.Transfer
	latch          *ledger.Latch
	platformFeeBps int64
	log            *zap.SugaredLogger
}

func NewVault(store *db.Store, dir ticket.Directory, payer payout.Transfer,
	latch *ledger.Latch, platformFeeBps int64, log *zap.SugaredLogger) *Vault {
	return &Vault{
		store:          store,
		dir:            dir,
		payer:          payer,
		latch:          latch,
		platformFeeBps: platformFeeBps,
		log:            log.Named("escrow"),
	}
}

// royaltyFor resolves the event's royalty policy. A failed or missing lookup
// degrades to zero royalty so a directory outage cannot block settlement.
func (v *Vault) royaltyFor(ctx context.Context, eventID string) (string, int64) {
	recipient, bps, err := v.dir.RoyaltyInfo(ctx, eventID)
	if err != nil {
		v.log.Warnw("royalty lookup failed, selling without royalty", "event", eventID, "err", err)
		return "", 0
	}
	if recipient == "" || bps <= 0 {
		return "", 0
	}
	return recipient, bps
}

// DistributeTx splits a sale price three ways inside the caller's transaction:
// seller proceeds into the seller's locked balance, royalty and platform fee
// into the event's payable accumulators. The parts sum to price exactly.
func (v *Vault) DistributeTx(ctx context.Context, tx *sql.Tx, eventID, seller string, price int64) (model.Distribution, error) {
	recipient, royaltyBps := v.royaltyFor(ctx, eventID)
	split, err := model.SplitProceeds(price, royaltyBps, v.platformFeeBps)
	if err != nil {
		return model.Distribution{}, err
	}
	if err := ledger.CreditLockedTx(tx, seller, eventID, split.SellerAmount); err != nil {
		return model.Distribution{}, err
	}
	if split.RoyaltyAmount > 0 {
		if err := db.AddPayable(tx, eventID, model.PayableRoyalty, recipient, split.RoyaltyAmount); err != nil {
			return model.Distribution{}, err
		}
	}
	if split.PlatformAmount > 0 {
		if err := db.AddPayable(tx, eventID, model.PayablePlatform, "", split.PlatformAmount); err != nil {
			return model.Distribution{}, err
		}
	}
	return split, nil
}

// RegisterPrimarySale records a mint payment: the buyer's deposit backs a
// future emergency-refund claim, the organizer's share goes into escrow and
// the remainder accrues to the platform.
func (v *Vault) RegisterPrimarySale(ctx context.Context, buyer, organizer, eventID string, value, organizerShareBps int64) error {
	organizerShare, platformShare, err := model.SplitPrimary(value, organizerShareBps)
	if err != nil {
		return err
	}
	tx, err := v.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := ledger.RecordPrimaryDepositTx(tx, buyer, eventID, value); err != nil {
		return err
	}
	if err := ledger.CreditLockedTx(tx, organizer, eventID, organizerShare); err != nil {
		return err
	}
	if platformShare > 0 {
		if err := db.AddPayable(tx, eventID, model.PayablePlatform, "", platformShare); err != nil {
			return err
		}
	}
	if err := db.AdjustMintCount(tx, buyer, eventID, 1); err != nil {
		return err
	}
	if err := db.AppendEvent(tx, nil, "PrimarySaleRegistered", map[string]any{
		"buyer": buyer, "organizer": organizer, "event_id": eventID, "value": value,
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	v.log.Infow("primary sale registered", "buyer", buyer, "event", eventID, "value", value)
	return nil
}

// WithdrawRoyalties pays out the event's accrued royalties to their recipient.
// The payable is zeroed and committed before the transfer runs; a failed
// transfer restores the amount.
func (v *Vault) WithdrawRoyalties(ctx context.Context, caller, eventID string) (int64, error) {
	return v.withdrawPayable(ctx, caller, eventID, model.PayableRoyalty)
}

// WithdrawPlatformFees pays the event's accrued platform fees out to the
// operator account. Admin only; the API enforces the role.
func (v *Vault) WithdrawPlatformFees(ctx context.Context, destination, eventID string) (int64, error) {
	return v.withdrawPayable(ctx, destination, eventID, model.PayablePlatform)
}

func (v *Vault) withdrawPayable(ctx context.Context, destination, eventID string, kind model.PayableKind) (int64, error) {
	key := fmt.Sprintf("payable:%s:%s", kind, eventID)
	if err := v.latch.Acquire(key); err != nil {
		return 0, err
	}
	defer v.latch.Release(key)

	tx, err := v.store.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	info, err := db.GetEventInfoForUpdate(tx, eventID)
	if err != nil {
		return 0, err
	}
	if !info.Ended {
		return 0, fmt.Errorf("%w: event has not ended", model.ErrInvalidState)
	}
	p, err := db.GetPayableForUpdate(tx, eventID, kind)
	if err != nil {
		return 0, err
	}
	if p == nil || p.Amount == 0 {
		return 0, fmt.Errorf("%w: no %s payable for event %s", model.ErrNotFound, kind, eventID)
	}
	if kind == model.PayableRoyalty && p.Recipient != destination {
		return 0, fmt.Errorf("%w: not the royalty recipient", model.ErrUnauthorized)
	}
	amount := p.Amount
	if err := db.SetPayableAmount(tx, eventID, kind, 0); err != nil {
		return 0, err
	}
	if err := db.AppendEvent(tx, nil, "PayableWithdrawn", map[string]any{
		"event_id": eventID, "kind": kind, "recipient": destination, "amount": amount,
	}); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	ref := fmt.Sprintf("%s-%s-%s", kind, eventID, uuid.NewString()[:8])
	if err := v.payOrRestore(ctx, destination, amount, ref, func(ctx context.Context) error {
		return v.restorePayable(ctx, eventID, kind, destination, amount)
	}); err != nil {
		return 0, err
	}
	return amount, nil
}

// payOrRestore runs the external transfer against already-committed state and
// puts the amount back when the rail fails.
func (v *Vault) payOrRestore(ctx context.Context, destination string, amount int64, ref string, restore func(context.Context) error) error {
	if err := v.payer.Payout(ctx, destination, amount, ref); err != nil {
		v.log.Errorw("transfer failed, restoring", "destination", destination, "ref", ref, "amount", amount, "err", err)
		if rerr := restore(ctx); rerr != nil {
			v.log.Errorw("restore failed", "destination", destination, "ref", ref, "err", rerr)
		}
		return fmt.Errorf("%w: %v", model.ErrTransferFailed, err)
	}
	return nil
}

func (v *Vault) restorePayable(ctx context.Context, eventID string, kind model.PayableKind, recipient string, amount int64) error {
	tx, err := v.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := db.AddPayable(tx, eventID, kind, recipient, amount); err != nil {
		return err
	}
	return tx.Commit()
}

// EnableEmergencyRefund flips the event into refund mode. Allowed only when
// the ticket directory reports the event cancelled, and only once.
func (v *Vault) EnableEmergencyRefund(ctx context.Context, eventID string) error {
	ev, err := v.dir.Event(ctx, eventID)
	if err != nil {
		return fmt.Errorf("event lookup: %w", err)
	}
	if ev == nil || !ev.Cancelled {
		return fmt.Errorf("%w: event is not cancelled", model.ErrInvalidState)
	}
	tx, err := v.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	info, err := db.GetEventInfoForUpdate(tx, eventID)
	if err != nil {
		return err
	}
	if info.EmergencyRefund {
		return fmt.Errorf("%w: emergency refund already enabled", model.ErrInvalidState)
	}
	info.EmergencyRefund = true
	if err := db.PutEventInfo(tx, info); err != nil {
		return err
	}
	if err := db.AppendEvent(tx, nil, "EmergencyRefundEnabled", map[string]any{"event_id": eventID}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	v.log.Warnw("emergency refund enabled", "event", eventID)
	return nil
}

// ClaimEmergencyRefund pays an account its original deposits plus anything
// locked, in full and without fees. The ledger entry is deleted and committed
// before the transfer so a second claim finds nothing; a failed transfer puts
// the entry back.
func (v *Vault) ClaimEmergencyRefund(ctx context.Context, account, eventID string) (int64, error) {
	key := fmt.Sprintf("emergency:%s:%s", account, eventID)
	if err := v.latch.Acquire(key); err != nil {
		return 0, err
	}
	defer v.latch.Release(key)

	tx, err := v.store.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	info, err := db.GetEventInfoForUpdate(tx, eventID)
	if err != nil {
		return 0, err
	}
	bal, err := db.GetBalanceForUpdate(tx, account, eventID)
	if err != nil {
		return 0, err
	}
	amount, err := claimAmount(info, bal)
	if err != nil {
		return 0, err
	}
	snapshot := *bal
	if err := db.DeleteBalance(tx, account, eventID); err != nil {
		return 0, err
	}
	if err := db.AppendEvent(tx, nil, "EmergencyRefundClaimed", map[string]any{
		"account": account, "event_id": eventID, "amount": amount,
	}); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	ref := fmt.Sprintf("emergency-%s-%s", eventID, uuid.NewString()[:8])
	if err := v.payOrRestore(ctx, account, amount, ref, func(ctx context.Context) error {
		return v.restoreBalance(ctx, &snapshot)
	}); err != nil {
		return 0, err
	}
	v.log.Infow("emergency refund paid", "account", account, "event", eventID, "amount", amount)
	return amount, nil
}

// claimAmount decides a single emergency claim. A claim that already paid out
// left no row behind, so the lazily recreated zero row makes a second claim
// fail with not-found.
func claimAmount(info *model.EventInfo, bal *model.AccountBalance) (int64, error) {
	if !info.EmergencyRefund {
		return 0, fmt.Errorf("%w: emergency refund not enabled", model.ErrInvalidState)
	}
	amount := ledger.EmergencyRefundAmount(bal)
	if amount == 0 {
		return 0, fmt.Errorf("%w: nothing to refund", model.ErrNotFound)
	}
	return amount, nil
}

// restoreBalance merges the deleted snapshot back into whatever row exists
// now. Another operation may have lazily recreated the row in the window, so
// an insert would conflict and a plain write would clobber it.
func (v *Vault) restoreBalance(ctx context.Context, snap *model.AccountBalance) error {
	tx, err := v.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	bal, err := db.GetBalanceForUpdate(tx, snap.AccountID, snap.EventID)
	if err != nil {
		return err
	}
	ledger.ApplyRestoreSnapshot(bal, snap)
	if err := db.PutBalance(tx, bal); err != nil {
		return err
	}
	return tx.Commit()
}
