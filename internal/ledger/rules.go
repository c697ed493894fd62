package ledger

import (
	"fmt"

	"ticket-exchange/internal/model"
)

// Pure balance mutations. Each function either applies the whole change or
// leaves the record untouched, so a transaction can load a row, apply a rule
// and write it back knowing the invariant
// available + locked <= deposited - withdrawn + profits
// still holds.

func checkInvariant(b *model.AccountBalance) error {
	if b.Available < 0 || b.Locked < 0 {
		return fmt.Errorf("%w: negative balance for %s/%s", model.ErrOverflow, b.AccountID, b.EventID)
	}
	if b.Available+b.Locked > b.TotalDeposited-b.TotalWithdrawn+b.TotalProfits {
		return fmt.Errorf("%w: balance exceeds funding for %s/%s", model.ErrOverflow, b.AccountID, b.EventID)
	}
	return nil
}

// ApplyDeposit credits available funds. Rejected once emergency refunds are
// enabled for the event.
func ApplyDeposit(b *model.AccountBalance, info *model.EventInfo, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: deposit amount must be positive", model.ErrInvalidState)
	}
	if info.EmergencyRefund {
		return fmt.Errorf("%w: deposits closed, emergency refund enabled", model.ErrInvalidState)
	}
	next := *b
	next.TotalDeposited += amount
	next.Available += amount
	next.OriginalDeposit += amount
	if err := checkInvariant(&next); err != nil {
		return err
	}
	*b = next
	info.TotalDeposited += amount
	return nil
}

// ApplyWithdraw debits available funds ahead of an external transfer.
func ApplyWithdraw(b *model.AccountBalance, info *model.EventInfo, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: withdraw amount must be positive", model.ErrInvalidState)
	}
	if info.EmergencyRefund {
		return fmt.Errorf("%w: withdrawals closed, emergency refund enabled", model.ErrInvalidState)
	}
	if b.Available < amount {
		return fmt.Errorf("%w: have %d, need %d", model.ErrInsufficientFunds, b.Available, amount)
	}
	b.Available -= amount
	b.TotalWithdrawn += amount
	// Withdrawn funds no longer back an emergency-refund claim.
	b.OriginalDeposit -= amount
	if b.OriginalDeposit < 0 {
		b.OriginalDeposit = 0
	}
	return nil
}

// ApplyWithdrawRestore reverses a committed withdrawal after the external
// transfer failed. Applied as a delta on the current row, so deposits or other
// movement that landed between the commit and the restore survive.
// originalDelta is how much ApplyWithdraw actually took off the
// emergency-refund claim (it floors at zero).
func ApplyWithdrawRestore(b *model.AccountBalance, amount, originalDelta int64) {
	b.Available += amount
	b.TotalWithdrawn -= amount
	if b.TotalWithdrawn < 0 {
		b.TotalWithdrawn = 0
	}
	b.OriginalDeposit += originalDelta
}

// ApplyLock pledges available funds to a bid or pending sale.
func ApplyLock(b *model.AccountBalance, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: lock amount must be positive", model.ErrInvalidState)
	}
	if b.Available < amount {
		return fmt.Errorf("%w: have %d, need %d", model.ErrInsufficientFunds, b.Available, amount)
	}
	b.Available -= amount
	b.Locked += amount
	return nil
}

// ApplyUnlock releases pledged funds back to available.
func ApplyUnlock(b *model.AccountBalance, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: unlock amount must be positive", model.ErrInvalidState)
	}
	if b.Locked < amount {
		return fmt.Errorf("%w: locked %d, need %d", model.ErrInsufficientFunds, b.Locked, amount)
	}
	b.Locked -= amount
	b.Available += amount
	return nil
}

// ApplySpendAvailable consumes available funds that stay inside the vault
// (a fixed-price purchase paid from deposits). Deposit totals are gross
// counters and are not reduced.
func ApplySpendAvailable(b *model.AccountBalance, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: spend amount must be positive", model.ErrInvalidState)
	}
	if b.Available < amount {
		return fmt.Errorf("%w: have %d, need %d", model.ErrInsufficientFunds, b.Available, amount)
	}
	b.Available -= amount
	return nil
}

// ApplySpendLocked consumes a locked pledge at settlement (the winning bid).
func ApplySpendLocked(b *model.AccountBalance, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: spend amount must be positive", model.ErrInvalidState)
	}
	if b.Locked < amount {
		return fmt.Errorf("%w: locked %d, need %d", model.ErrInsufficientFunds, b.Locked, amount)
	}
	b.Locked -= amount
	return nil
}

// ApplyCreditLocked credits sale proceeds (or a primary-sale organizer share)
// into escrow. Proceeds count as profits immediately so the funding invariant
// holds while they sit locked.
func ApplyCreditLocked(b *model.AccountBalance, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: negative credit", model.ErrInvalidState)
	}
	b.Locked += amount
	b.TotalProfits += amount
	return nil
}

// ApplyRecordPrimaryDeposit records a mint payment against the buyer. The
// value itself goes to the organizer share and platform payable, so nothing
// becomes available; the deposit only backs a future emergency-refund claim.
func ApplyRecordPrimaryDeposit(b *model.AccountBalance, info *model.EventInfo, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: primary sale value must be positive", model.ErrInvalidState)
	}
	if info.EmergencyRefund {
		return fmt.Errorf("%w: deposits closed, emergency refund enabled", model.ErrInvalidState)
	}
	b.TotalDeposited += amount
	b.OriginalDeposit += amount
	info.TotalDeposited += amount
	return nil
}

// ApplyTicketRefund credits a primary-ticket refund into available funds and
// releases the matching slice of the emergency-refund claim.
func ApplyTicketRefund(b *model.AccountBalance, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: refund amount must be positive", model.ErrInvalidState)
	}
	b.Available += amount
	b.OriginalDeposit -= amount
	if b.OriginalDeposit < 0 {
		b.OriginalDeposit = 0
	}
	return nil
}

// ApplyCollect releases the full escrowed balance once the event has ended.
// Returns the released amount.
func ApplyCollect(b *model.AccountBalance, info *model.EventInfo) (int64, error) {
	if !info.Ended {
		return 0, fmt.Errorf("%w: event has not ended", model.ErrInvalidState)
	}
	if info.EmergencyRefund {
		return 0, fmt.Errorf("%w: emergency refund enabled", model.ErrInvalidState)
	}
	if b.Locked == 0 {
		return 0, fmt.Errorf("%w: nothing to collect", model.ErrNotFound)
	}
	amount := b.Locked
	b.Available += amount
	b.Locked = 0
	return amount, nil
}

// EmergencyRefundAmount is what a cleared account is owed: the original
// deposits plus whatever sits locked. No fees apply.
func EmergencyRefundAmount(b *model.AccountBalance) int64 {
	return b.OriginalDeposit + b.Locked
}

// ApplyRestoreSnapshot merges a deleted row's counters back into whatever row
// exists now. Additive on every field, so activity that lazily recreated the
// row between the delete and the restore is kept.
func ApplyRestoreSnapshot(b *model.AccountBalance, snap *model.AccountBalance) {
	b.TotalDeposited += snap.TotalDeposited
	b.Available += snap.Available
	b.Locked += snap.Locked
	b.TotalWithdrawn += snap.TotalWithdrawn
	b.TotalProfits += snap.TotalProfits
	b.OriginalDeposit += snap.OriginalDeposit
}
