package ledger

import (
	"errors"
	"testing"

	"ticket-exchange/internal/model"
)

func freshBalance() (*model.AccountBalance, *model.EventInfo) {
	return &model.AccountBalance{AccountID: "a1", EventID: "e1"},
		&model.EventInfo{EventID: "e1"}
}

func TestDepositAccumulates(t *testing.T) {
	b, info := freshBalance()

	if err := ApplyDeposit(b, info, 500); err != nil {
		t.Fatalf("first deposit: %v", err)
	}
	if err := ApplyDeposit(b, info, 700); err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	if b.TotalDeposited != 1200 {
		t.Fatalf("expected total 1200, got %d", b.TotalDeposited)
	}
	if b.Available != 1200 {
		t.Fatalf("expected available 1200, got %d", b.Available)
	}
	if info.TotalDeposited != 1200 {
		t.Fatalf("expected event total 1200, got %d", info.TotalDeposited)
	}
}

func TestDepositRejectsZeroAmount(t *testing.T) {
	b, info := freshBalance()
	if err := ApplyDeposit(b, info, 0); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestDepositRejectedDuringEmergencyRefund(t *testing.T) {
	b, info := freshBalance()
	info.EmergencyRefund = true
	if err := ApplyDeposit(b, info, 100); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if b.TotalDeposited != 0 || b.Available != 0 {
		t.Fatal("rejected deposit must not mutate the balance")
	}
}

func TestWithdrawExactDebit(t *testing.T) {
	b, info := freshBalance()
	if err := ApplyDeposit(b, info, 1000); err != nil {
		t.Fatal(err)
	}
	if err := ApplyWithdraw(b, info, 400); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if b.Available != 600 {
		t.Fatalf("expected available 600, got %d", b.Available)
	}
	if b.TotalWithdrawn != 400 {
		t.Fatalf("expected withdrawn 400, got %d", b.TotalWithdrawn)
	}
	if b.OriginalDeposit != 600 {
		t.Fatalf("expected original deposit 600, got %d", b.OriginalDeposit)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	b, info := freshBalance()
	if err := ApplyDeposit(b, info, 100); err != nil {
		t.Fatal(err)
	}
	err := ApplyWithdraw(b, info, 101)
	if !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if b.Available != 100 || b.TotalWithdrawn != 0 {
		t.Fatal("failed withdraw must not mutate the balance")
	}
}

func TestLockUnlockPreservesTotals(t *testing.T) {
	b, info := freshBalance()
	if err := ApplyDeposit(b, info, 1000); err != nil {
		t.Fatal(err)
	}
	if err := ApplyLock(b, 600); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if b.Available != 400 || b.Locked != 600 {
		t.Fatalf("expected 400/600, got %d/%d", b.Available, b.Locked)
	}
	if b.TotalDeposited != 1000 {
		t.Fatal("lock must not change totals")
	}
	if err := ApplyUnlock(b, 600); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if b.Available != 1000 || b.Locked != 0 {
		t.Fatalf("expected 1000/0, got %d/%d", b.Available, b.Locked)
	}
}

func TestLockMoreThanAvailable(t *testing.T) {
	b, info := freshBalance()
	if err := ApplyDeposit(b, info, 50); err != nil {
		t.Fatal(err)
	}
	if err := ApplyLock(b, 51); !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestUnlockMoreThanLocked(t *testing.T) {
	b, info := freshBalance()
	if err := ApplyDeposit(b, info, 100); err != nil {
		t.Fatal(err)
	}
	if err := ApplyLock(b, 40); err != nil {
		t.Fatal(err)
	}
	if err := ApplyUnlock(b, 41); !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestCollectRequiresEventEnded(t *testing.T) {
	b, info := freshBalance()
	if err := ApplyCreditLocked(b, 500); err != nil {
		t.Fatal(err)
	}
	if _, err := ApplyCollect(b, info); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState before event end, got %v", err)
	}

	info.Ended = true
	amount, err := ApplyCollect(b, info)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if amount != 500 {
		t.Fatalf("expected 500 released, got %d", amount)
	}
	if b.Locked != 0 || b.Available != 500 {
		t.Fatalf("expected 0 locked / 500 available, got %d/%d", b.Locked, b.Available)
	}
}

func TestCollectBlockedByEmergencyRefund(t *testing.T) {
	b, info := freshBalance()
	if err := ApplyCreditLocked(b, 500); err != nil {
		t.Fatal(err)
	}
	info.Ended = true
	info.EmergencyRefund = true
	if _, err := ApplyCollect(b, info); !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestCollectNothingOwed(t *testing.T) {
	b, info := freshBalance()
	info.Ended = true
	if _, err := ApplyCollect(b, info); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreditLockedCountsAsProfit(t *testing.T) {
	b, _ := freshBalance()
	if err := ApplyCreditLocked(b, 750); err != nil {
		t.Fatal(err)
	}
	if b.Locked != 750 || b.TotalProfits != 750 {
		t.Fatalf("expected 750/750, got %d/%d", b.Locked, b.TotalProfits)
	}
}

func TestSpendLockedConsumesPledge(t *testing.T) {
	b, info := freshBalance()
	if err := ApplyDeposit(b, info, 1000); err != nil {
		t.Fatal(err)
	}
	if err := ApplyLock(b, 800); err != nil {
		t.Fatal(err)
	}
	if err := ApplySpendLocked(b, 800); err != nil {
		t.Fatalf("spend locked: %v", err)
	}
	if b.Locked != 0 || b.Available != 200 {
		t.Fatalf("expected 0/200, got %d/%d", b.Locked, b.Available)
	}
	if err := ApplySpendLocked(b, 1); !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestEmergencyRefundAmount(t *testing.T) {
	b, info := freshBalance()
	if err := ApplyDeposit(b, info, 1000); err != nil {
		t.Fatal(err)
	}
	if err := ApplyLock(b, 300); err != nil {
		t.Fatal(err)
	}
	if got := EmergencyRefundAmount(b); got != 1300 {
		t.Fatalf("expected 1300, got %d", got)
	}
}

func TestTicketRefundReleasesClaim(t *testing.T) {
	b, info := freshBalance()
	if err := ApplyRecordPrimaryDeposit(b, info, 2000); err != nil {
		t.Fatal(err)
	}
	if err := ApplyTicketRefund(b, 1500); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if b.Available != 1500 {
		t.Fatalf("expected available 1500, got %d", b.Available)
	}
	if b.OriginalDeposit != 500 {
		t.Fatalf("expected original deposit 500, got %d", b.OriginalDeposit)
	}
}

func TestWithdrawRestoreKeepsConcurrentDeposit(t *testing.T) {
	b, info := freshBalance()
	if err := ApplyDeposit(b, info, 1000); err != nil {
		t.Fatal(err)
	}

	origBefore := b.OriginalDeposit
	if err := ApplyWithdraw(b, info, 300); err != nil {
		t.Fatal(err)
	}
	origDelta := origBefore - b.OriginalDeposit

	// A deposit lands while the external transfer is still in flight.
	if err := ApplyDeposit(b, info, 500); err != nil {
		t.Fatal(err)
	}

	ApplyWithdrawRestore(b, 300, origDelta)
	if b.Available != 1500 {
		t.Fatalf("expected available 1500 after restore, got %d", b.Available)
	}
	if b.TotalWithdrawn != 0 {
		t.Fatalf("expected withdrawn 0 after restore, got %d", b.TotalWithdrawn)
	}
	if b.OriginalDeposit != 1500 {
		t.Fatalf("expected original deposit 1500, got %d", b.OriginalDeposit)
	}
	if err := checkInvariant(b); err != nil {
		t.Fatalf("invariant broken after restore: %v", err)
	}
}

func TestRestoreSnapshotMergesRecreatedRow(t *testing.T) {
	snap, info := freshBalance()
	if err := ApplyDeposit(snap, info, 2000); err != nil {
		t.Fatal(err)
	}
	if err := ApplyLock(snap, 800); err != nil {
		t.Fatal(err)
	}

	// The snapshot's row was deleted; a deposit recreated it before the
	// restore ran. The merge must keep that deposit.
	current := &model.AccountBalance{AccountID: "a1", EventID: "e1"}
	if err := ApplyDeposit(current, info, 300); err != nil {
		t.Fatal(err)
	}

	ApplyRestoreSnapshot(current, snap)
	if current.Available != 1500 {
		t.Fatalf("expected available 1500, got %d", current.Available)
	}
	if current.Locked != 800 {
		t.Fatalf("expected locked 800, got %d", current.Locked)
	}
	if current.TotalDeposited != 2300 {
		t.Fatalf("expected deposited 2300, got %d", current.TotalDeposited)
	}
	if current.OriginalDeposit != 2300 {
		t.Fatalf("expected original deposit 2300, got %d", current.OriginalDeposit)
	}
	if err := checkInvariant(current); err != nil {
		t.Fatalf("invariant broken after merge: %v", err)
	}
}

func TestPrimaryDepositBacksRefundOnly(t *testing.T) {
	b, info := freshBalance()
	if err := ApplyRecordPrimaryDeposit(b, info, 2500); err != nil {
		t.Fatal(err)
	}
	if b.Available != 0 {
		t.Fatalf("primary deposit must not be spendable, got available %d", b.Available)
	}
	if b.OriginalDeposit != 2500 || b.TotalDeposited != 2500 {
		t.Fatalf("expected 2500 recorded, got %d/%d", b.OriginalDeposit, b.TotalDeposited)
	}
}
