package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"ticket-exchange/internal/model"
	"ticket-exchange/internal/payout"
)

type stubPayer struct {
	fail  bool
	calls int
}

func (p *stubPayer) GetProvider() payout.Provider { return "stub" }

func (p *stubPayer) Payout(ctx context.Context, account string, amount int64, reference string) error {
	p.calls++
	if p.fail {
		return errors.New("rail down")
	}
	return nil
}

func testLedger(p payout.Transfer) *Ledger {
	return New(nil, p, nil, zap.NewNop().Sugar())
}

func TestFailedPayoutRunsRestore(t *testing.T) {
	payer := &stubPayer{fail: true}
	l := testLedger(payer)

	restored := 0
	err := l.payOrRestore(context.Background(), "a1", 100, "withdraw:e1", func(context.Context) error {
		restored++
		return nil
	})
	if !errors.Is(err, model.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if restored != 1 {
		t.Fatalf("expected exactly one restore, got %d", restored)
	}
	if payer.calls != 1 {
		t.Fatalf("expected one payout attempt, got %d", payer.calls)
	}
}

func TestSuccessfulPayoutSkipsRestore(t *testing.T) {
	l := testLedger(&stubPayer{})

	restored := 0
	err := l.payOrRestore(context.Background(), "a1", 100, "withdraw:e1", func(context.Context) error {
		restored++
		return nil
	})
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if restored != 0 {
		t.Fatal("restore must not run after a successful payout")
	}
}

func TestFailedRestoreSurfacesBothErrors(t *testing.T) {
	l := testLedger(&stubPayer{fail: true})

	err := l.payOrRestore(context.Background(), "a1", 100, "withdraw:e1", func(context.Context) error {
		return errors.New("db down")
	})
	if !errors.Is(err, model.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "restore also failed") {
		t.Fatalf("expected the restore failure in the error, got %v", err)
	}
}
