package escrow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ticket-exchange/internal/ledger"
	"ticket-exchange/internal/model"
	"ticket-exchange/internal/payout"
	"ticket-exchange/internal/ticket"
)

func testVault(dir ticket.Directory) *Vault {
	return NewVault(nil, dir, nil, ledger.NewLatch(), 250, zap.NewNop().Sugar())
}

type failingPayer struct{ calls int }

func (p *failingPayer) GetProvider() payout.Provider { return "stub" }

func (p *failingPayer) Payout(ctx context.Context, account string, amount int64, reference string) error {
	p.calls++
	return errors.New("rail down")
}

func TestRoyaltyLookupFailureDegradesToZero(t *testing.T) {
	dir := ticket.NewMemory()
	dir.Fail = true
	v := testVault(dir)

	recipient, bps := v.royaltyFor(context.Background(), "ev1")
	require.Empty(t, recipient)
	require.Zero(t, bps)
}

func TestRoyaltyMissingPolicyDegradesToZero(t *testing.T) {
	dir := ticket.NewMemory()
	dir.Events["ev1"] = &model.TicketEvent{EventID: "ev1"} // no recipient, no bps
	v := testVault(dir)

	recipient, bps := v.royaltyFor(context.Background(), "ev1")
	require.Empty(t, recipient)
	require.Zero(t, bps)
}

func TestRoyaltyPolicyResolved(t *testing.T) {
	dir := ticket.NewMemory()
	dir.Events["ev1"] = &model.TicketEvent{EventID: "ev1", RoyaltyRecipient: "org-1", RoyaltyBps: 500}
	v := testVault(dir)

	recipient, bps := v.royaltyFor(context.Background(), "ev1")
	require.Equal(t, "org-1", recipient)
	require.EqualValues(t, 500, bps)
}

func TestEnableEmergencyRefundRequiresCancelledEvent(t *testing.T) {
	dir := ticket.NewMemory()
	dir.Events["ev1"] = &model.TicketEvent{EventID: "ev1", Cancelled: false}
	v := testVault(dir)

	err := v.EnableEmergencyRefund(context.Background(), "ev1")
	require.ErrorIs(t, err, model.ErrInvalidState)

	err = v.EnableEmergencyRefund(context.Background(), "unknown")
	require.ErrorIs(t, err, model.ErrInvalidState)
}

func TestClaimRequiresEmergencyMode(t *testing.T) {
	info := &model.EventInfo{EventID: "ev1"}
	bal := &model.AccountBalance{AccountID: "a1", EventID: "ev1", OriginalDeposit: 1000}

	_, err := claimAmount(info, bal)
	require.ErrorIs(t, err, model.ErrInvalidState)
}

func TestSecondClaimFindsNothing(t *testing.T) {
	info := &model.EventInfo{EventID: "ev1", EmergencyRefund: true}
	funded := &model.AccountBalance{AccountID: "a1", EventID: "ev1", OriginalDeposit: 1000, Locked: 300}

	amount, err := claimAmount(info, funded)
	require.NoError(t, err)
	require.EqualValues(t, 1300, amount)

	// A paid claim deletes the row; the next lookup lazily recreates it empty.
	cleared := &model.AccountBalance{AccountID: "a1", EventID: "ev1"}
	_, err = claimAmount(info, cleared)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestFailedTransferRunsRestore(t *testing.T) {
	payer := &failingPayer{}
	v := NewVault(nil, ticket.NewMemory(), payer, ledger.NewLatch(), 250, zap.NewNop().Sugar())

	restored := 0
	err := v.payOrRestore(context.Background(), "a1", 500, "ref-1", func(context.Context) error {
		restored++
		return nil
	})
	require.ErrorIs(t, err, model.ErrTransferFailed)
	require.Equal(t, 1, restored)
	require.Equal(t, 1, payer.calls)
}
