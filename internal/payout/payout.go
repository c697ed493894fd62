// Package payout abstracts the external fund-transfer rail. Transfers are
// fallible, may be slow, and may call back into the marketplace; callers must
// commit their own state before invoking one.
package payout

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type Provider string

const (
	ProviderDev  Provider = "dev"
	ProviderNoop Provider = "noop"
)

// Transfer pushes funds out to an account. A non-nil error means no funds
// moved and the caller must restore any state it already zeroed.
type Transfer interface {
	GetProvider() Provider
	Payout(ctx context.Context, account string, amount int64, reference string) error
}

// New creates a transfer rail by provider name.
func New(provider Provider, log *zap.SugaredLogger) (Transfer, error) {
	switch provider {
	case ProviderDev:
		return &devTransfer{log: log}, nil
	case ProviderNoop:
		return noopTransfer{}, nil
	default:
		return nil, fmt.Errorf("unsupported payout provider %q", provider)
	}
}

// devTransfer logs and succeeds. Stands in for a bank/chain rail in
// development deployments.
type devTransfer struct {
	log *zap.SugaredLogger
}

func (d *devTransfer) GetProvider() Provider { return ProviderDev }

func (d *devTransfer) Payout(ctx context.Context, account string, amount int64, reference string) error {
	d.log.Infow("payout", "account", account, "amount", amount, "reference", reference)
	return nil
}

type noopTransfer struct{}

func (noopTransfer) GetProvider() Provider { return ProviderNoop }

func (noopTransfer) Payout(context.Context, string, int64, string) error { return nil }
