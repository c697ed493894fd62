// Package verify is the capability interface onto the identity/verification
// collaborator. The marketplace only ever asks the two questions below; how
// verification levels are assigned is someone else's problem.
package verify

import (
	"context"
	"fmt"

	"ticket-exchange/internal/db"
	"ticket-exchange/internal/model"
)

type Gate interface {
	IsVerifiedAndActive(ctx context.Context, account string) (bool, error)
	HasMinimumLevel(ctx context.Context, account string, level int) (bool, error)
}

// RequireVerified runs the gate and folds both "not verified" and "lookup
// failed" into a typed authorization error. A gate failure is never treated
// as a silent false.
func RequireVerified(ctx context.Context, gate Gate, account string) error {
	ok, err := gate.IsVerifiedAndActive(ctx, account)
	if err != nil {
		return fmt.Errorf("%w: verification lookup failed: %v", model.ErrUnauthorized, err)
	}
	if !ok {
		return fmt.Errorf("%w: account %s is not verified", model.ErrUnauthorized, account)
	}
	return nil
}

// StoreGate answers from the verifications table.
type StoreGate struct {
	store *db.Store
}

func NewStoreGate(store *db.Store) *StoreGate { return &StoreGate{store: store} }

func (g *StoreGate) IsVerifiedAndActive(ctx context.Context, account string) (bool, error) {
	active, _, found, err := g.store.GetVerification(ctx, account)
	if err != nil {
		return false, err
	}
	return found && active, nil
}

func (g *StoreGate) HasMinimumLevel(ctx context.Context, account string, level int) (bool, error) {
	active, have, found, err := g.store.GetVerification(ctx, account)
	if err != nil {
		return false, err
	}
	return found && active && have >= level, nil
}
