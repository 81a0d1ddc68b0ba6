package payout

import (
	"context"

	"github.com/prizeworks/payoutd/internal/store"
)

// FundingSource is satisfied by *store.Store.
type FundingSource interface {
	GetFundingAccount(ctx context.Context, communityID string) (*store.FundingAccount, error)
}

// Resolver determines which funding account backs a settlement.
type Resolver struct {
	src FundingSource
}

func NewResolver(src FundingSource) *Resolver {
	return &Resolver{src: src}
}

// Resolve returns the community's funding account, or (nil, nil) when no
// treasury is configured. An unconfigured treasury is a terminal branch the
// orchestrator reports as no_treasury, not an error.
func (r *Resolver) Resolve(ctx context.Context, communityID string) (*store.FundingAccount, error) {
	return r.src.GetFundingAccount(ctx, communityID)
}
