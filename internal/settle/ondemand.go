package settle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/prizeworks/payoutd/internal/payout"
	"github.com/prizeworks/payoutd/internal/store"
)

// ErrNoTreasury is returned when an on-demand payment is requested for a
// community without a configured funding account.
var ErrNoTreasury = errors.New("settle: no funding account configured")

// JobStore is the slice of the store the on-demand flows need.
type JobStore interface {
	GetTask(ctx context.Context, id int64) (*store.Task, error)
	UpdateTaskStatus(ctx context.Context, id int64, from, to store.TaskStatus) error
	GetProof(ctx context.Context, id int64) (*store.Proof, error)
	ApproveProof(ctx context.Context, id int64, reviewer string) error
}

// PriceSource is satisfied by *oracle.Client.
type PriceSource interface {
	LedgerUnitPrice(ctx context.Context) (decimal.Decimal, error)
}

// AddressPayer extends Payer with direct-address payouts for tasks.
type AddressPayer interface {
	Payer
	PayAddress(ctx context.Context, funding *store.FundingAccount, address string, amount decimal.Decimal) payout.Outcome
}

// OnDemand runs the non-contest payment flows (task execution, proof
// approval) through the same payout executor as contest settlement.
type OnDemand struct {
	store    JobStore
	resolver TreasuryResolver
	payer    AddressPayer
	oracle   PriceSource
	log      *zap.Logger
}

func NewOnDemand(st JobStore, resolver TreasuryResolver, payer AddressPayer, oracle PriceSource, log *zap.Logger) *OnDemand {
	return &OnDemand{store: st, resolver: resolver, payer: payer, oracle: oracle, log: log}
}

// ExecuteTask pays a pending task's recipient address and marks the task
// executed or failed by the payout outcome.
func (d *OnDemand) ExecuteTask(ctx context.Context, taskID int64) (*payout.Outcome, error) {
	task, err := d.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != store.TaskPending {
		return nil, fmt.Errorf("task %d already %s: %w", taskID, task.Status, store.ErrStatusConflict)
	}
	funding, err := d.resolver.Resolve(ctx, task.CommunityID)
	if err != nil {
		return nil, err
	}
	if funding == nil {
		return nil, ErrNoTreasury
	}

	out := d.payer.PayAddress(ctx, funding, task.RecipientAddress, task.Amount)

	to := store.TaskExecuted
	if !out.Success {
		to = store.TaskFailed
	}
	if err := d.store.UpdateTaskStatus(ctx, taskID, store.TaskPending, to); err != nil {
		d.log.Error("update task status", zap.Int64("task", taskID), zap.Error(err))
	}
	return &out, nil
}

// ApproveProof approves a pending proof and, when pay is set, pays the
// submitting recipient. USD-denominated proofs are converted to ledger
// units at the oracle's current price before payment. The approval CAS
// guarantees a proof is paid at most once.
func (d *OnDemand) ApproveProof(ctx context.Context, proofID int64, reviewer string, pay bool) (*payout.Outcome, error) {
	if err := d.store.ApproveProof(ctx, proofID, reviewer); err != nil {
		return nil, err
	}
	if !pay {
		return nil, nil
	}

	proof, err := d.store.GetProof(ctx, proofID)
	if err != nil {
		return nil, err
	}
	amount := proof.Amount
	if strings.EqualFold(proof.Currency, "USD") {
		price, err := d.oracle.LedgerUnitPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("ledger unit price: %w", err)
		}
		if price.Sign() <= 0 {
			return nil, fmt.Errorf("ledger unit price is not positive: %s", price)
		}
		amount = proof.Amount.Div(price)
	}

	funding, err := d.resolver.Resolve(ctx, proof.CommunityID)
	if err != nil {
		return nil, err
	}
	if funding == nil {
		return nil, ErrNoTreasury
	}

	out := d.payer.Pay(ctx, funding, proof.RecipientID, amount)
	return &out, nil
}
