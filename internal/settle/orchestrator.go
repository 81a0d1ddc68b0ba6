package settle

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/prizeworks/payoutd/internal/payout"
	"github.com/prizeworks/payoutd/internal/store"
)

// ContestStore is the slice of the store the orchestrator mutates.
type ContestStore interface {
	GetEntries(ctx context.Context, contestID int64) ([]store.Entry, error)
	SetWinners(ctx context.Context, contestID int64, recipientIDs []string) error
	TransitionStatus(ctx context.Context, contestID int64, from, to store.Status) error
}

// WinnerSelector is satisfied by *payout.Selector.
type WinnerSelector interface {
	Pick(entries []store.Entry, k int) []store.Entry
}

// TreasuryResolver is satisfied by *payout.Resolver.
type TreasuryResolver interface {
	Resolve(ctx context.Context, communityID string) (*store.FundingAccount, error)
}

// Payer is satisfied by *payout.Executor.
type Payer interface {
	Pay(ctx context.Context, funding *store.FundingAccount, recipientID string, amount decimal.Decimal) payout.Outcome
}

// Notifier consumes settlement reports. Notification failures never roll
// back or retry the settlement itself.
type Notifier interface {
	Notify(ctx context.Context, r *Report) error
}

// Orchestrator drives the full settlement lifecycle for one contest:
// active → ended, winner selection, funding resolution, sequential payouts,
// ended → completed, report delivery.
//
// It assumes at most one invocation per contest; the store-level status CAS
// rejects a concurrent second attempt with ErrStatusConflict.
type Orchestrator struct {
	store    ContestStore
	selector WinnerSelector
	resolver TreasuryResolver
	payer    Payer
	notifier Notifier
	log      *zap.Logger
}

func NewOrchestrator(
	st ContestStore,
	selector WinnerSelector,
	resolver TreasuryResolver,
	payer Payer,
	notifier Notifier,
	log *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:    st,
		selector: selector,
		resolver: resolver,
		payer:    payer,
		notifier: notifier,
		log:      log,
	}
}

// Settle settles one contest. The active→ended transition is the first
// action and the only fatal failure point: if it cannot be persisted the
// whole operation fails loudly before any side effect. Everything after is
// recovered into the report, and the contest always reaches a terminal
// status once "ended" has been committed.
func (o *Orchestrator) Settle(ctx context.Context, c *store.Contest) (*Report, error) {
	if err := o.store.TransitionStatus(ctx, c.ID, store.StatusActive, store.StatusEnded); err != nil {
		return nil, fmt.Errorf("end contest %d: %w", c.ID, err)
	}
	o.log.Info("settling contest",
		zap.Int64("contest", c.ID),
		zap.String("title", c.Title),
	)

	report := o.run(ctx, c)

	if err := o.store.TransitionStatus(ctx, c.ID, store.StatusEnded, store.StatusCompleted); err != nil {
		// The contest is already out of "active"; log and keep the report.
		o.log.Error("complete contest", zap.Int64("contest", c.ID), zap.Error(err))
	}

	if o.notifier != nil {
		if err := o.notifier.Notify(ctx, report); err != nil {
			o.log.Warn("deliver settlement report", zap.Int64("contest", c.ID), zap.Error(err))
		}
	}

	o.log.Info("contest settled",
		zap.Int64("contest", c.ID),
		zap.String("result", string(report.Result)),
		zap.Int("entries", report.EntryCount),
		zap.Int("paid", report.Paid()),
	)
	return report, nil
}

// run executes the settlement body. Errors degrade to a {result:"error"}
// report instead of propagating, so the caller layer never sees a bare
// lookup failure after the contest has left "active".
func (o *Orchestrator) run(ctx context.Context, c *store.Contest) *Report {
	report := &Report{ContestID: c.ID, Title: c.Title, Currency: c.Currency}

	entries, err := o.store.GetEntries(ctx, c.ID)
	if err != nil {
		report.Result = ResultError
		report.Err = err.Error()
		return report
	}
	report.EntryCount = len(entries)
	if len(entries) == 0 {
		report.Result = ResultNoEntries
		return report
	}

	winners := o.selector.Pick(entries, c.WinnerCount)
	if len(winners) == 0 {
		// Degenerate winner_count = 0: nothing to pay.
		report.Result = ResultNoEntries
		return report
	}
	ids := make([]string, len(winners))
	for i, w := range winners {
		ids[i] = w.RecipientID
	}
	if err := o.store.SetWinners(ctx, c.ID, ids); err != nil {
		report.Result = ResultError
		report.Err = err.Error()
		return report
	}
	report.Winners = ids
	// Exact per-winner share; currency rounding is presentation, not state.
	report.PrizePerWinner = c.PrizeAmount.Div(decimal.NewFromInt(int64(len(winners))))

	funding, err := o.resolver.Resolve(ctx, c.CommunityID)
	if err != nil {
		report.Result = ResultError
		report.Err = err.Error()
		return report
	}
	if funding == nil {
		// Winners stand, prizes owed manually.
		report.Result = ResultNoTreasury
		return report
	}

	// Sequential on purpose: every winner draws on the same funding balance
	// and the executor's balance pre-check is not atomic with the transfer.
	outcomes := make([]payout.Outcome, 0, len(winners))
	for _, w := range winners {
		out := o.payer.Pay(ctx, funding, w.RecipientID, report.PrizePerWinner)
		if !out.Success {
			o.log.Warn("winner payout failed",
				zap.Int64("contest", c.ID),
				zap.String("recipient", w.RecipientID),
				zap.String("reason", out.Reason),
			)
		}
		outcomes = append(outcomes, out)
	}
	report.Outcomes = outcomes
	report.Result = ResultProcessed
	return report
}
