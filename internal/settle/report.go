package settle

import (
	"github.com/shopspring/decimal"

	"github.com/prizeworks/payoutd/internal/payout"
)

// Result classifies how a settlement terminated. Every settlement produces
// exactly one report; a partially-failed payout batch is still "processed".
type Result string

const (
	ResultNoEntries  Result = "no_entries"
	ResultNoTreasury Result = "no_treasury"
	ResultProcessed  Result = "processed"
	ResultError      Result = "error"
)

// Report is the structured settlement outcome handed to the notifier and
// returned to the triggering caller. It never carries a bare transport error.
type Report struct {
	ContestID      int64            `json:"contest_id"`
	Title          string           `json:"title"`
	Currency       string           `json:"currency"`
	Result         Result           `json:"result"`
	EntryCount     int              `json:"entry_count"`
	Winners        []string         `json:"winners,omitempty"`
	PrizePerWinner decimal.Decimal  `json:"prize_per_winner"`
	Outcomes       []payout.Outcome `json:"outcomes,omitempty"`
	Err            string           `json:"error,omitempty"`
}

// Paid counts successful outcomes.
func (r *Report) Paid() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}
