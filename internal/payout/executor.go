package payout

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/prizeworks/payoutd/internal/store"
)

// Failure reason codes surfaced in payout outcomes. Ledger errors are
// reported verbatim instead.
const (
	ReasonNoWallet          = "no wallet connected"
	ReasonInsufficientFunds = "insufficient funding balance"
)

// baseUnitFactor converts a display-unit amount to the ledger's smallest
// indivisible unit: 1 unit = 10^9 base units.
var baseUnitFactor = decimal.New(1, 9)

// ToBaseUnits floors the converted amount. Never rounds up — a truncated
// payout is acceptable, an over-payment is not.
func ToBaseUnits(amount decimal.Decimal) *big.Int {
	return amount.Mul(baseUnitFactor).Floor().BigInt()
}

// Outcome is the transient per-recipient result of one payout attempt.
type Outcome struct {
	RecipientID string          `json:"recipient_id,omitempty"`
	Address     string          `json:"address,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Success     bool            `json:"success"`
	ReceiptID   string          `json:"receipt_id,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

// Ledger is satisfied by *ledger.Client.
type Ledger interface {
	Balance(ctx context.Context, address string) (*big.Int, error)
	Transfer(ctx context.Context, from, to string, amountBase *big.Int) (string, error)
}

// Directory is the slice of the store the executor needs.
type Directory interface {
	GetRecipientAccount(ctx context.Context, recipientID string) (*store.RecipientAccount, error)
	RecordTransfer(ctx context.Context, rec store.TransferRecord) error
}

// Executor performs one verified, recorded transfer per call. It is the
// single payout path for contest settlement, task execution, and proof
// approval.
type Executor struct {
	ledger Ledger
	dir    Directory
	log    *zap.Logger
}

func NewExecutor(l Ledger, dir Directory, log *zap.Logger) *Executor {
	return &Executor{ledger: l, dir: dir, log: log}
}

// Pay resolves the recipient's linked wallet and pays it. A recipient with
// no linked wallet fails locally; no ledger call is made.
func (e *Executor) Pay(ctx context.Context, funding *store.FundingAccount, recipientID string, amount decimal.Decimal) Outcome {
	acct, err := e.dir.GetRecipientAccount(ctx, recipientID)
	if err != nil {
		return Outcome{RecipientID: recipientID, Amount: amount, Reason: err.Error()}
	}
	if acct == nil || acct.Address == "" {
		return Outcome{RecipientID: recipientID, Amount: amount, Reason: ReasonNoWallet}
	}
	out := e.PayAddress(ctx, funding, acct.Address, amount)
	out.RecipientID = recipientID
	return out
}

// PayAddress verifies the funding balance, issues a single bounded transfer,
// and records the result. The balance pre-check is best-effort: it is not
// atomic with the transfer, which is why payouts drawing on one funding
// account must run sequentially.
func (e *Executor) PayAddress(ctx context.Context, funding *store.FundingAccount, address string, amount decimal.Decimal) Outcome {
	out := Outcome{Address: address, Amount: amount}

	amountBase := ToBaseUnits(amount)
	balance, err := e.ledger.Balance(ctx, funding.Address)
	if err != nil {
		out.Reason = err.Error()
		return out
	}
	if balance.Cmp(amountBase) < 0 {
		out.Reason = ReasonInsufficientFunds
		return out
	}

	receiptID, err := e.ledger.Transfer(ctx, funding.Address, address, amountBase)
	if err != nil {
		out.Reason = err.Error()
		return out
	}

	rec := store.TransferRecord{
		CommunityID: funding.CommunityID,
		From:        funding.Address,
		To:          address,
		Amount:      amount,
		ReceiptID:   receiptID,
	}
	if err := e.dir.RecordTransfer(ctx, rec); err != nil {
		// The transfer already happened; the outcome stays successful so the
		// receipt is not lost, but the missing record must be visible.
		e.log.Error("transfer succeeded but record write failed",
			zap.String("receipt", receiptID),
			zap.String("to", address),
			zap.Error(err),
		)
	}

	out.Success = true
	out.ReceiptID = receiptID
	return out
}
