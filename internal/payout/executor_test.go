package payout

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/prizeworks/payoutd/internal/store"
)

type fakeLedger struct {
	balance     *big.Int
	balanceErr  error
	transferErr error
	receipt     string

	transferCalls int
	lastFrom      string
	lastTo        string
	lastAmount    *big.Int
}

func (f *fakeLedger) Balance(_ context.Context, _ string) (*big.Int, error) {
	return f.balance, f.balanceErr
}

func (f *fakeLedger) Transfer(_ context.Context, from, to string, amount *big.Int) (string, error) {
	f.transferCalls++
	f.lastFrom, f.lastTo, f.lastAmount = from, to, amount
	if f.transferErr != nil {
		return "", f.transferErr
	}
	return f.receipt, nil
}

type fakeDirectory struct {
	wallets   map[string]string
	walletErr error
	recordErr error
	records   []store.TransferRecord
}

func (f *fakeDirectory) GetRecipientAccount(_ context.Context, id string) (*store.RecipientAccount, error) {
	if f.walletErr != nil {
		return nil, f.walletErr
	}
	addr, ok := f.wallets[id]
	if !ok {
		return nil, nil
	}
	return &store.RecipientAccount{RecipientID: id, Address: addr}, nil
}

func (f *fakeDirectory) RecordTransfer(_ context.Context, rec store.TransferRecord) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.records = append(f.records, rec)
	return nil
}

var testFunding = &store.FundingAccount{
	CommunityID: "guild-1",
	Address:     "0xF000000000000000000000000000000000000001",
}

func newTestExecutor(l *fakeLedger, d *fakeDirectory) *Executor {
	return NewExecutor(l, d, zap.NewNop())
}

func TestToBaseUnits_Floors(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1", "1000000000"},
		{"50", "50000000000"},
		{"0.000000001", "1"},
		// Floor, never up: sub-base-unit remainders are dropped.
		{"0.0000000019", "1"},
		{"3.333333333333", "3333333333"},
		{"0", "0"},
	}
	for _, c := range cases {
		got := ToBaseUnits(decimal.RequireFromString(c.in))
		if got.String() != c.want {
			t.Errorf("ToBaseUnits(%s): got %s want %s", c.in, got, c.want)
		}
	}
}

func TestPay_NoWalletLinked(t *testing.T) {
	ledger := &fakeLedger{balance: big.NewInt(1e12)}
	dir := &fakeDirectory{wallets: map[string]string{}}
	e := newTestExecutor(ledger, dir)

	out := e.Pay(context.Background(), testFunding, "alice", decimal.RequireFromString("10"))
	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Reason != ReasonNoWallet {
		t.Errorf("Reason: got %q want %q", out.Reason, ReasonNoWallet)
	}
	// No ledger call is made for an unlinked recipient.
	if ledger.transferCalls != 0 {
		t.Errorf("expected 0 transfer calls, got %d", ledger.transferCalls)
	}
}

func TestPay_InsufficientBalance(t *testing.T) {
	// 10 units needed, balance is zero.
	ledger := &fakeLedger{balance: big.NewInt(0)}
	dir := &fakeDirectory{wallets: map[string]string{"alice": "0xA"}}
	e := newTestExecutor(ledger, dir)

	out := e.Pay(context.Background(), testFunding, "alice", decimal.RequireFromString("10"))
	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Reason != ReasonInsufficientFunds {
		t.Errorf("Reason: got %q want %q", out.Reason, ReasonInsufficientFunds)
	}
	if ledger.transferCalls != 0 {
		t.Errorf("no transfer may be attempted, got %d calls", ledger.transferCalls)
	}
	if len(dir.records) != 0 {
		t.Errorf("no record may be written, got %d", len(dir.records))
	}
}

func TestPay_BalanceJustBelowShare(t *testing.T) {
	ledger := &fakeLedger{balance: big.NewInt(49_999_999_999)} // 50 units = 5e10
	dir := &fakeDirectory{wallets: map[string]string{"alice": "0xA"}}
	e := newTestExecutor(ledger, dir)

	out := e.Pay(context.Background(), testFunding, "alice", decimal.RequireFromString("50"))
	if out.Success || out.Reason != ReasonInsufficientFunds {
		t.Fatalf("expected insufficient funds, got %+v", out)
	}
}

func TestPay_Success(t *testing.T) {
	ledger := &fakeLedger{balance: big.NewInt(1e12), receipt: "0xsig1"}
	dir := &fakeDirectory{wallets: map[string]string{"alice": "0xA"}}
	e := newTestExecutor(ledger, dir)

	amount := decimal.RequireFromString("50")
	out := e.Pay(context.Background(), testFunding, "alice", amount)
	if !out.Success {
		t.Fatalf("expected success, got reason %q", out.Reason)
	}
	if out.ReceiptID != "0xsig1" {
		t.Errorf("ReceiptID: got %q", out.ReceiptID)
	}
	if out.RecipientID != "alice" || out.Address != "0xA" {
		t.Errorf("identity fields: %+v", out)
	}
	if ledger.lastFrom != testFunding.Address || ledger.lastTo != "0xA" {
		t.Errorf("transfer endpoints: from %q to %q", ledger.lastFrom, ledger.lastTo)
	}
	if ledger.lastAmount.String() != "50000000000" {
		t.Errorf("base units: got %s", ledger.lastAmount)
	}

	if len(dir.records) != 1 {
		t.Fatalf("expected 1 transfer record, got %d", len(dir.records))
	}
	rec := dir.records[0]
	if rec.CommunityID != "guild-1" || rec.ReceiptID != "0xsig1" || !rec.Amount.Equal(amount) {
		t.Errorf("record: %+v", rec)
	}
}

func TestPay_TransferErrorVerbatim(t *testing.T) {
	ledger := &fakeLedger{
		balance:     big.NewInt(1e12),
		transferErr: errors.New("rpc: blockhash not found"),
	}
	dir := &fakeDirectory{wallets: map[string]string{"alice": "0xA"}}
	e := newTestExecutor(ledger, dir)

	out := e.Pay(context.Background(), testFunding, "alice", decimal.RequireFromString("1"))
	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Reason != "rpc: blockhash not found" {
		t.Errorf("Reason not verbatim: %q", out.Reason)
	}
	if len(dir.records) != 0 {
		t.Errorf("failed transfer must not be recorded")
	}
}

func TestPay_RecordFailureStillSuccess(t *testing.T) {
	ledger := &fakeLedger{balance: big.NewInt(1e12), receipt: "0xsig2"}
	dir := &fakeDirectory{
		wallets:   map[string]string{"alice": "0xA"},
		recordErr: errors.New("redis down"),
	}
	e := newTestExecutor(ledger, dir)

	out := e.Pay(context.Background(), testFunding, "alice", decimal.RequireFromString("1"))
	// The transfer happened; the receipt must not be lost.
	if !out.Success || out.ReceiptID != "0xsig2" {
		t.Fatalf("expected success with receipt, got %+v", out)
	}
}

func TestPayAddress_Direct(t *testing.T) {
	ledger := &fakeLedger{balance: big.NewInt(1e12), receipt: "0xsig3"}
	dir := &fakeDirectory{}
	e := newTestExecutor(ledger, dir)

	out := e.PayAddress(context.Background(), testFunding, "0xDEST", decimal.RequireFromString("2.5"))
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Reason)
	}
	if out.RecipientID != "" {
		t.Errorf("direct payout carries no recipient id: %+v", out)
	}
	if ledger.lastAmount.String() != "2500000000" {
		t.Errorf("base units: got %s", ledger.lastAmount)
	}
}
