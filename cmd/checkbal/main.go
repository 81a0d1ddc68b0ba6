package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/prizeworks/payoutd/internal/config"
	"github.com/prizeworks/payoutd/internal/ledger"
)

// checkbal prints the funding wallet's spendable balance. Operator utility.
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}
	chain, err := ledger.NewClient(cfg)
	if err != nil {
		log.Fatal("ledger client init failed", zap.Error(err))
	}

	bal, err := chain.Balance(context.Background(), chain.WalletAddress())
	if err != nil {
		log.Error("balance lookup failed", zap.Error(err))
		os.Exit(1)
	}
	units := decimal.NewFromBigInt(bal, -9)
	fmt.Printf("wallet:  %s\n", chain.WalletAddress())
	fmt.Printf("balance: %s base units (%s)\n", bal, units)
}
