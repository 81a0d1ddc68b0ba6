package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/prizeworks/payoutd/internal/config"
)

// maxSendAttempts bounds how often a single transfer is re-submitted before
// it is reported as failed.
const maxSendAttempts = 3

const transferGasLimit = 21000

// Client executes native-unit transfers from the service funding wallet and
// reports spendable balances. Amounts are in base units (10^9 per display
// unit).
type Client struct {
	eth     *ethclient.Client
	key     *ecdsa.PrivateKey
	wallet  common.Address
	chainID *big.Int
}

func NewClient(cfg *config.Config) (*Client, error) {
	eth, err := ethclient.Dial(cfg.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	key, err := crypto.HexToECDSA(cfg.Chain.FundingPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("parse funding private key: %w", err)
	}
	return &Client{
		eth:     eth,
		key:     key,
		wallet:  crypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(cfg.Chain.ChainID),
	}, nil
}

// WalletAddress returns the address of the custodied funding wallet.
func (c *Client) WalletAddress() string { return c.wallet.Hex() }

// Balance reports the current spendable balance of an account in base units.
func (c *Client) Balance(ctx context.Context, address string) (*big.Int, error) {
	bal, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("balance %s: %w", address, err)
	}
	return bal, nil
}

// Transfer sends amountBase from the funding wallet to the recipient and
// waits for the mined receipt. At most maxSendAttempts submissions; a
// reverted transaction is an error. The returned receipt identifier is the
// transaction hash.
func (c *Client) Transfer(ctx context.Context, from, to string, amountBase *big.Int) (string, error) {
	fromAddr := common.HexToAddress(from)
	if fromAddr != c.wallet {
		return "", fmt.Errorf("funding key for %s not held", from)
	}
	toAddr := common.HexToAddress(to)

	var tx *types.Transaction
	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		tx, lastErr = c.send(ctx, toAddr, amountBase)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		time.Sleep(time.Second)
	}
	if lastErr != nil {
		return "", fmt.Errorf("transfer after %d attempts: %w", maxSendAttempts, lastErr)
	}

	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return "", fmt.Errorf("wait mined: %w", err)
	}
	if receipt.Status == 0 {
		return "", fmt.Errorf("tx reverted: %s", tx.Hash().Hex())
	}
	return tx.Hash().Hex(), nil
}

func (c *Client) send(ctx context.Context, to common.Address, value *big.Int) (*types.Transaction, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.wallet)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	tx := types.NewTransaction(nonce, to, value, transferGasLimit, gasPrice, nil)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}
	return signed, nil
}
