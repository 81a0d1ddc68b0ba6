package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// FundingAccount is a community's registered treasury. Absence means the
// community has not configured automatic payouts — a valid terminal state,
// not an error.
type FundingAccount struct {
	CommunityID string
	Address     string
	LinkedBy    string
	LinkedAt    int64
}

// RecipientAccount is a recipient's linked ledger address. Absence means the
// recipient cannot currently receive automated payment.
type RecipientAccount struct {
	RecipientID string
	Address     string
	LinkedAt    int64
}

func treasuryKey(communityID string) string { return "treasury:" + communityID }
func walletKey(recipientID string) string   { return "wallet:" + recipientID }

func (s *Store) SetFundingAccount(ctx context.Context, a FundingAccount) error {
	if a.LinkedAt == 0 {
		a.LinkedAt = time.Now().Unix()
	}
	err := s.rdb.HSet(ctx, treasuryKey(a.CommunityID),
		"community_id", a.CommunityID,
		"address", a.Address,
		"linked_by", a.LinkedBy,
		"linked_at", a.LinkedAt,
	).Err()
	if err != nil {
		return fmt.Errorf("set treasury %s: %w", a.CommunityID, err)
	}
	return nil
}

// GetFundingAccount returns (nil, nil) when no treasury is configured.
func (s *Store) GetFundingAccount(ctx context.Context, communityID string) (*FundingAccount, error) {
	vals, err := s.rdb.HGetAll(ctx, treasuryKey(communityID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get treasury %s: %w", communityID, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	linkedAt, _ := strconv.ParseInt(vals["linked_at"], 10, 64)
	return &FundingAccount{
		CommunityID: vals["community_id"],
		Address:     vals["address"],
		LinkedBy:    vals["linked_by"],
		LinkedAt:    linkedAt,
	}, nil
}

func (s *Store) LinkRecipientAccount(ctx context.Context, recipientID, address string) error {
	err := s.rdb.HSet(ctx, walletKey(recipientID),
		"recipient_id", recipientID,
		"address", address,
		"linked_at", time.Now().Unix(),
	).Err()
	if err != nil {
		return fmt.Errorf("link wallet %s: %w", recipientID, err)
	}
	return nil
}

// GetRecipientAccount returns (nil, nil) when the recipient has no linked wallet.
func (s *Store) GetRecipientAccount(ctx context.Context, recipientID string) (*RecipientAccount, error) {
	vals, err := s.rdb.HGetAll(ctx, walletKey(recipientID)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get wallet %s: %w", recipientID, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	linkedAt, _ := strconv.ParseInt(vals["linked_at"], 10, 64)
	return &RecipientAccount{
		RecipientID: vals["recipient_id"],
		Address:     vals["address"],
		LinkedAt:    linkedAt,
	}, nil
}
