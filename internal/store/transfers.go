package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransferRecord is the immutable record of one completed ledger transfer.
// Written only after the transfer succeeded; never mutated or deleted.
type TransferRecord struct {
	CommunityID string          `json:"community_id"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Amount      decimal.Decimal `json:"amount"`
	ReceiptID   string          `json:"receipt_id"`
	At          int64           `json:"at"`
}

func transfersKey(communityID string) string { return "transfers:" + communityID }

func (s *Store) RecordTransfer(ctx context.Context, rec TransferRecord) error {
	if rec.At == 0 {
		rec.At = time.Now().Unix()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal transfer record: %w", err)
	}
	if err := s.rdb.RPush(ctx, transfersKey(rec.CommunityID), string(raw)).Err(); err != nil {
		return fmt.Errorf("record transfer: %w", err)
	}
	return nil
}

func (s *Store) ListTransfers(ctx context.Context, communityID string) ([]TransferRecord, error) {
	raw, err := s.rdb.LRange(ctx, transfersKey(communityID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list transfers %s: %w", communityID, err)
	}
	out := make([]TransferRecord, 0, len(raw))
	for _, r := range raw {
		var rec TransferRecord
		if err := json.Unmarshal([]byte(r), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
