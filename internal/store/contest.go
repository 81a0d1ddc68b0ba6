package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Contest lifecycle. Transitions are monotonic: active → ended → completed.
type Status string

const (
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCompleted Status = "completed"
)

var (
	ErrContestNotFound = errors.New("store: contest not found")
	ErrContestClosed   = errors.New("store: contest is not accepting entries")
	ErrDuplicateEntry  = errors.New("store: recipient already entered")
	ErrEntryCapReached = errors.New("store: entry cap reached")
)

// Contest is a group incentive event paying PrizeAmount split across
// WinnerCount winners at expiry.
type Contest struct {
	ID          int64
	CommunityID string
	ChannelID   string // notification target
	Title       string
	PrizeAmount decimal.Decimal
	Currency    string
	WinnerCount int
	MaxEntries  int
	Status      Status
	CreatedAt   int64
	ExpiresAt   int64
}

// Entry is one (contest, recipient) pair. Unique per pair, append-only while
// the contest is active.
type Entry struct {
	ContestID   int64
	RecipientID string
}

const (
	contestSeqKey   = "seq:contest"
	contestDueKey   = "contests:due"
	contestIndexKey = "contests:index"
)

func contestKey(id int64) string        { return fmt.Sprintf("contest:%d", id) }
func contestEntriesKey(id int64) string { return fmt.Sprintf("contest:%d:entries", id) }
func contestWinnersKey(id int64) string { return fmt.Sprintf("contest:%d:winners", id) }

// CreateContest assigns an ID, stores the contest as active, and indexes it
// on the due set by expiry time.
func (s *Store) CreateContest(ctx context.Context, c *Contest) (int64, error) {
	id, err := s.nextID(ctx, contestSeqKey)
	if err != nil {
		return 0, err
	}
	c.ID = id
	c.Status = StatusActive
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().Unix()
	}

	key := contestKey(id)
	if err := s.rdb.HSet(ctx, key,
		"id", id,
		"community_id", c.CommunityID,
		"channel_id", c.ChannelID,
		"title", c.Title,
		"prize_amount", c.PrizeAmount.String(),
		"currency", c.Currency,
		"winner_count", c.WinnerCount,
		"max_entries", c.MaxEntries,
		"status", string(c.Status),
		"created_at", c.CreatedAt,
		"expires_at", c.ExpiresAt,
	).Err(); err != nil {
		return 0, fmt.Errorf("create contest: %w", err)
	}

	if err := s.rdb.ZAdd(ctx, contestDueKey, redis.Z{Score: float64(c.ExpiresAt), Member: id}).Err(); err != nil {
		return 0, fmt.Errorf("index due contest: %w", err)
	}
	if err := s.rdb.ZAdd(ctx, contestIndexKey, redis.Z{Score: float64(c.CreatedAt), Member: id}).Err(); err != nil {
		return 0, fmt.Errorf("index contest: %w", err)
	}
	return id, nil
}

func (s *Store) GetContest(ctx context.Context, id int64) (*Contest, error) {
	vals, err := s.rdb.HGetAll(ctx, contestKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get contest %d: %w", id, err)
	}
	if len(vals) == 0 {
		return nil, ErrContestNotFound
	}
	return contestFromMap(vals)
}

// ListContests returns all contests in creation order.
func (s *Store) ListContests(ctx context.Context) ([]Contest, error) {
	ids, err := s.rdb.ZRange(ctx, contestIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list contests: %w", err)
	}
	out := make([]Contest, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		c, err := s.GetContest(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

// AddEntry appends a (contest, recipient) entry. The contest must still be
// active and under its entry cap; a duplicate recipient is rejected.
func (s *Store) AddEntry(ctx context.Context, contestID int64, recipientID string) error {
	c, err := s.GetContest(ctx, contestID)
	if err != nil {
		return err
	}
	if c.Status != StatusActive {
		return ErrContestClosed
	}
	if c.MaxEntries > 0 {
		n, err := s.rdb.SCard(ctx, contestEntriesKey(contestID)).Result()
		if err != nil {
			return fmt.Errorf("count entries: %w", err)
		}
		if n >= int64(c.MaxEntries) {
			return ErrEntryCapReached
		}
	}
	added, err := s.rdb.SAdd(ctx, contestEntriesKey(contestID), recipientID).Result()
	if err != nil {
		return fmt.Errorf("add entry: %w", err)
	}
	if added == 0 {
		return ErrDuplicateEntry
	}
	return nil
}

func (s *Store) GetEntries(ctx context.Context, contestID int64) ([]Entry, error) {
	members, err := s.rdb.SMembers(ctx, contestEntriesKey(contestID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get entries %d: %w", contestID, err)
	}
	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		entries = append(entries, Entry{ContestID: contestID, RecipientID: m})
	}
	return entries, nil
}

// SetWinners persists the winner list exactly once. A second call is a no-op
// so that a duplicate settlement attempt can never alter already-set winners.
func (s *Store) SetWinners(ctx context.Context, contestID int64, recipientIDs []string) error {
	raw, err := json.Marshal(recipientIDs)
	if err != nil {
		return fmt.Errorf("marshal winners: %w", err)
	}
	if err := s.rdb.SetNX(ctx, contestWinnersKey(contestID), string(raw), 0).Err(); err != nil {
		return fmt.Errorf("set winners %d: %w", contestID, err)
	}
	return nil
}

func (s *Store) GetWinners(ctx context.Context, contestID int64) ([]string, error) {
	raw, err := s.rdb.Get(ctx, contestWinnersKey(contestID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get winners %d: %w", contestID, err)
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal winners %d: %w", contestID, err)
	}
	return ids, nil
}

// TransitionStatus atomically moves a contest from one status to another.
// Returns ErrStatusConflict when the current status differs from `from`.
func (s *Store) TransitionStatus(ctx context.Context, contestID int64, from, to Status) error {
	return s.transition(ctx, contestKey(contestID), string(from), string(to))
}

// DueContests returns IDs of contests whose expiry is at or before now and
// that are still on the due index.
func (s *Store) DueContests(ctx context.Context, now time.Time) ([]int64, error) {
	raw, err := s.rdb.ZRangeByScore(ctx, contestDueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("due contests: %w", err)
	}
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		id, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// RemoveDue drops a contest from the due index once a settlement attempt has
// been made for it (successful or not — settlement is not retried).
func (s *Store) RemoveDue(ctx context.Context, contestID int64) error {
	return s.rdb.ZRem(ctx, contestDueKey, contestID).Err()
}

func contestFromMap(m map[string]string) (*Contest, error) {
	id, _ := strconv.ParseInt(m["id"], 10, 64)
	winnerCount, _ := strconv.Atoi(m["winner_count"])
	maxEntries, _ := strconv.Atoi(m["max_entries"])
	createdAt, _ := strconv.ParseInt(m["created_at"], 10, 64)
	expiresAt, _ := strconv.ParseInt(m["expires_at"], 10, 64)
	prize, err := decimal.NewFromString(m["prize_amount"])
	if err != nil {
		return nil, fmt.Errorf("parse prize amount %q: %w", m["prize_amount"], err)
	}
	return &Contest{
		ID:          id,
		CommunityID: m["community_id"],
		ChannelID:   m["channel_id"],
		Title:       m["title"],
		PrizeAmount: prize,
		Currency:    m["currency"],
		WinnerCount: winnerCount,
		MaxEntries:  maxEntries,
		Status:      Status(m["status"]),
		CreatedAt:   createdAt,
		ExpiresAt:   expiresAt,
	}, nil
}
