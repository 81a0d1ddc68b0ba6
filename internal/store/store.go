package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrStatusConflict is returned when a conditional status transition finds a
// different current status than the caller expected. For contests this is the
// store-level settlement guard: of two concurrent settlement attempts, exactly
// one wins the active→ended transition.
var ErrStatusConflict = errors.New("store: status transition conflict")

// transitionScript compares-and-sets the "status" field of a hash.
// Returns 1 when the transition was applied, 0 otherwise.
var transitionScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'status')
if cur == ARGV[1] then
  redis.call('HSET', KEYS[1], 'status', ARGV[2])
  return 1
end
return 0
`)

// Store is the redis-backed persistent store. It is the single source of
// truth for contests, entries, winners, treasuries, recipient wallets,
// transfer records, tasks, and proofs.
type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// transition runs the conditional status CAS against the given hash key.
func (s *Store) transition(ctx context.Context, key, from, to string) error {
	ok, err := transitionScript.Run(ctx, s.rdb, []string{key}, from, to).Int64()
	if err != nil {
		return fmt.Errorf("status transition %s (%s→%s): %w", key, from, to, err)
	}
	if ok == 0 {
		return fmt.Errorf("%w: %s is not %q", ErrStatusConflict, key, from)
	}
	return nil
}

func (s *Store) nextID(ctx context.Context, seqKey string) (int64, error) {
	id, err := s.rdb.Incr(ctx, seqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("next id %s: %w", seqKey, err)
	}
	return id, nil
}
