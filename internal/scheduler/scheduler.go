package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/prizeworks/payoutd/internal/settle"
	"github.com/prizeworks/payoutd/internal/store"
)

// Settler is satisfied by *settle.Orchestrator.
type Settler interface {
	Settle(ctx context.Context, c *store.Contest) (*settle.Report, error)
}

// ContestSource is the slice of the store the poller reads.
type ContestSource interface {
	DueContests(ctx context.Context, now time.Time) ([]int64, error)
	GetContest(ctx context.Context, id int64) (*store.Contest, error)
	RemoveDue(ctx context.Context, id int64) error
}

// Run polls for expired contests and settles them. One pass at startup,
// then one per interval, until the context is cancelled. A settlement is
// attempted once per due contest; whatever the outcome, the contest leaves
// the due index (partial failures are terminal, not retried).
func Run(ctx context.Context, interval time.Duration, src ContestSource, settler Settler, log *zap.Logger) {
	log.Info("settlement scheduler started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	settleDue(ctx, src, settler, log)
	for {
		select {
		case <-ctx.Done():
			log.Info("settlement scheduler stopped")
			return
		case <-ticker.C:
			settleDue(ctx, src, settler, log)
		}
	}
}

func settleDue(ctx context.Context, src ContestSource, settler Settler, log *zap.Logger) {
	ids, err := src.DueContests(ctx, time.Now())
	if err != nil {
		log.Error("scheduler: due contests", zap.Error(err))
		return
	}
	for _, id := range ids {
		c, err := src.GetContest(ctx, id)
		if err != nil {
			log.Error("scheduler: get contest", zap.Int64("contest", id), zap.Error(err))
			_ = src.RemoveDue(ctx, id)
			continue
		}
		if c.Status != store.StatusActive {
			_ = src.RemoveDue(ctx, id)
			continue
		}
		if _, err := settler.Settle(ctx, c); err != nil {
			if errors.Is(err, store.ErrStatusConflict) {
				log.Info("scheduler: contest settled elsewhere", zap.Int64("contest", id))
			} else {
				log.Error("scheduler: settle contest", zap.Int64("contest", id), zap.Error(err))
			}
		}
		_ = src.RemoveDue(ctx, id)
	}
}
