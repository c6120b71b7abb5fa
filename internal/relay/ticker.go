package relay

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Ticker drives spec.md §4.7: on a fixed interval it snapshots every
// registered session and pings it, tearing down any session that has too
// many pongs outstanding. Grounded on the teacher's snapshot-then-act
// pattern (World.Snapshot()) — pings and teardowns happen after the
// registry lock is released, never while holding it.
type Ticker struct {
	deps           *Deps
	interval       time.Duration
	maxMissedPongs int32
	log            *zap.Logger
}

func NewTicker(deps *Deps, interval time.Duration, maxMissedPongs int32) *Ticker {
	return &Ticker{deps: deps, interval: interval, maxMissedPongs: maxMissedPongs, log: deps.Log}
}

// Run blocks, pinging every session once per interval, until ctx is
// cancelled.
func (t *Ticker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.tick()
		}
	}
}

func (t *Ticker) tick() {
	now := time.Now().UnixMilli()
	occupants := t.deps.World.Snapshot()
	for _, o := range occupants {
		sess, ok := o.(*Session)
		if !ok {
			continue
		}
		sess.Ping(t.maxMissedPongs, now)
	}
	walkable, notWalkable := t.deps.World.AdjacencyCounts()
	t.deps.Metrics.WalkablePairs.Set(float64(walkable))
	t.deps.Metrics.NotWalkablePairs.Set(float64(notWalkable))
}
