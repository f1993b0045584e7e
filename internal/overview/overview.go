package overview

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meshwatch/meshwatch/internal/activity"
	"github.com/meshwatch/meshwatch/internal/aggregate"
	"github.com/meshwatch/meshwatch/internal/poll"
	"github.com/meshwatch/meshwatch/pkg/types"
)

// HealthProber is implemented by *health.Prober.
type HealthProber interface {
	ProbeAll(ctx context.Context, descs []types.ServiceDescriptor, onLate func(types.ServiceHealth)) []types.ServiceHealth
}

// Collector is implemented by *aggregate.Aggregator.
type Collector interface {
	Collect(ctx context.Context) aggregate.Result
}

// Builder assembles one dashboard snapshot per cycle.
type Builder struct {
	prober        HealthProber
	collector     Collector
	descs         []types.ServiceDescriptor
	activityLimit int
	now           func() time.Time // injectable for deterministic tests
}

// New returns a Builder probing descs and formatting at most activityLimit
// feed entries.
func New(prober HealthProber, collector Collector, descs []types.ServiceDescriptor, activityLimit int) *Builder {
	return &Builder{
		prober:        prober,
		collector:     collector,
		descs:         descs,
		activityLimit: activityLimit,
		now:           time.Now,
	}
}

// Cycle is a poll.CycleFunc. Health probes and metric queries start together
// and are awaited together, so cycle latency follows the slowest single call.
// Late probe results are routed to c.Amend.
func (b *Builder) Cycle(ctx context.Context, c poll.Cycle) types.Snapshot {
	var (
		health []types.ServiceHealth
		res    aggregate.Result
	)

	onLate := func(h types.ServiceHealth) {
		if c.Amend == nil {
			return
		}
		c.Amend(func(s types.Snapshot) types.Snapshot { return s.WithHealth(h) })
	}

	var g errgroup.Group
	g.Go(func() error {
		health = b.prober.ProbeAll(ctx, b.descs, onLate)
		return nil
	})
	g.Go(func() error {
		res = b.collector.Collect(ctx)
		return nil
	})
	_ = g.Wait()

	now := b.now()
	snap := types.Snapshot{
		CompletedAt: now,
		Health:      health,
		Metrics:     res.Metrics,
		Activity:    activity.Format(newestFirst(res.RecentEvents), b.activityLimit, now),
	}
	slog.Debug("overview: cycle complete",
		"cycle", c.Seq,
		"services", len(health),
		"events", len(res.RecentEvents),
	)
	return snap
}

// newestFirst reverses the monitoring service's chronological event list.
func newestFirst(events []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, len(events))
	for i, ev := range events {
		out[len(events)-1-i] = ev
	}
	return out
}
