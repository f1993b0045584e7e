package aggregate

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/meshwatch/meshwatch/pkg/types"
)

// Upstream paths queried on every cycle.
const (
	PathAgents            = "/agents/"
	PathWorkflows         = "/workflows/"
	PathRunningExecutions = "/executions/?status=running"
	PathOverview          = "/dashboard/overview"
)

// Agent statuses that count as active.
var activeAgentStatuses = map[string]bool{"idle": true, "busy": true}

// Fetcher is the subset of *endpoint.Client the aggregator needs.
type Fetcher interface {
	GetJSON(ctx context.Context, key types.ServiceKey, path string, v any) error
	GetRaw(ctx context.Context, key types.ServiceKey, path string) ([]byte, error)
}

// Result is the outcome of one Collect call.
type Result struct {
	Metrics types.MetricSnapshot
	// RecentEvents is the overview's recent_events list, oldest first as the
	// monitoring service returns it. Each element is one raw JSON object.
	RecentEvents []json.RawMessage
}

// Aggregator derives the summary metrics from the upstream listings and keeps
// the last successfully computed value of each one.
//
// All exported methods are safe for concurrent use.
type Aggregator struct {
	client Fetcher

	mu        sync.Mutex
	lastKnown map[string]int64
	lastEvts  []json.RawMessage
}

// New returns an Aggregator with no history.
func New(client Fetcher) *Aggregator {
	return &Aggregator{client: client, lastKnown: make(map[string]int64, len(types.MetricLabels))}
}

// Collect runs the four queries concurrently and always returns a complete
// Result. A failed query leaves its metric at the last-known value (0 if it
// never succeeded) without affecting the others.
func (a *Aggregator) Collect(ctx context.Context) Result {
	var (
		agents, workflows, running, alerts counter
		events                             []json.RawMessage
		eventsOK                           bool
	)

	var g errgroup.Group
	g.Go(func() error {
		agents = a.activeAgents(ctx)
		return nil
	})
	g.Go(func() error {
		workflows = a.totalWorkflows(ctx)
		return nil
	})
	g.Go(func() error {
		running = a.runningExecutions(ctx)
		return nil
	})
	g.Go(func() error {
		alerts, events, eventsOK = a.overview(ctx)
		return nil
	})
	_ = g.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()

	fresh := map[string]counter{
		types.MetricActiveAgents:      agents,
		types.MetricTotalWorkflows:    workflows,
		types.MetricRunningExecutions: running,
		types.MetricSystemAlerts:      alerts,
	}
	out := Result{Metrics: make(types.MetricSnapshot, 0, len(types.MetricLabels))}
	for _, label := range types.MetricLabels {
		c := fresh[label]
		if c.ok {
			a.lastKnown[label] = c.n
		}
		out.Metrics = append(out.Metrics, types.Metric{Label: label, Value: a.lastKnown[label]})
	}

	if eventsOK {
		a.lastEvts = events
	}
	out.RecentEvents = append([]json.RawMessage(nil), a.lastEvts...)
	return out
}

// counter is one metric outcome; ok is false when the query failed.
type counter struct {
	n  int64
	ok bool
}

type statusItem struct {
	Status string `json:"status"`
}

func (a *Aggregator) activeAgents(ctx context.Context) counter {
	var list []statusItem
	if err := a.client.GetJSON(ctx, types.ServiceAgent, PathAgents, &list); err != nil {
		return counter{}
	}
	var n int64
	for _, it := range list {
		if activeAgentStatuses[it.Status] {
			n++
		}
	}
	return counter{n: n, ok: true}
}

func (a *Aggregator) totalWorkflows(ctx context.Context) counter {
	var list []json.RawMessage
	if err := a.client.GetJSON(ctx, types.ServiceWorkflow, PathWorkflows, &list); err != nil {
		return counter{}
	}
	return counter{n: int64(len(list)), ok: true}
}

// runningExecutions asks the workflow service for running executions and
// re-checks each item, since the upstream filter is not trusted.
func (a *Aggregator) runningExecutions(ctx context.Context) counter {
	var list []statusItem
	if err := a.client.GetJSON(ctx, types.ServiceWorkflow, PathRunningExecutions, &list); err != nil {
		return counter{}
	}
	var n int64
	for _, it := range list {
		if it.Status == "running" {
			n++
		}
	}
	return counter{n: n, ok: true}
}

func (a *Aggregator) overview(ctx context.Context) (counter, []json.RawMessage, bool) {
	body, err := a.client.GetRaw(ctx, types.ServiceMonitoring, PathOverview)
	if err != nil {
		return counter{}, nil, false
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return counter{}, nil, false
	}

	alerts := counter{ok: true}
	if v := root.Get("summary.active_alerts"); v.Type == gjson.Number {
		alerts.n = v.Int()
	}

	var events []json.RawMessage
	root.Get("recent_events").ForEach(func(_, ev gjson.Result) bool {
		if ev.IsObject() {
			events = append(events, json.RawMessage(ev.Raw))
		}
		return true
	})
	return alerts, events, true
}
