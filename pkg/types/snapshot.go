package types

import "time"

// Metric labels, in display order.
const (
	MetricActiveAgents      = "Active Agents"
	MetricTotalWorkflows    = "Total Workflows"
	MetricRunningExecutions = "Running Executions"
	MetricSystemAlerts      = "System Alerts"
)

// MetricLabels lists every metric label in display order.
var MetricLabels = []string{
	MetricActiveAgents,
	MetricTotalWorkflows,
	MetricRunningExecutions,
	MetricSystemAlerts,
}

// Metric is one named counter in a MetricSnapshot.
type Metric struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// MetricSnapshot is an ordered set of metrics from one poll cycle.
type MetricSnapshot []Metric

// Value returns the value stored under label.
func (m MetricSnapshot) Value(label string) (int64, bool) {
	for _, metric := range m {
		if metric.Label == label {
			return metric.Value, true
		}
	}
	return 0, false
}

// ActivityEntry is one formatted line of the activity feed.
type ActivityEntry struct {
	Text         string    `json:"text"`
	RelativeTime string    `json:"relative_time"`
	Timestamp    time.Time `json:"timestamp"`
}

// Snapshot is the complete result of one poll cycle. Snapshots are never
// mutated once published; every cycle publishes a new value.
type Snapshot struct {
	// Version increases by one for every published snapshot of a view.
	Version uint64
	// Cycle is the sequence number of the aggregation that produced it.
	Cycle       uint64
	SessionID   string
	CompletedAt time.Time
	Health      []ServiceHealth
	Metrics     MetricSnapshot
	Activity    []ActivityEntry
}

// WithHealth returns a copy of s in which the entry for h.Service.Key is
// replaced by h. The receiver is left untouched.
func (s Snapshot) WithHealth(h ServiceHealth) Snapshot {
	out := s
	out.Health = make([]ServiceHealth, len(s.Health))
	copy(out.Health, s.Health)
	for i := range out.Health {
		if out.Health[i].Service.Key == h.Service.Key {
			out.Health[i] = h
		}
	}
	return out
}
