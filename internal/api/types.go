package api

// SnapshotResponse is the payload for GET /api/v1/snapshot and
// POST /api/v1/refresh, and the data of every websocket broadcast.
type SnapshotResponse struct {
	Version     uint64                  `json:"version"`
	Cycle       uint64                  `json:"cycle"`
	SessionID   string                  `json:"session_id,omitempty"`
	CompletedAt string                  `json:"completed_at"` // RFC3339
	Health      []ServiceHealthResponse `json:"health"`
	Metrics     []MetricResponse        `json:"metrics"`
	Activity    []ActivityResponse      `json:"activity"`
}

// ServiceHealthResponse is one service's probe result.
type ServiceHealthResponse struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Status string `json:"status"`
	// Label and Color are the display attributes of Status.
	Label          string           `json:"label"`
	Color          string           `json:"color"`
	ResponseTimeMs *float64         `json:"response_time_ms"` // null when not measured
	Diagnostics    []DiagnosticHint `json:"diagnostics"`
}

// MetricResponse is one summary counter.
type MetricResponse struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// ActivityResponse is one activity feed line.
type ActivityResponse struct {
	Text         string `json:"text"`
	RelativeTime string `json:"relative_time"`
	TimestampMs  int64  `json:"timestamp_ms"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State            string                  `json:"state"`
	ServiceCount     int                     `json:"service_count"`
	HealthyCount     int                     `json:"healthy_count"`
	DegradedCount    int                     `json:"degraded_count"`
	UnhealthyCount   int                     `json:"unhealthy_count"`
	UnreachableCount int                     `json:"unreachable_count"`
	UnknownCount     int                     `json:"unknown_count"`
	Services         []ServiceHealthResponse `json:"services"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
