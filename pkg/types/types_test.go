package types

import "testing"

func TestParseHealthStatus(t *testing.T) {
	tests := []struct {
		in   string
		want HealthStatus
	}{
		{"healthy", StatusHealthy},
		{"HEALTHY", StatusHealthy},
		{" degraded ", StatusDegraded},
		{"unhealthy", StatusUnhealthy},
		{"unreachable", StatusUnknown},
		{"running", StatusUnknown},
		{"", StatusUnknown},
	}
	for _, tc := range tests {
		if got := ParseHealthStatus(tc.in); got != tc.want {
			t.Errorf("ParseHealthStatus(%q): got %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDisplayTable_Complete(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range AllStatuses() {
		d := s.Display()
		if d.Name == "" || d.Label == "" || d.Color == "" {
			t.Errorf("status %d: incomplete display row %+v", s, d)
		}
		if seen[d.Name] {
			t.Errorf("status %d: duplicate name %q", s, d.Name)
		}
		seen[d.Name] = true
	}
	if len(seen) != 5 {
		t.Errorf("statuses: got %d, want 5", len(seen))
	}
}

func TestHealthStatus_OutOfRange(t *testing.T) {
	if got := HealthStatus(99).String(); got != "unknown" {
		t.Errorf("out-of-range String(): got %q, want unknown", got)
	}
}

func TestParseServiceKey(t *testing.T) {
	if k, err := ParseServiceKey("workflow"); err != nil || k != ServiceWorkflow {
		t.Errorf("ParseServiceKey(workflow): got %q, %v", k, err)
	}
	if _, err := ParseServiceKey("billing"); err == nil {
		t.Error("ParseServiceKey(billing): expected error, got nil")
	}
}

func TestMetricSnapshot_Value(t *testing.T) {
	m := MetricSnapshot{{Label: MetricActiveAgents, Value: 3}, {Label: MetricSystemAlerts, Value: 1}}
	if v, ok := m.Value(MetricSystemAlerts); !ok || v != 1 {
		t.Errorf("Value(alerts): got %d, %v", v, ok)
	}
	if _, ok := m.Value(MetricTotalWorkflows); ok {
		t.Error("Value(workflows): expected missing")
	}
}

func TestSnapshot_WithHealth_DoesNotMutate(t *testing.T) {
	agent := ServiceDescriptor{Key: ServiceAgent}
	wf := ServiceDescriptor{Key: ServiceWorkflow}
	orig := Snapshot{Version: 4, Health: []ServiceHealth{
		{Service: agent, Status: StatusUnreachable},
		{Service: wf, Status: StatusHealthy},
	}}

	patched := orig.WithHealth(ServiceHealth{Service: agent, Status: StatusHealthy})

	if orig.Health[0].Status != StatusUnreachable {
		t.Errorf("original mutated: got %v", orig.Health[0].Status)
	}
	if patched.Health[0].Status != StatusHealthy {
		t.Errorf("patched agent: got %v, want healthy", patched.Health[0].Status)
	}
	if patched.Health[1].Status != StatusHealthy {
		t.Errorf("patched workflow: got %v, want healthy", patched.Health[1].Status)
	}
}
