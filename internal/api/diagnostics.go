package api

import (
	"fmt"

	"github.com/meshwatch/meshwatch/pkg/types"
)

// slowResponseMs is the response time above which a reachable service gets
// a "slow" hint.
const slowResponseMs = 1000

// DiagnosticHint is one human-readable insight about a service's health.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level  string   `json:"level"`
	Title  string   `json:"title"`
	Detail string   `json:"detail"`
	Value  *float64 `json:"value,omitempty"`
}

// computeDiagnostics derives hints from one probe result. The most severe
// hint comes first.
func computeDiagnostics(h types.ServiceHealth) []DiagnosticHint {
	name := h.Service.Name

	switch h.Status {
	case types.StatusUnreachable:
		return []DiagnosticHint{{
			Key:   "unreachable",
			Level: "critical",
			Title: "Can't reach service",
			Detail: fmt.Sprintf(
				"The liveness check of %s at %s%s failed or timed out. "+
					"Check that the service is running and that base_url is correct.",
				name, h.Service.BaseURL, h.Service.HealthPath,
			),
		}}
	case types.StatusUnknown:
		return []DiagnosticHint{{
			Key:   "status_unknown",
			Level: "info",
			Title: "Status not reported",
			Detail: fmt.Sprintf(
				"%s answered its liveness check but did not report a recognised status. "+
					"It is reachable; its self-assessment is unknown.",
				name,
			),
		}}
	}

	var hints []DiagnosticHint
	switch h.Status {
	case types.StatusUnhealthy:
		hints = append(hints, DiagnosticHint{
			Key:    "unhealthy",
			Level:  "critical",
			Title:  "Reports unhealthy",
			Detail: fmt.Sprintf("%s is reachable but reports itself unhealthy.", name),
		})
	case types.StatusDegraded:
		hints = append(hints, DiagnosticHint{
			Key:    "degraded",
			Level:  "warning",
			Title:  "Reports degraded",
			Detail: fmt.Sprintf("%s is reachable but reports degraded operation.", name),
		})
	}

	if ms := responseMs(h); ms != nil && *ms > slowResponseMs {
		hints = append(hints, DiagnosticHint{
			Key:    "slow_response",
			Level:  "warning",
			Title:  fmt.Sprintf("%.0f ms response", *ms),
			Detail: fmt.Sprintf("The liveness check of %s took %.0f ms.", name, *ms),
			Value:  ms,
		})
	}

	if len(hints) == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "healthy",
			Level:  "ok",
			Title:  "All clear",
			Detail: fmt.Sprintf("%s is reachable and reports healthy.", name),
		})
	}
	return hints
}

// responseMs returns the response time in milliseconds, or nil when nothing
// was measured.
func responseMs(h types.ServiceHealth) *float64 {
	if !h.Measured() {
		return nil
	}
	ms := float64(h.ResponseTime.Microseconds()) / 1000
	return &ms
}
