package types

import (
	"fmt"
	"time"
)

// ServiceKey identifies one logical upstream service.
type ServiceKey string

// Known upstream services.
const (
	ServiceAgent         ServiceKey = "agent"
	ServiceWorkflow      ServiceKey = "workflow"
	ServiceMonitoring    ServiceKey = "monitoring"
	ServiceCommunication ServiceKey = "communication"
)

// ServiceKeys lists every known key in display order.
var ServiceKeys = []ServiceKey{ServiceAgent, ServiceWorkflow, ServiceMonitoring, ServiceCommunication}

// ParseServiceKey returns the ServiceKey for s, or an error if s is not known.
func ParseServiceKey(s string) (ServiceKey, error) {
	for _, k := range ServiceKeys {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown service key %q", s)
}

// ServiceDescriptor is the static description of one upstream service.
// Descriptors are built from config and never modified afterwards.
type ServiceDescriptor struct {
	// Name is the display label.
	Name string
	// BaseURL is the absolute URL every request path is appended to.
	BaseURL string
	Key     ServiceKey
	// HealthPath is the liveness path probed every cycle.
	HealthPath string
}

// ServiceHealth is the outcome of one liveness probe.
type ServiceHealth struct {
	Service ServiceDescriptor
	Status  HealthStatus
	// ResponseTime is zero when no response was received.
	ResponseTime time.Duration
}

// Measured reports whether the probe got a response at all.
func (h ServiceHealth) Measured() bool {
	return h.ResponseTime > 0
}
