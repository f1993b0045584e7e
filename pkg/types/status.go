package types

import "strings"

// HealthStatus is the health state of one upstream service.
type HealthStatus int

// Health states. StatusUnknown is the zero value.
const (
	StatusUnknown HealthStatus = iota
	StatusHealthy
	StatusDegraded
	StatusUnhealthy
	StatusUnreachable

	numStatuses
)

// Display is the presentation metadata for a HealthStatus.
type Display struct {
	Label string
	Color string
	// Name is the lowercase wire name.
	Name string
}

// displayTable must have exactly one entry per status; its array length is
// tied to numStatuses so a new status without a row fails to compile.
var displayTable = [numStatuses]Display{
	StatusUnknown:     {Name: "unknown", Label: "Unknown", Color: "gray"},
	StatusHealthy:     {Name: "healthy", Label: "Healthy", Color: "green"},
	StatusDegraded:    {Name: "degraded", Label: "Degraded", Color: "yellow"},
	StatusUnhealthy:   {Name: "unhealthy", Label: "Unhealthy", Color: "red"},
	StatusUnreachable: {Name: "unreachable", Label: "Unreachable", Color: "red"},
}

// ParseHealthStatus maps a reported status string to a HealthStatus.
// Anything that is not one of the four reportable states is StatusUnknown;
// "unreachable" is never accepted from a service since it describes the
// probe outcome, not the service's own view of itself.
func ParseHealthStatus(s string) HealthStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "healthy":
		return StatusHealthy
	case "degraded":
		return StatusDegraded
	case "unhealthy":
		return StatusUnhealthy
	default:
		return StatusUnknown
	}
}

// Display returns the presentation metadata for s.
func (s HealthStatus) Display() Display {
	if s < 0 || s >= numStatuses {
		return displayTable[StatusUnknown]
	}
	return displayTable[s]
}

func (s HealthStatus) String() string {
	return s.Display().Name
}

// MarshalText encodes the status as its wire name.
func (s HealthStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// AllStatuses returns every HealthStatus in declaration order.
func AllStatuses() []HealthStatus {
	out := make([]HealthStatus, 0, numStatuses)
	for s := HealthStatus(0); s < numStatuses; s++ {
		out = append(out, s)
	}
	return out
}
