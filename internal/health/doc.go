// Package health probes the liveness endpoint of each upstream service.
//
// A probe maps the payload's "status" field to a types.HealthStatus. A
// missing or unrecognized status gives StatusUnknown, and any endpoint
// failure (transport, non-2xx, malformed JSON) gives StatusUnreachable.
// ProbeAll runs one probe per descriptor concurrently and returns results in
// descriptor order; one slow or failing service never affects another.
package health
