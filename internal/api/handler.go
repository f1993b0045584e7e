package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/meshwatch/meshwatch/internal/endpoint"
	"github.com/meshwatch/meshwatch/pkg/types"
)

// statsPaths maps the services that expose a statistics endpoint to its path.
var statsPaths = map[types.ServiceKey]string{
	types.ServiceCommunication: "/events/stats",
	types.ServiceMonitoring:    "/dashboard/workflows",
}

// SnapshotSource is implemented by *poll.View.
type SnapshotSource interface {
	Latest() (types.Snapshot, bool)
	Refresh(ctx context.Context) types.Snapshot
}

// RawGetter is implemented by *endpoint.Client.
type RawGetter interface {
	GetRaw(ctx context.Context, key types.ServiceKey, path string) ([]byte, error)
}

// Handler is the HTTP handler for all /api/v1/* endpoints and /metrics.
type Handler struct {
	view   SnapshotSource
	client RawGetter
	mux    *http.ServeMux
}

// New creates a Handler reading from view and registers all routes. client
// serves the per-service statistics passthrough.
func New(view SnapshotSource, client RawGetter) http.Handler {
	h := &Handler{view: view, client: client, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/metrics", h.metrics)
	h.mux.HandleFunc("/api/v1/activity", h.activity)
	h.mux.HandleFunc("/api/v1/refresh", h.refresh)
	h.mux.HandleFunc("/api/v1/services/", h.serviceStats) // subtree: {key}/stats
	h.mux.HandleFunc("/metrics", h.exposition)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// snapshot returns GET /api/v1/snapshot, the latest published snapshot.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap, ok := h.latest(w)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(snap))
}

// health returns GET /api/v1/health, per-state counts and an overall state.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap, ok := h.latest(w)
	if !ok {
		return
	}

	resp := HealthResponse{
		ServiceCount: len(snap.Health),
		Services:     toHealthResponses(snap.Health),
	}
	for _, sh := range snap.Health {
		switch sh.Status {
		case types.StatusHealthy:
			resp.HealthyCount++
		case types.StatusDegraded:
			resp.DegradedCount++
		case types.StatusUnhealthy:
			resp.UnhealthyCount++
		case types.StatusUnreachable:
			resp.UnreachableCount++
		default:
			resp.UnknownCount++
		}
	}
	resp.State = overallState(resp.HealthyCount, resp.UnreachableCount, resp.ServiceCount)
	jsonResp(w, http.StatusOK, resp)
}

// metrics returns GET /api/v1/metrics, the summary counters in display order.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap, ok := h.latest(w)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, toMetricResponses(snap.Metrics))
}

// activity returns GET /api/v1/activity, the formatted feed.
func (h *Handler) activity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap, ok := h.latest(w)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, toActivityResponses(snap.Activity))
}

// refresh handles POST /api/v1/refresh: one out-of-cycle aggregation.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.view.Refresh(r.Context())))
}

// serviceStats returns GET /api/v1/services/{key}/stats, the upstream
// statistics document passed through unchanged.
func (h *Handler) serviceStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/services/")
	keyStr, tail, _ := strings.Cut(rest, "/")
	if tail != "stats" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	key, err := types.ParseServiceKey(keyStr)
	if err != nil {
		jsonErr(w, http.StatusNotFound, "unknown service")
		return
	}
	path, ok := statsPaths[key]
	if !ok {
		jsonErr(w, http.StatusNotFound, "service has no statistics endpoint")
		return
	}

	body, err := h.client.GetRaw(r.Context(), key, path)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, endpoint.ErrUnknownService) {
			status = http.StatusNotFound
		}
		jsonResp(w, status, errorResponse{
			Error: "upstream request failed",
			Kind:  endpoint.KindOf(err).String(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck
}

// --- helpers ----------------------------------------------------------------

// latest writes a 503 and returns false when no cycle has completed yet.
func (h *Handler) latest(w http.ResponseWriter) (types.Snapshot, bool) {
	snap, ok := h.view.Latest()
	if !ok {
		jsonErr(w, http.StatusServiceUnavailable, "no completed cycle yet")
	}
	return snap, ok
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// overallState summarises the fleet: healthy when every service is healthy,
// unreachable when every service is unreachable, degraded otherwise.
func overallState(healthy, unreachable, total int) string {
	switch {
	case total == 0:
		return "unknown"
	case healthy == total:
		return "healthy"
	case unreachable == total:
		return "unreachable"
	default:
		return "degraded"
	}
}

// BuildSnapshot maps a snapshot to its JSON representation.
func BuildSnapshot(snap types.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		Version:     snap.Version,
		Cycle:       snap.Cycle,
		SessionID:   snap.SessionID,
		CompletedAt: snap.CompletedAt.UTC().Format(time.RFC3339),
		Health:      toHealthResponses(snap.Health),
		Metrics:     toMetricResponses(snap.Metrics),
		Activity:    toActivityResponses(snap.Activity),
	}
}

func toHealthResponses(hs []types.ServiceHealth) []ServiceHealthResponse {
	out := make([]ServiceHealthResponse, 0, len(hs))
	for _, sh := range hs {
		d := sh.Status.Display()
		out = append(out, ServiceHealthResponse{
			Key:            string(sh.Service.Key),
			Name:           sh.Service.Name,
			Status:         d.Name,
			Label:          d.Label,
			Color:          d.Color,
			ResponseTimeMs: responseMs(sh),
			Diagnostics:    computeDiagnostics(sh),
		})
	}
	return out
}

func toMetricResponses(ms types.MetricSnapshot) []MetricResponse {
	out := make([]MetricResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, MetricResponse{Label: m.Label, Value: m.Value})
	}
	return out
}

func toActivityResponses(es []types.ActivityEntry) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(es))
	for _, e := range es {
		out = append(out, ActivityResponse{
			Text:         e.Text,
			RelativeTime: e.RelativeTime,
			TimestampMs:  e.Timestamp.UnixMilli(),
		})
	}
	return out
}
