package api

import (
	"log/slog"
	"net/http"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/meshwatch/meshwatch/pkg/types"
)

// exposition serves GET /metrics in the Prometheus text format. Before the
// first cycle only meshwatch_snapshot_version (0) is exposed.
func (h *Handler) exposition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap, _ := h.view.Latest()
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	w.WriteHeader(http.StatusOK)

	enc := expfmt.NewEncoder(w, format)
	for _, mf := range metricFamilies(snap) {
		if err := enc.Encode(mf); err != nil {
			slog.Warn("api: encode metric family", "name", mf.GetName(), "err", err)
			return
		}
	}
}

// metricFamilies converts snap into gauge families. Families without samples
// are omitted.
func metricFamilies(snap types.Snapshot) []*dto.MetricFamily {
	values := make([]*dto.Metric, 0, len(snap.Metrics))
	for _, m := range snap.Metrics {
		values = append(values, gaugeSample(float64(m.Value), "metric", metricSlug(m.Label)))
	}

	up := make([]*dto.Metric, 0, len(snap.Health))
	latency := make([]*dto.Metric, 0, len(snap.Health))
	for _, sh := range snap.Health {
		key := string(sh.Service.Key)
		up = append(up, gaugeSample(upValue(sh.Status), "service", key))
		if sh.Measured() {
			latency = append(latency, gaugeSample(sh.ResponseTime.Seconds(), "service", key))
		}
	}

	families := []*dto.MetricFamily{
		gaugeFamily("meshwatch_dashboard_value", "Dashboard summary counter from the latest cycle.", values),
		gaugeFamily("meshwatch_service_up", "1 if the service is healthy, 0.5 if degraded, 0 otherwise.", up),
		gaugeFamily("meshwatch_service_response_seconds", "Liveness probe response time.", latency),
		gaugeFamily("meshwatch_snapshot_version", "Version of the latest published snapshot.",
			[]*dto.Metric{gaugeSample(float64(snap.Version))}),
	}

	out := families[:0]
	for _, mf := range families {
		if len(mf.Metric) > 0 {
			out = append(out, mf)
		}
	}
	return out
}

func gaugeFamily(name, help string, metrics []*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: metrics,
	}
}

// gaugeSample builds one gauge sample; labels are name/value pairs.
func gaugeSample(v float64, labels ...string) *dto.Metric {
	m := &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(v)}}
	for i := 0; i+1 < len(labels); i += 2 {
		m.Label = append(m.Label, &dto.LabelPair{
			Name:  proto.String(labels[i]),
			Value: proto.String(labels[i+1]),
		})
	}
	return m
}

func upValue(s types.HealthStatus) float64 {
	switch s {
	case types.StatusHealthy:
		return 1
	case types.StatusDegraded:
		return 0.5
	default:
		return 0
	}
}

// metricSlug turns a display label into a label value: "Active Agents"
// becomes "active_agents".
func metricSlug(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "_")
}
