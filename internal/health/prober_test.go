package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meshwatch/meshwatch/internal/config"
	"github.com/meshwatch/meshwatch/internal/endpoint"
	"github.com/meshwatch/meshwatch/pkg/types"
)

func TestProbe_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   types.HealthStatus
	}{
		{"healthy", 200, `{"status":"healthy","service":"agent-service"}`, types.StatusHealthy},
		{"degraded", 200, `{"status":"degraded"}`, types.StatusDegraded},
		{"unhealthy", 200, `{"status":"unhealthy"}`, types.StatusUnhealthy},
		{"unrecognized", 200, `{"status":"running"}`, types.StatusUnknown},
		{"missing status", 200, `{"service":"x"}`, types.StatusUnknown},
		{"non-string status", 200, `{"status":1}`, types.StatusUnknown},
		{"array payload", 200, `[1,2]`, types.StatusUnknown},
		{"malformed", 200, `{"status":`, types.StatusUnreachable},
		{"server error", 500, `{"status":"healthy"}`, types.StatusUnreachable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := jsonServer(tc.status, tc.body)
			defer srv.Close()

			p, descs := newProber(t, config.LateProbeDiscard, time.Second, srv.URL)
			got := p.Probe(context.Background(), descs[0])
			if got.Status != tc.want {
				t.Errorf("Status: got %v, want %v", got.Status, tc.want)
			}
			if got.Service != descs[0] {
				t.Errorf("Service: got %+v", got.Service)
			}
		})
	}
}

func TestProbe_ResponseTime(t *testing.T) {
	srv := jsonServer(200, `{"status":"healthy"}`)
	defer srv.Close()

	p, descs := newProber(t, config.LateProbeDiscard, time.Second, srv.URL)
	got := p.Probe(context.Background(), descs[0])
	if !got.Measured() {
		t.Error("healthy probe: expected a measured response time")
	}
}

func TestProbe_UsesHealthPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	client := endpoint.New([]config.Service{{Key: "agent", BaseURL: srv.URL, HealthPath: "/health/"}}, time.Second)
	p := New(client, time.Second, config.LateProbeDiscard)
	p.Probe(context.Background(), client.Descriptors()[0])

	if gotPath != "/health/" {
		t.Errorf("probe path: got %q, want /health/", gotPath)
	}
}

func TestProbe_TimeoutIsUnreachable(t *testing.T) {
	srv, release := slowServer(`{"status":"healthy"}`)
	defer srv.Close()
	defer close(release)

	p, descs := newProber(t, config.LateProbeDiscard, 50*time.Millisecond, srv.URL)
	got := p.Probe(context.Background(), descs[0])
	if got.Status != types.StatusUnreachable {
		t.Errorf("Status: got %v, want unreachable", got.Status)
	}
	if got.Measured() {
		t.Error("unreachable probe should not carry a response time")
	}
}

func TestProbeAll_OnePerDescriptorInOrder(t *testing.T) {
	healthy := jsonServer(200, `{"status":"healthy"}`)
	defer healthy.Close()
	broken := jsonServer(503, ``)
	defer broken.Close()
	garbage := jsonServer(200, `nope`)
	defer garbage.Close()
	down := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	downURL := down.URL
	down.Close()

	p, descs := newProber(t, config.LateProbeDiscard, time.Second, healthy.URL, broken.URL, garbage.URL, downURL)
	got := p.ProbeAll(context.Background(), descs, nil)

	if len(got) != len(descs) {
		t.Fatalf("results: got %d, want %d", len(got), len(descs))
	}
	want := []types.HealthStatus{types.StatusHealthy, types.StatusUnreachable, types.StatusUnreachable, types.StatusUnreachable}
	for i := range descs {
		if got[i].Service.Key != descs[i].Key {
			t.Errorf("result[%d]: service %q, want %q", i, got[i].Service.Key, descs[i].Key)
		}
		if got[i].Status != want[i] {
			t.Errorf("result[%d]: status %v, want %v", i, got[i].Status, want[i])
		}
	}
}

func TestProbeAll_SlowServiceDoesNotBlockOthers(t *testing.T) {
	fast := jsonServer(200, `{"status":"healthy"}`)
	defer fast.Close()
	slow, release := slowServer(`{"status":"healthy"}`)
	defer slow.Close()
	defer close(release)

	p, descs := newProber(t, config.LateProbeDiscard, 200*time.Millisecond, slow.URL, fast.URL)

	start := time.Now()
	got := p.ProbeAll(context.Background(), descs, nil)
	elapsed := time.Since(start)

	if got[0].Status != types.StatusUnreachable {
		t.Errorf("slow: got %v, want unreachable", got[0].Status)
	}
	if got[1].Status != types.StatusHealthy {
		t.Errorf("fast: got %v, want healthy", got[1].Status)
	}
	if elapsed > 2*time.Second {
		t.Errorf("ProbeAll took %v; probes should run concurrently and be time-bounded", elapsed)
	}
}

func TestProbeAll_AcceptPolicyDeliversLateResult(t *testing.T) {
	srv, release := slowServer(`{"status":"degraded"}`)
	defer srv.Close()

	p, descs := newProber(t, config.LateProbeAccept, 50*time.Millisecond, srv.URL)

	late := make(chan types.ServiceHealth, 1)
	got := p.ProbeAll(context.Background(), descs, func(h types.ServiceHealth) { late <- h })
	if got[0].Status != types.StatusUnreachable {
		t.Fatalf("in-cycle status: got %v, want unreachable", got[0].Status)
	}

	close(release)
	select {
	case h := <-late:
		if h.Status != types.StatusDegraded {
			t.Errorf("late status: got %v, want degraded", h.Status)
		}
		if h.Service.Key != descs[0].Key {
			t.Errorf("late service: got %q", h.Service.Key)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("late result was not delivered")
	}
}

func TestProbeAll_DiscardPolicyNeverCallsOnLate(t *testing.T) {
	srv, release := slowServer(`{"status":"healthy"}`)
	defer srv.Close()

	p, descs := newProber(t, config.LateProbeDiscard, 50*time.Millisecond, srv.URL)

	called := make(chan struct{}, 1)
	p.ProbeAll(context.Background(), descs, func(types.ServiceHealth) { called <- struct{}{} })
	close(release)

	select {
	case <-called:
		t.Error("onLate called under discard policy")
	case <-time.After(200 * time.Millisecond):
	}
}

// newProber builds a Prober over one service per URL, assigning keys in
// types.ServiceKeys order.
func newProber(t *testing.T, policy string, timeout time.Duration, urls ...string) (*Prober, []types.ServiceDescriptor) {
	t.Helper()
	if len(urls) > len(types.ServiceKeys) {
		t.Fatalf("at most %d services", len(types.ServiceKeys))
	}
	svcs := make([]config.Service, 0, len(urls))
	for i, u := range urls {
		svcs = append(svcs, config.Service{Key: string(types.ServiceKeys[i]), BaseURL: u})
	}
	client := endpoint.New(svcs, 5*time.Second)
	return New(client, timeout, policy), client.Descriptors()
}

func jsonServer(status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

// slowServer responds with body only after release is closed.
func slowServer(body string) (*httptest.Server, chan struct{}) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte(body))
	}))
	return srv, release
}
