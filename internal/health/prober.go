package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/meshwatch/meshwatch/internal/config"
	"github.com/meshwatch/meshwatch/internal/endpoint"
	"github.com/meshwatch/meshwatch/pkg/types"
)

// Getter is the subset of *endpoint.Client the prober needs.
type Getter interface {
	GetRaw(ctx context.Context, key types.ServiceKey, path string) ([]byte, error)
}

// Prober issues liveness requests and maps the outcome to a ServiceHealth.
//
// Prober is safe for concurrent use.
type Prober struct {
	client  Getter
	timeout time.Duration
	policy  string
}

// New returns a Prober that bounds every probe by timeout. policy is one of
// config.LateProbeDiscard or config.LateProbeAccept.
func New(client Getter, timeout time.Duration, policy string) *Prober {
	if policy == "" {
		policy = config.LateProbeDiscard
	}
	return &Prober{client: client, timeout: timeout, policy: policy}
}

// Probe checks a single service and never returns an error: every failure is
// folded into the returned status. The probe is abandoned after the
// configured timeout.
func (p *Prober) Probe(ctx context.Context, desc types.ServiceDescriptor) types.ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.check(ctx, desc)
}

// ProbeAll probes every descriptor concurrently and returns exactly one
// result per descriptor, in descriptor order.
//
// Under the accept policy, a probe still running at its deadline is reported
// unreachable but left to finish; if it later succeeds, onLate receives the
// real result. onLate may be nil and is never called under the discard policy.
func (p *Prober) ProbeAll(ctx context.Context, descs []types.ServiceDescriptor, onLate func(types.ServiceHealth)) []types.ServiceHealth {
	out := make([]types.ServiceHealth, len(descs))

	var g errgroup.Group
	for i, desc := range descs {
		g.Go(func() error {
			if p.policy == config.LateProbeAccept {
				out[i] = p.probeAccept(ctx, desc, onLate)
			} else {
				out[i] = p.Probe(ctx, desc)
			}
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// probeAccept waits up to the timeout for a result without cancelling the
// underlying request at the deadline.
func (p *Prober) probeAccept(ctx context.Context, desc types.ServiceDescriptor, onLate func(types.ServiceHealth)) types.ServiceHealth {
	resCh := make(chan types.ServiceHealth, 1)
	go func() {
		// The request outlives the cycle; the HTTP client timeout still bounds it.
		resCh <- p.check(context.WithoutCancel(ctx), desc)
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case res := <-resCh:
		return res
	case <-timer.C:
	case <-ctx.Done():
	}

	slog.Debug("health: probe abandoned, awaiting late result", "service", desc.Key)
	go func() {
		res := <-resCh
		if res.Status == types.StatusUnreachable || onLate == nil {
			return
		}
		slog.Info("health: late probe result", "service", desc.Key, "status", res.Status.String())
		onLate(res)
	}()
	return unreachable(desc)
}

func (p *Prober) check(ctx context.Context, desc types.ServiceDescriptor) types.ServiceHealth {
	start := time.Now()
	body, err := p.client.GetRaw(ctx, desc.Key, desc.HealthPath)
	if err != nil {
		slog.Debug("health: probe failed", "service", desc.Key, "kind", endpoint.KindOf(err).String())
		return unreachable(desc)
	}
	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Nanosecond
	}

	return types.ServiceHealth{
		Service:      desc,
		Status:       statusOf(body),
		ResponseTime: elapsed,
	}
}

// statusOf reads the top-level "status" string of a liveness payload.
func statusOf(body []byte) types.HealthStatus {
	st := gjson.GetBytes(body, "status")
	if st.Type != gjson.String {
		return types.StatusUnknown
	}
	return types.ParseHealthStatus(st.Str)
}

func unreachable(desc types.ServiceDescriptor) types.ServiceHealth {
	return types.ServiceHealth{Service: desc, Status: types.StatusUnreachable}
}
