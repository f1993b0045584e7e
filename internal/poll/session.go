package poll

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is one activation of a View: a ticker plus the loop that turns
// its ticks into cycles. A Session is never restarted; the View creates a
// new one on every activation.
type Session struct {
	id       string
	interval time.Duration
	ticker   Ticker

	active  atomic.Bool
	busy    atomic.Bool
	skipped atomic.Uint64

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newSession(clock Clock, interval time.Duration) *Session {
	s := &Session{
		id:       uuid.NewString(),
		interval: interval,
		ticker:   clock.Ticker(interval),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.active.Store(true)
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Interval returns the tick interval the session was armed with.
func (s *Session) Interval() time.Duration { return s.interval }

// Active reports whether the session has not been stopped yet.
func (s *Session) Active() bool { return s.active.Load() }

// Skipped returns the number of ticks dropped because a cycle was still
// outstanding.
func (s *Session) Skipped() uint64 { return s.skipped.Load() }

// run fires one cycle immediately, then one per tick, until the session is
// stopped or ctx is cancelled. cycle runs on its own goroutine so that the
// loop can observe (and skip) ticks while it is outstanding.
func (s *Session) run(ctx context.Context, cycle func(context.Context, *Session)) {
	defer close(s.done)
	defer s.ticker.Stop()

	s.fire(ctx, cycle)
	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			s.active.Store(false)
			return
		case <-s.ticker.Chan():
			s.fire(ctx, cycle)
		}
	}
}

func (s *Session) fire(ctx context.Context, cycle func(context.Context, *Session)) {
	if !s.busy.CompareAndSwap(false, true) {
		n := s.skipped.Add(1)
		slog.Debug("poll: tick skipped, cycle still running", "session", s.id, "skipped", n)
		return
	}
	go func() {
		defer s.busy.Store(false)
		cycle(ctx, s)
	}()
}

// halt marks the session inactive and stops its loop. In-flight cycles keep
// running; their results are discarded by the View.
func (s *Session) halt() {
	s.stopOnce.Do(func() {
		s.active.Store(false)
		close(s.stop)
	})
}

// Done is closed once the session loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }
