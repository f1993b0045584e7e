package poll

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meshwatch/meshwatch/pkg/types"
)

// Cycle identifies one aggregation run.
type Cycle struct {
	// Seq is unique per View and increases with every cycle started.
	Seq uint64
	// Amend rewrites the snapshot this cycle publishes. Called before the
	// cycle returns, fn is applied at publish time. Called afterwards, fn is
	// applied only while this cycle's snapshot is still the latest one, and
	// the result is published as a new version.
	Amend func(fn func(types.Snapshot) types.Snapshot)
}

// CycleFunc performs one aggregation and returns its snapshot. The View sets
// Version, Cycle and SessionID; CompletedAt is set when left zero.
type CycleFunc func(ctx context.Context, c Cycle) types.Snapshot

// Option configures a View.
type Option func(*View)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(v *View) { v.clock = c }
}

// View owns the polling lifecycle of one consumer and its latest-snapshot
// slot. While active it runs a Session; while idle nothing is scheduled, but
// Refresh still works.
//
// All exported methods are safe for concurrent use.
type View struct {
	clock Clock
	seq   atomic.Uint64

	lifeMu   sync.Mutex
	interval time.Duration
	run      CycleFunc
	session  *Session
	actCtx   context.Context

	pubMu   sync.Mutex
	version uint64
	latest  atomic.Pointer[types.Snapshot]
	subs    map[int]func(types.Snapshot)
	nextSub int
}

// NewView returns an idle View. interval must be positive.
func NewView(interval time.Duration, run CycleFunc, opts ...Option) *View {
	v := &View{
		clock:    SystemClock{},
		interval: interval,
		run:      run,
		subs:     make(map[int]func(types.Snapshot)),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Activate starts a new Session: one cycle right away, then one per
// interval. An existing session is torn down first, so a View never runs
// more than one. The session ends on Deactivate or when ctx is cancelled.
func (v *View) Activate(ctx context.Context) {
	v.lifeMu.Lock()
	defer v.lifeMu.Unlock()
	v.activateLocked(ctx)
}

func (v *View) activateLocked(ctx context.Context) {
	v.stopLocked()

	s := newSession(v.clock, v.interval)
	v.session = s
	v.actCtx = ctx
	slog.Info("poll: session started", "session", s.ID(), "interval", v.interval.String())

	go s.run(ctx, func(ctx context.Context, s *Session) {
		v.runCycle(ctx, s, s.ID())
	})
}

// Deactivate stops the ticker and ends the session. A cycle already in
// flight is not cancelled, but its result is discarded. Deactivate on an
// idle View is a no-op.
func (v *View) Deactivate() {
	v.lifeMu.Lock()
	defer v.lifeMu.Unlock()
	v.stopLocked()
}

func (v *View) stopLocked() {
	s := v.session
	if s == nil {
		return
	}
	s.halt()
	<-s.Done()
	v.session = nil
	v.actCtx = nil
	slog.Info("poll: session stopped", "session", s.ID(), "skipped_ticks", s.Skipped())
}

// Active reports whether the View currently runs a session.
func (v *View) Active() bool {
	v.lifeMu.Lock()
	defer v.lifeMu.Unlock()
	return v.session != nil && v.session.Active()
}

// Session returns the current session, or nil when idle.
func (v *View) Session() *Session {
	v.lifeMu.Lock()
	defer v.lifeMu.Unlock()
	return v.session
}

// Interval returns the configured tick interval.
func (v *View) Interval() time.Duration {
	v.lifeMu.Lock()
	defer v.lifeMu.Unlock()
	return v.interval
}

// Reconfigure swaps the interval and cycle function. An active View is
// re-activated so the new settings take effect immediately.
func (v *View) Reconfigure(interval time.Duration, run CycleFunc) {
	v.lifeMu.Lock()
	defer v.lifeMu.Unlock()

	v.interval = interval
	v.run = run
	if v.session != nil && v.session.Active() {
		v.activateLocked(v.actCtx)
	}
}

// Refresh runs one cycle outside the schedule, publishes it and returns the
// published snapshot. It does not touch the ticker.
//
// The cycle keeps ctx's values but not its cancellation: a caller that gives
// up early must not publish its aborted requests as upstream failures.
func (v *View) Refresh(ctx context.Context) types.Snapshot {
	var sid string
	if s := v.Session(); s != nil {
		sid = s.ID()
	}
	snap, _ := v.runCycle(context.WithoutCancel(ctx), nil, sid)
	return snap
}

// Latest returns the most recently published snapshot. ok is false until the
// first cycle has completed.
func (v *View) Latest() (snap types.Snapshot, ok bool) {
	p := v.latest.Load()
	if p == nil {
		return types.Snapshot{}, false
	}
	return *p, true
}

// Subscribe registers fn to be called with every published snapshot, in
// publish order. fn runs while the View holds its publish lock: it must not
// block or call Subscribe. The returned func removes the subscription.
func (v *View) Subscribe(fn func(types.Snapshot)) (unsubscribe func()) {
	v.pubMu.Lock()
	id := v.nextSub
	v.nextSub++
	v.subs[id] = fn
	v.pubMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.pubMu.Lock()
			delete(v.subs, id)
			v.pubMu.Unlock()
		})
	}
}

// cycleState tracks amendments for one cycle; guarded by View.pubMu.
type cycleState struct {
	published bool
	discarded bool
	amends    []func(types.Snapshot) types.Snapshot
}

// runCycle executes one cycle. owner is the session the cycle belongs to, or
// nil for a manual refresh, which is never discarded.
func (v *View) runCycle(ctx context.Context, owner *Session, sessionID string) (types.Snapshot, bool) {
	v.lifeMu.Lock()
	run := v.run
	v.lifeMu.Unlock()

	seq := v.seq.Add(1)
	st := &cycleState{}
	snap := run(ctx, Cycle{
		Seq:   seq,
		Amend: func(fn func(types.Snapshot) types.Snapshot) { v.amend(seq, st, fn) },
	})
	return v.publish(seq, owner, sessionID, st, snap)
}

func (v *View) publish(seq uint64, owner *Session, sessionID string, st *cycleState, snap types.Snapshot) (types.Snapshot, bool) {
	v.pubMu.Lock()
	defer v.pubMu.Unlock()

	st.published = true
	if owner != nil && !owner.Active() {
		st.discarded = true
		slog.Debug("poll: discarding result of stopped session", "session", owner.ID(), "cycle", seq)
		return snap, false
	}

	for _, fn := range st.amends {
		snap = fn(snap)
	}
	st.amends = nil

	snap.Cycle = seq
	snap.SessionID = sessionID
	if snap.CompletedAt.IsZero() {
		snap.CompletedAt = v.clock.Now()
	}
	return v.storeLocked(snap), true
}

func (v *View) amend(seq uint64, st *cycleState, fn func(types.Snapshot) types.Snapshot) {
	v.pubMu.Lock()
	defer v.pubMu.Unlock()

	if !st.published {
		st.amends = append(st.amends, fn)
		return
	}
	if st.discarded {
		return
	}
	cur := v.latest.Load()
	if cur == nil || cur.Cycle != seq {
		slog.Debug("poll: amendment dropped, snapshot superseded", "cycle", seq)
		return
	}
	next := fn(*cur)
	next.Cycle = cur.Cycle
	next.SessionID = cur.SessionID
	v.storeLocked(next)
}

// storeLocked assigns the next version, publishes snap and notifies
// subscribers. v.pubMu must be held.
func (v *View) storeLocked(snap types.Snapshot) types.Snapshot {
	v.version++
	snap.Version = v.version
	v.latest.Store(&snap)
	for _, fn := range v.subs {
		fn(snap)
	}
	return snap
}
