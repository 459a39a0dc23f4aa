package estimate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultDebounce is the quiet period after the last change before an estimate runs.
	DefaultDebounce = 1000 * time.Millisecond

	// DefaultDisplayDuration is how long an unavailable outcome stays visible.
	DefaultDisplayDuration = 3000 * time.Millisecond
)

// State is the orchestrator's position in its lifecycle.
type State string

const (
	// StateIdle has no outcome to show.
	StateIdle State = "idle"
	// StateDebouncing waits for the form to settle.
	StateDebouncing State = "debouncing"
	// StateComputing has an estimate run in flight.
	StateComputing State = "computing"
	// StateReady holds a priced outcome.
	StateReady State = "ready"
	// StateUnavailable shows a failed run until the display time passes.
	StateUnavailable State = "unavailable"
)

// Form is the snapshot of both trip endpoints at the time of a change.
type Form struct {
	Origin      PlaceQuery `json:"origem"`
	Destination PlaceQuery `json:"destino"`
}

// Complete reports whether both endpoints can be geocoded.
func (f Form) Complete() bool {
	return f.Origin.Complete() && f.Destination.Complete()
}

// Listener receives every outcome the orchestrator publishes.
type Listener func(State, Outcome)

// Orchestrator debounces form changes into estimation runs and allows at most
// one run at a time. Changes that arrive while a run is in flight are dropped.
type Orchestrator struct {
	estimator Estimator
	debounce  time.Duration
	display   time.Duration
	timeout   time.Duration
	listener  Listener
	logger    *zap.Logger

	// computing is the re-entrancy guard. It is taken before the first
	// outbound call and released on every exit path of a run.
	computing atomic.Bool

	mu            sync.Mutex
	state         State
	outcome       Outcome
	form          Form
	gen           uint64
	debounceTimer *time.Timer
	revertTimer   *time.Timer
	closed        bool
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithDebounce sets the debounce interval.
func WithDebounce(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.debounce = d }
}

// WithDisplayDuration sets how long an unavailable outcome is kept before
// reverting to idle.
func WithDisplayDuration(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.display = d }
}

// WithTimeout bounds a single run.
func WithTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithListener registers fn to be called after every published outcome.
// fn is called without the orchestrator lock held.
func WithListener(fn Listener) OrchestratorOption {
	return func(o *Orchestrator) { o.listener = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates an idle Orchestrator around estimator.
func NewOrchestrator(estimator Estimator, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		estimator: estimator,
		debounce:  DefaultDebounce,
		display:   DefaultDisplayDuration,
		timeout:   DefaultRequestTimeout,
		logger:    zap.NewNop(),
		state:     StateIdle,
		outcome:   Pending(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Outcome returns the current outcome.
func (o *Orchestrator) Outcome() Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcome
}

// Busy reports whether a run is in flight.
func (o *Orchestrator) Busy() bool {
	return o.computing.Load()
}

// Change records a qualifying edit and restarts the debounce timer. The
// values used by the eventual run are those of the last Change before the
// timer fires. A change during a run is ignored.
func (o *Orchestrator) Change(form Form) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.computing.Load() {
		return
	}

	o.form = form
	o.stopTimersLocked()
	o.gen++
	gen := o.gen
	o.debounceTimer = time.AfterFunc(o.debounce, func() { o.fire(gen) })
	o.state = StateDebouncing
}

// RecomputeNow skips the debounce and starts a run in the background with
// form. It returns false, with no other effect, when a run is already in
// flight or the orchestrator is closed.
func (o *Orchestrator) RecomputeNow(form Form) bool {
	o.mu.Lock()
	if o.closed || !o.computing.CompareAndSwap(false, true) {
		o.mu.Unlock()
		return false
	}
	o.form = form
	o.stopTimersLocked()
	o.gen++
	o.mu.Unlock()

	go o.compute(form)
	return true
}

// Close stops all timers. A run in flight finishes but publishes nothing.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.stopTimersLocked()
}

func (o *Orchestrator) fire(gen uint64) {
	o.mu.Lock()
	if o.closed || gen != o.gen {
		o.mu.Unlock()
		return
	}
	o.debounceTimer = nil
	form := o.form
	if !form.Complete() {
		o.mu.Unlock()
		o.publish(StateIdle, Pending())
		return
	}
	if !o.computing.CompareAndSwap(false, true) {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	o.compute(form)
}

// compute runs one episode. The caller must hold the guard.
func (o *Orchestrator) compute(form Form) {
	defer o.computing.Store(false)

	o.publish(StateComputing, InProgress())

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	var out Outcome
	func() {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("estimate run panicked", zap.Any("panic", r))
				out = Unavailable(ReasonDistanceFailed)
			}
		}()
		out = o.estimator.Estimate(ctx, form.Origin, form.Destination)
	}()

	switch out.Kind {
	case OutcomeReady:
		o.publish(StateReady, out)
	case OutcomeUnavailable:
		o.publishUnavailable(out)
	default:
		o.publish(StateIdle, out)
	}
}

func (o *Orchestrator) publishUnavailable(out Outcome) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.state = StateUnavailable
	o.outcome = out
	o.gen++
	gen := o.gen
	o.revertTimer = time.AfterFunc(o.display, func() { o.revert(gen) })
	o.mu.Unlock()

	o.notify(StateUnavailable, out)
}

func (o *Orchestrator) revert(gen uint64) {
	o.mu.Lock()
	if o.closed || gen != o.gen || o.state != StateUnavailable {
		o.mu.Unlock()
		return
	}
	o.revertTimer = nil
	o.mu.Unlock()

	o.publish(StateIdle, Pending())
}

func (o *Orchestrator) publish(state State, out Outcome) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.state = state
	o.outcome = out
	o.mu.Unlock()

	o.notify(state, out)
}

func (o *Orchestrator) notify(state State, out Outcome) {
	if o.listener != nil {
		o.listener(state, out)
	}
}

func (o *Orchestrator) stopTimersLocked() {
	if o.debounceTimer != nil {
		o.debounceTimer.Stop()
		o.debounceTimer = nil
	}
	if o.revertTimer != nil {
		o.revertTimer.Stop()
		o.revertTimer = nil
	}
}
