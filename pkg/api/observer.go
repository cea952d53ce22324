package api

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Observer receives callbacks from the engine for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be
// done asynchronously so as not to delay transition requests.
type Observer interface {
	// OnPipelineCreated is called once when an event enters the
	// pipeline at the hold stage.
	OnPipelineCreated(ctx context.Context, p *Pipeline)

	// OnTransition is called after a transition has been accepted and
	// durably written.
	OnTransition(ctx context.Context, p *Pipeline, tr StageTransition)

	// OnTransitionRejected is called when a transition request fails
	// the guard, the required-field precondition, or the optimistic
	// write. State is untouched in all three cases.
	OnTransitionRejected(ctx context.Context, eventID string, from, to Stage, err error)

	// OnHookStart is called before a hook handler is invoked.
	OnHookStart(ctx context.Context, p *Pipeline, hook Hook)

	// OnHookCompleted is called after a hook handler returns, for both
	// successes and failures (err != nil).
	OnHookCompleted(ctx context.Context, p *Pipeline, hook Hook, err error, duration time.Duration)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnPipelineCreated(ctx context.Context, p *Pipeline)                 {}
func (NoopObserver) OnTransition(ctx context.Context, p *Pipeline, tr StageTransition)  {}
func (NoopObserver) OnTransitionRejected(ctx context.Context, id string, f, t Stage, e error) {
}
func (NoopObserver) OnHookStart(ctx context.Context, p *Pipeline, hook Hook) {}
func (NoopObserver) OnHookCompleted(ctx context.Context, p *Pipeline, hook Hook, err error, d time.Duration) {
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnPipelineCreated(ctx context.Context, p *Pipeline) {
	for _, o := range c.observers {
		o.OnPipelineCreated(ctx, p)
	}
}

func (c *CompositeObserver) OnTransition(ctx context.Context, p *Pipeline, tr StageTransition) {
	for _, o := range c.observers {
		o.OnTransition(ctx, p, tr)
	}
}

func (c *CompositeObserver) OnTransitionRejected(ctx context.Context, eventID string, from, to Stage, err error) {
	for _, o := range c.observers {
		o.OnTransitionRejected(ctx, eventID, from, to, err)
	}
}

func (c *CompositeObserver) OnHookStart(ctx context.Context, p *Pipeline, hook Hook) {
	for _, o := range c.observers {
		o.OnHookStart(ctx, p, hook)
	}
}

func (c *CompositeObserver) OnHookCompleted(ctx context.Context, p *Pipeline, hook Hook, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnHookCompleted(ctx, p, hook, err, d)
	}
}

// LoggingObserver writes structured logs using zerolog.
type LoggingObserver struct {
	Logger zerolog.Logger
}

// NewLoggingObserver creates an Observer that logs pipeline lifecycle
// events using the provided zerolog.Logger.
func NewLoggingObserver(logger zerolog.Logger) Observer {
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnPipelineCreated(ctx context.Context, p *Pipeline) {
	o.Logger.Info().
		Str("event_id", p.EventID).
		Str("organization_id", p.OrganizationID).
		Str("stage", string(p.Stage)).
		Msg("pipeline_created")
}

func (o *LoggingObserver) OnTransition(ctx context.Context, p *Pipeline, tr StageTransition) {
	o.Logger.Info().
		Str("event_id", p.EventID).
		Str("organization_id", p.OrganizationID).
		Str("from", string(tr.From)).
		Str("to", string(tr.To)).
		Str("actor", tr.TransitionedBy).
		Bool("automatic", tr.Automatic).
		Msg("pipeline_transition")
}

func (o *LoggingObserver) OnTransitionRejected(ctx context.Context, eventID string, from, to Stage, err error) {
	o.Logger.Warn().
		Str("event_id", eventID).
		Str("from", string(from)).
		Str("to", string(to)).
		Err(err).
		Msg("pipeline_transition_rejected")
}

func (o *LoggingObserver) OnHookStart(ctx context.Context, p *Pipeline, hook Hook) {
	o.Logger.Debug().
		Str("event_id", p.EventID).
		Str("hook", string(hook)).
		Msg("hook_start")
}

func (o *LoggingObserver) OnHookCompleted(ctx context.Context, p *Pipeline, hook Hook, err error, d time.Duration) {
	evt := o.Logger.Debug()
	if err != nil {
		evt = o.Logger.Error()
	}
	evt.
		Str("event_id", p.EventID).
		Str("hook", string(hook)).
		Dur("duration", d).
		Err(err).
		Msg("hook_completed")
}

// BasicMetrics collects simple counters and aggregate hook durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	pipelinesCreated    atomic.Int64
	transitions         atomic.Int64
	transitionsRejected atomic.Int64
	hooksCompleted      atomic.Int64
	totalHookDuration   atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	PipelinesCreated    int64
	Transitions         int64
	TransitionsRejected int64

	HooksCompleted  int64
	AvgHookDuration time.Duration
}

func (m *BasicMetrics) OnPipelineCreated(ctx context.Context, p *Pipeline) {
	m.pipelinesCreated.Add(1)
}

func (m *BasicMetrics) OnTransition(ctx context.Context, p *Pipeline, tr StageTransition) {
	m.transitions.Add(1)
}

func (m *BasicMetrics) OnTransitionRejected(ctx context.Context, eventID string, from, to Stage, err error) {
	m.transitionsRejected.Add(1)
}

func (m *BasicMetrics) OnHookCompleted(ctx context.Context, p *Pipeline, hook Hook, err error, d time.Duration) {
	// Only count successful hooks for average duration.
	if err == nil {
		m.hooksCompleted.Add(1)
		m.totalHookDuration.Add(d.Nanoseconds())
	}
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	hooks := m.hooksCompleted.Load()
	totalNs := m.totalHookDuration.Load()

	var avg time.Duration
	if hooks > 0 {
		avg = time.Duration(totalNs / hooks)
	}

	return BasicMetricsSnapshot{
		PipelinesCreated:    m.pipelinesCreated.Load(),
		Transitions:         m.transitions.Load(),
		TransitionsRejected: m.transitionsRejected.Load(),
		HooksCompleted:      hooks,
		AvgHookDuration:     avg,
	}
}
