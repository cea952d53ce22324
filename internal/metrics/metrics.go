// Package metrics exposes pipeline activity as Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gigguin/bookflow/pkg/api"
)

// Observer implements api.Observer on top of Prometheus collectors.
type Observer struct {
	api.NoopObserver

	pipelinesCreated    prometheus.Counter
	transitions         *prometheus.CounterVec
	transitionsRejected *prometheus.CounterVec
	hookDuration        *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Observer {
	o := &Observer{
		pipelinesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bookflow",
			Name:      "pipelines_created_total",
			Help:      "Number of events entered into the booking pipeline.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookflow",
			Name:      "transitions_total",
			Help:      "Accepted stage transitions by edge.",
		}, []string{"from", "to", "automatic"}),
		transitionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookflow",
			Name:      "transitions_rejected_total",
			Help:      "Rejected transition requests by reason.",
		}, []string{"reason"}),
		hookDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bookflow",
			Name:      "hook_duration_seconds",
			Help:      "Automation hook execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"hook", "result"}),
	}

	reg.MustRegister(o.pipelinesCreated, o.transitions, o.transitionsRejected, o.hookDuration)
	return o
}

func (o *Observer) OnPipelineCreated(ctx context.Context, p *api.Pipeline) {
	o.pipelinesCreated.Inc()
}

func (o *Observer) OnTransition(ctx context.Context, p *api.Pipeline, tr api.StageTransition) {
	automatic := "false"
	if tr.Automatic {
		automatic = "true"
	}
	o.transitions.WithLabelValues(string(tr.From), string(tr.To), automatic).Inc()
}

func (o *Observer) OnTransitionRejected(ctx context.Context, eventID string, from, to api.Stage, err error) {
	o.transitionsRejected.WithLabelValues(rejectionReason(err)).Inc()
}

func (o *Observer) OnHookCompleted(ctx context.Context, p *api.Pipeline, hook api.Hook, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	o.hookDuration.WithLabelValues(string(hook), result).Observe(d.Seconds())
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, api.ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, api.ErrPipelineNotFound):
		return "not_found"
	default:
		if _, ok := api.IsTransitionNotAllowed(err); ok {
			return "not_allowed"
		}
		if _, ok := api.IsMissingRequiredFields(err); ok {
			return "missing_fields"
		}
		return "error"
	}
}
