package observability

import (
	"context"

	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "itpbot"

// Metrics holds the collectors fed by the dialogue hooks.
type Metrics struct {
	Transitions         *prometheus.CounterVec
	Commands            *prometheus.CounterVec
	Calculations        *prometheus.CounterVec
	Failures            *prometheus.CounterVec
	Completions         prometheus.Counter
	CalculationDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
// Pass prometheus.NewRegistry() in tests to avoid global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Handled messages by step before and after the message.",
		}, []string{"from", "to"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Global commands intercepted before step dispatch.",
		}, []string{"command"}),
		Calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_total",
			Help:      "Transfer tax calculations by region and outcome.",
		}, []string{"region", "outcome"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Soft failures reported to users, by kind.",
		}, []string{"kind"}),
		Completions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_completed_total",
			Help:      "Conversations that ended with a calculation.",
		}),
		CalculationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calculation_duration_seconds",
			Help:      "Latency of the calculation service as seen by the dialogue.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.Transitions, m.Commands, m.Calculations, m.Failures, m.Completions, m.CalculationDuration)
	return m
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(string(e.From), string(e.To)).Inc()
			if e.Ended {
				m.Completions.Inc()
			}
		},
		OnCommand: func(_ context.Context, e *domain.CommandEvent) {
			m.Commands.WithLabelValues(e.Command).Inc()
		},
		OnCalculation: func(_ context.Context, e *domain.CalculationEvent) {
			outcome := "ok"
			if e.IsError {
				outcome = "error"
			}
			m.Calculations.WithLabelValues(e.Region, outcome).Inc()
			m.CalculationDuration.Observe(e.Duration.Seconds())
		},
		OnFailure: func(_ context.Context, e *domain.FailureEvent) {
			m.Failures.WithLabelValues(e.Kind).Inc()
		},
	}
}
