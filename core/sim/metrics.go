package sim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"example.com/fuzzy-follow/base/metrics"
)

type simMetrics struct {
	steps               prometheus.Counter
	fallbacks           prometheus.Counter
	saturations         prometheus.Counter
	integralSaturations prometheus.Counter
	distanceError       prometheus.Gauge
	controlOutput       prometheus.Gauge
}

// newSimMetrics registers with reg; a nil reg yields unregistered collectors.
func newSimMetrics(reg prometheus.Registerer, labels prometheus.Labels) *simMetrics {
	f := promauto.With(reg)
	return &simMetrics{
		steps: f.NewCounter(prometheus.CounterOpts{
			Name:        metrics.SimStepsN,
			Help:        metrics.SimStepsH,
			ConstLabels: labels,
		}),
		fallbacks: f.NewCounter(prometheus.CounterOpts{
			Name:        metrics.SimFallbacksN,
			Help:        metrics.SimFallbacksH,
			ConstLabels: labels,
		}),
		saturations: f.NewCounter(prometheus.CounterOpts{
			Name:        metrics.SimSaturationsN,
			Help:        metrics.SimSaturationsH,
			ConstLabels: labels,
		}),
		integralSaturations: f.NewCounter(prometheus.CounterOpts{
			Name:        metrics.SimIntegralSaturationsN,
			Help:        metrics.SimIntegralSaturationsH,
			ConstLabels: labels,
		}),
		distanceError: f.NewGauge(prometheus.GaugeOpts{
			Name:        metrics.SimDistanceErrorN,
			Help:        metrics.SimDistanceErrorH,
			ConstLabels: labels,
		}),
		controlOutput: f.NewGauge(prometheus.GaugeOpts{
			Name:        metrics.SimControlOutputN,
			Help:        metrics.SimControlOutputH,
			ConstLabels: labels,
		}),
	}
}

func (m *simMetrics) observe(r Record) {
	m.steps.Inc()
	if r.Flags.Has(FlagFallback) {
		m.fallbacks.Inc()
	}
	if r.Flags.Has(FlagSaturated) {
		m.saturations.Inc()
	}
	if r.Flags.Has(FlagIntegralSaturated) {
		m.integralSaturations.Inc()
	}
	m.distanceError.Set(r.Error)
	m.controlOutput.Set(r.ControlOutput)
}
