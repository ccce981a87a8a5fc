package metrics

import (
	"strconv"
	"time"
)

// Wrapper adapts Metrics to the narrow interfaces the ml and server packages
// consume. A nil Wrapper or one built on nil Metrics is a no-op.
type Wrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

func (w *Wrapper) enabled() bool {
	return w != nil && w.m != nil
}

func (w *Wrapper) MLPredictionsInc() {
	if w.enabled() {
		w.m.Predictions.Inc()
	}
}

func (w *Wrapper) MLFailuresInc() {
	if w.enabled() {
		w.m.PredictionFailures.Inc()
	}
}

func (w *Wrapper) MLLatencyObserve(v float64) {
	if w.enabled() {
		w.m.PredictionLatency.Observe(v)
	}
}

func (w *Wrapper) MLTopProbabilityObserve(v float64) {
	if w.enabled() {
		w.m.TopProbability.Observe(v)
	}
}

func (w *Wrapper) MLModelAgeSet(v float64) {
	if w.enabled() {
		w.m.ModelAge.Set(v)
	}
}

func (w *Wrapper) MLModelClassesSet(v float64) {
	if w.enabled() {
		w.m.ModelClasses.Set(v)
	}
}

func (w *Wrapper) ValidationErrorInc(field, reason string) {
	if w.enabled() {
		w.m.ValidationErrors.WithLabelValues(field, reason).Inc()
	}
}

func (w *Wrapper) ObserveRequest(route string, code int, d time.Duration) {
	if w.enabled() {
		w.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
		w.m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
	}
}

// FailureRate is 0 when metrics are disabled.
func (w *Wrapper) FailureRate() float64 {
	if !w.enabled() {
		return 0
	}
	return w.m.FailureRate()
}
