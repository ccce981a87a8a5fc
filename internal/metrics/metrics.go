// Package metrics provides Prometheus metrics collection for the diagnosis
// service. It defines the prediction, model and HTTP metrics exposed via the
// /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	predictionsName        = "diagnosis_predictions_total"
	predictionFailuresName = "diagnosis_prediction_failures_total"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics
	Predictions        prometheus.Counter     // Successful model invocations
	PredictionFailures prometheus.Counter     // Failed model invocations
	ValidationErrors   *prometheus.CounterVec // Rejected field sets by field and reason
	PredictionLatency  prometheus.Histogram   // Model invocation latency
	TopProbability     prometheus.Histogram   // Probability of the highest ranked class

	// Model metrics
	ModelAge     prometheus.Gauge // Seconds since the artifact was trained
	ModelClasses prometheus.Gauge // Number of classes the model knows

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec   // Requests by route and status code
	HTTPDuration *prometheus.HistogramVec // Request duration by route

	gatherer prometheus.Gatherer
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry creates metrics on an isolated registry (useful for testing).
func NewWithRegistry(registry *prometheus.Registry) *Metrics {
	return newMetrics(registry, registry)
}

func newMetrics(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: predictionsName,
			Help: "Total number of successful diagnosis predictions",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: predictionFailuresName,
			Help: "Total number of failed diagnosis predictions",
		}),
		ValidationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "diagnosis_validation_errors_total",
			Help: "Total number of rejected field sets",
		}, []string{"field", "reason"}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "diagnosis_prediction_latency_seconds",
			Help:    "Model inference latency in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		TopProbability: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "diagnosis_top_probability",
			Help:    "Distribution of the highest class probability per prediction",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "diagnosis_model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}),
		ModelClasses: factory.NewGauge(prometheus.GaugeOpts{
			Name: "diagnosis_model_classes",
			Help: "Number of classes known to the loaded model",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		gatherer: gatherer,
	}
}

// Handler serves the registry this Metrics was created on.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// FailureRate returns failed predictions over all predictions, or 0 if
// none have been recorded.
func (m *Metrics) FailureRate() float64 {
	var ok, failed float64

	metricFamilies, err := m.gatherer.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case predictionsName:
			for _, m := range mf.Metric {
				ok = m.GetCounter().GetValue()
			}
		case predictionFailuresName:
			for _, m := range mf.Metric {
				failed = m.GetCounter().GetValue()
			}
		}
	}

	// Avoid division by zero
	if ok+failed == 0 {
		return 0
	}

	return failed / (ok + failed)
}
