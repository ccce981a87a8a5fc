package ml

import (
	"sync"

	"diagnosis-service/internal/features"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu           sync.Mutex
	predictions  int
	failures     int
	latencySum   float64
	latencyCount int
	topProbs     []float64
	modelAge     float64
	classes      float64
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) MLFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
	m.latencyCount++
}

func (m *MockMetrics) MLTopProbabilityObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topProbs = append(m.topProbs, v)
}

func (m *MockMetrics) MLModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) MLModelClassesSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes = v
}

// StubClassifier returns fixed probabilities, or Err when set.
type StubClassifier struct {
	Labels []string
	Probs  []float64
	Err    error
}

func (s *StubClassifier) Classes() []string {
	return s.Labels
}

func (s *StubClassifier) PredictProba(features.Vector) ([]float64, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Probs, nil
}
