// Package ml holds the diagnosis model and the code that invokes it.
//
// The model is an opaque, pre-trained probabilistic classifier loaded once at
// startup and never mutated afterwards, so a single instance is shared by all
// request handlers without locking. Predictions are returned in the model's
// own class order; Rank orders them for presentation.
package ml

import "diagnosis-service/internal/features"

// Classifier is the inference capability the service depends on.
// Implementations must be safe for concurrent use.
type Classifier interface {
	// Classes returns the class labels in the model's own order.
	Classes() []string

	// PredictProba returns one probability per class, aligned with Classes.
	PredictProba(v features.Vector) ([]float64, error)
}

// Describer is implemented by classifiers that carry artifact metadata.
type Describer interface {
	Metadata() Metadata
}
