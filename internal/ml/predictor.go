package ml

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"diagnosis-service/internal/common"
	"diagnosis-service/internal/features"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLLatencyObserve(float64)
	MLTopProbabilityObserve(float64)
	MLModelAgeSet(float64)
	MLModelClassesSet(float64)
}

// Prediction pairs a class label with its probability.
type Prediction struct {
	Diagnosis   string  `json:"diagnosis"`
	Probability float64 `json:"probability"`
}

// Predictor invokes a Classifier for single samples. It holds no mutable
// state of its own and can be shared across goroutines.
type Predictor struct {
	model   Classifier
	classes []string
	metrics MetricsInterface
}

func NewPredictor(model Classifier, metrics MetricsInterface) (*Predictor, error) {
	if model == nil {
		return nil, common.ErrModelNotLoaded
	}

	classes := model.Classes()
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: classifier reports no classes", common.ErrInvalidArtifact)
	}

	p := &Predictor{
		model:   model,
		classes: classes,
		metrics: metrics,
	}

	if metrics != nil {
		metrics.MLModelClassesSet(float64(len(classes)))
		if info := p.Info(); !info.TrainedAt.IsZero() {
			metrics.MLModelAgeSet(time.Since(info.TrainedAt).Seconds())
		}
	}

	return p, nil
}

// Predict returns one Prediction per class in the model's class order.
func (p *Predictor) Predict(ctx context.Context, v features.Vector) ([]Prediction, error) {
	if p == nil {
		return nil, common.ErrModelNotLoaded
	}

	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.MLLatencyObserve(time.Since(start).Seconds())
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	probs, err := p.model.PredictProba(v)
	if err != nil {
		p.fail()
		return nil, fmt.Errorf("%w: %v", common.ErrPredictionFailed, err)
	}

	if len(probs) != len(p.classes) {
		p.fail()
		log.Error().
			Int("prob_count", len(probs)).
			Int("class_count", len(p.classes)).
			Msg("Invalid prediction response - probability count does not match classes")
		return nil, fmt.Errorf("%w: expected %d probabilities, got %d", common.ErrPredictionFailed, len(p.classes), len(probs))
	}

	out := make([]Prediction, len(probs))
	top := 0.0
	for i, prob := range probs {
		if prob < 0 || prob > 1 || math.IsNaN(prob) {
			p.fail()
			log.Error().
				Int("prob_index", i).
				Float64("prob_value", prob).
				Msg("Invalid probability value in prediction")
			return nil, fmt.Errorf("%w: invalid probability %d: %f", common.ErrPredictionFailed, i, prob)
		}
		out[i] = Prediction{Diagnosis: p.classes[i], Probability: prob}
		top = max(top, prob)
	}

	if p.metrics != nil {
		p.metrics.MLPredictionsInc()
		p.metrics.MLTopProbabilityObserve(top)
	}

	log.Debug().
		Interface("features", v.Map()).
		Interface("probabilities", probs).
		Msg("Prediction successful")

	return out, nil
}

// Info describes the underlying model.
func (p *Predictor) Info() Metadata {
	if d, ok := p.model.(Describer); ok {
		return d.Metadata()
	}
	return Metadata{
		Features: slices.Clone(features.Order),
		Classes:  slices.Clone(p.classes),
	}
}

func (p *Predictor) fail() {
	if p.metrics != nil {
		p.metrics.MLFailuresInc()
	}
}
