package ml

import (
	"slices"
	"time"

	"diagnosis-service/internal/features"
)

// SyntheticClasses are the labels of the demo forest.
var SyntheticClasses = []string{
	"Common Cold",
	"Influenza",
	"Gastroenteritis",
	"Strep Throat",
	"Migraine",
	"Pneumonia",
}

// SyntheticForest returns a small hand-built forest over synthetic counts.
// It exists so the service can run without an externally trained artifact;
// its outputs carry no medical meaning.
func SyntheticForest() *Forest {
	idx := features.Index

	f := &Forest{
		Version:      "synthetic-1",
		TrainedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		FeatureNames: slices.Clone(features.Order),
		ClassLabels:  slices.Clone(SyntheticClasses),
		Trees: []Tree{
			stump(idx("symptom_fever"), 0.5,
				[]float64{30, 5, 15, 10, 25, 5},
				[]float64{10, 40, 10, 20, 2, 18}),
			stump(idx("symptom_cough"), 0.5,
				[]float64{10, 10, 30, 15, 30, 5},
				[]float64{35, 25, 2, 5, 2, 31}),
			stump(idx("symptom_vomiting"), 0.5,
				[]float64{25, 20, 10, 20, 20, 15},
				[]float64{2, 8, 60, 3, 15, 2}),
			stump(idx("symptom_sore_throat"), 0.5,
				[]float64{20, 20, 25, 3, 25, 17},
				[]float64{30, 10, 2, 50, 3, 5}),
			stump(idx("symptom_headache"), 0.5,
				[]float64{25, 15, 25, 20, 3, 12},
				[]float64{10, 30, 5, 10, 40, 5}),
			{Nodes: []Node{
				{Feature: idx(features.FieldTemperature), Threshold: 38, Left: 1, Right: 4},
				{Feature: idx("symptom_shortness_of_breath"), Threshold: 0.5, Left: 2, Right: 3},
				leaf(35, 15, 20, 20, 25, 2),
				leaf(10, 10, 2, 5, 2, 30),
				{Feature: idx(features.FieldAge), Threshold: 60, Left: 5, Right: 6},
				leaf(5, 45, 15, 15, 2, 18),
				leaf(2, 30, 5, 5, 1, 50),
			}},
		},
	}

	if err := f.prepare(); err != nil {
		panic("ml: synthetic forest is invalid: " + err.Error())
	}
	f.loadedAt = time.Now()
	return f
}

func stump(feature int, threshold float64, left, right []float64) Tree {
	return Tree{Nodes: []Node{
		{Feature: feature, Threshold: threshold, Left: 1, Right: 2},
		leaf(left...),
		leaf(right...),
	}}
}

func leaf(counts ...float64) Node {
	return Node{Feature: -1, Left: -1, Right: -1, Value: counts}
}
