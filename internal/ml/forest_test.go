package ml

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"diagnosis-service/internal/common"
	"diagnosis-service/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoTreeForest() *Forest {
	return &Forest{
		Version:      "test-1",
		FeatureNames: slices.Clone(features.Order),
		ClassLabels:  []string{"A", "B"},
		Trees: []Tree{
			{Nodes: []Node{
				{Feature: features.Index(features.FieldAge), Threshold: 50, Left: 1, Right: 2},
				leaf(3, 1),
				leaf(1, 3),
			}},
			{Nodes: []Node{leaf(1, 1)}},
		},
	}
}

func writeForest(t *testing.T, f *Forest, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)

	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	if filepath.Ext(name) == ".gz" {
		gz := gzip.NewWriter(out)
		require.NoError(t, json.NewEncoder(gz).Encode(f))
		require.NoError(t, gz.Close())
		return path
	}
	require.NoError(t, json.NewEncoder(out).Encode(f))
	return path
}

func vectorWithAge(age float64) features.Vector {
	var v features.Vector
	v[features.Index(features.FieldAge)] = age
	return v
}

func TestLoadForest(t *testing.T) {
	for _, name := range []string{"model.json", "model.json.gz"} {
		t.Run(name, func(t *testing.T) {
			path := writeForest(t, twoTreeForest(), name)

			forest, err := LoadForest(path)
			require.NoError(t, err)

			assert.Equal(t, []string{"A", "B"}, forest.Classes())

			probs, err := forest.PredictProba(vectorWithAge(30))
			require.NoError(t, err)
			assert.InDeltaSlice(t, []float64{0.625, 0.375}, probs, 1e-12)

			probs, err = forest.PredictProba(vectorWithAge(60))
			require.NoError(t, err)
			assert.InDeltaSlice(t, []float64{0.375, 0.625}, probs, 1e-12)

			meta := forest.Metadata()
			assert.Equal(t, "test-1", meta.Version)
			assert.Equal(t, 2, meta.Trees)
			assert.Equal(t, path, meta.Path)
			assert.False(t, meta.LoadedAt.IsZero())
		})
	}
}

func TestLoadForest_ThresholdIsInclusiveLeft(t *testing.T) {
	path := writeForest(t, twoTreeForest(), "model.json")
	forest, err := LoadForest(path)
	require.NoError(t, err)

	probs, err := forest.PredictProba(vectorWithAge(50))
	require.NoError(t, err)
	assert.InDelta(t, 0.625, probs[0], 1e-12)
}

func TestLoadForest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *Forest)
		wantErr error
	}{
		{
			name:    "feature order mismatch",
			mutate:  func(f *Forest) { f.FeatureNames[0], f.FeatureNames[1] = f.FeatureNames[1], f.FeatureNames[0] },
			wantErr: common.ErrFeatureMismatch,
		},
		{
			name:    "missing feature",
			mutate:  func(f *Forest) { f.FeatureNames = f.FeatureNames[:14] },
			wantErr: common.ErrFeatureMismatch,
		},
		{
			name:    "no classes",
			mutate:  func(f *Forest) { f.ClassLabels = nil },
			wantErr: common.ErrInvalidArtifact,
		},
		{
			name:    "duplicate class",
			mutate:  func(f *Forest) { f.ClassLabels = []string{"A", "A"} },
			wantErr: common.ErrInvalidArtifact,
		},
		{
			name:    "no trees",
			mutate:  func(f *Forest) { f.Trees = nil },
			wantErr: common.ErrInvalidArtifact,
		},
		{
			name:    "leaf width mismatch",
			mutate:  func(f *Forest) { f.Trees[1].Nodes[0].Value = []float64{1, 1, 1} },
			wantErr: common.ErrInvalidArtifact,
		},
		{
			name:    "empty leaf",
			mutate:  func(f *Forest) { f.Trees[1].Nodes[0].Value = []float64{0, 0} },
			wantErr: common.ErrInvalidArtifact,
		},
		{
			name:    "cyclic child",
			mutate:  func(f *Forest) { f.Trees[0].Nodes[0].Left = 0 },
			wantErr: common.ErrInvalidArtifact,
		},
		{
			name:    "feature index out of range",
			mutate:  func(f *Forest) { f.Trees[0].Nodes[0].Feature = features.Len },
			wantErr: common.ErrInvalidArtifact,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := twoTreeForest()
			tt.mutate(f)
			path := writeForest(t, f, "model.json")

			_, err := LoadForest(path)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadForest_MissingFile(t *testing.T) {
	_, err := LoadForest(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadForest_NotJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte("mock model content"), 0o644))

	_, err := LoadForest(path)
	assert.ErrorIs(t, err, common.ErrInvalidArtifact)
}

func TestSyntheticForest_ProbabilityMass(t *testing.T) {
	forest := SyntheticForest()

	var v features.Vector
	v[features.Index(features.FieldAge)] = 30
	v[features.Index(features.FieldTemperature)] = 37.5
	v[features.Index(features.FieldHeartRate)] = 80

	probs, err := forest.PredictProba(v)
	require.NoError(t, err)
	require.Len(t, probs, len(SyntheticClasses))

	var sum float64
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestSyntheticForest_RoundTrip(t *testing.T) {
	path := writeForest(t, SyntheticForest(), "synthetic.json")

	loaded, err := LoadForest(path)
	require.NoError(t, err)

	v := vectorWithAge(70)
	v[features.Index("symptom_fever")] = 1
	v[features.Index(features.FieldTemperature)] = 39

	want, _ := SyntheticForest().PredictProba(v)
	got, err := loaded.PredictProba(v)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-12)
}
