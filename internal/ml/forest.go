package ml

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"diagnosis-service/internal/common"
	"diagnosis-service/internal/features"

	"github.com/rs/zerolog/log"
)

// Node is one decision tree node. Leaves have Left and Right set to -1 and
// carry per-class sample counts in Value. Internal nodes send a sample left
// when its Feature value is <= Threshold.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

func (n Node) isLeaf() bool {
	return n.Left == -1 && n.Right == -1
}

type Tree struct {
	Nodes []Node `json:"nodes"`

	// normalized leaf distributions, indexed like Nodes
	dist [][]float64
}

// Metadata describes a loaded artifact.
type Metadata struct {
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	Features  []string  `json:"features"`
	Classes   []string  `json:"classes"`
	Trees     int       `json:"trees"`
	Path      string    `json:"path,omitempty"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// Forest is a random forest classifier. Class probabilities are the mean of
// the normalized leaf distributions reached in every tree.
type Forest struct {
	Version      string    `json:"version"`
	TrainedAt    time.Time `json:"trained_at"`
	FeatureNames []string  `json:"features"`
	ClassLabels  []string  `json:"classes"`
	Trees        []Tree    `json:"trees"`

	path     string
	loadedAt time.Time
}

// LoadForest reads a forest artifact from disk. Paths ending in .gz are
// decompressed on the fly.
func LoadForest(path string) (*Forest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", common.ErrInvalidArtifact, err)
		}
		defer gz.Close()
		r = gz
	}

	forest, err := DecodeForest(r)
	if err != nil {
		return nil, err
	}
	forest.path = path

	log.Info().
		Str("model_path", path).
		Str("version", forest.Version).
		Int("trees", len(forest.Trees)).
		Strs("classes", forest.ClassLabels).
		Msg("model loaded")

	return forest, nil
}

// DecodeForest parses and validates an artifact from r.
func DecodeForest(r io.Reader) (*Forest, error) {
	var forest Forest
	if err := json.NewDecoder(r).Decode(&forest); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidArtifact, err)
	}
	if err := forest.prepare(); err != nil {
		return nil, err
	}
	forest.loadedAt = time.Now()
	return &forest, nil
}

// prepare validates the artifact and precomputes leaf distributions.
func (f *Forest) prepare() error {
	if !slices.Equal(f.FeatureNames, features.Order) {
		return fmt.Errorf("%w: got %v", common.ErrFeatureMismatch, f.FeatureNames)
	}
	if len(f.ClassLabels) == 0 {
		return fmt.Errorf("%w: no classes", common.ErrInvalidArtifact)
	}
	seen := make(map[string]struct{}, len(f.ClassLabels))
	for _, c := range f.ClassLabels {
		if _, dup := seen[c]; dup {
			return fmt.Errorf("%w: duplicate class %q", common.ErrInvalidArtifact, c)
		}
		seen[c] = struct{}{}
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("%w: no trees", common.ErrInvalidArtifact)
	}

	for ti := range f.Trees {
		if err := f.Trees[ti].prepare(len(f.ClassLabels)); err != nil {
			return fmt.Errorf("%w: tree %d: %v", common.ErrInvalidArtifact, ti, err)
		}
	}
	return nil
}

func (t *Tree) prepare(nClasses int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	t.dist = make([][]float64, len(t.Nodes))

	for i, n := range t.Nodes {
		if n.isLeaf() {
			if len(n.Value) != nClasses {
				return fmt.Errorf("node %d: expected %d class values, got %d", i, nClasses, len(n.Value))
			}
			var sum float64
			for _, c := range n.Value {
				if c < 0 || math.IsNaN(c) || math.IsInf(c, 0) {
					return fmt.Errorf("node %d: invalid class value %v", i, c)
				}
				sum += c
			}
			if sum == 0 {
				return fmt.Errorf("node %d: empty leaf", i)
			}
			d := make([]float64, nClasses)
			for j, c := range n.Value {
				d[j] = c / sum
			}
			t.dist[i] = d
			continue
		}

		if n.Feature < 0 || n.Feature >= features.Len {
			return fmt.Errorf("node %d: feature index %d out of range", i, n.Feature)
		}
		// Children always follow their parent, which rules out cycles.
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: invalid children %d/%d", i, n.Left, n.Right)
		}
		if math.IsNaN(n.Threshold) {
			return fmt.Errorf("node %d: NaN threshold", i)
		}
	}
	return nil
}

func (t *Tree) leaf(v features.Vector) []float64 {
	idx := 0
	for {
		n := t.Nodes[idx]
		if n.isLeaf() {
			return t.dist[idx]
		}
		if v[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
}

// Classes returns a copy of the class labels in model order.
func (f *Forest) Classes() []string {
	return slices.Clone(f.ClassLabels)
}

// PredictProba averages leaf distributions across trees.
func (f *Forest) PredictProba(v features.Vector) ([]float64, error) {
	if f == nil || len(f.Trees) == 0 {
		return nil, common.ErrModelNotLoaded
	}

	probs := make([]float64, len(f.ClassLabels))
	for i := range f.Trees {
		for j, p := range f.Trees[i].leaf(v) {
			probs[j] += p
		}
	}
	n := float64(len(f.Trees))
	for j := range probs {
		probs[j] /= n
	}
	return probs, nil
}

func (f *Forest) Metadata() Metadata {
	return Metadata{
		Version:   f.Version,
		TrainedAt: f.TrainedAt,
		Features:  slices.Clone(f.FeatureNames),
		Classes:   slices.Clone(f.ClassLabels),
		Trees:     len(f.Trees),
		Path:      f.path,
		LoadedAt:  f.loadedAt,
	}
}
