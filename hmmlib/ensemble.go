package hmmlib

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PosteriorEnsemble holds the reference (seed) model and the ordered sequence
// of models accepted by the Gibbs sampler.  It is immutable once sampling
// finishes.
type PosteriorEnsemble struct {
	reference *HiddenMarkovModel
	samples   []*HiddenMarkovModel
}

// NewPosteriorEnsemble builds an ensemble from a reference model and a
// sequence of accepted samples, e.g. when merging independently run chains.
func NewPosteriorEnsemble(reference *HiddenMarkovModel, samples []*HiddenMarkovModel) *PosteriorEnsemble {
	s := make([]*HiddenMarkovModel, len(samples))
	copy(s, samples)
	return &PosteriorEnsemble{reference: reference, samples: s}
}

// Reference returns the prior/seed model of the chain.
func (e *PosteriorEnsemble) Reference() *HiddenMarkovModel { return e.reference }

// Len returns the number of accepted samples.
func (e *PosteriorEnsemble) Len() int { return len(e.samples) }

// Sample returns the i-th accepted model.
func (e *PosteriorEnsemble) Sample(i int) *HiddenMarkovModel { return e.samples[i] }

// Interval is the result of a posterior statistics query: element-wise mean
// and empirical confidence bounds, shaped like the queried quantity (flat
// row-major, Rows x Cols; vectors have Cols = 1).
type Interval struct {
	Mean  []float64
	Lower []float64
	Upper []float64
	Rows  int
	Cols  int
}

// extractor pulls one numeric quantity of fixed shape out of a model.
type extractor func(m *HiddenMarkovModel) (vals []float64, rows, cols int, err error)

// registryNode is one segment of the quantity registry tree.  A node either
// resolves further segments through children or terminates a path with an
// extractor.
type registryNode struct {
	children map[string]*registryNode
	extract  extractor
}

// quantityRegistry maps slash-delimited quantity paths to typed extractors.
// Multi-segment paths are composed by chaining lookups, never by reflection.
var quantityRegistry = &registryNode{
	children: map[string]*registryNode{
		"transition-model": {
			children: map[string]*registryNode{
				"transition-matrix":       {extract: extractTransitionMatrix},
				"stationary-distribution": {extract: extractStationary},
			},
		},
		"initial-distribution": {extract: extractInitial},
		"output-model": {
			children: map[string]*registryNode{
				"emission-matrix": {extract: extractEmissionMatrix},
				"means":           {extract: extractMeans},
				"stds":            {extract: extractStdDevs},
			},
		},
	},
}

func extractTransitionMatrix(m *HiddenMarkovModel) ([]float64, int, int, error) {
	n := m.NumStates()
	return m.Transition().Matrix(), n, n, nil
}

func extractStationary(m *HiddenMarkovModel) ([]float64, int, int, error) {
	pi, err := m.Transition().StationaryDistribution()
	if err != nil {
		return nil, 0, 0, err
	}
	return pi, len(pi), 1, nil
}

func extractInitial(m *HiddenMarkovModel) ([]float64, int, int, error) {
	pi := m.InitialDistribution()
	return pi, len(pi), 1, nil
}

func extractEmissionMatrix(m *HiddenMarkovModel) ([]float64, int, int, error) {
	om, ok := m.Output().(DiscreteOutputModel)
	if !ok {
		return nil, 0, 0, fmt.Errorf("%w: emission-matrix is not defined for %T", ErrUnknownQuantity, m.Output())
	}
	return om.EmissionMatrix(), om.NumStates(), om.NumObservables(), nil
}

func extractMeans(m *HiddenMarkovModel) ([]float64, int, int, error) {
	om, ok := m.Output().(GaussianOutputModel)
	if !ok {
		return nil, 0, 0, fmt.Errorf("%w: means is not defined for %T", ErrUnknownQuantity, m.Output())
	}
	v := om.Means()
	return v, len(v), 1, nil
}

func extractStdDevs(m *HiddenMarkovModel) ([]float64, int, int, error) {
	om, ok := m.Output().(GaussianOutputModel)
	if !ok {
		return nil, 0, 0, fmt.Errorf("%w: stds is not defined for %T", ErrUnknownQuantity, m.Output())
	}
	v := om.StdDevs()
	return v, len(v), 1, nil
}

// resolveQuantity walks the registry along the slash-delimited path.
func resolveQuantity(path string) (extractor, error) {
	node := quantityRegistry
	for _, seg := range strings.Split(path, "/") {
		seg = strings.TrimSpace(seg)
		next, ok := node.children[seg]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownQuantity, path)
		}
		node = next
	}
	if node.extract == nil {
		return nil, fmt.Errorf("%w: %q names a group, not a quantity", ErrUnknownQuantity, path)
	}
	return node.extract, nil
}

// GatherStatistics evaluates the named quantity on every sampled model and
// returns the element-wise mean together with empirical lower/upper bounds at
// the requested confidence level, computed by order statistics over the
// sampled values.
//
// The path names a quantity in the fixed registry, e.g.
// "transition-model/transition-matrix" or "output-model/means".
func (e *PosteriorEnsemble) GatherStatistics(path string, confidence float64) (*Interval, error) {
	if confidence <= 0 || confidence >= 1 {
		return nil, fmt.Errorf("%w: confidence %v outside (0, 1)", ErrConfiguration, confidence)
	}
	if len(e.samples) == 0 {
		return nil, fmt.Errorf("%w: empty ensemble", ErrConfiguration)
	}

	ext, err := resolveQuantity(path)
	if err != nil {
		return nil, err
	}

	var stack [][]float64
	var rows, cols int
	for i, m := range e.samples {
		vals, r, c, err := ext(m)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		if i == 0 {
			rows, cols = r, c
		} else if r != rows || c != cols {
			return nil, fmt.Errorf("%w: sample %d has shape %dx%d, want %dx%d",
				ErrShapeMismatch, i, r, c, rows, cols)
		}
		stack = append(stack, vals)
	}

	nelem := rows * cols
	out := &Interval{
		Mean:  make([]float64, nelem),
		Lower: make([]float64, nelem),
		Upper: make([]float64, nelem),
		Rows:  rows,
		Cols:  cols,
	}

	tail := (1 - confidence) / 2
	col := make([]float64, len(stack))
	for j := 0; j < nelem; j++ {
		for i := range stack {
			col[i] = stack[i][j]
		}
		out.Mean[j] = floats.Sum(col) / float64(len(col))
		sort.Float64s(col)
		out.Lower[j] = stat.Quantile(tail, stat.Empirical, col, nil)
		out.Upper[j] = stat.Quantile(1-tail, stat.Empirical, col, nil)
	}

	return out, nil
}
