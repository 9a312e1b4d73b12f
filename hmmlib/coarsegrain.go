package hmmlib

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// CoarseGrain builds an initial HMM guess from an observable-space (micro)
// transition matrix and a membership matrix produced by an external spectral
// clustering step.  pMicro is k x k row-major, membership is k x nhidden
// row-major with rows summing to 1.  The coarse transition matrix is the
// projection
//
//	P_coarse = (M'M)^-1 M' P_micro M
//
// clipped into [0, 1] and row-normalized, since the algebraic projection is
// not guaranteed row-stochastic.  The emission guess for each hidden state is
// the corresponding membership column, normalized; the initial distribution
// is uniform.  ErrSingularProjection is returned when M'M is not invertible,
// e.g. for a degenerate clustering with an empty cluster.
func CoarseGrain(pMicro []float64, k int, membership []float64, nhidden int) (*HiddenMarkovModel, error) {
	if nhidden < 1 || nhidden >= k {
		return nil, fmt.Errorf("%w: need 1 <= hidden states (%d) < observable states (%d)",
			ErrConfiguration, nhidden, k)
	}
	if err := checkRows(pMicro, k, k); err != nil {
		return nil, fmt.Errorf("micro transition matrix: %w", err)
	}
	if err := checkRows(membership, k, nhidden); err != nil {
		return nil, fmt.Errorf("membership matrix: %w", err)
	}

	mm := mat.NewDense(k, nhidden, membership)
	pm := mat.NewDense(k, k, pMicro)

	var mtm mat.Dense
	mtm.Mul(mm.T(), mm)

	// M' P M
	var mp, mpm mat.Dense
	mp.Mul(mm.T(), pm)
	mpm.Mul(&mp, mm)

	var pc mat.Dense
	if err := pc.Solve(&mtm, &mpm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularProjection, err)
	}

	// Clip numerical drift and renormalize each row.
	trans := make([]float64, nhidden*nhidden)
	for i := 0; i < nhidden; i++ {
		for j := 0; j < nhidden; j++ {
			v := pc.At(i, j)
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			trans[i*nhidden+j] = v
		}
		normalizeSum(trans[i*nhidden:(i+1)*nhidden], 1/float64(nhidden))
	}

	tm, err := NewTransitionModel(trans, nhidden)
	if err != nil {
		return nil, err
	}

	// Emission guess: normalized membership columns, one per hidden state.
	emis := make([]float64, nhidden*k)
	for st := 0; st < nhidden; st++ {
		for o := 0; o < k; o++ {
			emis[st*k+o] = membership[o*nhidden+st]
		}
		normalizeSum(emis[st*k:(st+1)*k], 1/float64(k))
	}
	output, err := NewDiscreteOutputModel(emis, nhidden, k)
	if err != nil {
		return nil, err
	}

	init := make([]float64, nhidden)
	for i := range init {
		init[i] = 1 / float64(nhidden)
	}

	return NewHiddenMarkovModel(tm, output, init)
}

// RandomGuess builds a starting model with a uniform initial distribution,
// a uniform hidden transition matrix, and an emission matrix with independent
// uniform(0, 1) entries normalized by row.
func RandomGuess(nObservable, nHidden int, rng *rand.Rand) *HiddenMarkovModel {
	init := make([]float64, nHidden)
	trans := make([]float64, nHidden*nHidden)
	for i := range init {
		init[i] = 1 / float64(nHidden)
	}
	for i := range trans {
		trans[i] = 1 / float64(nHidden)
	}

	emis := make([]float64, nHidden*nObservable)
	for i := range emis {
		emis[i] = rng.Float64()
	}
	for st := 0; st < nHidden; st++ {
		normalizeSum(emis[st*nObservable:(st+1)*nObservable], 1/float64(nObservable))
	}

	tm, err := NewTransitionModel(trans, nHidden)
	if err != nil {
		panic(err) // rows are uniform by construction
	}
	output, err := NewDiscreteOutputModel(emis, nHidden, nObservable)
	if err != nil {
		panic(err) // rows are normalized by construction
	}
	model, err := NewHiddenMarkovModel(tm, output, init)
	if err != nil {
		panic(err)
	}

	return model
}
