package hmmlib

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Largest acceptable residual when solving for the stationary distribution.
const stationaryResid = 1e-6

// TransitionModel is a row-stochastic transition probability matrix over the
// hidden states.  A TransitionModel is immutable once constructed; estimation
// steps build a new value rather than mutating in place, so models held by
// earlier posterior samples remain valid.
type TransitionModel struct {
	nstate int

	// The transition probabilities, row-major, nstate x nstate.
	p []float64
}

// NewTransitionModel constructs a TransitionModel from the flat row-major
// matrix p with nstate rows.  The entries are copied.  Each row must be a
// probability vector, otherwise ErrInvalidModel is returned.
func NewTransitionModel(p []float64, nstate int) (TransitionModel, error) {
	if nstate < 1 {
		return TransitionModel{}, fmt.Errorf("%w: need at least one state", ErrInvalidModel)
	}
	if err := checkRows(p, nstate, nstate); err != nil {
		return TransitionModel{}, fmt.Errorf("transition matrix: %w", err)
	}

	q := make([]float64, nstate*nstate)
	copy(q, p)

	return TransitionModel{nstate: nstate, p: q}, nil
}

// NumStates returns the number of hidden states.
func (t TransitionModel) NumStates() int {
	return t.nstate
}

// Prob returns the probability of moving from state i to state j.
func (t TransitionModel) Prob(i, j int) float64 {
	return t.p[i*t.nstate+j]
}

// Matrix returns a copy of the transition probabilities as a flat row-major
// slice.
func (t TransitionModel) Matrix() []float64 {
	q := make([]float64, len(t.p))
	copy(q, t.p)
	return q
}

// row returns a read-only view of row i for internal hot loops.
func (t TransitionModel) row(i int) []float64 {
	return t.p[i*t.nstate : (i+1)*t.nstate]
}

// SampleNext draws the successor of the given state from the corresponding
// row of the transition matrix.
func (t TransitionModel) SampleNext(state int, rng *rand.Rand) int {
	return genDiscrete(t.row(state), rng)
}

// StationaryDistribution returns the stationary distribution of the chain,
// i.e. the left eigenvector of the transition matrix for eigenvalue 1,
// normalized to sum to 1.  The eigenproblem is solved as the overdetermined
// linear system [P' - I; 1'] x = [0; 1] by least squares.  ErrNumerical is
// returned when the chain is not ergodic or the system is ill-conditioned.
func (t TransitionModel) StationaryDistribution() ([]float64, error) {
	n := t.nstate

	a := mat.NewDense(n+1, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(j, i, t.p[i*n+j])
		}
	}
	for i := 0; i < n; i++ {
		a.Set(i, i, a.At(i, i)-1)
		a.Set(n, i, 1)
	}

	b := mat.NewVecDense(n+1, nil)
	b.SetVec(n, 1)

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("%w: stationary distribution solve: %v", ErrNumerical, err)
	}

	var r mat.VecDense
	r.MulVec(a, &x)
	r.SubVec(&r, b)
	if resid := mat.Norm(&r, 2); resid > stationaryResid {
		return nil, fmt.Errorf("%w: stationary distribution residual %v", ErrNumerical, resid)
	}

	pi := make([]float64, n)
	for i := 0; i < n; i++ {
		v := x.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite stationary probability for state %d", ErrNumerical, i)
		}
		if v < 0 {
			// Clamp round-off; anything materially negative is caught
			// by the residual check above.
			v = 0
		}
		pi[i] = v
	}
	normalizeSum(pi, 1/float64(n))

	return pi, nil
}
