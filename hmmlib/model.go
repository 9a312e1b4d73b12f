package hmmlib

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
)

// HiddenMarkovModel composes a TransitionModel, an OutputModel and an initial
// hidden-state distribution.  Models are value objects: estimation and
// sampling always construct a new model instead of mutating an existing one.
type HiddenMarkovModel struct {
	trans  TransitionModel
	output OutputModel
	init   []float64
}

// NewHiddenMarkovModel constructs a model, verifying that the transition and
// output models agree on the number of hidden states and that init is a
// probability vector of matching length.
func NewHiddenMarkovModel(trans TransitionModel, output OutputModel, init []float64) (*HiddenMarkovModel, error) {
	n := trans.NumStates()
	if output.NumStates() != n {
		return nil, fmt.Errorf("%w: transition model has %d states, output model has %d",
			ErrInvalidModel, n, output.NumStates())
	}
	if err := checkRows(init, 1, n); err != nil {
		return nil, fmt.Errorf("initial distribution: %w", err)
	}

	pi := make([]float64, n)
	copy(pi, init)

	return &HiddenMarkovModel{trans: trans, output: output, init: pi}, nil
}

// NumStates returns the number of hidden states.
func (m *HiddenMarkovModel) NumStates() int { return m.trans.NumStates() }

// Transition returns the transition model.
func (m *HiddenMarkovModel) Transition() TransitionModel { return m.trans }

// Output returns the output model.
func (m *HiddenMarkovModel) Output() OutputModel { return m.output }

// InitialDistribution returns a copy of the initial hidden-state distribution.
func (m *HiddenMarkovModel) InitialDistribution() []float64 {
	pi := make([]float64, len(m.init))
	copy(pi, m.init)
	return pi
}

// Simulate generates a hidden-state trajectory of length ntime and the
// corresponding observation sequence.
func (m *HiddenMarkovModel) Simulate(ntime int, rng *rand.Rand) (states []int, obs []float64) {
	states = make([]int, ntime)
	obs = make([]float64, ntime)

	if ntime == 0 {
		return states, obs
	}

	states[0] = genDiscrete(m.init, rng)
	obs[0] = m.output.Sample(states[0], rng)
	for t := 1; t < ntime; t++ {
		states[t] = m.trans.SampleNext(states[t-1], rng)
		obs[t] = m.output.Sample(states[t], rng)
	}

	return states, obs
}

// LogLikelihood evaluates the log-likelihood of the observation sequence
// under the model via the scaled forward recursion.
func (m *HiddenMarkovModel) LogLikelihood(obs []float64) (float64, error) {
	if len(obs) == 0 {
		return 0, fmt.Errorf("%w: empty observation sequence", ErrConfiguration)
	}
	if err := m.output.ValidateSequence(obs); err != nil {
		return 0, err
	}

	n := m.NumStates()
	alpha := make([]float64, len(obs)*n)
	c := make([]float64, len(obs))
	if err := m.forward(obs, alpha, c); err != nil {
		return 0, err
	}

	var llf float64
	for _, ct := range c {
		llf += math.Log(ct)
	}
	return llf, nil
}
