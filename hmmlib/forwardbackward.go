package hmmlib

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// SufficientStatistics holds the expected complete-data statistics of one
// observation sequence under a fixed model, as produced by ForwardBackward.
// All matrices are flat row-major slices.
type SufficientStatistics struct {
	// NStates is the number of hidden states.
	NStates int

	// TransCounts is the expected transition-count matrix, the sum of the
	// per-step joint occupation probabilities xi_t.
	TransCounts []float64

	// InitialOcc is the expected initial state occupation, gamma_1.
	InitialOcc []float64

	// Gamma holds the per-time-step state responsibilities, one row of
	// NStates values per time point.
	Gamma []float64

	// LogLik is the log-likelihood of the sequence under the model.
	LogLik float64
}

// forward runs the scaled forward recursion, filling alpha (ntime x nstate,
// flat) and the per-step scaling factors c, chosen so that each alpha row
// sums to 1.  The log-likelihood of the sequence is the sum of log(c_t).
func (m *HiddenMarkovModel) forward(obs []float64, alpha, c []float64) error {
	n := m.NumStates()

	for st := 0; st < n; st++ {
		alpha[st] = m.init[st] * m.output.EmissionProb(st, obs[0])
	}
	c[0] = floats.Sum(alpha[0:n])
	if !(c[0] > 0) || math.IsInf(c[0], 0) {
		return fmt.Errorf("%w: probability mass vanished at time 0", ErrNumerical)
	}
	floats.Scale(1/c[0], alpha[0:n])

	for t := 1; t < len(obs); t++ {
		j0 := (t - 1) * n
		j1 := t * n
		for st2 := 0; st2 < n; st2++ {
			var s float64
			for st1 := 0; st1 < n; st1++ {
				s += alpha[j0+st1] * m.trans.Prob(st1, st2)
			}
			alpha[j1+st2] = s * m.output.EmissionProb(st2, obs[t])
		}
		c[t] = floats.Sum(alpha[j1 : j1+n])
		if !(c[t] > 0) || math.IsInf(c[t], 0) {
			return fmt.Errorf("%w: probability mass vanished at time %d", ErrNumerical, t)
		}
		floats.Scale(1/c[t], alpha[j1:j1+n])
	}

	return nil
}

// backward runs the scaled backward recursion, filling beta (ntime x nstate,
// flat) using the scaling factors produced by the forward pass.
func (m *HiddenMarkovModel) backward(obs []float64, c, beta []float64) {
	n := m.NumStates()
	ntime := len(obs)

	j1 := (ntime - 1) * n
	for st := 0; st < n; st++ {
		beta[j1+st] = 1
	}

	for t := ntime - 2; t >= 0; t-- {
		j0 := t * n
		j1 = (t + 1) * n
		for st1 := 0; st1 < n; st1++ {
			var s float64
			for st2 := 0; st2 < n; st2++ {
				s += m.trans.Prob(st1, st2) * m.output.EmissionProb(st2, obs[t+1]) * beta[j1+st2]
			}
			beta[j0+st1] = s / c[t+1]
		}
	}
}

// ForwardBackward computes the scaled forward/backward probabilities for the
// sequence under the model and returns the expected sufficient statistics:
// the expected transition counts, the expected initial occupation and the
// per-time-step state responsibilities, together with the log-likelihood.
//
// The sequence is validated against the output model before any recursion
// starts; an observation outside a discrete model's alphabet is rejected with
// ErrConfiguration.  A vanished or non-finite likelihood is reported as
// ErrNumerical.
func ForwardBackward(m *HiddenMarkovModel, obs []float64) (*SufficientStatistics, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("%w: empty observation sequence", ErrConfiguration)
	}
	if err := m.output.ValidateSequence(obs); err != nil {
		return nil, err
	}

	n := m.NumStates()
	ntime := len(obs)

	alpha := make([]float64, ntime*n)
	beta := make([]float64, ntime*n)
	c := make([]float64, ntime)

	if err := m.forward(obs, alpha, c); err != nil {
		return nil, err
	}
	m.backward(obs, c, beta)

	var llf float64
	for _, ct := range c {
		llf += math.Log(ct)
	}
	if math.IsNaN(llf) || math.IsInf(llf, 0) {
		return nil, fmt.Errorf("%w: non-finite log-likelihood", ErrNumerical)
	}

	sf := &SufficientStatistics{
		NStates:     n,
		TransCounts: make([]float64, n*n),
		InitialOcc:  make([]float64, n),
		Gamma:       make([]float64, ntime*n),
		LogLik:      llf,
	}

	// gamma_t(s) = alpha_t(s) * beta_t(s), normalized per time point.
	for t := 0; t < ntime; t++ {
		j := t * n
		g := sf.Gamma[j : j+n]
		floats.MulTo(g, alpha[j:j+n], beta[j:j+n])
		normalizeSum(g, 1/float64(n))
	}
	copy(sf.InitialOcc, sf.Gamma[0:n])

	// xi_t(s, s') = alpha_t(s) P(s, s') e_{s'}(o_{t+1}) beta_{t+1}(s') / c_{t+1},
	// normalized per time point and accumulated into the expected counts.
	xi := make([]float64, n*n)
	for t := 0; t < ntime-1; t++ {
		j0 := t * n
		j1 := (t + 1) * n
		for st1 := 0; st1 < n; st1++ {
			for st2 := 0; st2 < n; st2++ {
				xi[st1*n+st2] = alpha[j0+st1] * m.trans.Prob(st1, st2) *
					m.output.EmissionProb(st2, obs[t+1]) * beta[j1+st2] / c[t+1]
			}
		}
		normalizeSum(xi, 0)
		floats.Add(sf.TransCounts, xi)
	}

	return sf, nil
}
