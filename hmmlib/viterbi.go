package hmmlib

import (
	"fmt"
	"math"
)

// ReconstructStates predicts the most probable hidden-state sequence for the
// observations under the model, using the Viterbi algorithm in the log
// domain.
func ReconstructStates(m *HiddenMarkovModel, obs []float64) ([]int, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("%w: empty observation sequence", ErrConfiguration)
	}
	if err := m.output.ValidateSequence(obs); err != nil {
		return nil, err
	}

	n := m.NumStates()
	ntime := len(obs)

	// lpr holds the best log path probability ending in each state, lpt the
	// corresponding predecessor.
	lpr := make([]float64, ntime*n)
	lpt := make([]int, ntime*n)
	wk := make([]float64, n)

	lt := make([]float64, n*n)
	for st1 := 0; st1 < n; st1++ {
		for st2 := 0; st2 < n; st2++ {
			lt[st1*n+st2] = math.Log(m.trans.Prob(st1, st2))
		}
	}

	for st := 0; st < n; st++ {
		lpr[st] = math.Log(m.init[st]) + m.output.LogEmissionProb(st, obs[0])
	}

	for t := 1; t < ntime; t++ {
		j0 := (t - 1) * n
		j1 := t * n
		for st2 := 0; st2 < n; st2++ {
			for st1 := 0; st1 < n; st1++ {
				wk[st1] = lpr[j0+st1] + lt[st1*n+st2]
			}

			// The best previous state
			jj := argmax(wk)
			lpt[j1+st2] = jj
			lpr[j1+st2] = wk[jj] + m.output.LogEmissionProb(st2, obs[t])
		}
	}

	y := make([]int, ntime)
	jt := (ntime - 1) * n
	y[ntime-1] = argmax(lpr[jt : jt+n])
	for t := ntime - 2; t >= 0; t-- {
		y[t] = lpt[(t+1)*n+y[t+1]]
	}

	return y, nil
}
