package hmmlib

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// OutputModel is the emission distribution of the HMM: the conditional law of
// an observation given the current hidden state.  Implementations are flat
// immutable parameter records; Reestimate returns a new value.
//
// Observations are carried as float64 for both variants.  DiscreteOutputModel
// interprets them as symbol indices and rejects anything outside its alphabet
// in ValidateSequence.
type OutputModel interface {
	// NumStates returns the number of hidden states.
	NumStates() int

	// NumObservables returns the alphabet size for a discrete model and 0
	// for a continuous one.
	NumObservables() int

	// EmissionProb returns P(obs | state).
	EmissionProb(state int, obs float64) float64

	// LogEmissionProb returns log P(obs | state).
	LogEmissionProb(state int, obs float64) float64

	// Sample draws an observation conditional on the hidden state.
	Sample(state int, rng *rand.Rand) float64

	// Reestimate produces a new OutputModel from the responsibility
	// weights in stats, one SufficientStatistics per observation sequence.
	// The returned slice lists hidden states whose parameters were kept
	// unchanged because they received no responsibility mass.
	Reestimate(stats []*SufficientStatistics, seqs [][]float64) (OutputModel, []int, error)

	// ValidateSequence checks that every observation in obs is admissible
	// under this model, returning ErrConfiguration otherwise.  It is called
	// before any recursion touches the sequence.
	ValidateSequence(obs []float64) error
}

// DiscreteOutputModel emits symbols from a finite alphabet according to a
// row-stochastic emission matrix (hidden states by symbols).
type DiscreteOutputModel struct {
	nstate int
	nsymb  int

	// The emission probabilities, row-major, nstate x nsymb.
	e []float64
}

// NewDiscreteOutputModel constructs a discrete emission model from the flat
// row-major matrix e with nstate rows and nsymb columns.
func NewDiscreteOutputModel(e []float64, nstate, nsymb int) (DiscreteOutputModel, error) {
	if nstate < 1 || nsymb < 1 {
		return DiscreteOutputModel{}, fmt.Errorf("%w: need at least one state and one symbol", ErrInvalidModel)
	}
	if err := checkRows(e, nstate, nsymb); err != nil {
		return DiscreteOutputModel{}, fmt.Errorf("emission matrix: %w", err)
	}

	q := make([]float64, nstate*nsymb)
	copy(q, e)

	return DiscreteOutputModel{nstate: nstate, nsymb: nsymb, e: q}, nil
}

// NumStates returns the number of hidden states.
func (d DiscreteOutputModel) NumStates() int { return d.nstate }

// NumObservables returns the alphabet size.
func (d DiscreteOutputModel) NumObservables() int { return d.nsymb }

// EmissionMatrix returns a copy of the emission probabilities as a flat
// row-major slice.
func (d DiscreteOutputModel) EmissionMatrix() []float64 {
	q := make([]float64, len(d.e))
	copy(q, d.e)
	return q
}

// EmissionProb returns the probability of emitting the given symbol.
func (d DiscreteOutputModel) EmissionProb(state int, obs float64) float64 {
	return d.e[state*d.nsymb+int(obs)]
}

// LogEmissionProb returns the log probability of emitting the given symbol.
func (d DiscreteOutputModel) LogEmissionProb(state int, obs float64) float64 {
	return math.Log(d.EmissionProb(state, obs))
}

// Sample draws a symbol from the state's emission row.
func (d DiscreteOutputModel) Sample(state int, rng *rand.Rand) float64 {
	return float64(genDiscrete(d.e[state*d.nsymb:(state+1)*d.nsymb], rng))
}

// ValidateSequence rejects observations that are not whole numbers inside
// the declared alphabet.
func (d DiscreteOutputModel) ValidateSequence(obs []float64) error {
	for t, y := range obs {
		k := int(y)
		if float64(k) != y || k < 0 || k >= d.nsymb {
			return fmt.Errorf("%w: observation %v at position %d outside alphabet of size %d",
				ErrConfiguration, y, t, d.nsymb)
		}
	}
	return nil
}

// Reestimate aggregates responsibility-weighted symbol counts across all
// sequences and row-normalizes.  A state with zero total responsibility keeps
// its previous emission row and is reported in the second return value.
func (d DiscreteOutputModel) Reestimate(stats []*SufficientStatistics, seqs [][]float64) (OutputModel, []int, error) {
	if len(stats) != len(seqs) {
		return nil, nil, fmt.Errorf("%w: %d statistics for %d sequences", ErrConfiguration, len(stats), len(seqs))
	}

	counts := make([]float64, d.nstate*d.nsymb)
	mass := make([]float64, d.nstate)

	for q, sf := range stats {
		obs := seqs[q]
		if sf.NStates != d.nstate {
			return nil, nil, fmt.Errorf("%w: statistics over %d states, model has %d", ErrConfiguration, sf.NStates, d.nstate)
		}
		if len(sf.Gamma) != len(obs)*d.nstate {
			return nil, nil, fmt.Errorf("%w: responsibility length %d for sequence of length %d",
				ErrConfiguration, len(sf.Gamma), len(obs))
		}
		for t := range obs {
			k := int(obs[t])
			for st := 0; st < d.nstate; st++ {
				w := sf.Gamma[t*d.nstate+st]
				counts[st*d.nsymb+k] += w
				mass[st] += w
			}
		}
	}

	e := make([]float64, d.nstate*d.nsymb)
	copy(e, d.e)
	var starved []int
	for st := 0; st < d.nstate; st++ {
		if mass[st] < massFloor {
			// Empty-cluster degeneracy: leave the row unchanged.
			starved = append(starved, st)
			continue
		}
		row := e[st*d.nsymb : (st+1)*d.nsymb]
		copy(row, counts[st*d.nsymb:(st+1)*d.nsymb])
		normalizeSum(row, 1/float64(d.nsymb))
	}

	out, err := NewDiscreteOutputModel(e, d.nstate, d.nsymb)
	if err != nil {
		return nil, nil, err
	}
	return out, starved, nil
}

// GaussianOutputModel emits one-dimensional Gaussian observations with a
// per-state mean and standard deviation.
type GaussianOutputModel struct {
	mean []float64
	sd   []float64
}

// NewGaussianOutputModel constructs a Gaussian emission model from per-state
// means and standard deviations.  Standard deviations must be positive.
func NewGaussianOutputModel(mean, sd []float64) (GaussianOutputModel, error) {
	if len(mean) == 0 || len(mean) != len(sd) {
		return GaussianOutputModel{}, fmt.Errorf("%w: have %d means and %d standard deviations",
			ErrInvalidModel, len(mean), len(sd))
	}
	for st := range sd {
		if !(sd[st] > 0) || math.IsInf(sd[st], 0) || math.IsNaN(mean[st]) || math.IsInf(mean[st], 0) {
			return GaussianOutputModel{}, fmt.Errorf("%w: state %d has mean %v, sd %v",
				ErrInvalidModel, st, mean[st], sd[st])
		}
	}

	g := GaussianOutputModel{
		mean: make([]float64, len(mean)),
		sd:   make([]float64, len(sd)),
	}
	copy(g.mean, mean)
	copy(g.sd, sd)

	return g, nil
}

// NumStates returns the number of hidden states.
func (g GaussianOutputModel) NumStates() int { return len(g.mean) }

// NumObservables returns 0; the observation space is continuous.
func (g GaussianOutputModel) NumObservables() int { return 0 }

// Means returns a copy of the per-state means.
func (g GaussianOutputModel) Means() []float64 {
	q := make([]float64, len(g.mean))
	copy(q, g.mean)
	return q
}

// StdDevs returns a copy of the per-state standard deviations.
func (g GaussianOutputModel) StdDevs() []float64 {
	q := make([]float64, len(g.sd))
	copy(q, g.sd)
	return q
}

// EmissionProb returns the normal density of obs under the state's parameters.
func (g GaussianOutputModel) EmissionProb(state int, obs float64) float64 {
	return distuv.Normal{Mu: g.mean[state], Sigma: g.sd[state]}.Prob(obs)
}

// LogEmissionProb returns the normal log density of obs.
func (g GaussianOutputModel) LogEmissionProb(state int, obs float64) float64 {
	return distuv.Normal{Mu: g.mean[state], Sigma: g.sd[state]}.LogProb(obs)
}

// Sample draws from the state's normal distribution.
func (g GaussianOutputModel) Sample(state int, rng *rand.Rand) float64 {
	return distuv.Normal{Mu: g.mean[state], Sigma: g.sd[state], Src: rng}.Rand()
}

// ValidateSequence rejects non-finite observations.
func (g GaussianOutputModel) ValidateSequence(obs []float64) error {
	for t, y := range obs {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return fmt.Errorf("%w: non-finite observation %v at position %d", ErrConfiguration, y, t)
		}
	}
	return nil
}

// Reestimate computes responsibility-weighted means and standard deviations
// per state across all sequences.  Standard deviations are floored at
// sigmaFloor to prevent collapse to a zero-width density.  A state with zero
// total responsibility keeps its previous parameters and is reported in the
// second return value.
func (g GaussianOutputModel) Reestimate(stats []*SufficientStatistics, seqs [][]float64) (OutputModel, []int, error) {
	if len(stats) != len(seqs) {
		return nil, nil, fmt.Errorf("%w: %d statistics for %d sequences", ErrConfiguration, len(stats), len(seqs))
	}

	n := len(g.mean)
	mean := make([]float64, n)
	mass := make([]float64, n)

	for q, sf := range stats {
		obs := seqs[q]
		if sf.NStates != n {
			return nil, nil, fmt.Errorf("%w: statistics over %d states, model has %d", ErrConfiguration, sf.NStates, n)
		}
		if len(sf.Gamma) != len(obs)*n {
			return nil, nil, fmt.Errorf("%w: responsibility length %d for sequence of length %d",
				ErrConfiguration, len(sf.Gamma), len(obs))
		}
		for t, y := range obs {
			for st := 0; st < n; st++ {
				w := sf.Gamma[t*n+st]
				mean[st] += w * y
				mass[st] += w
			}
		}
	}

	var starved []int
	for st := 0; st < n; st++ {
		if mass[st] < massFloor {
			starved = append(starved, st)
			mean[st] = g.mean[st]
		} else {
			mean[st] /= mass[st]
		}
	}

	sd := make([]float64, n)
	for q, sf := range stats {
		obs := seqs[q]
		for t, y := range obs {
			for st := 0; st < n; st++ {
				r := y - mean[st]
				sd[st] += sf.Gamma[t*n+st] * r * r
			}
		}
	}
	for st := 0; st < n; st++ {
		if mass[st] < massFloor {
			sd[st] = g.sd[st]
			continue
		}
		sd[st] = math.Sqrt(sd[st] / mass[st])
		if sd[st] < sigmaFloor {
			sd[st] = sigmaFloor
		}
	}

	// Guard against all-zero weights producing NaNs upstream.
	if floats.HasNaN(mean) || floats.HasNaN(sd) {
		return nil, nil, fmt.Errorf("%w: non-finite Gaussian reestimate", ErrNumerical)
	}

	out, err := NewGaussianOutputModel(mean, sd)
	if err != nil {
		return nil, nil, err
	}
	return out, starved, nil
}
