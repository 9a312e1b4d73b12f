package hmmlib

import (
	"fmt"
	"io"
	"log"
	"math"

	"github.com/schollz/progressbar"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// SamplerConfig holds the Gibbs sampling parameters.
type SamplerConfig struct {
	// Steps is the total number of Gibbs steps, including burn-in.
	Steps int

	// BurnIn is the number of initial steps discarded.
	BurnIn int

	// Thinning keeps every Thinning-th post-burn-in model.
	Thinning int

	// TransitionPrior is the symmetric Dirichlet concentration added to the
	// transition counts of each row.
	TransitionPrior float64

	// EmissionPrior is the symmetric Dirichlet concentration added to the
	// emission counts of each row (discrete output models only).
	EmissionPrior float64

	// PriorMean, PriorKappa, PriorShape and PriorRate parameterize the
	// Normal-Inverse-Gamma conjugate prior on (mean, variance) used for
	// Gaussian output models.
	PriorMean  float64
	PriorKappa float64
	PriorShape float64
	PriorRate  float64

	// Logger receives sampling messages.  If nil, messages are dropped.
	Logger *log.Logger

	// Progress enables a progress bar on standard output.
	Progress bool
}

// DefaultSamplerConfig returns weakly informative defaults: symmetric
// Dirichlet(1) priors on probability rows and NIG(0, 0.01, 0.5, 0.5) on
// Gaussian emission parameters.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		Steps:           1000,
		BurnIn:          100,
		Thinning:        10,
		TransitionPrior: 1,
		EmissionPrior:   1,
		PriorMean:       0,
		PriorKappa:      0.01,
		PriorShape:      0.5,
		PriorRate:       0.5,
	}
}

// Sample runs a sequential Gibbs chain around the reference model and the
// observation sequence and returns the resulting posterior ensemble.  One
// step resamples, in order: the complete hidden path (forward filtering,
// backward sampling), the transition matrix and initial distribution
// (Dirichlet posteriors), and the output model parameters (Dirichlet or
// Normal-Inverse-Gamma conjugate posteriors).
//
// The chain owns rng exclusively for the duration of the run; a fixed seed
// reproduces the run exactly.
func Sample(cfg SamplerConfig, reference *HiddenMarkovModel, obs []float64, rng *rand.Rand) (*PosteriorEnsemble, error) {
	if reference == nil {
		return nil, fmt.Errorf("%w: nil reference model", ErrConfiguration)
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("%w: empty observation sequence", ErrConfiguration)
	}
	if err := reference.Output().ValidateSequence(obs); err != nil {
		return nil, err
	}
	if cfg.Thinning < 1 || cfg.BurnIn < 0 || cfg.Steps <= cfg.BurnIn {
		return nil, fmt.Errorf("%w: need Steps (%d) > BurnIn (%d) and Thinning (%d) >= 1",
			ErrConfiguration, cfg.Steps, cfg.BurnIn, cfg.Thinning)
	}
	if cfg.TransitionPrior <= 0 || cfg.EmissionPrior <= 0 {
		return nil, fmt.Errorf("%w: Dirichlet prior concentrations must be positive", ErrConfiguration)
	}
	if cfg.PriorKappa <= 0 || cfg.PriorShape <= 0 || cfg.PriorRate <= 0 {
		return nil, fmt.Errorf("%w: Normal-Inverse-Gamma prior parameters must be positive", ErrConfiguration)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	var bar *progressbar.ProgressBar
	if cfg.Progress {
		bar = progressbar.New(cfg.Steps)
	}

	n := reference.NumStates()
	ntime := len(obs)

	model := reference
	path := make([]int, ntime)
	alpha := make([]float64, ntime*n)
	c := make([]float64, ntime)
	wk := make([]float64, n)

	nkeep := (cfg.Steps - cfg.BurnIn) / cfg.Thinning
	samples := make([]*HiddenMarkovModel, 0, nkeep)

	for step := 1; step <= cfg.Steps; step++ {
		if bar != nil {
			_ = bar.Add(1)
		}

		if err := samplePath(model, obs, alpha, c, wk, path, rng); err != nil {
			return nil, fmt.Errorf("step %d: %w", step, err)
		}

		tm, init, err := resampleTransition(cfg, n, path, rng)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", step, err)
		}

		output, err := resampleOutput(cfg, model.Output(), path, obs, rng)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", step, err)
		}

		model, err = NewHiddenMarkovModel(tm, output, init)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", step, err)
		}

		if step > cfg.BurnIn && (step-cfg.BurnIn)%cfg.Thinning == 0 {
			samples = append(samples, model)
		}
	}

	logger.Printf("retained %d of %d Gibbs steps", len(samples), cfg.Steps)

	return &PosteriorEnsemble{reference: reference, samples: samples}, nil
}

// samplePath draws a complete hidden-state path conditional on the model and
// the observations: one scaled forward pass, then a backward sweep drawing
// each state from the categorical distribution proportional to
// alpha_t(s) * P(s, path[t+1]).
func samplePath(m *HiddenMarkovModel, obs []float64, alpha, c, wk []float64, path []int, rng *rand.Rand) error {
	if err := m.forward(obs, alpha, c); err != nil {
		return err
	}

	n := m.NumStates()
	ntime := len(obs)

	jt := (ntime - 1) * n
	copy(wk, alpha[jt:jt+n])
	normalizeSum(wk, 1/float64(n))
	path[ntime-1] = genDiscrete(wk, rng)

	for t := ntime - 2; t >= 0; t-- {
		j := t * n
		for st := 0; st < n; st++ {
			wk[st] = alpha[j+st] * m.trans.Prob(st, path[t+1])
		}
		normalizeSum(wk, 1/float64(n))
		path[t] = genDiscrete(wk, rng)
	}

	return nil
}

// resampleTransition draws each transition row from the Dirichlet posterior
// formed by the path's transition counts plus the symmetric prior, and the
// initial distribution from the Dirichlet posterior given the path start.
func resampleTransition(cfg SamplerConfig, n int, path []int, rng *rand.Rand) (TransitionModel, []float64, error) {
	counts := make([]float64, n*n)
	for t := 0; t < len(path)-1; t++ {
		counts[path[t]*n+path[t+1]]++
	}

	trans := make([]float64, n*n)
	conc := make([]float64, n)
	for st := 0; st < n; st++ {
		for j := 0; j < n; j++ {
			conc[j] = counts[st*n+j] + cfg.TransitionPrior
		}
		distmv.NewDirichlet(conc, rng).Rand(trans[st*n : (st+1)*n])
		normalizeSum(trans[st*n:(st+1)*n], 1/float64(n))
	}

	for j := 0; j < n; j++ {
		conc[j] = cfg.TransitionPrior
	}
	conc[path[0]]++
	init := make([]float64, n)
	distmv.NewDirichlet(conc, rng).Rand(init)
	normalizeSum(init, 1/float64(n))

	tm, err := NewTransitionModel(trans, n)
	if err != nil {
		return TransitionModel{}, nil, err
	}
	return tm, init, nil
}

// resampleOutput draws new output-model parameters conditional on the sampled
// path, dispatching on the concrete variant.
func resampleOutput(cfg SamplerConfig, output OutputModel, path []int, obs []float64, rng *rand.Rand) (OutputModel, error) {
	switch om := output.(type) {
	case DiscreteOutputModel:
		return resampleDiscrete(cfg, om, path, obs, rng)
	case GaussianOutputModel:
		return resampleGaussian(cfg, om, path, obs, rng)
	default:
		return nil, fmt.Errorf("%w: unsupported output model %T", ErrConfiguration, output)
	}
}

// resampleDiscrete draws each emission row from the Dirichlet posterior of
// the path-assigned symbol counts.
func resampleDiscrete(cfg SamplerConfig, om DiscreteOutputModel, path []int, obs []float64, rng *rand.Rand) (OutputModel, error) {
	n := om.NumStates()
	m := om.NumObservables()

	counts := make([]float64, n*m)
	for t, st := range path {
		counts[st*m+int(obs[t])]++
	}

	emis := make([]float64, n*m)
	conc := make([]float64, m)
	for st := 0; st < n; st++ {
		for k := 0; k < m; k++ {
			conc[k] = counts[st*m+k] + cfg.EmissionPrior
		}
		distmv.NewDirichlet(conc, rng).Rand(emis[st*m : (st+1)*m])
		normalizeSum(emis[st*m:(st+1)*m], 1/float64(m))
	}

	out, err := NewDiscreteOutputModel(emis, n, m)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// resampleGaussian draws per-state (mean, sd) from the Normal-Inverse-Gamma
// posterior given the path-assigned observations.  A state with no assigned
// observations is drawn from the prior.
func resampleGaussian(cfg SamplerConfig, om GaussianOutputModel, path []int, obs []float64, rng *rand.Rand) (OutputModel, error) {
	n := om.NumStates()

	num := make([]float64, n)
	sum := make([]float64, n)
	for t, st := range path {
		num[st]++
		sum[st] += obs[t]
	}

	mean := make([]float64, n)
	sd := make([]float64, n)
	for st := 0; st < n; st++ {
		var ybar float64
		if num[st] > 0 {
			ybar = sum[st] / num[st]
		}
		var ssq float64
		for t, s := range path {
			if s == st {
				r := obs[t] - ybar
				ssq += r * r
			}
		}

		kap := cfg.PriorKappa + num[st]
		mu := (cfg.PriorKappa*cfg.PriorMean + sum[st]) / kap
		shape := cfg.PriorShape + num[st]/2
		d := ybar - cfg.PriorMean
		rate := cfg.PriorRate + ssq/2 + cfg.PriorKappa*num[st]*d*d/(2*kap)

		sigma2 := 1 / distuv.Gamma{Alpha: shape, Beta: rate, Src: rng}.Rand()
		if math.IsNaN(sigma2) || math.IsInf(sigma2, 0) || sigma2 <= 0 {
			return nil, fmt.Errorf("%w: degenerate variance draw for state %d", ErrNumerical, st)
		}

		mean[st] = distuv.Normal{Mu: mu, Sigma: math.Sqrt(sigma2 / kap), Src: rng}.Rand()
		sd[st] = math.Sqrt(sigma2)
		if sd[st] < sigmaFloor {
			sd[st] = sigmaFloor
		}
	}

	out, err := NewGaussianOutputModel(mean, sd)
	if err != nil {
		return nil, err
	}
	return out, nil
}
