package hmmlib

import (
	"fmt"
	"io"
	"log"

	"github.com/schollz/progressbar"
	"gonum.org/v1/gonum/floats"
)

// EstimatorConfig holds the Baum-Welch (EM) estimation parameters.
type EstimatorConfig struct {
	// Tolerance is the log-likelihood improvement below which the
	// iteration is considered converged.
	Tolerance float64

	// MaxIterations caps the number of EM iterations.  Hitting the cap is
	// not an error; the result carries Converged=false.
	MaxIterations int

	// Logger receives estimation messages.  If nil, messages are dropped.
	Logger *log.Logger

	// Progress enables a progress bar on standard output.
	Progress bool
}

// DefaultEstimatorConfig returns reasonable default estimation parameters.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		Tolerance:     1e-6,
		MaxIterations: 500,
	}
}

// FitResult is the outcome of a maximum-likelihood estimation run.
type FitResult struct {
	// Model is the final estimated model.
	Model *HiddenMarkovModel

	// LogLik is the log-likelihood trace, one entry per iteration,
	// evaluated at the model entering that iteration.
	LogLik []float64

	// Iterations is the number of EM iterations performed.
	Iterations int

	// Converged reports whether the tolerance was met before the
	// iteration cap.
	Converged bool
}

// Fit estimates the model parameters by EM (Baum-Welch), starting from the
// given initial model.  Each iteration runs the forward-backward recursion on
// every sequence, pools the expected sufficient statistics, and reestimates
// the transition matrix, the initial distribution and the output model,
// producing a new immutable model.
//
// The log-likelihood trace is non-decreasing up to round-off; a decrease
// within Tolerance is treated as convergence, while a larger decrease is
// reported as ErrNumerical.
func Fit(cfg EstimatorConfig, initial *HiddenMarkovModel, sequences ...[]float64) (*FitResult, error) {
	if initial == nil {
		return nil, fmt.Errorf("%w: nil initial model", ErrConfiguration)
	}
	if len(sequences) == 0 {
		return nil, fmt.Errorf("%w: no observation sequences", ErrConfiguration)
	}
	for q, obs := range sequences {
		if len(obs) == 0 {
			return nil, fmt.Errorf("%w: sequence %d is empty", ErrConfiguration, q)
		}
		if err := initial.Output().ValidateSequence(obs); err != nil {
			return nil, fmt.Errorf("sequence %d: %w", q, err)
		}
	}
	if cfg.MaxIterations < 1 {
		return nil, fmt.Errorf("%w: MaxIterations must be positive", ErrConfiguration)
	}
	if cfg.Tolerance <= 0 {
		return nil, fmt.Errorf("%w: Tolerance must be positive", ErrConfiguration)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	var bar *progressbar.ProgressBar
	if cfg.Progress {
		bar = progressbar.New(cfg.MaxIterations)
	}

	model := initial
	res := &FitResult{LogLik: make([]float64, 0, cfg.MaxIterations)}
	stats := make([]*SufficientStatistics, len(sequences))

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		if bar != nil {
			_ = bar.Add(1)
		}

		// E-step
		var llf float64
		for q, obs := range sequences {
			sf, err := ForwardBackward(model, obs)
			if err != nil {
				return nil, fmt.Errorf("iteration %d, sequence %d: %w", iter, q, err)
			}
			stats[q] = sf
			llf += sf.LogLik
		}

		res.LogLik = append(res.LogLik, llf)
		res.Iterations = iter + 1

		if iter > 0 {
			prev := res.LogLik[iter-1]
			delta := llf - prev
			if delta < -cfg.Tolerance {
				return nil, fmt.Errorf("%w: log-likelihood decreased by %v at iteration %d",
					ErrNumerical, -delta, iter)
			}
			if delta < cfg.Tolerance {
				res.Converged = true
				res.Model = model
				logger.Printf("converged after %d iterations, llf=%f", iter+1, llf)
				return res, nil
			}
		}
		logger.Printf("iteration %d, llf=%f", iter+1, llf)

		// M-step
		next, err := mstep(model, stats, sequences, logger)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iter, err)
		}
		model = next
	}

	logger.Printf("iteration cap %d reached without convergence", cfg.MaxIterations)
	res.Model = model
	return res, nil
}

// mstep reestimates all model parameters from pooled sufficient statistics.
func mstep(model *HiddenMarkovModel, stats []*SufficientStatistics, sequences [][]float64, logger *log.Logger) (*HiddenMarkovModel, error) {
	n := model.NumStates()

	trans := make([]float64, n*n)
	init := make([]float64, n)
	for _, sf := range stats {
		floats.Add(trans, sf.TransCounts)
		floats.Add(init, sf.InitialOcc)
	}

	for st := 0; st < n; st++ {
		normalizeSum(trans[st*n:(st+1)*n], 1/float64(n))
	}
	normalizeSum(init, 1/float64(n))

	tm, err := NewTransitionModel(trans, n)
	if err != nil {
		return nil, err
	}

	output, starved, err := model.Output().Reestimate(stats, sequences)
	if err != nil {
		return nil, err
	}
	for _, st := range starved {
		logger.Printf("state %d received no responsibility mass; emission parameters kept", st)
	}

	return NewHiddenMarkovModel(tm, output, init)
}
