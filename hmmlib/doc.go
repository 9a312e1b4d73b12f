// Package hmmlib estimates discrete-time hidden Markov models with discrete
// or Gaussian emissions.
//
// The package provides a maximum-likelihood estimator (Baum-Welch EM, Fit), a
// coarse-graining initializer that projects an observable-space transition
// matrix through a spectral-clustering membership matrix (CoarseGrain), a
// Gibbs sampler with conjugate-prior updates (Sample), and a posterior
// ensemble answering statistical queries over any registered model quantity
// (GatherStatistics).
//
// All stochastic operations take an explicit *rand.Rand; models are immutable
// value objects, so independent EM restarts and Gibbs chains can run on
// separate goroutines without shared state.
package hmmlib
