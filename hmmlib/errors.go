package hmmlib

import "errors"

var (
	// ErrInvalidModel indicates a probability row that is negative or does
	// not sum to one within epsRow, or a shape inconsistency between the
	// transition and output models at construction time.
	ErrInvalidModel = errors.New("hmmlib: invalid model parameters")

	// ErrNumerical indicates a non-finite likelihood, vanished probability
	// mass, or a failed linear solve during estimation.
	ErrNumerical = errors.New("hmmlib: numerical failure")

	// ErrSingularProjection indicates that the membership projection matrix
	// M'M in the coarse-graining step is not invertible.
	ErrSingularProjection = errors.New("hmmlib: singular membership projection")

	// ErrConfiguration indicates a dimension mismatch between a model and
	// the supplied data, or an invalid estimation/sampling configuration.
	ErrConfiguration = errors.New("hmmlib: inconsistent configuration")

	// ErrUnknownQuantity indicates a posterior-statistics path that does not
	// resolve in the quantity registry.
	ErrUnknownQuantity = errors.New("hmmlib: unknown quantity")

	// ErrShapeMismatch indicates that posterior samples disagree on the
	// shape of a queried quantity.
	ErrShapeMismatch = errors.New("hmmlib: sample shape mismatch")
)
