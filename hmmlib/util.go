package hmmlib

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

const (
	// Tolerance for checking that a probability row sums to 1.
	epsRow = 1e-8

	// The Gaussian SD parameters are never allowed to go below this value.
	sigmaFloor = 1e-6

	// Total responsibilities below this value are treated as zero mass.
	massFloor = 1e-10
)

// checkRows verifies that each of the nrow rows of length ncol in the flat
// row-major slice x is a probability vector: entries in [0, 1] and summing
// to 1 within epsRow.
func checkRows(x []float64, nrow, ncol int) error {
	if len(x) != nrow*ncol {
		return fmt.Errorf("%w: have %d entries, want %dx%d", ErrInvalidModel, len(x), nrow, ncol)
	}
	for i := 0; i < nrow; i++ {
		row := x[i*ncol : (i+1)*ncol]
		for j, v := range row {
			if v < 0 || v > 1 || math.IsNaN(v) {
				return fmt.Errorf("%w: entry (%d, %d) = %v outside [0, 1]", ErrInvalidModel, i, j, v)
			}
		}
		if s := floats.Sum(row); math.Abs(s-1) > epsRow {
			return fmt.Errorf("%w: row %d sums to %v", ErrInvalidModel, i, s)
		}
	}
	return nil
}

// normalizeSum scales x to have a sum of 1.  If the total mass is too small
// to normalize, every entry is set to z instead.
func normalizeSum(x []float64, z float64) {
	scale := floats.Sum(x)
	if scale < massFloor {
		for j := range x {
			x[j] = z
		}
		return
	}
	floats.Scale(1/scale, x)
}

// genDiscrete draws from the given probability vector, which must sum to 1.
func genDiscrete(pr []float64, rng *rand.Rand) int {
	u := rng.Float64()
	p := 0.0
	for j := range pr {
		p += pr[j]
		if u < p {
			return j
		}
	}

	// Round-off can leave u above the accumulated sum.
	return len(pr) - 1
}

func argmax(x []float64) int {
	j := 0
	v := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > v {
			v = x[i]
			j = i
		}
	}

	return j
}
