package hmmlib_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/ShakirSofi/scikit-time/hmmlib"
)

func TestNewTransitionModel_Errors(t *testing.T) {
	cases := []struct {
		name string
		p    []float64
		n    int
	}{
		{"RowSum", []float64{0.5, 0.4, 0.3, 0.7}, 2},
		{"Negative", []float64{1.2, -0.2, 0.3, 0.7}, 2},
		{"WrongLength", []float64{1, 0, 0}, 2},
		{"ZeroStates", nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := hmmlib.NewTransitionModel(tc.p, tc.n)
			require.ErrorIs(t, err, hmmlib.ErrInvalidModel)
		})
	}
}

func TestTransitionModel_Accessors(t *testing.T) {
	p := []float64{0.95, 0.05, 0.3, 0.7}
	tm, err := hmmlib.NewTransitionModel(p, 2)
	require.NoError(t, err)

	require.Equal(t, 2, tm.NumStates())
	require.Equal(t, 0.05, tm.Prob(0, 1))
	require.Equal(t, p, tm.Matrix())

	// The returned matrix is a copy; mutating it must not touch the model.
	m := tm.Matrix()
	m[0] = 0
	require.Equal(t, 0.95, tm.Prob(0, 0))
}

func TestStationaryDistribution(t *testing.T) {
	tm, err := hmmlib.NewTransitionModel([]float64{0.95, 0.05, 0.3, 0.7}, 2)
	require.NoError(t, err)

	pi, err := tm.StationaryDistribution()
	require.NoError(t, err)

	// Detailed balance of the two-state chain: pi0 * 0.05 = pi1 * 0.3.
	require.InDelta(t, 6.0/7.0, pi[0], 1e-8)
	require.InDelta(t, 1.0/7.0, pi[1], 1e-8)
}

func TestStationaryDistribution_Identity(t *testing.T) {
	// The identity chain is not ergodic: every distribution is stationary
	// and the solve cannot pin one down.
	tm, err := hmmlib.NewTransitionModel([]float64{1, 0, 0, 1}, 2)
	require.NoError(t, err)

	_, err = tm.StationaryDistribution()
	require.ErrorIs(t, err, hmmlib.ErrNumerical)
}

func TestSampleNext(t *testing.T) {
	tm, err := hmmlib.NewTransitionModel([]float64{0, 1, 0.5, 0.5}, 2)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		require.Equal(t, 1, tm.SampleNext(0, rng))
	}

	var ones int
	const ndraw = 20000
	for i := 0; i < ndraw; i++ {
		ones += tm.SampleNext(1, rng)
	}
	require.InDelta(t, 0.5, float64(ones)/ndraw, 0.02)
}
