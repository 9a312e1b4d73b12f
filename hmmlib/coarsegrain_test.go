package hmmlib_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"github.com/ShakirSofi/scikit-time/hmmlib"
)

// A four-micro-state chain with two sticky blocks {0, 1} and {2, 3}.
var pMicro4 = []float64{
	0.45, 0.45, 0.05, 0.05,
	0.45, 0.45, 0.05, 0.05,
	0.05, 0.05, 0.45, 0.45,
	0.05, 0.05, 0.45, 0.45,
}

func TestCoarseGrain_HardMembership(t *testing.T) {
	// Hard block assignment: the projection reduces to averaging block
	// transition mass, so the coarse matrix is known exactly.
	membership := []float64{
		1, 0,
		1, 0,
		0, 1,
		0, 1,
	}

	model, err := hmmlib.CoarseGrain(pMicro4, 4, membership, 2)
	require.NoError(t, err)

	p := model.Transition().Matrix()
	require.InDelta(t, 0.9, p[0], 1e-10)
	require.InDelta(t, 0.1, p[1], 1e-10)
	require.InDelta(t, 0.1, p[2], 1e-10)
	require.InDelta(t, 0.9, p[3], 1e-10)

	// Emission guess: normalized membership columns.
	om := model.Output().(hmmlib.DiscreteOutputModel)
	e := om.EmissionMatrix()
	require.InDelta(t, 0.5, e[0], 1e-10)
	require.InDelta(t, 0.5, e[1], 1e-10)
	require.InDelta(t, 0.0, e[2], 1e-10)

	require.Equal(t, []float64{0.5, 0.5}, model.InitialDistribution())
}

func TestCoarseGrain_SoftMembershipRowsStochastic(t *testing.T) {
	membership := []float64{
		0.9, 0.1,
		0.8, 0.2,
		0.2, 0.8,
		0.1, 0.9,
	}

	model, err := hmmlib.CoarseGrain(pMicro4, 4, membership, 2)
	require.NoError(t, err)

	p := model.Transition().Matrix()
	for st := 0; st < 2; st++ {
		row := p[st*2 : (st+1)*2]
		require.InDelta(t, 1.0, floats.Sum(row), 1e-8)
		require.GreaterOrEqual(t, floats.Min(row), 0.0)
		require.LessOrEqual(t, floats.Max(row), 1.0)
	}
}

func TestCoarseGrain_SingularMembership(t *testing.T) {
	// Identical columns make M'M rank one.
	membership := []float64{
		0.5, 0.5,
		0.5, 0.5,
		0.5, 0.5,
		0.5, 0.5,
	}

	_, err := hmmlib.CoarseGrain(pMicro4, 4, membership, 2)
	require.ErrorIs(t, err, hmmlib.ErrSingularProjection)
}

func TestCoarseGrain_Errors(t *testing.T) {
	_, err := hmmlib.CoarseGrain(pMicro4, 4, []float64{1, 0, 0, 1}, 4)
	require.ErrorIs(t, err, hmmlib.ErrConfiguration)

	badMembership := []float64{
		0.9, 0.2,
		1, 0,
		0, 1,
		0, 1,
	}
	_, err = hmmlib.CoarseGrain(pMicro4, 4, badMembership, 2)
	require.ErrorIs(t, err, hmmlib.ErrInvalidModel)
}

func TestRandomGuess(t *testing.T) {
	model := hmmlib.RandomGuess(3, 2, rand.New(rand.NewSource(42)))

	require.Equal(t, 2, model.NumStates())
	require.Equal(t, []float64{0.5, 0.5}, model.InitialDistribution())

	p := model.Transition().Matrix()
	require.Equal(t, []float64{0.5, 0.5, 0.5, 0.5}, p)

	om := model.Output().(hmmlib.DiscreteOutputModel)
	e := om.EmissionMatrix()
	for st := 0; st < 2; st++ {
		require.InDelta(t, 1.0, floats.Sum(e[st*3:(st+1)*3]), 1e-10)
	}

	// Same seed, same guess.
	again := hmmlib.RandomGuess(3, 2, rand.New(rand.NewSource(42)))
	require.Equal(t, e, again.Output().(hmmlib.DiscreteOutputModel).EmissionMatrix())
}
