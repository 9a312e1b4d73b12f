package hmmlib_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/ShakirSofi/scikit-time/hmmlib"
)

func TestReconstructStates_HandChecked(t *testing.T) {
	tm, err := hmmlib.NewTransitionModel([]float64{0.9, 0.1, 0.1, 0.9}, 2)
	require.NoError(t, err)
	om, err := hmmlib.NewDiscreteOutputModel([]float64{0.9, 0.1, 0.1, 0.9}, 2, 2)
	require.NoError(t, err)
	model, err := hmmlib.NewHiddenMarkovModel(tm, om, []float64{0.5, 0.5})
	require.NoError(t, err)

	path, err := hmmlib.ReconstructStates(model, []float64{0, 0, 1, 1})
	require.NoError(t, err)
	require.Equal(t, []int{0, 0, 1, 1}, path)
}

func TestReconstructStates_RecoversSimulation(t *testing.T) {
	// Sticky chain with well-separated emissions: the decoded path should
	// agree with the truth almost everywhere.
	tm, err := hmmlib.NewTransitionModel([]float64{0.95, 0.05, 0.05, 0.95}, 2)
	require.NoError(t, err)
	om, err := hmmlib.NewDiscreteOutputModel([]float64{0.95, 0.05, 0.05, 0.95}, 2, 2)
	require.NoError(t, err)
	model, err := hmmlib.NewHiddenMarkovModel(tm, om, []float64{0.5, 0.5})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(17))
	states, obs := model.Simulate(1000, rng)

	path, err := hmmlib.ReconstructStates(model, obs)
	require.NoError(t, err)

	var agree int
	for i := range states {
		if states[i] == path[i] {
			agree++
		}
	}
	require.Greater(t, float64(agree)/float64(len(states)), 0.85)
}

func TestReconstructStates_Errors(t *testing.T) {
	model := scenarioModel(t)

	_, err := hmmlib.ReconstructStates(model, nil)
	require.ErrorIs(t, err, hmmlib.ErrConfiguration)

	_, err = hmmlib.ReconstructStates(model, []float64{0, 5})
	require.ErrorIs(t, err, hmmlib.ErrConfiguration)
}
