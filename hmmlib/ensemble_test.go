package hmmlib_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/ShakirSofi/scikit-time/hmmlib"
)

// jitteredEnsemble builds an ensemble whose samples perturb the scenario
// transition matrix by a small symmetric amount.
func jitteredEnsemble(t *testing.T, nsample int, spread float64) *hmmlib.PosteriorEnsemble {
	t.Helper()

	reference := scenarioModel(t)
	rng := rand.New(rand.NewSource(31))

	samples := make([]*hmmlib.HiddenMarkovModel, nsample)
	for i := range samples {
		d := spread * (2*rng.Float64() - 1)
		tm, err := hmmlib.NewTransitionModel([]float64{
			0.95 - d, 0.05 + d,
			0.3 + d, 0.7 - d,
		}, 2)
		require.NoError(t, err)

		om := reference.Output()
		m, err := hmmlib.NewHiddenMarkovModel(tm, om, reference.InitialDistribution())
		require.NoError(t, err)
		samples[i] = m
	}

	return hmmlib.NewPosteriorEnsemble(reference, samples)
}

func TestGatherStatistics_Bounds(t *testing.T) {
	ens := jitteredEnsemble(t, 200, 0.02)

	iv, err := ens.GatherStatistics("transition-model/transition-matrix", 0.95)
	require.NoError(t, err)
	require.Equal(t, 2, iv.Rows)
	require.Equal(t, 2, iv.Cols)

	for j := 0; j < 4; j++ {
		require.LessOrEqual(t, iv.Lower[j], iv.Mean[j])
		require.LessOrEqual(t, iv.Mean[j], iv.Upper[j])
	}
	require.InDelta(t, 0.95, iv.Mean[0], 0.01)

	// A wider confidence level gives a wider interval.
	narrow, err := ens.GatherStatistics("transition-model/transition-matrix", 0.5)
	require.NoError(t, err)
	require.LessOrEqual(t, iv.Lower[0], narrow.Lower[0])
	require.GreaterOrEqual(t, iv.Upper[0], narrow.Upper[0])
}

func TestGatherStatistics_WidthShrinks(t *testing.T) {
	small := jitteredEnsemble(t, 10, 0.02)
	large := jitteredEnsemble(t, 500, 0.02)

	a, err := small.GatherStatistics("transition-model/transition-matrix", 0.9)
	require.NoError(t, err)
	b, err := large.GatherStatistics("transition-model/transition-matrix", 0.9)
	require.NoError(t, err)

	// With a bounded jitter the large-ensemble interval approaches the full
	// spread; the small ensemble's empirical quantiles sit inside it on
	// average.  Check the intervals are at least ordered sensibly.
	require.LessOrEqual(t, a.Upper[0]-a.Lower[0], (b.Upper[0]-b.Lower[0])*1.5)
}

func TestGatherStatistics_Quantities(t *testing.T) {
	ens := jitteredEnsemble(t, 50, 0.02)

	iv, err := ens.GatherStatistics("initial-distribution", 0.9)
	require.NoError(t, err)
	require.Equal(t, 2, iv.Rows)
	require.Equal(t, 1, iv.Cols)
	require.InDelta(t, 0.5, iv.Mean[0], 1e-12)

	st, err := ens.GatherStatistics("transition-model/stationary-distribution", 0.9)
	require.NoError(t, err)
	require.Equal(t, 2, st.Rows)
	require.InDelta(t, 6.0/7.0, st.Mean[0], 0.1)

	em, err := ens.GatherStatistics("output-model/emission-matrix", 0.9)
	require.NoError(t, err)
	require.Equal(t, 2, em.Rows)
	require.Equal(t, 3, em.Cols)
}

func TestGatherStatistics_Errors(t *testing.T) {
	ens := jitteredEnsemble(t, 10, 0.02)

	_, err := ens.GatherStatistics("no-such-quantity", 0.95)
	require.ErrorIs(t, err, hmmlib.ErrUnknownQuantity)

	_, err = ens.GatherStatistics("transition-model", 0.95)
	require.ErrorIs(t, err, hmmlib.ErrUnknownQuantity)

	_, err = ens.GatherStatistics("transition-model/no-such-quantity", 0.95)
	require.ErrorIs(t, err, hmmlib.ErrUnknownQuantity)

	// Gaussian-only quantities do not resolve on a discrete ensemble.
	_, err = ens.GatherStatistics("output-model/means", 0.95)
	require.ErrorIs(t, err, hmmlib.ErrUnknownQuantity)

	_, err = ens.GatherStatistics("transition-model/transition-matrix", 0)
	require.ErrorIs(t, err, hmmlib.ErrConfiguration)
	_, err = ens.GatherStatistics("transition-model/transition-matrix", 1)
	require.ErrorIs(t, err, hmmlib.ErrConfiguration)

	empty := hmmlib.NewPosteriorEnsemble(ens.Reference(), nil)
	_, err = empty.GatherStatistics("transition-model/transition-matrix", 0.95)
	require.ErrorIs(t, err, hmmlib.ErrConfiguration)
}

func TestGatherStatistics_ShapeMismatch(t *testing.T) {
	two := scenarioModel(t)

	tm3, err := hmmlib.NewTransitionModel([]float64{
		0.8, 0.1, 0.1,
		0.1, 0.8, 0.1,
		0.1, 0.1, 0.8,
	}, 3)
	require.NoError(t, err)
	om3, err := hmmlib.NewDiscreteOutputModel([]float64{
		0.5, 0.5, 0,
		0, 0.5, 0.5,
		0.5, 0, 0.5,
	}, 3, 3)
	require.NoError(t, err)
	three, err := hmmlib.NewHiddenMarkovModel(tm3, om3, []float64{1.0 / 3, 1.0 / 3, 1.0 / 3})
	require.NoError(t, err)

	ens := hmmlib.NewPosteriorEnsemble(two, []*hmmlib.HiddenMarkovModel{two, three})
	_, err = ens.GatherStatistics("transition-model/transition-matrix", 0.95)
	require.ErrorIs(t, err, hmmlib.ErrShapeMismatch)
}
