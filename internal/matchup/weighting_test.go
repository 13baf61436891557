package matchup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/hockey-sim/internal/config"
	"github.com/stitts-dev/hockey-sim/internal/types"
)

func testWeighter() *Weighter {
	return NewWeighter(config.SimulationConfig{
		MinMatchupGames:  3,
		FullMatchupGames: 10,
	})
}

func generalStats() types.SkaterStats {
	return types.SkaterStats{
		GamesPlayed:      70,
		GoalsPerGame:     0.45,
		AssistsPerGame:   0.55,
		PointsPerGame:    1.00,
		ShotsPerGame:     3.2,
		ShootingPct:      0.14,
		GoalsPerGameStd:  0.30,
		PointsPerGameStd: 0.60,
		ShotsPerGameStd:  1.10,
		ShootingPctStd:   0.08,
	}
}

func TestSmallSampleGetsZeroMatchupWeight(t *testing.T) {
	w := testWeighter()

	hot := types.SkaterStats{GoalsPerGame: 2.0, PointsPerGame: 3.0, ShotsPerGame: 6.0, ShootingPct: 0.5}
	p, err := w.BuildProfile(1, 2, 2025, 2, generalStats(), hot)
	require.NoError(t, err)

	// Two games against an opponent prove nothing however loud they are.
	assert.Equal(t, 1.0, p.Similarity)
	assert.Equal(t, 0.0, p.MatchupWeight)
	assert.Equal(t, 1.0, p.GeneralWeight)

	blended := w.BlendSkater(p)
	assert.InDelta(t, generalStats().GoalsPerGame, blended.GoalsPerGame, 1e-9)
}

func TestWeightsAlwaysSumToOne(t *testing.T) {
	w := testWeighter()
	general := generalStats()

	matchups := []types.SkaterStats{
		general, // identical
		{GoalsPerGame: 0.9, PointsPerGame: 1.8, ShotsPerGame: 4.5, ShootingPct: 0.22},
		{GoalsPerGame: 0.1, PointsPerGame: 0.3, ShotsPerGame: 1.5, ShootingPct: 0.04},
	}
	for _, m := range matchups {
		for _, sample := range []int{3, 5, 8, 10, 25} {
			p, err := w.BuildProfile(1, 2, 2025, sample, general, m)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, p.GeneralWeight+p.MatchupWeight, 1e-9,
				"sample=%d", sample)
			assert.GreaterOrEqual(t, p.MatchupWeight, 0.0)
			assert.LessOrEqual(t, p.MatchupWeight, 1.0)
		}
	}
}

func TestIdenticalMatchupEarnsNoWeightAtFullSample(t *testing.T) {
	w := testWeighter()
	general := generalStats()

	p, err := w.BuildProfile(1, 2, 2025, 10, general, general)
	require.NoError(t, err)

	// A matchup sample indistinguishable from the season profile carries
	// no extra information, so the general data keeps all the weight.
	assert.InDelta(t, 1.0, p.Similarity, 1e-9)
	assert.InDelta(t, 0.0, p.MatchupWeight, 1e-9)
}

func TestDissimilarityRaisesWeight(t *testing.T) {
	w := testWeighter()
	general := generalStats()

	near := types.SkaterStats{GoalsPerGame: 0.5, PointsPerGame: 1.1, ShotsPerGame: 3.4, ShootingPct: 0.15}
	far := types.SkaterStats{GoalsPerGame: 1.2, PointsPerGame: 2.5, ShotsPerGame: 6.0, ShootingPct: 0.35}

	pNear, err := w.BuildProfile(1, 2, 2025, 10, general, near)
	require.NoError(t, err)
	pFar, err := w.BuildProfile(1, 2, 2025, 10, general, far)
	require.NoError(t, err)

	assert.Greater(t, pFar.MatchupWeight, pNear.MatchupWeight)
	assert.Less(t, pFar.Similarity, pNear.Similarity)
}

func TestSampleSizeRaisesWeight(t *testing.T) {
	w := testWeighter()
	general := generalStats()
	far := types.SkaterStats{GoalsPerGame: 1.2, PointsPerGame: 2.5, ShotsPerGame: 6.0, ShootingPct: 0.35}

	var prev float64
	for _, sample := range []int{3, 5, 8, 10} {
		p, err := w.BuildProfile(1, 2, 2025, sample, general, far)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p.MatchupWeight, prev, "sample=%d", sample)
		prev = p.MatchupWeight
	}

	// Saturation: past the full-sample threshold confidence stops growing.
	p10, _ := w.BuildProfile(1, 2, 2025, 10, general, far)
	p30, _ := w.BuildProfile(1, 2, 2025, 30, general, far)
	assert.InDelta(t, p10.MatchupWeight, p30.MatchupWeight, 1e-9)
}

func TestAllZeroSpreadDefersToSeasonData(t *testing.T) {
	w := testWeighter()
	general := generalStats()
	general.GoalsPerGameStd = 0
	general.PointsPerGameStd = 0
	general.ShotsPerGameStd = 0
	general.ShootingPctStd = 0

	matchup := general
	p, err := w.BuildProfile(1, 2, 2025, 5, general, matchup)
	require.NoError(t, err)

	// With no spread on any stat the sample is indistinguishable from the
	// season profile, so a mid-size sample must not buy it any weight.
	assert.Equal(t, 1.0, p.Similarity)
	assert.Equal(t, 0.0, p.MatchupWeight)
	assert.Equal(t, 1.0, p.GeneralWeight)
}

func TestZeroSpreadStatsAreSkipped(t *testing.T) {
	w := testWeighter()
	general := generalStats()
	general.ShootingPctStd = 0

	matchup := types.SkaterStats{GoalsPerGame: 0.45, PointsPerGame: 1.0, ShotsPerGame: 3.2, ShootingPct: 0.90}
	_, err := w.BuildProfile(1, 2, 2025, 10, general, matchup)

	// Shooting pct 0.90 would be a wild z-score, but with zero season
	// spread the stat carries no signal and must not blow up the math.
	require.NoError(t, err)
}

func TestInvalidProfileRejected(t *testing.T) {
	w := testWeighter()

	bad := generalStats()
	bad.ShootingPct = 1.4
	_, err := w.BuildProfile(1, 2, 2025, 5, bad, generalStats())
	require.Error(t, err)

	var invalid *types.InvalidProfileError
	assert.True(t, errors.As(err, &invalid))

	_, err = w.BuildProfile(1, 2, 2025, -1, generalStats(), generalStats())
	require.Error(t, err)
	assert.True(t, errors.As(err, &invalid))
}

func TestBlendSkaterInterpolates(t *testing.T) {
	w := testWeighter()
	p := &types.MatchupProfile{
		General:       types.SkaterStats{GoalsPerGame: 0.4, ShootingPct: 0.10},
		Matchup:       types.SkaterStats{GoalsPerGame: 0.8, ShootingPct: 0.20},
		GeneralWeight: 0.75,
		MatchupWeight: 0.25,
	}

	blended := w.BlendSkater(p)
	assert.InDelta(t, 0.5, blended.GoalsPerGame, 1e-9)
	assert.InDelta(t, 0.125, blended.ShootingPct, 1e-9)
}

func TestGoalieBlendIsCapped(t *testing.T) {
	w := testWeighter()
	general := types.GoalieStats{GamesPlayed: 50, SavePct: 0.915, GAA: 2.5}
	torched := types.GoalieStats{GamesPlayed: 10, SavePct: 0.850, GAA: 4.5}

	blended, err := w.BlendGoalie(20, general, torched)
	require.NoError(t, err)

	// Even a saturated sample moves the goalie at most 30% of the way.
	floor := general.SavePct*0.7 + torched.SavePct*0.3
	assert.GreaterOrEqual(t, blended.SavePct, floor-1e-9)
	assert.Less(t, blended.SavePct, general.SavePct)

	// Below the minimum games the matchup history is ignored entirely.
	untouched, err := w.BlendGoalie(2, general, torched)
	require.NoError(t, err)
	assert.InDelta(t, general.SavePct, untouched.SavePct, 1e-9)

	_, err = w.BlendGoalie(5, types.GoalieStats{SavePct: 1.2}, torched)
	var invalid *types.InvalidProfileError
	assert.True(t, errors.As(err, &invalid))
}
