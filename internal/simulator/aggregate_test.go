package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/hockey-sim/internal/types"
)

func TestAggregateCountsOutcomes(t *testing.T) {
	outcomes := []types.TrialOutcome{
		{HomeGoals: 3, AwayGoals: 1, HomeWin: true, DecidedIn: types.GameLate},
		{HomeGoals: 2, AwayGoals: 3, HomeWin: false, DecidedIn: types.GameLate},
		{HomeGoals: 4, AwayGoals: 3, HomeWin: true, WentToOT: true, DecidedIn: types.GameOvertime},
		{HomeGoals: 2, AwayGoals: 3, HomeWin: false, WentToOT: true, WentToSO: true},
		{HomeGoals: 2, AwayGoals: 2, WentToOT: true, WentToSO: true, Draw: true},
	}
	done := []bool{true, true, true, true, true}

	result := aggregate("run-1", types.SimulationConfig{}, 42, time.Now(), outcomes, done)

	assert.Equal(t, 5, result.Trials)
	assert.InDelta(t, 0.4, result.HomeWinPct, 1e-9)
	assert.InDelta(t, 0.4, result.AwayWinPct, 1e-9)
	assert.InDelta(t, 0.2, result.DrawPct, 1e-9)
	assert.InDelta(t, 0.6, result.OTPct, 1e-9)
	assert.InDelta(t, 0.4, result.ShootoutPct, 1e-9)

	assert.InDelta(t, 2.6, result.HomeGoalsAvg, 1e-9)
	assert.InDelta(t, 2.4, result.AwayGoalsAvg, 1e-9)

	assert.InDelta(t, 0.2, result.SegmentWins.Regulation, 1e-9)
	assert.InDelta(t, 0.2, result.SegmentWins.Overtime, 1e-9)
	assert.InDelta(t, 0.0, result.SegmentWins.Shootout, 1e-9)

	assert.InDelta(t, 0.4, result.Scorelines[types.ScorelineKey{Home: 2, Away: 3}], 1e-9)
}

func TestAggregateSkipsUnfinishedSlots(t *testing.T) {
	outcomes := make([]types.TrialOutcome, 4)
	outcomes[0] = types.TrialOutcome{HomeGoals: 1, HomeWin: true}
	outcomes[2] = types.TrialOutcome{AwayGoals: 2}
	done := []bool{true, false, true, false}

	result := aggregate("run-2", types.SimulationConfig{}, 1, time.Now(), outcomes, done)

	assert.Equal(t, 2, result.Trials)
	assert.InDelta(t, 0.5, result.HomeWinPct, 1e-9)
}

func TestAggregateEmptyRun(t *testing.T) {
	result := aggregate("run-3", types.SimulationConfig{}, 1, time.Now(), nil, nil)
	assert.Zero(t, result.Trials)
	assert.Zero(t, result.HomeWinPct)
}

func TestTopScorelinesOrdering(t *testing.T) {
	result := &types.SimulationResult{
		Scorelines: map[types.ScorelineKey]float64{
			{Home: 3, Away: 2}: 0.25,
			{Home: 2, Away: 1}: 0.30,
			{Home: 1, Away: 0}: 0.10,
			{Home: 0, Away: 1}: 0.35,
		},
	}

	top := result.TopScorelines(2)
	require.Len(t, top, 2)
	assert.Equal(t, types.ScorelineKey{Home: 0, Away: 1}, top[0])
	assert.Equal(t, types.ScorelineKey{Home: 2, Away: 1}, top[1])

	assert.Equal(t, "0-1", top[0].String())
}

func TestVarianceBands(t *testing.T) {
	lowSpread := make([]types.TrialOutcome, 50)
	for i := range lowSpread {
		lowSpread[i] = types.TrialOutcome{HomeGoals: 3, AwayGoals: 2, HomeWin: true}
	}
	done := make([]bool, 50)
	for i := range done {
		done[i] = true
	}

	result := aggregate("run-4", types.SimulationConfig{}, 1, time.Now(), lowSpread, done)
	assert.Equal(t, types.VarianceLow, result.VarianceBand)
}
