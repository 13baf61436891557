package simulator

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/stitts-dev/hockey-sim/internal/types"
)

// Variance band cutoffs on the pooled goal standard deviation.
const (
	varianceLowCutoff  = 1.6
	varianceHighCutoff = 2.4
)

// aggregate folds completed trial outcomes into a SimulationResult. Slots
// never run (cancelled before dispatch) are skipped.
func aggregate(runID string, simCfg types.SimulationConfig, seed int64, start time.Time, outcomes []types.TrialOutcome, done []bool) *types.SimulationResult {
	result := &types.SimulationResult{
		RunID:      runID,
		Config:     simCfg,
		SeedUsed:   seed,
		StartedAt:  start,
		Scorelines: make(map[types.ScorelineKey]float64),
	}

	var homeGoals, awayGoals []float64
	var homeWins, draws, otGames, soGames int
	var regWins, otWins, soWins int
	var phaseHome, phaseAway [4]int
	var phaseEdge [4]int

	result.IterationScores = make([]types.ScorelineKey, 0, len(outcomes))
	for i, out := range outcomes {
		if !done[i] {
			continue
		}
		result.Trials++
		homeGoals = append(homeGoals, float64(out.HomeGoals))
		awayGoals = append(awayGoals, float64(out.AwayGoals))
		score := types.ScorelineKey{Home: out.HomeGoals, Away: out.AwayGoals}
		result.Scorelines[score]++
		result.IterationScores = append(result.IterationScores, score)
		for p := range types.ScoringPhases {
			phaseHome[p] += out.HomeByPhase[p]
			phaseAway[p] += out.AwayByPhase[p]
			if out.HomeByPhase[p] > out.AwayByPhase[p] {
				phaseEdge[p]++
			}
		}

		switch {
		case out.Draw:
			draws++
		case out.HomeWin:
			homeWins++
		}
		if out.WentToOT {
			otGames++
		}
		if out.WentToSO {
			soGames++
		}
		if out.HomeWin && !out.Draw {
			switch {
			case out.WentToSO:
				soWins++
			case out.WentToOT:
				otWins++
			default:
				regWins++
			}
		}
	}

	if result.Trials == 0 {
		result.Duration = time.Since(start)
		return result
	}

	n := float64(result.Trials)
	result.HomeWinPct = float64(homeWins) / n
	result.DrawPct = float64(draws) / n
	result.AwayWinPct = 1 - result.HomeWinPct - result.DrawPct
	result.OTPct = float64(otGames) / n
	result.ShootoutPct = float64(soGames) / n

	result.HomeGoalsAvg = stat.Mean(homeGoals, nil)
	result.AwayGoalsAvg = stat.Mean(awayGoals, nil)
	result.HomeGoalsStd = stat.StdDev(homeGoals, nil)
	result.AwayGoalsStd = stat.StdDev(awayGoals, nil)

	for k := range result.Scorelines {
		result.Scorelines[k] /= n
	}

	result.SegmentWins = types.SegmentWinRates{
		Regulation: float64(regWins) / n,
		Overtime:   float64(otWins) / n,
		Shootout:   float64(soWins) / n,
	}

	result.SegmentScoring = make(map[types.GamePhase]types.PhaseScoring, len(types.ScoringPhases))
	for p, phase := range types.ScoringPhases {
		result.SegmentScoring[phase] = types.PhaseScoring{
			HomeGoalsAvg: float64(phaseHome[p]) / n,
			AwayGoalsAvg: float64(phaseAway[p]) / n,
			HomeEdgePct:  float64(phaseEdge[p]) / n,
		}
	}

	pooledStd := (result.HomeGoalsStd + result.AwayGoalsStd) / 2
	switch {
	case pooledStd < varianceLowCutoff:
		result.VarianceBand = types.VarianceLow
	case pooledStd > varianceHighCutoff:
		result.VarianceBand = types.VarianceHigh
	default:
		result.VarianceBand = types.VarianceMedium
	}

	result.Duration = time.Since(start)
	return result
}
