package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TrialOutcome records how a single simulated game ended.
type TrialOutcome struct {
	HomeGoals int
	AwayGoals int
	WentToOT  bool
	WentToSO  bool
	Draw      bool // shootout exhausted its round cap without a decision
	HomeWin   bool
	DecidedIn GamePhase

	// Goals per phase, indexed in ScoringPhases order. Shootout deciders
	// count toward the final score but not toward any phase.
	HomeByPhase [4]int
	AwayByPhase [4]int
}

// ScorelineKey is a (home, away) final score bucket.
type ScorelineKey struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

func (k ScorelineKey) String() string {
	return fmt.Sprintf("%d-%d", k.Home, k.Away)
}

// SegmentWinRates breaks win probability down by the phase the lead was
// decided in.
type SegmentWinRates struct {
	Regulation float64 `json:"regulation"`
	Overtime   float64 `json:"overtime"`
	Shootout   float64 `json:"shootout"`
}

// PhaseScoring summarizes scoring within one game phase across all trials.
type PhaseScoring struct {
	HomeGoalsAvg float64 `json:"home_goals_avg"`
	AwayGoalsAvg float64 `json:"away_goals_avg"`
	// HomeEdgePct is the share of trials in which the home side outscored
	// the away side within the phase.
	HomeEdgePct float64 `json:"home_edge_pct"`
}

// VarianceBand classifies how spread out the simulated outcomes were.
type VarianceBand string

const (
	VarianceLow    VarianceBand = "low"
	VarianceMedium VarianceBand = "medium"
	VarianceHigh   VarianceBand = "high"
)

// SeriesResult summarizes a best-of-N series simulation.
type SeriesResult struct {
	HomeSeriesWinPct  float64         `json:"home_series_win_pct"`
	AwaySeriesWinPct  float64         `json:"away_series_win_pct"`
	GamesDistribution map[int]float64 `json:"games_distribution"` // series length -> share
}

// SimulationResult aggregates all trials of one run.
type SimulationResult struct {
	RunID      string           `json:"run_id"`
	Config     SimulationConfig `json:"config"`
	SeedUsed   int64            `json:"seed_used"`
	StartedAt  time.Time        `json:"started_at"`
	Duration   time.Duration    `json:"duration"`
	Trials     int              `json:"trials"`
	Incomplete bool             `json:"incomplete,omitempty"`

	HomeWinPct  float64 `json:"home_win_pct"`
	AwayWinPct  float64 `json:"away_win_pct"`
	DrawPct     float64 `json:"draw_pct"`
	OTPct       float64 `json:"ot_pct"`
	ShootoutPct float64 `json:"shootout_pct"`

	HomeGoalsAvg float64 `json:"home_goals_avg"`
	AwayGoalsAvg float64 `json:"away_goals_avg"`
	HomeGoalsStd float64 `json:"home_goals_std"`
	AwayGoalsStd float64 `json:"away_goals_std"`

	Scorelines map[ScorelineKey]float64 `json:"-"`

	// IterationScores lists every trial's final score in trial order. A
	// complete run has exactly Trials entries.
	IterationScores []ScorelineKey `json:"per_iteration_scores"`

	SegmentWins    SegmentWinRates            `json:"segment_wins"`
	SegmentScoring map[GamePhase]PhaseScoring `json:"segment_scoring"`
	VarianceBand   VarianceBand               `json:"variance_band"`
	Confidence     float64                    `json:"confidence"`

	Series *SeriesResult `json:"series,omitempty"`
}

// TopScorelines returns the n most frequent final scores, most common first.
func (r *SimulationResult) TopScorelines(n int) []ScorelineKey {
	keys := make([]ScorelineKey, 0, len(r.Scorelines))
	for k := range r.Scorelines {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if r.Scorelines[keys[i]] != r.Scorelines[keys[j]] {
			return r.Scorelines[keys[i]] > r.Scorelines[keys[j]]
		}
		if keys[i].Home != keys[j].Home {
			return keys[i].Home < keys[j].Home
		}
		return keys[i].Away < keys[j].Away
	})
	if n < len(keys) {
		keys = keys[:n]
	}
	return keys
}

// ScorelineTable returns the scoreline distribution keyed by "H-A" strings
// for JSON rendering.
func (r *SimulationResult) ScorelineTable() map[string]float64 {
	table := make(map[string]float64, len(r.Scorelines))
	for k, v := range r.Scorelines {
		table[k.String()] = v
	}
	return table
}

// TopScoringPhase returns the phase that contributed the most combined
// scoring, ties resolved toward the earlier phase.
func (r *SimulationResult) TopScoringPhase() GamePhase {
	best := GameEarly
	bestGoals := -1.0
	for _, phase := range ScoringPhases {
		ps, ok := r.SegmentScoring[phase]
		if !ok {
			continue
		}
		if g := ps.HomeGoalsAvg + ps.AwayGoalsAvg; g > bestGoals {
			best, bestGoals = phase, g
		}
	}
	return best
}

// Summary renders a human-readable report of the run.
func (r *SimulationResult) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Simulation %s: %d trials, seed %d\n", r.RunID, r.Trials, r.SeedUsed)
	fmt.Fprintf(&b, "  Home win: %.1f%%  Away win: %.1f%%", r.HomeWinPct*100, r.AwayWinPct*100)
	if r.DrawPct > 0 {
		fmt.Fprintf(&b, "  Draw: %.2f%%", r.DrawPct*100)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Avg score: %.2f - %.2f (std %.2f / %.2f)\n",
		r.HomeGoalsAvg, r.AwayGoalsAvg, r.HomeGoalsStd, r.AwayGoalsStd)
	fmt.Fprintf(&b, "  OT: %.1f%%  SO: %.1f%%  Variance: %s  Confidence: %.2f\n",
		r.OTPct*100, r.ShootoutPct*100, r.VarianceBand, r.Confidence)
	if len(r.SegmentScoring) > 0 {
		fmt.Fprintf(&b, "  Heaviest scoring phase: %s\n", r.TopScoringPhase())
	}
	top := r.TopScorelines(5)
	if len(top) > 0 {
		b.WriteString("  Most likely scores:")
		for _, k := range top {
			fmt.Fprintf(&b, " %s (%.1f%%)", k, r.Scorelines[k]*100)
		}
		b.WriteString("\n")
	}
	if r.Series != nil {
		fmt.Fprintf(&b, "  Series: home %.1f%% away %.1f%%\n",
			r.Series.HomeSeriesWinPct*100, r.Series.AwaySeriesWinPct*100)
	}
	if r.Incomplete {
		fmt.Fprintf(&b, "  NOTE: run cancelled, partial result over %d trials\n", r.Trials)
	}
	return b.String()
}
