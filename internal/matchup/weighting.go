// Package matchup blends an entity's general season rates with its history
// against a specific opponent. The matchup sample only earns weight when it
// is both large enough to trust and genuinely different from the general
// profile; small or indistinguishable samples defer entirely to season data.
package matchup

import (
	"math"

	"github.com/stitts-dev/hockey-sim/internal/config"
	"github.com/stitts-dev/hockey-sim/internal/types"
	"github.com/stitts-dev/hockey-sim/pkg/logger"
)

// goalieMatchupCap limits how much opponent-specific history can ever pull a
// goalie's rates; goalie matchup samples are noisy at any size.
const goalieMatchupCap = 0.3

// Weighter computes similarity-based matchup weights under one configuration.
type Weighter struct {
	cfg config.SimulationConfig
}

func NewWeighter(cfg config.SimulationConfig) *Weighter {
	return &Weighter{cfg: cfg}
}

// BuildProfile computes similarity and weights for a skater's matchup
// history and returns the assembled profile. GeneralWeight and MatchupWeight
// always sum to 1.
func (w *Weighter) BuildProfile(entityID, opponentID int64, season int, sampleSize int, general, matchup types.SkaterStats) (*types.MatchupProfile, error) {
	if err := validateSkater("general", general); err != nil {
		return nil, err
	}
	if sampleSize < 0 {
		return nil, &types.InvalidProfileError{Entity: "matchup", Reason: "negative sample size"}
	}

	p := &types.MatchupProfile{
		EntityID:   entityID,
		OpponentID: opponentID,
		Season:     season,
		SampleSize: sampleSize,
		General:    general,
		Matchup:    matchup,
	}

	if sampleSize < w.cfg.MinMatchupGames {
		p.Similarity = 1.0
		p.GeneralWeight = 1.0
		p.MatchupWeight = 0.0
		return p, nil
	}

	if err := validateSkater("matchup", matchup); err != nil {
		return nil, err
	}

	rawSim, hasSignal := rawSimilarity(general, matchup)
	if !hasSignal {
		// Every stat had zero spread, so the matchup sample is
		// indistinguishable from the season profile. Treat the pair as
		// identical and defer entirely to season data regardless of
		// sample size.
		p.Similarity = 1.0
		p.GeneralWeight = 1.0
		p.MatchupWeight = 0.0
		return p, nil
	}
	conf := sampleConfidence(sampleSize, w.cfg.FullMatchupGames)

	p.Similarity = rawSim * conf
	p.MatchupWeight = (1 - p.Similarity) * conf
	p.GeneralWeight = 1 - p.MatchupWeight

	logger.WithEntityContext(entityID, season).WithFields(map[string]interface{}{
		"opponent_id":    opponentID,
		"sample_size":    sampleSize,
		"similarity":     p.Similarity,
		"matchup_weight": p.MatchupWeight,
	}).Debug("Computed matchup weights")

	return p, nil
}

// rawSimilarity measures how close the matchup sample sits to the general
// profile in units of the general profile's own game-to-game spread. Stats
// with zero spread carry no signal and are skipped; the second return is
// false when no stat carried signal.
func rawSimilarity(general, matchup types.SkaterStats) (float64, bool) {
	type pair struct{ gen, mat, std float64 }
	pairs := []pair{
		{general.GoalsPerGame, matchup.GoalsPerGame, general.GoalsPerGameStd},
		{general.PointsPerGame, matchup.PointsPerGame, general.PointsPerGameStd},
		{general.ShotsPerGame, matchup.ShotsPerGame, general.ShotsPerGameStd},
		{general.ShootingPct, matchup.ShootingPct, general.ShootingPctStd},
	}

	var total float64
	var counted int
	for _, p := range pairs {
		if p.std == 0 {
			continue
		}
		total += math.Abs(p.mat-p.gen) / p.std
		counted++
	}
	if counted == 0 {
		return 1.0, false
	}
	avgDev := total / float64(counted)
	sim := 1 - avgDev/2
	if sim < 0 {
		return 0, true
	}
	return sim, true
}

func sampleConfidence(sampleSize, full int) float64 {
	conf := float64(sampleSize) / float64(full)
	if conf > 1 {
		return 1
	}
	return conf
}

// BlendSkater collapses a matchup profile into the single rate set the
// simulator consumes.
func (w *Weighter) BlendSkater(p *types.MatchupProfile) types.SkaterStats {
	gw, mw := p.GeneralWeight, p.MatchupWeight
	return types.SkaterStats{
		GamesPlayed:    p.General.GamesPlayed,
		GoalsPerGame:   p.General.GoalsPerGame*gw + p.Matchup.GoalsPerGame*mw,
		AssistsPerGame: p.General.AssistsPerGame*gw + p.Matchup.AssistsPerGame*mw,
		PointsPerGame:  p.General.PointsPerGame*gw + p.Matchup.PointsPerGame*mw,
		ShotsPerGame:   p.General.ShotsPerGame*gw + p.Matchup.ShotsPerGame*mw,
		ShootingPct:    p.General.ShootingPct*gw + p.Matchup.ShootingPct*mw,
		TOIPerGame:     p.General.TOIPerGame,
	}
}

// BlendGoalie blends a goalie's general and matchup rates. The matchup
// weight is sample confidence alone, hard-capped, because goalie similarity
// over small samples is not informative enough to trust.
func (w *Weighter) BlendGoalie(sampleSize int, general, matchup types.GoalieStats) (types.GoalieStats, error) {
	if general.SavePct < 0 || general.SavePct > 1 {
		return types.GoalieStats{}, &types.InvalidProfileError{Entity: "goalie", Reason: "save_pct outside [0, 1]"}
	}

	mw := 0.0
	if sampleSize >= w.cfg.MinMatchupGames {
		mw = sampleConfidence(sampleSize, w.cfg.FullMatchupGames) * goalieMatchupCap
	}
	gw := 1 - mw

	return types.GoalieStats{
		GamesPlayed: general.GamesPlayed,
		SavePct:     general.SavePct*gw + matchup.SavePct*mw,
		GAA:         general.GAA*gw + matchup.GAA*mw,
	}, nil
}

func validateSkater(entity string, s types.SkaterStats) error {
	if s.ShootingPct < 0 || s.ShootingPct > 1 {
		return &types.InvalidProfileError{Entity: entity, Reason: "shooting_pct outside [0, 1]"}
	}
	if s.GoalsPerGame < 0 || s.ShotsPerGame < 0 || s.PointsPerGame < 0 {
		return &types.InvalidProfileError{Entity: entity, Reason: "negative per-game rate"}
	}
	return nil
}
