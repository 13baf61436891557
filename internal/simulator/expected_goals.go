package simulator

import (
	"github.com/stitts-dev/hockey-sim/internal/config"
	"github.com/stitts-dev/hockey-sim/internal/profiles"
	"github.com/stitts-dev/hockey-sim/internal/types"
)

// weakZoneBump raises goal probability when the shot lands in a zone the
// opposing goalie allows above-league goal rates from.
const weakZoneBump = 1.10

// Resolver turns a shot attempt into a goal probability. It is stateless;
// all trial-local state (momentum swings, variance draws) arrives through
// the situational multiplier.
type Resolver struct {
	cfg config.SimulationConfig
}

func NewResolver(cfg config.SimulationConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// ShotProbability resolves the goal probability for one shot attempt.
// situational carries the trial-local product (home ice, line chemistry,
// in-game momentum, variance draw); the shooter's own clutch, fatigue and
// momentum ride in via shooter.Adjust. The result is always clamped to the
// configured probability window, whatever the multipliers did.
func (r *Resolver) ShotProbability(shooter *PlayerContext, goalie *GoalieContext, zone types.Zone, shotType types.ShotType, phase types.GamePhase, weights map[types.GamePhase]float64, situational float64) float64 {
	p := profiles.BaselineXG(r.cfg, zone, shotType)

	// Shooter skill relative to league.
	if shooter.Blended.ShootingPct > 0 {
		p *= shooter.Blended.ShootingPct / r.cfg.LeagueShootingPct
	}
	p *= shooter.Adjust.Product()

	if w, ok := weights[phase]; ok {
		p *= w
	}

	p *= r.goalieFactor(goalie, zone)
	p *= situational

	return r.clamp(p)
}

// goalieFactor scales probability by how the opposing goalie compares to
// league average, including schedule fatigue and zone weaknesses. A tired
// goalie stops fewer shots, so fatigue below 1 pushes the factor up.
func (r *Resolver) goalieFactor(goalie *GoalieContext, zone types.Zone) float64 {
	f := (1 - goalie.Blended.SavePct) / (1 - r.cfg.LeagueSavePct)
	f *= 2 - goalie.Fatigue
	if goalie.WeakZones[zone] {
		f *= weakZoneBump
	}
	return f
}

func (r *Resolver) clamp(p float64) float64 {
	if p < r.cfg.MinGoalProb {
		return r.cfg.MinGoalProb
	}
	if p > r.cfg.MaxGoalProb {
		return r.cfg.MaxGoalProb
	}
	return p
}

// TeamExpectedGoals sums a team's per-shot probabilities at the configured
// shot volume, a deterministic pre-trial diagnostic reported alongside the
// simulated distribution.
func (r *Resolver) TeamExpectedGoals(team *TeamContext, opponent *TeamContext, weights map[types.GamePhase]float64) float64 {
	if len(team.Skaters) == 0 {
		return 0
	}
	situational := 1.0
	if team.IsHome {
		situational = r.cfg.HomeIceAdvantage
	}

	var total float64
	shotsEach := r.cfg.BaseShotsPerGame / float64(len(team.Skaters))
	for i := range team.Skaters {
		shooter := &team.Skaters[i]
		dist := shooter.Zones.ZoneDistribution()
		if len(dist) == 0 {
			dist = map[types.Zone]float64{types.ZoneUnknown: 1}
		}
		for zone, share := range dist {
			shotType := dominantShotType(shooter.Zones, zone)
			for _, phase := range types.RegulationPhases {
				p := r.ShotProbability(shooter, &opponent.Goalie, zone, shotType, phase, weights, situational)
				total += shotsEach * share * p / float64(len(types.RegulationPhases))
			}
		}
	}
	return total
}

// dominantShotType returns the most used release type in a zone, falling
// back to wrist shots when the zone has no type data.
func dominantShotType(p *types.ZoneProfile, zone types.Zone) types.ShotType {
	stats, ok := p.Zones[zone]
	if !ok || len(stats.ShotTypes) == 0 {
		return types.ShotWrist
	}
	best := types.ShotWrist
	bestN := -1
	for _, st := range orderedShotTypes {
		if n, ok := stats.ShotTypes[st]; ok && n > bestN {
			best, bestN = st, n
		}
	}
	return best
}

// orderedShotTypes fixes iteration order so results are reproducible.
var orderedShotTypes = []types.ShotType{
	types.ShotWrist, types.ShotSlap, types.ShotSnap, types.ShotBackhand,
	types.ShotTipIn, types.ShotDeflected, types.ShotWrapAround, types.ShotUnknown,
}
