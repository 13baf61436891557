// Package adjustments derives the situational multipliers (clutch, fatigue,
// momentum) applied on top of blended player rates. Every multiplier is
// centered at 1.0 and clamped to a configured bound before leaving this
// package, so no single situational signal can swing a probability by more
// than that bound.
package adjustments

import (
	"github.com/stitts-dev/hockey-sim/internal/config"
	"github.com/stitts-dev/hockey-sim/internal/profiles"
	"github.com/stitts-dev/hockey-sim/internal/types"
)

// MomentumState classifies recent form.
type MomentumState string

const (
	StateHotHigh  MomentumState = "hot_high"
	StateHotLow   MomentumState = "hot_low"
	StateNeutral  MomentumState = "neutral"
	StateColdLow  MomentumState = "cold_low"
	StateColdHigh MomentumState = "cold_high"
)

// Momentum is a classified recent-form signal with its confidence.
type Momentum struct {
	State      MomentumState `json:"state"`
	Modifier   float64       `json:"modifier"`
	Confidence float64       `json:"confidence"`
	PPGDev     float64       `json:"ppg_deviation"`
	ShotDev    float64       `json:"shooting_deviation"`
}

// Calculator derives adjustments under one configuration.
type Calculator struct {
	cfg config.SimulationConfig
}

func NewCalculator(cfg config.SimulationConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// Clamp bounds a multiplier to [1-bound, 1+bound].
func (c *Calculator) Clamp(m float64) float64 {
	lo, hi := 1-c.cfg.AdjustmentBound, 1+c.cfg.AdjustmentBound
	if m < lo {
		return lo
	}
	if m > hi {
		return hi
	}
	return m
}

// ComputeMomentum classifies a player's recent games against their season
// baseline. Fewer recent games than the configured minimum always yields a
// neutral modifier with zero confidence.
func (c *Calculator) ComputeMomentum(recent []types.RecentGame, season types.SkaterStats) Momentum {
	if len(recent) < c.cfg.MinRecentGames {
		return Momentum{State: StateNeutral, Modifier: 1.0, Confidence: 0}
	}

	var points, goals, shots int
	for _, g := range recent {
		points += g.Goals + g.Assists
		goals += g.Goals
		shots += g.Shots
	}
	recentPPG := float64(points) / float64(len(recent))
	recentSh := 0.0
	if shots > 0 {
		recentSh = float64(goals) / float64(shots)
	}

	ppgDev := recentPPG - season.PointsPerGame
	shotDev := recentSh - season.ShootingPct

	state := StateNeutral
	switch {
	case ppgDev > c.cfg.MomentumPPGThreshold && shotDev > c.cfg.MomentumShootingThreshold:
		state = StateHotHigh
	case ppgDev > c.cfg.MomentumPPGThreshold:
		state = StateHotLow
	case ppgDev < -c.cfg.MomentumPPGThreshold && shotDev < -c.cfg.MomentumShootingThreshold:
		state = StateColdHigh
	case ppgDev < -c.cfg.MomentumPPGThreshold:
		state = StateColdLow
	}

	modifier := 1.0
	switch state {
	case StateHotHigh:
		modifier = c.cfg.MomentumHotHigh
	case StateHotLow:
		modifier = c.cfg.MomentumHotLow
	case StateColdLow:
		modifier = c.cfg.MomentumColdLow
	case StateColdHigh:
		modifier = c.cfg.MomentumColdHigh
	}

	confidence := float64(len(recent)) / float64(2*c.cfg.MinRecentGames)
	if confidence > 1 {
		confidence = 1
	}

	return Momentum{
		State:      state,
		Modifier:   c.Clamp(modifier),
		Confidence: confidence,
		PPGDev:     ppgDev,
		ShotDev:    shotDev,
	}
}

// ComputeFatigue derives a skater fatigue multiplier from rest days and
// trailing workload. Full rest with a light week yields exactly 1.0.
func (c *Calculator) ComputeFatigue(sched types.ScheduleContext) float64 {
	rest := c.restModifier(sched.DaysRest)
	work := c.workloadModifier(sched.GamesInWindow)
	return c.Clamp(rest * work)
}

// ComputeGoalieFatigue weights rest and workload evenly instead of
// compounding them; goalies absorb schedule load differently than skaters.
func (c *Calculator) ComputeGoalieFatigue(sched types.ScheduleContext) float64 {
	rest := c.restModifier(sched.DaysRest)
	work := c.workloadModifier(sched.GamesInWindow)
	return c.Clamp(0.5*rest + 0.5*work)
}

func (c *Calculator) restModifier(daysRest int) float64 {
	if m, ok := c.cfg.RestModifiers[daysRest]; ok {
		return m
	}
	return 1.0
}

// workloadModifier saturates at the densest schedule the table covers.
func (c *Calculator) workloadModifier(games int) float64 {
	if m, ok := c.cfg.WorkloadModifiers[games]; ok {
		return m
	}
	densest := -1
	for k := range c.cfg.WorkloadModifiers {
		if k > densest {
			densest = k
		}
	}
	if densest >= 0 && games > densest {
		return c.cfg.WorkloadModifiers[densest]
	}
	return 1.0
}

// ComputeClutch compares late-game production to overall production. Players
// with no overall sample stay neutral.
func (c *Calculator) ComputeClutch(segments *types.SegmentProfile) float64 {
	if segments == nil {
		return 1.0
	}
	late := profiles.PhaseStats(segments, types.GameLate)

	// Cells within one season phase share the same game count, so distinct
	// games come from one representative cell per season phase.
	totalPoints := 0
	gamesByPhase := make(map[types.SeasonPhase]int)
	for key, cell := range segments.Cells {
		totalPoints += cell.Points
		if cell.Games > gamesByPhase[key.Season] {
			gamesByPhase[key.Season] = cell.Games
		}
	}
	totalGames := 0
	for _, g := range gamesByPhase {
		totalGames += g
	}
	if totalGames == 0 || late.Games == 0 {
		return 1.0
	}
	overallPPG := float64(totalPoints) / float64(totalGames)
	if overallPPG == 0 {
		return 1.0
	}
	latePPG := float64(late.Points) / float64(late.Games)
	return c.Clamp(latePPG / overallPPG)
}

// Combine assembles an AdjustmentSet honoring the run's feature toggles.
func (c *Calculator) Combine(clutch, fatigue float64, momentum Momentum, cfg types.SimulationConfig) types.AdjustmentSet {
	set := types.NeutralAdjustments()
	if cfg.UseClutch {
		set.Clutch = clutch
	}
	if cfg.UseFatigue {
		set.Fatigue = fatigue
	}
	if cfg.UseMomentum {
		// Confidence scales the momentum effect toward neutral.
		set.Momentum = 1 + (momentum.Modifier-1)*momentum.Confidence
	}
	return set
}
