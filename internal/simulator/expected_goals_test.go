package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stitts-dev/hockey-sim/internal/config"
	"github.com/stitts-dev/hockey-sim/internal/types"
)

func TestShotProbabilityClampHolds(t *testing.T) {
	cfg := testEngineConfig()
	resolver := NewResolver(cfg)
	weights := config.DefaultSegmentWeights()

	goalie := &GoalieContext{
		Blended:   types.GoalieStats{SavePct: 0.91},
		WeakZones: map[types.Zone]bool{},
		Fatigue:   1.0,
	}

	// Adversarial stacking: an elite shooter in the crease with every
	// multiplier pushed high must still never exceed the ceiling.
	monster := &PlayerContext{
		Blended: types.SkaterStats{ShootingPct: 0.99},
		Zones:   testZoneProfile(1),
		Adjust:  types.AdjustmentSet{Clutch: 1.15, Fatigue: 1.15, Momentum: 1.15},
	}
	sieve := &GoalieContext{
		Blended:   types.GoalieStats{SavePct: 0.70},
		WeakZones: map[types.Zone]bool{types.ZoneCrease: true},
		Fatigue:   0.85,
	}
	p := resolver.ShotProbability(monster, sieve, types.ZoneCrease, types.ShotTipIn, types.GameLate, weights, 10.0)
	assert.LessOrEqual(t, p, cfg.MaxGoalProb)

	// The floor holds on the other end.
	ghost := &PlayerContext{
		Blended: types.SkaterStats{ShootingPct: 0.001},
		Zones:   testZoneProfile(2),
		Adjust:  types.AdjustmentSet{Clutch: 0.85, Fatigue: 0.85, Momentum: 0.85},
	}
	wall := &GoalieContext{
		Blended:   types.GoalieStats{SavePct: 0.999},
		WeakZones: map[types.Zone]bool{},
		Fatigue:   1.0,
	}
	p = resolver.ShotProbability(ghost, wall, types.ZoneBehindNet, types.ShotWrapAround, types.GameEarly, weights, 0.01)
	assert.GreaterOrEqual(t, p, cfg.MinGoalProb)

	// Every zone and type combination stays inside the window.
	for _, zone := range types.AllZones {
		for _, st := range orderedShotTypes {
			p := resolver.ShotProbability(monster, goalie, zone, st, types.GameMid, weights, 3.0)
			assert.GreaterOrEqual(t, p, cfg.MinGoalProb)
			assert.LessOrEqual(t, p, cfg.MaxGoalProb)
		}
	}
}

func TestShotProbabilityOrderings(t *testing.T) {
	resolver := NewResolver(testEngineConfig())
	weights := config.DefaultSegmentWeights()
	goalie := &GoalieContext{
		Blended:   types.GoalieStats{SavePct: 0.91},
		WeakZones: map[types.Zone]bool{},
		Fatigue:   1.0,
	}
	shooter := &PlayerContext{
		Blended: types.SkaterStats{ShootingPct: 0.10},
		Zones:   testZoneProfile(1),
		Adjust:  types.NeutralAdjustments(),
	}

	slot := resolver.ShotProbability(shooter, goalie, types.ZoneSlot, types.ShotWrist, types.GameMid, weights, 1.0)
	point := resolver.ShotProbability(shooter, goalie, types.ZoneLeftPoint, types.ShotWrist, types.GameMid, weights, 1.0)
	assert.Greater(t, slot, point)

	tip := resolver.ShotProbability(shooter, goalie, types.ZoneSlot, types.ShotTipIn, types.GameMid, weights, 1.0)
	wrap := resolver.ShotProbability(shooter, goalie, types.ZoneSlot, types.ShotWrapAround, types.GameMid, weights, 1.0)
	assert.Greater(t, tip, slot)
	assert.Less(t, wrap, slot)

	late := resolver.ShotProbability(shooter, goalie, types.ZoneSlot, types.ShotWrist, types.GameLate, weights, 1.0)
	early := resolver.ShotProbability(shooter, goalie, types.ZoneSlot, types.ShotWrist, types.GameEarly, weights, 1.0)
	assert.Greater(t, late, early)
}

func TestGoalieFactorRespondsToWeaknessAndFatigue(t *testing.T) {
	resolver := NewResolver(testEngineConfig())

	average := &GoalieContext{Blended: types.GoalieStats{SavePct: 0.91}, WeakZones: map[types.Zone]bool{}, Fatigue: 1.0}
	weakSlot := &GoalieContext{Blended: types.GoalieStats{SavePct: 0.91}, WeakZones: map[types.Zone]bool{types.ZoneSlot: true}, Fatigue: 1.0}
	tired := &GoalieContext{Blended: types.GoalieStats{SavePct: 0.91}, WeakZones: map[types.Zone]bool{}, Fatigue: 0.9}

	base := resolver.goalieFactor(average, types.ZoneSlot)
	assert.InDelta(t, 1.0, base, 1e-9)
	assert.Greater(t, resolver.goalieFactor(weakSlot, types.ZoneSlot), base)
	assert.InDelta(t, base, resolver.goalieFactor(weakSlot, types.ZoneCrease), 1e-9)
	assert.Greater(t, resolver.goalieFactor(tired, types.ZoneSlot), base)
}

func TestTeamExpectedGoalsSanity(t *testing.T) {
	resolver := NewResolver(testEngineConfig())
	weights := config.DefaultSegmentWeights()

	home := testTeam(true, 0.12, 0.91)
	away := testTeam(false, 0.08, 0.91)

	xgHome := resolver.TeamExpectedGoals(home, away, weights)
	xgAway := resolver.TeamExpectedGoals(away, home, weights)

	assert.Greater(t, xgHome, xgAway)
	assert.Greater(t, xgHome, 0.5)
	assert.Less(t, xgHome, 12.0)
}

func TestDominantShotType(t *testing.T) {
	p := testZoneProfile(1)
	assert.Equal(t, types.ShotWrist, dominantShotType(p, types.ZoneSlot))
	assert.Equal(t, types.ShotSnap, dominantShotType(p, types.ZoneLeftCircle))
	// Zones with no data fall back to the most common release in hockey.
	assert.Equal(t, types.ShotWrist, dominantShotType(p, types.ZoneBehindNet))
}

func TestSplitmixStreamsAreIndependent(t *testing.T) {
	a := trialRNG(42, 0)
	b := trialRNG(42, 1)
	c := trialRNG(42, 0)

	assert.Equal(t, c.Uint64(), func() uint64 { x := trialRNG(42, 0); return x.Uint64() }())
	assert.NotEqual(t, a.Uint64(), b.Uint64())
}
