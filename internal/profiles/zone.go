package profiles

import (
	"fmt"
	"math"

	"github.com/stitts-dev/hockey-sim/internal/config"
	"github.com/stitts-dev/hockey-sim/internal/types"
	"github.com/stitts-dev/hockey-sim/pkg/logger"
)

// ZoneDefinition is a rectangular region in rink coordinates. X is measured
// from center ice toward the attacking net, Y across the rink width.
type ZoneDefinition struct {
	Zone types.Zone
	XMin float64
	XMax float64
	YMin float64
	YMax float64
}

// Contains reports whether a normalized coordinate falls in the zone.
func (d ZoneDefinition) Contains(x, y float64) bool {
	return d.XMin <= x && x <= d.XMax && d.YMin <= y && y <= d.YMax
}

// zonePriority lists zone definitions most specific first. Overlapping
// regions (crease inside inner slot inside slot) resolve to the first match.
var zonePriority = []ZoneDefinition{
	{types.ZoneCrease, 85, 89, -4, 4},
	{types.ZoneInnerSlot, 79, 89, -9, 9},
	{types.ZoneSlot, 69, 89, -22, 22},
	{types.ZoneLeftCircle, 54, 74, -32, -12},
	{types.ZoneRightCircle, 54, 74, 12, 32},
	{types.ZoneLeftWing, 54, 89, -42.5, -22},
	{types.ZoneRightWing, 54, 89, 22, 42.5},
	{types.ZoneHighSlot, 25, 69, -15, 15},
	{types.ZoneLeftPoint, 25, 54, -42.5, -15},
	{types.ZoneRightPoint, 25, 54, 15, 42.5},
	{types.ZoneBehindNet, 89, 100, -42.5, 42.5},
	{types.ZoneNeutral, 0, 25, -42.5, 42.5},
}

// ClassifyShot maps shot coordinates to a zone. The X coordinate is folded
// onto the attacking half so both offensive directions classify identically.
// Missing coordinates classify as unknown.
func ClassifyShot(x, y *float64) types.Zone {
	if x == nil || y == nil {
		return types.ZoneUnknown
	}
	ax := math.Abs(*x)
	for _, def := range zonePriority {
		if def.Contains(ax, *y) {
			return def.Zone
		}
	}
	return types.ZoneUnknown
}

// BaselineXG returns the expected goal value of one shot from a zone with a
// given release type, before any shooter or goalie adjustment.
func BaselineXG(cfg config.SimulationConfig, zone types.Zone, shotType types.ShotType) float64 {
	base, ok := cfg.ZoneGoalProbs[zone]
	if !ok {
		base = cfg.ZoneGoalProbs[types.ZoneUnknown]
	}
	mod, ok := cfg.ShotTypeModifiers[shotType]
	if !ok {
		mod = 1.0
	}
	return base * mod
}

// BuildZoneProfile aggregates shot events into a per-zone profile for one
// entity and season. Events with a pre-classified zone keep it; the rest are
// classified from coordinates. An entity with no events in the scope is an
// InsufficientDataError; the caller decides whether a fallback applies.
func BuildZoneProfile(cfg config.SimulationConfig, entityID int64, season int, events []types.ShotEvent) (*types.ZoneProfile, error) {
	if len(events) == 0 {
		return nil, &types.InsufficientDataError{
			Entity: "zone profile",
			Scope:  fmt.Sprintf("entity %d season %d", entityID, season),
			Have:   0,
			Need:   1,
		}
	}
	profile := &types.ZoneProfile{
		EntityID: entityID,
		Season:   season,
		Zones:    make(map[types.Zone]*types.ZoneStats),
	}
	for _, ev := range events {
		zone := ev.Zone
		if zone == "" {
			zone = ClassifyShot(ev.X, ev.Y)
		}
		stats, ok := profile.Zones[zone]
		if !ok {
			stats = &types.ZoneStats{ShotTypes: make(map[types.ShotType]int)}
			profile.Zones[zone] = stats
		}
		stats.Shots++
		profile.TotalShots++
		if ev.ShotType != "" {
			stats.ShotTypes[ev.ShotType]++
		}
		xg := BaselineXG(cfg, zone, ev.ShotType)
		stats.ExpectedGoals += xg
		profile.TotalXG += xg
		if ev.IsGoal {
			stats.Goals++
			profile.TotalGoals++
		}
	}
	logger.WithEntityContext(entityID, season).WithField("shots", profile.TotalShots).
		Debug("Built zone profile")
	return profile, nil
}

// LeagueZoneAverages aggregates many profiles into league-wide goal rates
// per zone, the baseline that individual zone performance is compared to.
func LeagueZoneAverages(all []*types.ZoneProfile) map[types.Zone]float64 {
	shots := make(map[types.Zone]int)
	goals := make(map[types.Zone]int)
	for _, p := range all {
		for zone, stats := range p.Zones {
			shots[zone] += stats.Shots
			goals[zone] += stats.Goals
		}
	}
	avgs := make(map[types.Zone]float64, len(shots))
	for zone, s := range shots {
		if s > 0 {
			avgs[zone] = float64(goals[zone]) / float64(s)
		}
	}
	return avgs
}

// ZoneRate returns the entity's goal rate in a zone, requiring a minimum
// shot sample. Below the threshold it returns an InsufficientDataError so
// callers can decide whether to fall back to a league average.
func ZoneRate(p *types.ZoneProfile, zone types.Zone, minShots int) (float64, error) {
	stats, ok := p.Zones[zone]
	if !ok || stats.Shots < minShots {
		have := 0
		if ok {
			have = stats.Shots
		}
		return 0, &types.InsufficientDataError{
			Entity: "zone profile",
			Scope:  string(zone),
			Have:   have,
			Need:   minShots,
		}
	}
	return stats.GoalRate(), nil
}

// WeakZones returns zones where a goalie allows goals above the league rate
// by a margin, restricted to zones with enough shot volume to trust.
func WeakZones(goalieShotsAgainst *types.ZoneProfile, league map[types.Zone]float64, minShots int, margin float64) []types.Zone {
	var weak []types.Zone
	for _, zone := range types.AllZones {
		rate, err := ZoneRate(goalieShotsAgainst, zone, minShots)
		if err != nil {
			continue
		}
		if avg, ok := league[zone]; ok && rate > avg+margin {
			weak = append(weak, zone)
		}
	}
	return weak
}
