package simulator

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/hockey-sim/internal/adjustments"
	"github.com/stitts-dev/hockey-sim/internal/config"
	"github.com/stitts-dev/hockey-sim/internal/matchup"
	"github.com/stitts-dev/hockey-sim/internal/profiles"
	"github.com/stitts-dev/hockey-sim/internal/synergy"
	"github.com/stitts-dev/hockey-sim/internal/types"
	"github.com/stitts-dev/hockey-sim/pkg/logger"
)

// DataSource is the read surface the context builder needs. The storage
// package implements it against postgres; tests implement it in memory.
type DataSource interface {
	SkaterSeasonStats(ctx context.Context, playerID int64, season int) (types.SkaterStats, error)
	SkaterMatchupStats(ctx context.Context, playerID, opponentTeamID int64, season int) (int, types.SkaterStats, error)
	GoalieSeasonStats(ctx context.Context, goalieID int64, season int) (types.GoalieStats, error)
	GoalieMatchupStats(ctx context.Context, goalieID, opponentTeamID int64, season int) (int, types.GoalieStats, error)

	ShotEvents(ctx context.Context, playerID int64, season int) ([]types.ShotEvent, error)
	GoalieShotsAgainst(ctx context.Context, goalieID int64, season int) ([]types.ShotEvent, error)
	GameRows(ctx context.Context, entityID int64, season int) ([]types.GameRow, error)
	SeasonTotals(ctx context.Context, entityID int64, season int) (*profiles.SeasonTotals, error)
	RecentGames(ctx context.Context, playerID int64, n int) ([]types.RecentGame, error)

	Roster(ctx context.Context, teamID int64, season int) (skaters []int64, goalieID int64, err error)
	Lines(ctx context.Context, teamID int64, season int) ([][]int64, error)
	SharedIce(ctx context.Context, teamID int64, season int) ([]types.SharedIceRecord, error)
	Schedule(ctx context.Context, teamID int64, gameDate time.Time) (types.ScheduleContext, error)
	LeagueZoneAverages(ctx context.Context, season int) (map[types.Zone]float64, error)
}

// ProfileCache caches computed profiles between runs. Misses return false;
// cache failures are treated as misses by implementations, never surfaced.
type ProfileCache interface {
	GetZoneProfile(ctx context.Context, entityID int64, season int) (*types.ZoneProfile, bool)
	SetZoneProfile(ctx context.Context, p *types.ZoneProfile)
	GetSegmentProfile(ctx context.Context, entityID int64, season int) (*types.SegmentProfile, bool)
	SetSegmentProfile(ctx context.Context, p *types.SegmentProfile)
	GetMatchupProfile(ctx context.Context, entityID, opponentID int64, season int) (*types.MatchupProfile, bool)
	SetMatchupProfile(ctx context.Context, p *types.MatchupProfile)
}

// PlayerContext is everything the engine needs about one skater.
type PlayerContext struct {
	PlayerID int64
	Blended  types.SkaterStats
	Zones    *types.ZoneProfile
	Segments *types.SegmentProfile
	Adjust   types.AdjustmentSet
	Momentum adjustments.Momentum
}

// GoalieContext is everything the engine needs about the starting goalie.
type GoalieContext struct {
	GoalieID  int64
	Blended   types.GoalieStats
	Against   *types.ZoneProfile
	WeakZones map[types.Zone]bool
	Fatigue   float64
}

// TeamContext is the fully assembled input for one side of a simulation.
type TeamContext struct {
	TeamID   int64
	IsHome   bool
	Skaters  []PlayerContext
	Lines    [][]int64
	Goalie   GoalieContext
	Schedule types.ScheduleContext
	Synergy  *synergy.Matrix

	// LineModifiers holds one chemistry multiplier per entry in Lines.
	LineModifiers []float64

	// DataQuality summarizes how much of the roster had full profiles,
	// feeding the run's confidence score.
	DataQuality float64
}

// minSharedIceSeconds is the floor below which a pair's synergy sample is
// ignored (10 minutes of shared ice).
const minSharedIceSeconds = 600

// goalieWeakZoneMargin is how far above the league goal rate a zone must sit
// to count as a goalie weakness.
const goalieWeakZoneMargin = 0.03

// Builder assembles team contexts from the data source, consulting the
// cache for previously computed profiles.
type Builder struct {
	src      DataSource
	cache    ProfileCache
	weighter *matchup.Weighter
	calc     *adjustments.Calculator
	cfg      config.SimulationConfig
	log      *logrus.Entry
}

// NewBuilder wires a context builder. cache may be nil.
func NewBuilder(src DataSource, cache ProfileCache, cfg config.SimulationConfig) *Builder {
	return &Builder{
		src:      src,
		cache:    cache,
		weighter: matchup.NewWeighter(cfg),
		calc:     adjustments.NewCalculator(cfg),
		cfg:      cfg,
		log:      logger.WithService("context-builder"),
	}
}

// BuildTeamContext assembles one side of the matchup for a game on gameDate.
func (b *Builder) BuildTeamContext(ctx context.Context, teamID, opponentID int64, season int, gameDate time.Time, isHome bool, simCfg types.SimulationConfig) (*TeamContext, error) {
	skaterIDs, goalieID, err := b.src.Roster(ctx, teamID, season)
	if err != nil {
		return nil, err
	}
	if len(skaterIDs) == 0 {
		return nil, &types.InsufficientDataError{Entity: "roster", Scope: "skaters", Have: 0, Need: 1}
	}

	sched, err := b.src.Schedule(ctx, teamID, gameDate)
	if err != nil {
		return nil, err
	}
	fatigue := b.calc.ComputeFatigue(sched)

	tc := &TeamContext{
		TeamID:   teamID,
		IsHome:   isHome,
		Schedule: sched,
	}

	complete := 0
	for _, id := range skaterIDs {
		pc, full, err := b.buildPlayer(ctx, id, opponentID, season, fatigue, simCfg)
		if err != nil {
			return nil, err
		}
		if full {
			complete++
		}
		tc.Skaters = append(tc.Skaters, *pc)
	}
	tc.DataQuality = float64(complete) / float64(len(skaterIDs))

	gc, err := b.buildGoalie(ctx, goalieID, opponentID, season, sched, simCfg)
	if err != nil {
		return nil, err
	}
	tc.Goalie = *gc

	if simCfg.UseSynergy {
		records, err := b.src.SharedIce(ctx, teamID, season)
		if err != nil {
			return nil, err
		}
		tc.Synergy = synergy.NewMatrix(records, minSharedIceSeconds)
		lines, err := b.src.Lines(ctx, teamID, season)
		if err != nil {
			return nil, err
		}
		tc.Lines = lines
		for _, line := range lines {
			tc.LineModifiers = append(tc.LineModifiers, tc.Synergy.LineModifier(line))
		}
	}

	b.log.WithFields(logrus.Fields{
		"team_id":      teamID,
		"skaters":      len(tc.Skaters),
		"data_quality": tc.DataQuality,
		"fatigue":      fatigue,
	}).Info("Built team context")

	return tc, nil
}

// buildPlayer assembles one skater. The bool result reports whether the
// player had a complete data footprint (zone, segment and recent form).
func (b *Builder) buildPlayer(ctx context.Context, playerID, opponentID int64, season int, fatigue float64, simCfg types.SimulationConfig) (*PlayerContext, bool, error) {
	general, err := b.src.SkaterSeasonStats(ctx, playerID, season)
	if err != nil {
		return nil, false, err
	}

	mp, ok := b.cacheGetMatchup(ctx, playerID, opponentID, season)
	if !ok {
		sample, matchupStats, err := b.src.SkaterMatchupStats(ctx, playerID, opponentID, season)
		if err != nil {
			return nil, false, err
		}
		mp, err = b.weighter.BuildProfile(playerID, opponentID, season, sample, general, matchupStats)
		if err != nil {
			return nil, false, err
		}
		b.cacheSetMatchup(ctx, mp)
	}

	full := true

	zones, ok := b.cacheGetZone(ctx, playerID, season)
	if !ok {
		events, err := b.src.ShotEvents(ctx, playerID, season)
		if err != nil {
			return nil, false, err
		}
		zones, err = profiles.BuildZoneProfile(b.cfg, playerID, season, events)
		if err != nil {
			var insufficient *types.InsufficientDataError
			if !errors.As(err, &insufficient) {
				return nil, false, err
			}
			// No shot data in scope. The builder chooses the fallback:
			// simulate this skater from league baselines, leave the
			// cache alone and let data quality reflect the gap.
			b.log.WithField("player_id", playerID).Warn("No shot data, simulating from league baselines")
			zones = &types.ZoneProfile{EntityID: playerID, Season: season, Zones: make(map[types.Zone]*types.ZoneStats)}
		} else {
			b.cacheSetZone(ctx, zones)
		}
	}
	if zones.TotalShots == 0 {
		full = false
	}

	segments, ok := b.cacheGetSegment(ctx, playerID, season)
	if !ok {
		rows, err := b.src.GameRows(ctx, playerID, season)
		if err != nil {
			return nil, false, err
		}
		totals, err := b.src.SeasonTotals(ctx, playerID, season)
		if err != nil {
			return nil, false, err
		}
		segments = profiles.BuildSegmentProfile(playerID, season, rows, totals)
		b.cacheSetSegment(ctx, segments)
	}

	recent, err := b.src.RecentGames(ctx, playerID, 2*b.cfg.MinRecentGames)
	if err != nil {
		return nil, false, err
	}
	momentum := b.calc.ComputeMomentum(recent, general)
	if momentum.Confidence == 0 {
		full = false
	}

	clutch := b.calc.ComputeClutch(segments)

	return &PlayerContext{
		PlayerID: playerID,
		Blended:  b.weighter.BlendSkater(mp),
		Zones:    zones,
		Segments: segments,
		Momentum: momentum,
		Adjust:   b.calc.Combine(clutch, fatigue, momentum, simCfg),
	}, full, nil
}

func (b *Builder) buildGoalie(ctx context.Context, goalieID, opponentID int64, season int, sched types.ScheduleContext, simCfg types.SimulationConfig) (*GoalieContext, error) {
	general, err := b.src.GoalieSeasonStats(ctx, goalieID, season)
	if err != nil {
		return nil, err
	}
	sample, matchupStats, err := b.src.GoalieMatchupStats(ctx, goalieID, opponentID, season)
	if err != nil {
		return nil, err
	}
	blended, err := b.weighter.BlendGoalie(sample, general, matchupStats)
	if err != nil {
		return nil, err
	}

	against, ok := b.cacheGetZone(ctx, goalieID, season)
	if !ok {
		events, err := b.src.GoalieShotsAgainst(ctx, goalieID, season)
		if err != nil {
			return nil, err
		}
		against, err = profiles.BuildZoneProfile(b.cfg, goalieID, season, events)
		if err != nil {
			var insufficient *types.InsufficientDataError
			if !errors.As(err, &insufficient) {
				return nil, err
			}
			b.log.WithField("goalie_id", goalieID).Warn("No shots-against data, goalie keeps blended rates only")
			against = &types.ZoneProfile{EntityID: goalieID, Season: season, Zones: make(map[types.Zone]*types.ZoneStats)}
		} else {
			b.cacheSetZone(ctx, against)
		}
	}

	league, err := b.src.LeagueZoneAverages(ctx, season)
	if err != nil {
		return nil, err
	}
	weak := make(map[types.Zone]bool)
	for _, z := range profiles.WeakZones(against, league, b.cfg.MinShotsPerZone, goalieWeakZoneMargin) {
		weak[z] = true
	}

	gc := &GoalieContext{
		GoalieID:  goalieID,
		Blended:   blended,
		Against:   against,
		WeakZones: weak,
		Fatigue:   1.0,
	}
	if simCfg.UseFatigue {
		gc.Fatigue = b.calc.ComputeGoalieFatigue(sched)
	}
	return gc, nil
}

func (b *Builder) cacheGetZone(ctx context.Context, id int64, season int) (*types.ZoneProfile, bool) {
	if b.cache == nil {
		return nil, false
	}
	return b.cache.GetZoneProfile(ctx, id, season)
}

func (b *Builder) cacheSetZone(ctx context.Context, p *types.ZoneProfile) {
	if b.cache != nil {
		b.cache.SetZoneProfile(ctx, p)
	}
}

func (b *Builder) cacheGetSegment(ctx context.Context, id int64, season int) (*types.SegmentProfile, bool) {
	if b.cache == nil {
		return nil, false
	}
	return b.cache.GetSegmentProfile(ctx, id, season)
}

func (b *Builder) cacheSetSegment(ctx context.Context, p *types.SegmentProfile) {
	if b.cache != nil {
		b.cache.SetSegmentProfile(ctx, p)
	}
}

func (b *Builder) cacheGetMatchup(ctx context.Context, id, opp int64, season int) (*types.MatchupProfile, bool) {
	if b.cache == nil {
		return nil, false
	}
	return b.cache.GetMatchupProfile(ctx, id, opp, season)
}

func (b *Builder) cacheSetMatchup(ctx context.Context, p *types.MatchupProfile) {
	if b.cache != nil {
		b.cache.SetMatchupProfile(ctx, p)
	}
}
