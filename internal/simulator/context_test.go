package simulator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/hockey-sim/internal/profiles"
	"github.com/stitts-dev/hockey-sim/internal/types"
)

// fakeSource is an in-memory DataSource with a healthy two-line roster.
type fakeSource struct {
	skaters  []int64
	goalieID int64
	calls    map[string]int

	// noShotsFor simulates a skater with no tracked shot events.
	noShotsFor int64
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		skaters:  []int64{11, 12, 13, 14, 15, 16},
		goalieID: 30,
		calls:    map[string]int{},
	}
}

func (f *fakeSource) SkaterSeasonStats(_ context.Context, playerID int64, _ int) (types.SkaterStats, error) {
	f.calls["season_stats"]++
	return types.SkaterStats{
		GamesPlayed:      60,
		GoalsPerGame:     0.4,
		AssistsPerGame:   0.5,
		PointsPerGame:    0.9,
		ShotsPerGame:     3.0,
		ShootingPct:      0.12,
		GoalsPerGameStd:  0.3,
		PointsPerGameStd: 0.5,
		ShotsPerGameStd:  1.0,
		ShootingPctStd:   0.07,
	}, nil
}

func (f *fakeSource) SkaterMatchupStats(_ context.Context, _, _ int64, _ int) (int, types.SkaterStats, error) {
	return 5, types.SkaterStats{
		GamesPlayed: 5, GoalsPerGame: 0.6, PointsPerGame: 1.2, ShotsPerGame: 3.5, ShootingPct: 0.17,
	}, nil
}

func (f *fakeSource) GoalieSeasonStats(_ context.Context, _ int64, _ int) (types.GoalieStats, error) {
	return types.GoalieStats{GamesPlayed: 40, SavePct: 0.915, GAA: 2.5}, nil
}

func (f *fakeSource) GoalieMatchupStats(_ context.Context, _, _ int64, _ int) (int, types.GoalieStats, error) {
	return 4, types.GoalieStats{GamesPlayed: 4, SavePct: 0.88, GAA: 3.4}, nil
}

func (f *fakeSource) ShotEvents(_ context.Context, playerID int64, _ int) ([]types.ShotEvent, error) {
	f.calls["shot_events"]++
	if playerID == f.noShotsFor {
		return nil, nil
	}
	events := make([]types.ShotEvent, 0, 40)
	for i := 0; i < 40; i++ {
		events = append(events, types.ShotEvent{
			EntityID: playerID, Zone: types.ZoneSlot, ShotType: types.ShotWrist, IsGoal: i < 5,
		})
	}
	return events, nil
}

func (f *fakeSource) GoalieShotsAgainst(_ context.Context, goalieID int64, _ int) ([]types.ShotEvent, error) {
	events := make([]types.ShotEvent, 0, 100)
	for i := 0; i < 100; i++ {
		events = append(events, types.ShotEvent{
			EntityID: goalieID, Zone: types.ZoneSlot, ShotType: types.ShotWrist, IsGoal: i < 20,
		})
	}
	return events, nil
}

func (f *fakeSource) GameRows(_ context.Context, entityID int64, _ int) ([]types.GameRow, error) {
	rows := make([]types.GameRow, 0, 12)
	start := time.Date(2024, 10, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		rows = append(rows, types.GameRow{
			EntityID: entityID,
			GameID:   int64(i),
			GameDate: start.AddDate(0, 0, i*3),
			GameType: types.GameTypeRegular,
			Phase:    types.GameMid,
			Goals:    1,
			Shots:    3,
		})
	}
	return rows, nil
}

func (f *fakeSource) SeasonTotals(_ context.Context, _ int64, _ int) (*profiles.SeasonTotals, error) {
	return &profiles.SeasonTotals{Games: 12, Goals: 12, Points: 12, Shots: 36}, nil
}

func (f *fakeSource) RecentGames(_ context.Context, _ int64, n int) ([]types.RecentGame, error) {
	games := make([]types.RecentGame, 0, n)
	for i := 0; i < n; i++ {
		games = append(games, types.RecentGame{GameID: int64(i), Goals: 1, Shots: 3})
	}
	return games, nil
}

func (f *fakeSource) Roster(_ context.Context, _ int64, _ int) ([]int64, int64, error) {
	return f.skaters, f.goalieID, nil
}

func (f *fakeSource) Lines(_ context.Context, _ int64, _ int) ([][]int64, error) {
	return [][]int64{{11, 12, 13}, {14, 15, 16}}, nil
}

func (f *fakeSource) SharedIce(_ context.Context, _ int64, _ int) ([]types.SharedIceRecord, error) {
	return []types.SharedIceRecord{
		{PlayerA: 11, PlayerB: 12, Phase: types.GameMid, TOISeconds: 900, JointGoals: 2, JointShots: 10, JointXG: 1.2, ExpectedXGA: 0.5, ExpectedXGB: 0.5},
	}, nil
}

func (f *fakeSource) Schedule(_ context.Context, teamID int64, gameDate time.Time) (types.ScheduleContext, error) {
	return types.ScheduleContext{TeamID: teamID, GameDate: gameDate, DaysRest: 2, GamesInWindow: 3}, nil
}

func (f *fakeSource) LeagueZoneAverages(_ context.Context, _ int) (map[types.Zone]float64, error) {
	return map[types.Zone]float64{types.ZoneSlot: 0.12}, nil
}

// memCache is a map-backed ProfileCache for builder tests.
type memCache struct {
	zones    map[int64]*types.ZoneProfile
	segments map[int64]*types.SegmentProfile
	matchups map[int64]*types.MatchupProfile
}

func newMemCache() *memCache {
	return &memCache{
		zones:    map[int64]*types.ZoneProfile{},
		segments: map[int64]*types.SegmentProfile{},
		matchups: map[int64]*types.MatchupProfile{},
	}
}

func (m *memCache) GetZoneProfile(_ context.Context, id int64, _ int) (*types.ZoneProfile, bool) {
	p, ok := m.zones[id]
	return p, ok
}
func (m *memCache) SetZoneProfile(_ context.Context, p *types.ZoneProfile) { m.zones[p.EntityID] = p }
func (m *memCache) GetSegmentProfile(_ context.Context, id int64, _ int) (*types.SegmentProfile, bool) {
	p, ok := m.segments[id]
	return p, ok
}
func (m *memCache) SetSegmentProfile(_ context.Context, p *types.SegmentProfile) {
	m.segments[p.EntityID] = p
}
func (m *memCache) GetMatchupProfile(_ context.Context, id, _ int64, _ int) (*types.MatchupProfile, bool) {
	p, ok := m.matchups[id]
	return p, ok
}
func (m *memCache) SetMatchupProfile(_ context.Context, p *types.MatchupProfile) {
	m.matchups[p.EntityID] = p
}

func allFeatures() types.SimulationConfig {
	return types.SimulationConfig{
		UseSynergy: true, UseClutch: true, UseFatigue: true, UseMomentum: true,
	}
}

func TestBuildTeamContext(t *testing.T) {
	src := newFakeSource()
	builder := NewBuilder(src, nil, testEngineConfig())
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	tc, err := builder.BuildTeamContext(context.Background(), 1, 2, 2025, date, true, allFeatures())
	require.NoError(t, err)

	assert.True(t, tc.IsHome)
	require.Len(t, tc.Skaters, 6)
	assert.Equal(t, 1.0, tc.DataQuality)

	// Matchup blending pulled the rates between general and matchup.
	blended := tc.Skaters[0].Blended
	assert.Greater(t, blended.GoalsPerGame, 0.4)
	assert.Less(t, blended.GoalsPerGame, 0.6)

	// Adjustments are bounded and populated.
	for _, s := range tc.Skaters {
		product := s.Adjust.Product()
		assert.Greater(t, product, 0.5)
		assert.Less(t, product, 1.6)
		assert.NotNil(t, s.Zones)
		assert.NotNil(t, s.Segments)
	}

	// Goalie blends toward the matchup sample but stays capped.
	assert.Less(t, tc.Goalie.Blended.SavePct, 0.915)
	assert.Greater(t, tc.Goalie.Blended.SavePct, 0.88)

	// Lines and chemistry modifiers line up.
	require.Len(t, tc.Lines, 2)
	require.Len(t, tc.LineModifiers, 2)
	for _, mod := range tc.LineModifiers {
		assert.GreaterOrEqual(t, mod, 0.9)
		assert.LessOrEqual(t, mod, 1.1)
	}
}

func TestBuildTeamContextUsesCache(t *testing.T) {
	src := newFakeSource()
	cache := newMemCache()
	builder := NewBuilder(src, cache, testEngineConfig())
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	_, err := builder.BuildTeamContext(context.Background(), 1, 2, 2025, date, true, allFeatures())
	require.NoError(t, err)
	firstLoad := src.calls["shot_events"]
	assert.Greater(t, firstLoad, 0)

	_, err = builder.BuildTeamContext(context.Background(), 1, 2, 2025, date, true, allFeatures())
	require.NoError(t, err)

	// Second build served every zone profile from cache.
	assert.Equal(t, firstLoad, src.calls["shot_events"])
}

func TestBuildTeamContextSkaterWithoutShotData(t *testing.T) {
	src := newFakeSource()
	src.noShotsFor = 13
	cache := newMemCache()
	builder := NewBuilder(src, cache, testEngineConfig())
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	tc, err := builder.BuildTeamContext(context.Background(), 1, 2, 2025, date, true, allFeatures())
	require.NoError(t, err)

	// The gap shows up in data quality instead of failing the build, and
	// the empty profile never reaches the cache.
	assert.InDelta(t, 5.0/6.0, tc.DataQuality, 1e-9)
	_, cached := cache.GetZoneProfile(context.Background(), 13, 2025)
	assert.False(t, cached)

	for _, s := range tc.Skaters {
		if s.PlayerID == 13 {
			assert.Zero(t, s.Zones.TotalShots)
		} else {
			assert.Greater(t, s.Zones.TotalShots, 0)
		}
	}
}

func TestBuildTeamContextEmptyRoster(t *testing.T) {
	src := newFakeSource()
	src.skaters = nil
	builder := NewBuilder(src, nil, testEngineConfig())

	_, err := builder.BuildTeamContext(context.Background(), 1, 2, 2025, time.Now(), true, allFeatures())
	require.Error(t, err)

	var insufficient *types.InsufficientDataError
	assert.True(t, errors.As(err, &insufficient))
}

func TestBuildAndSimulateEndToEnd(t *testing.T) {
	src := newFakeSource()
	builder := NewBuilder(src, nil, testEngineConfig())
	engine := NewEngine(testEngineConfig())
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	home, err := builder.BuildTeamContext(context.Background(), 1, 2, 2025, date, true, allFeatures())
	require.NoError(t, err)
	away, err := builder.BuildTeamContext(context.Background(), 2, 1, 2025, date, false, allFeatures())
	require.NoError(t, err)

	simCfg := seeded(99, 1000, 4)
	result, err := engine.Simulate(context.Background(), simCfg, home, away, nil)
	require.NoError(t, err)

	assert.Equal(t, 1000, result.Trials)
	assert.Greater(t, result.Confidence, 0.0)
	assert.NotEmpty(t, result.Scorelines)
	assert.NotEmpty(t, result.Summary())
}
