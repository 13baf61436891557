package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stitts-dev/hockey-sim/internal/profiles"
	"github.com/stitts-dev/hockey-sim/internal/types"
)

// Store implements the simulator's DataSource against postgres.
type Store struct {
	db  *gorm.DB
	log *logrus.Entry
}

// Connect opens the database with sane pool settings.
func Connect(dsn string, log *logrus.Entry) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	log.Info("Connected to stats database")
	return &Store{db: db, log: log}, nil
}

// NewStore wraps an existing gorm handle, used by tests with sqlmock or a
// scratch database.
func NewStore(db *gorm.DB, log *logrus.Entry) *Store {
	return &Store{db: db, log: log}
}

// SkaterSeasonStats aggregates a skater's per-game lines into season rates,
// including the per-game standard deviations the matchup weighting needs.
func (s *Store) SkaterSeasonStats(ctx context.Context, playerID int64, season int) (types.SkaterStats, error) {
	var rows []SkaterGameStat
	err := s.db.WithContext(ctx).
		Where("player_id = ? AND season = ?", playerID, season).
		Find(&rows).Error
	if err != nil {
		return types.SkaterStats{}, fmt.Errorf("failed to load skater game stats: %w", err)
	}
	if len(rows) == 0 {
		return types.SkaterStats{}, &types.InsufficientDataError{
			Entity: fmt.Sprintf("player %d", playerID),
			Scope:  "season stats",
			Have:   0,
			Need:   1,
		}
	}
	return skaterRates(rows, true), nil
}

// SkaterMatchupStats aggregates a skater's lines against one opponent.
// An empty matchup history is a valid zero-sample result, not an error.
func (s *Store) SkaterMatchupStats(ctx context.Context, playerID, opponentTeamID int64, season int) (int, types.SkaterStats, error) {
	var rows []SkaterGameStat
	err := s.db.WithContext(ctx).
		Where("player_id = ? AND season = ? AND opponent_team_id = ?", playerID, season, opponentTeamID).
		Find(&rows).Error
	if err != nil {
		return 0, types.SkaterStats{}, fmt.Errorf("failed to load skater matchup stats: %w", err)
	}
	if len(rows) == 0 {
		return 0, types.SkaterStats{}, nil
	}
	return len(rows), skaterRates(rows, false), nil
}

func skaterRates(rows []SkaterGameStat, withStd bool) types.SkaterStats {
	n := float64(len(rows))
	goals := make([]float64, len(rows))
	points := make([]float64, len(rows))
	shots := make([]float64, len(rows))
	shooting := make([]float64, len(rows))
	var assistsTotal, toiTotal float64
	var goalTotal, shotTotal int
	for i, r := range rows {
		goals[i] = float64(r.Goals)
		points[i] = float64(r.Goals + r.Assists)
		shots[i] = float64(r.Shots)
		if r.Shots > 0 {
			shooting[i] = float64(r.Goals) / float64(r.Shots)
		}
		assistsTotal += float64(r.Assists)
		toiTotal += float64(r.TOISeconds)
		goalTotal += r.Goals
		shotTotal += r.Shots
	}

	out := types.SkaterStats{
		GamesPlayed:    len(rows),
		GoalsPerGame:   stat.Mean(goals, nil),
		AssistsPerGame: assistsTotal / n,
		PointsPerGame:  stat.Mean(points, nil),
		ShotsPerGame:   stat.Mean(shots, nil),
		TOIPerGame:     toiTotal / n,
	}
	if shotTotal > 0 {
		out.ShootingPct = float64(goalTotal) / float64(shotTotal)
	}
	if withStd && len(rows) > 1 {
		out.GoalsPerGameStd = stat.StdDev(goals, nil)
		out.PointsPerGameStd = stat.StdDev(points, nil)
		out.ShotsPerGameStd = stat.StdDev(shots, nil)
		out.ShootingPctStd = stat.StdDev(shooting, nil)
	}
	return out
}

// GoalieSeasonStats aggregates a goalie's season rates.
func (s *Store) GoalieSeasonStats(ctx context.Context, goalieID int64, season int) (types.GoalieStats, error) {
	var rows []GoalieGameStat
	err := s.db.WithContext(ctx).
		Where("goalie_id = ? AND season = ?", goalieID, season).
		Find(&rows).Error
	if err != nil {
		return types.GoalieStats{}, fmt.Errorf("failed to load goalie game stats: %w", err)
	}
	if len(rows) == 0 {
		return types.GoalieStats{}, &types.InsufficientDataError{
			Entity: fmt.Sprintf("goalie %d", goalieID),
			Scope:  "season stats",
			Have:   0,
			Need:   1,
		}
	}
	return goalieRates(rows), nil
}

// GoalieMatchupStats aggregates a goalie's rates against one opponent.
func (s *Store) GoalieMatchupStats(ctx context.Context, goalieID, opponentTeamID int64, season int) (int, types.GoalieStats, error) {
	var rows []GoalieGameStat
	err := s.db.WithContext(ctx).
		Where("goalie_id = ? AND season = ? AND opponent_team_id = ?", goalieID, season, opponentTeamID).
		Find(&rows).Error
	if err != nil {
		return 0, types.GoalieStats{}, fmt.Errorf("failed to load goalie matchup stats: %w", err)
	}
	if len(rows) == 0 {
		return 0, types.GoalieStats{}, nil
	}
	return len(rows), goalieRates(rows), nil
}

func goalieRates(rows []GoalieGameStat) types.GoalieStats {
	var shots, goals, toi int
	for _, r := range rows {
		shots += r.ShotsAgainst
		goals += r.GoalsAgainst
		toi += r.TOISeconds
	}
	out := types.GoalieStats{GamesPlayed: len(rows)}
	if shots > 0 {
		out.SavePct = 1 - float64(goals)/float64(shots)
	}
	if toi > 0 {
		out.GAA = float64(goals) / (float64(toi) / 3600.0)
	}
	return out
}

// ShotEvents loads a skater's shot attempts for a season.
func (s *Store) ShotEvents(ctx context.Context, playerID int64, season int) ([]types.ShotEvent, error) {
	var rows []Shot
	err := s.db.WithContext(ctx).
		Where("shooter_id = ? AND season = ?", playerID, season).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load shot events: %w", err)
	}
	return toShotEvents(playerID, rows), nil
}

// GoalieShotsAgainst loads every shot a goalie faced in a season.
func (s *Store) GoalieShotsAgainst(ctx context.Context, goalieID int64, season int) ([]types.ShotEvent, error) {
	var rows []Shot
	err := s.db.WithContext(ctx).
		Where("goalie_id = ? AND season = ?", goalieID, season).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load shots against: %w", err)
	}
	return toShotEvents(goalieID, rows), nil
}

func toShotEvents(entityID int64, rows []Shot) []types.ShotEvent {
	events := make([]types.ShotEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, types.ShotEvent{
			EntityID: entityID,
			GameID:   r.GameID,
			X:        r.X,
			Y:        r.Y,
			Zone:     types.Zone(r.Zone),
			ShotType: types.ShotType(r.ShotType),
			IsGoal:   r.IsGoal,
		})
	}
	return events
}

// GameRows loads a skater's phase-bucketed lines joined with game metadata.
func (s *Store) GameRows(ctx context.Context, entityID int64, season int) ([]types.GameRow, error) {
	type joined struct {
		SkaterPhaseStat
		GameDate time.Time
		GameType int
	}
	var rows []joined
	err := s.db.WithContext(ctx).
		Table("skater_phase_stats").
		Select("skater_phase_stats.*, games.game_date, games.game_type").
		Joins("JOIN games ON games.id = skater_phase_stats.game_id").
		Where("skater_phase_stats.player_id = ? AND games.season = ?", entityID, season).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load phase stats: %w", err)
	}

	out := make([]types.GameRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.GameRow{
			EntityID: r.PlayerID,
			GameID:   r.GameID,
			GameDate: r.GameDate,
			GameType: types.GameType(r.GameType),
			Phase:    types.GamePhase(r.Phase),
			Goals:    r.Goals,
			Assists:  r.Assists,
			Shots:    r.Shots,
		})
	}
	return out, nil
}

// SeasonTotals computes independent season sums for reconciliation.
func (s *Store) SeasonTotals(ctx context.Context, entityID int64, season int) (*profiles.SeasonTotals, error) {
	var rows []SkaterGameStat
	err := s.db.WithContext(ctx).
		Where("player_id = ? AND season = ?", entityID, season).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load season totals: %w", err)
	}
	totals := &profiles.SeasonTotals{Games: len(rows)}
	for _, r := range rows {
		totals.Goals += r.Goals
		totals.Assists += r.Assists
		totals.Points += r.Goals + r.Assists
		totals.Shots += r.Shots
	}
	return totals, nil
}

// RecentGames returns a skater's last n games, newest first.
func (s *Store) RecentGames(ctx context.Context, playerID int64, n int) ([]types.RecentGame, error) {
	var rows []SkaterGameStat
	err := s.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("game_date DESC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent games: %w", err)
	}
	out := make([]types.RecentGame, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.RecentGame{
			GameID:   r.GameID,
			GameDate: r.GameDate,
			Goals:    r.Goals,
			Assists:  r.Assists,
			Shots:    r.Shots,
		})
	}
	return out, nil
}

// Roster returns the team's skaters and its most-used goalie.
func (s *Store) Roster(ctx context.Context, teamID int64, season int) ([]int64, int64, error) {
	var players []Player
	err := s.db.WithContext(ctx).
		Where("team_id = ? AND season = ?", teamID, season).
		Order("id").
		Find(&players).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load roster: %w", err)
	}

	var skaters []int64
	var goalies []int64
	for _, p := range players {
		if p.Position == "G" {
			goalies = append(goalies, p.ID)
		} else {
			skaters = append(skaters, p.ID)
		}
	}
	if len(goalies) == 0 {
		return nil, 0, &types.InsufficientDataError{
			Entity: fmt.Sprintf("team %d", teamID),
			Scope:  "goalies",
			Have:   0,
			Need:   1,
		}
	}

	starter := goalies[0]
	if len(goalies) > 1 {
		var most int
		for _, g := range goalies {
			var count int64
			if err := s.db.WithContext(ctx).Model(&GoalieGameStat{}).
				Where("goalie_id = ? AND season = ?", g, season).
				Count(&count).Error; err != nil {
				return nil, 0, fmt.Errorf("failed to count goalie games: %w", err)
			}
			if int(count) > most {
				most = int(count)
				starter = g
			}
		}
	}
	return skaters, starter, nil
}

// Lines returns the team's line assignments grouped by line number.
func (s *Store) Lines(ctx context.Context, teamID int64, season int) ([][]int64, error) {
	var rows []LineAssignment
	err := s.db.WithContext(ctx).
		Where("team_id = ? AND season = ?", teamID, season).
		Order("line_number, player_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load line assignments: %w", err)
	}
	byLine := make(map[int][]int64)
	var numbers []int
	for _, r := range rows {
		if _, ok := byLine[r.LineNumber]; !ok {
			numbers = append(numbers, r.LineNumber)
		}
		byLine[r.LineNumber] = append(byLine[r.LineNumber], r.PlayerID)
	}
	sort.Ints(numbers)
	lines := make([][]int64, 0, len(numbers))
	for _, num := range numbers {
		lines = append(lines, byLine[num])
	}
	return lines, nil
}

// SharedIce loads a team's pair production records.
func (s *Store) SharedIce(ctx context.Context, teamID int64, season int) ([]types.SharedIceRecord, error) {
	var rows []SharedIceStint
	err := s.db.WithContext(ctx).
		Where("team_id = ? AND season = ?", teamID, season).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load shared ice stints: %w", err)
	}
	out := make([]types.SharedIceRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.SharedIceRecord{
			PlayerA:     r.PlayerA,
			PlayerB:     r.PlayerB,
			Phase:       types.GamePhase(r.Phase),
			TOISeconds:  r.TOISeconds,
			JointGoals:  r.JointGoals,
			JointShots:  r.JointShots,
			JointXG:     r.JointXG,
			ExpectedXGA: r.ExpectedXGA,
			ExpectedXGB: r.ExpectedXGB,
		})
	}
	return out, nil
}

// Schedule derives a team's rest and workload context going into gameDate.
func (s *Store) Schedule(ctx context.Context, teamID int64, gameDate time.Time) (types.ScheduleContext, error) {
	var games []Game
	err := s.db.WithContext(ctx).
		Where("(home_team_id = ? OR away_team_id = ?) AND game_date < ?", teamID, teamID, gameDate).
		Order("game_date DESC").
		Limit(10).
		Find(&games).Error
	if err != nil {
		return types.ScheduleContext{}, fmt.Errorf("failed to load schedule: %w", err)
	}

	sc := types.ScheduleContext{TeamID: teamID, GameDate: gameDate, DaysRest: 7}
	if len(games) > 0 {
		sc.DaysRest = int(gameDate.Sub(games[0].GameDate).Hours() / 24)
		if sc.DaysRest < 0 {
			sc.DaysRest = 0
		}
		sc.BackToBack = sc.DaysRest == 0
	}
	windowStart := gameDate.AddDate(0, 0, -7)
	for _, g := range games {
		if !g.GameDate.Before(windowStart) {
			sc.GamesInWindow++
		}
	}
	return sc, nil
}

// LeagueZoneAverages aggregates league-wide goal rates per zone for a season.
func (s *Store) LeagueZoneAverages(ctx context.Context, season int) (map[types.Zone]float64, error) {
	type zoneAgg struct {
		Zone  string
		Shots int64
		Goals int64
	}
	var aggs []zoneAgg
	err := s.db.WithContext(ctx).
		Model(&Shot{}).
		Select("zone, COUNT(*) AS shots, COUNT(*) FILTER (WHERE is_goal) AS goals").
		Where("season = ? AND zone <> ''", season).
		Group("zone").
		Scan(&aggs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate league zone averages: %w", err)
	}
	out := make(map[types.Zone]float64, len(aggs))
	for _, a := range aggs {
		if a.Shots > 0 {
			out[types.Zone(a.Zone)] = float64(a.Goals) / float64(a.Shots)
		}
	}
	return out, nil
}
