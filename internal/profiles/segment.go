package profiles

import (
	"sort"

	"github.com/stitts-dev/hockey-sim/internal/types"
	"github.com/stitts-dev/hockey-sim/pkg/logger"
)

// PhaseOf classifies a moment in a game by period and elapsed seconds within
// that period. Period 4 and beyond is overtime.
func PhaseOf(period int, elapsed int) types.GamePhase {
	switch {
	case period <= 1:
		return types.GameEarly
	case period == 2:
		if elapsed < 600 {
			return types.GameEarly
		}
		return types.GameMid
	case period == 3:
		if elapsed < 600 {
			return types.GameMid
		}
		return types.GameLate
	default:
		return types.GameOvertime
	}
}

// SeasonTotals are independently computed season sums used to cross-check
// the segment split.
type SeasonTotals struct {
	Games   int
	Goals   int
	Assists int
	Points  int
	Shots   int
}

// BuildSegmentProfile splits an entity's game rows by season phase and game
// phase. Regular-season games are ordered chronologically and divided into
// thirds by game count, any remainder going to the late tercile; playoff
// games are selected by game type alone. When totals are supplied, the
// aggregated cells are reconciled against them and mismatches recorded as
// warnings on the profile.
func BuildSegmentProfile(entityID int64, season int, rows []types.GameRow, totals *SeasonTotals) *types.SegmentProfile {
	profile := &types.SegmentProfile{
		EntityID: entityID,
		Season:   season,
		Cells:    make(map[types.SegmentKey]*types.SegmentStats),
	}

	byGame := make(map[int64][]types.GameRow)
	var regularIDs []int64
	gameDates := make(map[int64]int64)
	playoff := make(map[int64]bool)
	for _, row := range rows {
		if _, seen := byGame[row.GameID]; !seen {
			if row.GameType == types.GameTypePlayoff {
				playoff[row.GameID] = true
			} else {
				regularIDs = append(regularIDs, row.GameID)
				gameDates[row.GameID] = row.GameDate.UnixNano()
			}
		}
		byGame[row.GameID] = append(byGame[row.GameID], row)
	}

	sort.Slice(regularIDs, func(i, j int) bool {
		di, dj := gameDates[regularIDs[i]], gameDates[regularIDs[j]]
		if di != dj {
			return di < dj
		}
		return regularIDs[i] < regularIDs[j]
	})

	seasonPhaseOf := make(map[int64]types.SeasonPhase, len(byGame))
	third := len(regularIDs) / 3
	for i, id := range regularIDs {
		switch {
		case i < third:
			seasonPhaseOf[id] = types.SeasonEarly
		case i < 2*third:
			seasonPhaseOf[id] = types.SeasonMid
		default:
			seasonPhaseOf[id] = types.SeasonLate
		}
	}
	for id := range playoff {
		seasonPhaseOf[id] = types.SeasonPlayoffs
	}

	gamesPerPhase := make(map[types.SeasonPhase]map[int64]bool)
	for gameID, gameRows := range byGame {
		sp := seasonPhaseOf[gameID]
		if gamesPerPhase[sp] == nil {
			gamesPerPhase[sp] = make(map[int64]bool)
		}
		gamesPerPhase[sp][gameID] = true
		for _, row := range gameRows {
			cell := profile.Cell(types.SegmentKey{Season: sp, Game: row.Phase})
			cell.Goals += row.Goals
			cell.Assists += row.Assists
			cell.Points += row.Goals + row.Assists
			cell.Shots += row.Shots
		}
	}
	// A game counts once per season phase regardless of how many game
	// phases it produced rows in.
	for sp, games := range gamesPerPhase {
		for _, gp := range append(types.RegulationPhases, types.GameOvertime) {
			key := types.SegmentKey{Season: sp, Game: gp}
			if cell, ok := profile.Cells[key]; ok {
				cell.Games = len(games)
			}
		}
	}

	if totals != nil {
		reconcile(profile, totals, len(byGame))
	}
	if len(profile.Warnings) > 0 {
		logger.WithEntityContext(entityID, season).
			WithField("warnings", len(profile.Warnings)).
			Warn("Segment profile did not reconcile with season totals")
	}
	return profile
}

func reconcile(profile *types.SegmentProfile, totals *SeasonTotals, games int) {
	var goals, assists, points, shots int
	for _, cell := range profile.Cells {
		goals += cell.Goals
		assists += cell.Assists
		points += cell.Points
		shots += cell.Shots
	}
	check := func(stat string, expected, aggregate int) {
		if expected != aggregate {
			profile.Warnings = append(profile.Warnings, types.ReconciliationWarning{
				Stat: stat, Expected: expected, Aggregate: aggregate,
			})
		}
	}
	check("games", totals.Games, games)
	check("goals", totals.Goals, goals)
	check("assists", totals.Assists, assists)
	check("points", totals.Points, points)
	check("shots", totals.Shots, shots)
	sort.Slice(profile.Warnings, func(i, j int) bool {
		return profile.Warnings[i].Stat < profile.Warnings[j].Stat
	})
}

// PhaseStats sums an entity's cells across season phases for one game phase.
func PhaseStats(p *types.SegmentProfile, phase types.GamePhase) types.SegmentStats {
	var out types.SegmentStats
	for key, cell := range p.Cells {
		if key.Game != phase {
			continue
		}
		out.Games += cell.Games
		out.Goals += cell.Goals
		out.Assists += cell.Assists
		out.Points += cell.Points
		out.Shots += cell.Shots
	}
	return out
}
