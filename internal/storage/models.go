// Package storage is the read-only query surface over the ingested stats
// database. The ingest pipeline owns the schema; this package only reads.
package storage

import (
	"time"
)

// Player is a roster entry.
type Player struct {
	ID       int64  `gorm:"primaryKey"`
	TeamID   int64  `gorm:"index"`
	Name     string
	Position string // C, LW, RW, D, G
	Season   int    `gorm:"index"`
}

func (Player) TableName() string { return "players" }

// Game is one scheduled or completed game.
type Game struct {
	ID         int64 `gorm:"primaryKey"`
	Season     int   `gorm:"index"`
	GameDate   time.Time
	GameType   int
	HomeTeamID int64
	AwayTeamID int64
}

func (Game) TableName() string { return "games" }

// SkaterGameStat is one skater's full-game line.
type SkaterGameStat struct {
	PlayerID       int64 `gorm:"index:idx_skater_game,priority:1"`
	GameID         int64 `gorm:"index:idx_skater_game,priority:2"`
	OpponentTeamID int64 `gorm:"index"`
	Season         int   `gorm:"index"`
	GameDate       time.Time
	Goals          int
	Assists        int
	Shots          int
	TOISeconds     int
}

func (SkaterGameStat) TableName() string { return "skater_game_stats" }

// SkaterPhaseStat is a skater's line bucketed by game phase, precomputed by
// the ingest pipeline from play-by-play.
type SkaterPhaseStat struct {
	PlayerID int64  `gorm:"index:idx_phase_player_game,priority:1"`
	GameID   int64  `gorm:"index:idx_phase_player_game,priority:2"`
	Phase    string
	Goals    int
	Assists  int
	Shots    int
}

func (SkaterPhaseStat) TableName() string { return "skater_phase_stats" }

// GoalieGameStat is one goalie's full-game line.
type GoalieGameStat struct {
	GoalieID       int64 `gorm:"index"`
	GameID         int64
	OpponentTeamID int64 `gorm:"index"`
	Season         int   `gorm:"index"`
	ShotsAgainst   int
	GoalsAgainst   int
	TOISeconds     int
}

func (GoalieGameStat) TableName() string { return "goalie_game_stats" }

// Shot is one shot attempt from play-by-play. Zone is classified at ingest;
// rows predating zone classification carry coordinates only.
type Shot struct {
	ID        int64 `gorm:"primaryKey"`
	GameID    int64 `gorm:"index"`
	ShooterID int64 `gorm:"index"`
	GoalieID  int64 `gorm:"index"`
	Season    int   `gorm:"index"`
	X         *float64
	Y         *float64
	Zone      string
	ShotType  string
	IsGoal    bool
}

func (Shot) TableName() string { return "shots" }

// LineAssignment places a player on a team's line for a season.
type LineAssignment struct {
	TeamID     int64 `gorm:"index"`
	Season     int   `gorm:"index"`
	LineNumber int
	PlayerID   int64
}

func (LineAssignment) TableName() string { return "line_assignments" }

// SharedIceStint accumulates a player pair's joint production within one
// game phase, precomputed by the ingest pipeline from shift charts.
type SharedIceStint struct {
	TeamID      int64 `gorm:"index"`
	Season      int   `gorm:"index"`
	PlayerA     int64
	PlayerB     int64
	Phase       string
	TOISeconds  int
	JointGoals  int
	JointShots  int
	JointXG     float64
	ExpectedXGA float64
	ExpectedXGB float64
}

func (SharedIceStint) TableName() string { return "shared_ice_stints" }
