package types

import (
	"fmt"
	"strings"
	"time"
)

// Zone identifies a fixed region of the offensive end of the ice. Zones are
// ordered roughly by scoring danger; classification is a static coordinate
// lookup, never derived from the data itself.
type Zone string

const (
	ZoneCrease      Zone = "crease"
	ZoneInnerSlot   Zone = "inner_slot"
	ZoneSlot        Zone = "slot"
	ZoneHighSlot    Zone = "high_slot"
	ZoneLeftCircle  Zone = "left_circle"
	ZoneRightCircle Zone = "right_circle"
	ZoneLeftWing    Zone = "left_wing"
	ZoneRightWing   Zone = "right_wing"
	ZoneLeftPoint   Zone = "left_point"
	ZoneRightPoint  Zone = "right_point"
	ZoneBehindNet   Zone = "behind_net"
	ZoneNeutral     Zone = "neutral_zone"
	ZoneUnknown     Zone = "unknown"
)

// AllZones lists every zone the classifier can produce.
var AllZones = []Zone{
	ZoneCrease, ZoneInnerSlot, ZoneSlot, ZoneHighSlot,
	ZoneLeftCircle, ZoneRightCircle, ZoneLeftWing, ZoneRightWing,
	ZoneLeftPoint, ZoneRightPoint, ZoneBehindNet, ZoneNeutral, ZoneUnknown,
}

// ShotType identifies the release type of a shot attempt.
type ShotType string

const (
	ShotWrist      ShotType = "wrist"
	ShotSlap       ShotType = "slap"
	ShotSnap       ShotType = "snap"
	ShotBackhand   ShotType = "backhand"
	ShotTipIn      ShotType = "tip_in"
	ShotDeflected  ShotType = "deflected"
	ShotWrapAround ShotType = "wrap_around"
	ShotUnknown    ShotType = "unknown"
)

// SeasonPhase tags a game by where it falls in the season. Regular-season
// games are split into thirds by chronological game count; playoffs are
// selected by game type, never by date arithmetic.
type SeasonPhase string

const (
	SeasonEarly    SeasonPhase = "early_season"
	SeasonMid      SeasonPhase = "mid_season"
	SeasonLate     SeasonPhase = "late_season"
	SeasonPlayoffs SeasonPhase = "playoffs"
)

// GamePhase tags a moment within a game.
type GamePhase string

const (
	GameEarly    GamePhase = "early_game"
	GameMid      GamePhase = "mid_game"
	GameLate     GamePhase = "late_game"
	GameOvertime GamePhase = "overtime"
)

// RegulationPhases are the phases simulated before any overtime.
var RegulationPhases = []GamePhase{GameEarly, GameMid, GameLate}

// ScoringPhases are every phase a goal can be scored in play, in the order
// phase-indexed arrays use. Shootout deciders fall outside them.
var ScoringPhases = []GamePhase{GameEarly, GameMid, GameLate, GameOvertime}

// GameType distinguishes regular season from playoff games.
type GameType int

const (
	GameTypePreseason GameType = 1
	GameTypeRegular   GameType = 2
	GameTypePlayoff   GameType = 3
)

// ShotEvent is a single shot attempt record as delivered by the data layer.
// Either coordinates or a pre-classified zone must be present.
type ShotEvent struct {
	EntityID int64
	GameID   int64
	X        *float64
	Y        *float64
	Zone     Zone
	ShotType ShotType
	IsGoal   bool
}

// ZoneStats accumulates shot outcomes for one zone.
type ZoneStats struct {
	Shots         int              `json:"shots"`
	Goals         int              `json:"goals"`
	ExpectedGoals float64          `json:"expected_goals"`
	ShotTypes     map[ShotType]int `json:"shot_types"`
}

// GoalRate returns goals per shot for the zone.
func (z *ZoneStats) GoalRate() float64 {
	if z.Shots == 0 {
		return 0
	}
	return float64(z.Goals) / float64(z.Shots)
}

// ZoneProfile holds an entity's per-zone shot statistics for one scope
// (player/season, team/season, or goalie/season as shots against).
type ZoneProfile struct {
	EntityID   int64               `json:"entity_id"`
	Season     int                 `json:"season"`
	Zones      map[Zone]*ZoneStats `json:"zones"`
	TotalShots int                 `json:"total_shots"`
	TotalGoals int                 `json:"total_goals"`
	TotalXG    float64             `json:"total_xg"`
}

// ZoneDistribution returns the share of total shots taken from each zone.
func (p *ZoneProfile) ZoneDistribution() map[Zone]float64 {
	dist := make(map[Zone]float64, len(p.Zones))
	if p.TotalShots == 0 {
		return dist
	}
	for zone, stats := range p.Zones {
		dist[zone] = float64(stats.Shots) / float64(p.TotalShots)
	}
	return dist
}

// GoalRate returns goals per shot in one zone, 0 when the zone is empty.
func (p *ZoneProfile) GoalRate(zone Zone) float64 {
	stats, ok := p.Zones[zone]
	if !ok {
		return 0
	}
	return stats.GoalRate()
}

// SegmentKey addresses one cell of a SegmentProfile.
type SegmentKey struct {
	Season SeasonPhase `json:"season_phase"`
	Game   GamePhase   `json:"game_phase"`
}

// MarshalText lets SegmentKey serve as a JSON map key.
func (k SegmentKey) MarshalText() ([]byte, error) {
	return []byte(string(k.Season) + "/" + string(k.Game)), nil
}

// UnmarshalText parses the "season/game" map key form.
func (k *SegmentKey) UnmarshalText(text []byte) error {
	i := strings.IndexByte(string(text), '/')
	if i < 0 {
		return fmt.Errorf("malformed segment key %q", text)
	}
	k.Season = SeasonPhase(text[:i])
	k.Game = GamePhase(text[i+1:])
	return nil
}

// SegmentStats are counting stats for one (season phase, game phase) cell.
type SegmentStats struct {
	Games   int `json:"games"`
	Goals   int `json:"goals"`
	Assists int `json:"assists"`
	Points  int `json:"points"`
	Shots   int `json:"shots"`
}

// PointsPerGame returns the points rate for the cell.
func (s *SegmentStats) PointsPerGame() float64 {
	if s.Games == 0 {
		return 0
	}
	return float64(s.Points) / float64(s.Games)
}

// ShootingPct returns goals per shot for the cell.
func (s *SegmentStats) ShootingPct() float64 {
	if s.Shots == 0 {
		return 0
	}
	return float64(s.Goals) / float64(s.Shots)
}

// ReconciliationWarning records a mismatch between aggregated segment cells
// and the independently computed season totals. Warnings are attached to the
// profile, never raised; a data-quality note must not block downstream use.
type ReconciliationWarning struct {
	Stat      string `json:"stat"`
	Expected  int    `json:"expected"`
	Aggregate int    `json:"aggregate"`
}

// SegmentProfile holds an entity's stats split by season and game phase.
type SegmentProfile struct {
	EntityID int64                       `json:"entity_id"`
	Season   int                         `json:"season"`
	Cells    map[SegmentKey]*SegmentStats `json:"cells"`
	Warnings []ReconciliationWarning     `json:"warnings,omitempty"`
}

// Cell returns the stats for a key, creating the cell if absent.
func (p *SegmentProfile) Cell(key SegmentKey) *SegmentStats {
	if p.Cells == nil {
		p.Cells = make(map[SegmentKey]*SegmentStats)
	}
	cell, ok := p.Cells[key]
	if !ok {
		cell = &SegmentStats{}
		p.Cells[key] = cell
	}
	return cell
}

// Reconciled reports whether all segment cells summed back to season totals.
func (p *SegmentProfile) Reconciled() bool {
	return len(p.Warnings) == 0
}

// SkaterStats is the closed set of rate statistics tracked for a skater,
// either over a full season (general) or against one opponent (matchup).
// Standard deviations are populated only on general profiles; they feed the
// similarity z-scores in the matchup weighting engine.
type SkaterStats struct {
	GamesPlayed    int     `json:"games_played"`
	GoalsPerGame   float64 `json:"goals_per_game"`
	AssistsPerGame float64 `json:"assists_per_game"`
	PointsPerGame  float64 `json:"points_per_game"`
	ShotsPerGame   float64 `json:"shots_per_game"`
	ShootingPct    float64 `json:"shooting_pct"`
	TOIPerGame     float64 `json:"toi_per_game"`

	GoalsPerGameStd  float64 `json:"goals_per_game_std,omitempty"`
	PointsPerGameStd float64 `json:"points_per_game_std,omitempty"`
	ShotsPerGameStd  float64 `json:"shots_per_game_std,omitempty"`
	ShootingPctStd   float64 `json:"shooting_pct_std,omitempty"`
}

// GoalieStats is the closed set of rate statistics tracked for a goalie.
type GoalieStats struct {
	GamesPlayed int     `json:"games_played"`
	SavePct     float64 `json:"save_pct"`
	GAA         float64 `json:"gaa"`

	SavePctStd float64 `json:"save_pct_std,omitempty"`
	GAAStd     float64 `json:"gaa_std,omitempty"`
}

// MatchupProfile captures how an entity has performed against one opponent
// and how much that history should be trusted over the general sample.
// GeneralWeight and MatchupWeight always sum to exactly 1.
type MatchupProfile struct {
	EntityID   int64 `json:"entity_id"`
	OpponentID int64 `json:"opponent_id"`
	Season     int   `json:"season"`

	SampleSize int         `json:"sample_size"`
	General    SkaterStats `json:"general"`
	Matchup    SkaterStats `json:"matchup"`

	Similarity    float64 `json:"similarity_score"`
	MatchupWeight float64 `json:"matchup_weight"`
	GeneralWeight float64 `json:"general_weight"`
}

// GameRow is one entity-game stat line, the input to segment profiling.
type GameRow struct {
	EntityID int64
	GameID   int64
	GameDate time.Time
	GameType GameType
	// Stats credited to the game phase the events fell in. Rows arrive
	// pre-bucketed per phase from the data layer.
	Phase   GamePhase
	Goals   int
	Assists int
	Shots   int
}

// SharedIceRecord is an on-ice outcome sample for a player pair within one
// game phase, the input to synergy scoring.
type SharedIceRecord struct {
	PlayerA     int64
	PlayerB     int64
	Phase       GamePhase
	TOISeconds  int
	JointGoals  int
	JointShots  int
	JointXG     float64
	ExpectedXGA float64 // player A's individual xG prorated to the shared TOI
	ExpectedXGB float64 // player B's, same proration
}

// RecentGame is one game's stat line from an entity's recent form window,
// newest first.
type RecentGame struct {
	GameID   int64
	GameDate time.Time
	Goals    int
	Assists  int
	Shots    int
}

// ScheduleContext describes an entity's schedule load going into a game.
type ScheduleContext struct {
	TeamID        int64
	GameDate      time.Time
	DaysRest      int
	GamesInWindow int // games played in the trailing 7 days
	BackToBack    bool
}

// AdjustmentSet carries the three situational multipliers applied to a
// resolved goal probability. Each is centered at 1.0 and clamped to its own
// bound before it gets here; the product is intentionally not re-normalized.
type AdjustmentSet struct {
	Clutch   float64 `json:"clutch"`
	Fatigue  float64 `json:"fatigue"`
	Momentum float64 `json:"momentum"`
}

// NeutralAdjustments returns an AdjustmentSet with no effect.
func NeutralAdjustments() AdjustmentSet {
	return AdjustmentSet{Clutch: 1.0, Fatigue: 1.0, Momentum: 1.0}
}

// Product returns the combined multiplier.
func (a AdjustmentSet) Product() float64 {
	return a.Clutch * a.Fatigue * a.Momentum
}

// SimulationMode selects single game or playoff series simulation.
type SimulationMode string

const (
	ModeSingleGame SimulationMode = "single_game"
	ModeSeries     SimulationMode = "series"
)

// SimulationConfig is the immutable input to one simulation run.
type SimulationConfig struct {
	// RunID identifies the run; assigned by the caller so progress can be
	// subscribed to before the first trial finishes. Empty means the
	// engine assigns one.
	RunID string `json:"run_id,omitempty"`

	HomeTeamID int64          `json:"home_team_id"`
	AwayTeamID int64          `json:"away_team_id"`
	Season     int            `json:"season"`
	Iterations int            `json:"iterations"`
	Mode       SimulationMode `json:"mode"`

	// Seed fixes the random draw sequence; nil means derive from the clock.
	Seed *int64 `json:"seed,omitempty"`

	UseSynergy  bool `json:"use_synergy"`
	UseClutch   bool `json:"use_clutch"`
	UseFatigue  bool `json:"use_fatigue"`
	UseMomentum bool `json:"use_momentum"`

	SegmentWeights map[GamePhase]float64 `json:"segment_weights,omitempty"`
	VarianceFactor float64               `json:"variance_factor"`

	// SeriesWins applies in series mode (first to N wins).
	SeriesWins int `json:"series_wins,omitempty"`

	// Workers caps the trial worker pool; 0 means one per CPU. Worker
	// count never changes the result for a fixed seed.
	Workers int `json:"workers,omitempty"`
}
