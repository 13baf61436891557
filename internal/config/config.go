package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/stitts-dev/hockey-sim/internal/types"
)

// Config is the full service configuration, loaded from file and environment.
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`

	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Simulation SimulationConfig `mapstructure:"simulation"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// SimulationConfig holds every model constant the engine depends on. All of
// these ship with defaults matching the calibrated model; overriding them is
// for experimentation, and Validate rejects values the engine cannot honor.
type SimulationConfig struct {
	DefaultIterations int `mapstructure:"default_iterations"`
	MaxIterations     int `mapstructure:"max_iterations"`
	Workers           int `mapstructure:"workers"`

	BaseShotsPerGame  float64 `mapstructure:"base_shots_per_game"`
	HomeIceAdvantage  float64 `mapstructure:"home_ice_advantage"`
	LeagueShootingPct float64 `mapstructure:"league_shooting_pct"`
	LeagueSavePct     float64 `mapstructure:"league_save_pct"`
	VarianceFactor    float64 `mapstructure:"variance_factor"`

	// Probability clamp applied to every resolved goal probability, after
	// all modifiers.
	MinGoalProb float64 `mapstructure:"min_goal_prob"`
	MaxGoalProb float64 `mapstructure:"max_goal_prob"`

	// Per-adjustment bound: clutch, fatigue and momentum multipliers are
	// each clamped to [1-bound, 1+bound] before they reach the engine.
	AdjustmentBound float64 `mapstructure:"adjustment_bound"`

	MinMatchupGames  int `mapstructure:"min_matchup_games"`
	FullMatchupGames int `mapstructure:"full_matchup_games"`
	MinShotsPerZone  int `mapstructure:"min_shots_per_zone"`
	MinRecentGames   int `mapstructure:"min_recent_games"`

	PeriodModifiers []float64 `mapstructure:"period_modifiers"`

	OvertimeShots  int `mapstructure:"overtime_shots"`
	ShootoutRounds int `mapstructure:"shootout_rounds"`
	// Sudden-death shootout rounds simulated past the initial set before
	// the trial is recorded as a draw.
	ShootoutMaxExtra int `mapstructure:"shootout_max_extra"`

	SeriesWins int `mapstructure:"series_wins"`

	// Model tables. A config file may override them wholesale; absent
	// tables are filled with the calibrated defaults in Load, and Validate
	// rejects partial or out-of-range overrides.
	ZoneGoalProbs     map[types.Zone]float64      `mapstructure:"zone_goal_probs"`
	ShotTypeModifiers map[types.ShotType]float64  `mapstructure:"shot_type_modifiers"`
	RestModifiers     map[int]float64             `mapstructure:"rest_modifiers"`
	WorkloadModifiers map[int]float64             `mapstructure:"workload_modifiers"`
	SegmentWeights    map[types.GamePhase]float64 `mapstructure:"segment_weights"`

	// Momentum classification thresholds on recent-vs-season deviations,
	// and the multipliers each classification maps to.
	MomentumPPGThreshold      float64 `mapstructure:"momentum_ppg_threshold"`
	MomentumShootingThreshold float64 `mapstructure:"momentum_shooting_threshold"`
	MomentumHotHigh           float64 `mapstructure:"momentum_hot_high"`
	MomentumHotLow            float64 `mapstructure:"momentum_hot_low"`
	MomentumColdLow           float64 `mapstructure:"momentum_cold_low"`
	MomentumColdHigh          float64 `mapstructure:"momentum_cold_high"`
}

// DefaultZoneGoalProbs returns the calibrated baseline goal probability per
// shot by zone, before any shooter, goalie or situational modifier.
func DefaultZoneGoalProbs() map[types.Zone]float64 {
	return map[types.Zone]float64{
		types.ZoneCrease:      0.35,
		types.ZoneInnerSlot:   0.25,
		types.ZoneSlot:        0.15,
		types.ZoneLeftCircle:  0.08,
		types.ZoneRightCircle: 0.08,
		types.ZoneHighSlot:    0.05,
		types.ZoneLeftWing:    0.03,
		types.ZoneRightWing:   0.03,
		types.ZoneLeftPoint:   0.02,
		types.ZoneRightPoint:  0.02,
		types.ZoneBehindNet:   0.01,
		types.ZoneNeutral:     0.01,
		types.ZoneUnknown:     0.05,
	}
}

// DefaultShotTypeModifiers returns the multipliers that scale the baseline
// zone probability by release type.
func DefaultShotTypeModifiers() map[types.ShotType]float64 {
	return map[types.ShotType]float64{
		types.ShotWrist:      1.00,
		types.ShotSlap:       0.95,
		types.ShotSnap:       1.05,
		types.ShotBackhand:   0.85,
		types.ShotTipIn:      1.20,
		types.ShotDeflected:  1.15,
		types.ShotWrapAround: 0.70,
		types.ShotUnknown:    1.00,
	}
}

// DefaultRestModifiers maps days of rest to a fatigue multiplier. Missing
// keys mean fully rested (1.0).
func DefaultRestModifiers() map[int]float64 {
	return map[int]float64{
		0: 0.92,
		1: 0.97,
		2: 0.99,
	}
}

// DefaultWorkloadModifiers maps games played in the trailing 7 days to a
// multiplier. Schedules denser than the largest key saturate at its value.
func DefaultWorkloadModifiers() map[int]float64 {
	return map[int]float64{
		3: 0.98,
		4: 0.95,
		5: 0.92,
	}
}

// DefaultSegmentWeights scale expected goals by game phase; late-game
// pressure raises event weight, early-game feel lowers it.
func DefaultSegmentWeights() map[types.GamePhase]float64 {
	return map[types.GamePhase]float64{
		types.GameEarly:    0.8,
		types.GameMid:      1.0,
		types.GameLate:     1.2,
		types.GameOvertime: 1.2,
	}
}

// Load reads configuration from config.yaml (if present) and environment
// variables prefixed with HOCKEYSIM, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("HOCKEYSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Simulation.fillTableDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// fillTableDefaults supplies the calibrated model tables for any table the
// config file did not override.
func (s *SimulationConfig) fillTableDefaults() {
	if s.ZoneGoalProbs == nil {
		s.ZoneGoalProbs = DefaultZoneGoalProbs()
	}
	if s.ShotTypeModifiers == nil {
		s.ShotTypeModifiers = DefaultShotTypeModifiers()
	}
	if s.RestModifiers == nil {
		s.RestModifiers = DefaultRestModifiers()
	}
	if s.WorkloadModifiers == nil {
		s.WorkloadModifiers = DefaultWorkloadModifiers()
	}
	if s.SegmentWeights == nil {
		s.SegmentWeights = DefaultSegmentWeights()
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "hockey")
	v.SetDefault("database.name", "hockey_stats")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "1h")

	v.SetDefault("simulation.default_iterations", 10000)
	v.SetDefault("simulation.max_iterations", 100000)
	v.SetDefault("simulation.workers", 0)
	v.SetDefault("simulation.base_shots_per_game", 30.0)
	v.SetDefault("simulation.home_ice_advantage", 1.03)
	v.SetDefault("simulation.league_shooting_pct", 0.10)
	v.SetDefault("simulation.league_save_pct", 0.91)
	v.SetDefault("simulation.variance_factor", 0.15)
	v.SetDefault("simulation.min_goal_prob", 0.001)
	v.SetDefault("simulation.max_goal_prob", 0.95)
	v.SetDefault("simulation.adjustment_bound", 0.15)
	v.SetDefault("simulation.min_matchup_games", 3)
	v.SetDefault("simulation.full_matchup_games", 10)
	v.SetDefault("simulation.min_shots_per_zone", 5)
	v.SetDefault("simulation.min_recent_games", 5)
	v.SetDefault("simulation.period_modifiers", []float64{1.0, 0.97, 0.95})
	v.SetDefault("simulation.overtime_shots", 8)
	v.SetDefault("simulation.shootout_rounds", 3)
	v.SetDefault("simulation.shootout_max_extra", 10)
	v.SetDefault("simulation.series_wins", 4)
	v.SetDefault("simulation.momentum_ppg_threshold", 0.20)
	v.SetDefault("simulation.momentum_shooting_threshold", 0.15)
	v.SetDefault("simulation.momentum_hot_high", 1.10)
	v.SetDefault("simulation.momentum_hot_low", 1.05)
	v.SetDefault("simulation.momentum_cold_low", 0.95)
	v.SetDefault("simulation.momentum_cold_high", 0.90)
}

// Validate rejects configuration the engine cannot run with.
func (c *Config) Validate() error {
	s := c.Simulation
	if s.DefaultIterations <= 0 {
		return &types.ConfigurationError{Field: "simulation.default_iterations", Reason: "must be positive"}
	}
	if s.MaxIterations < s.DefaultIterations {
		return &types.ConfigurationError{Field: "simulation.max_iterations", Reason: "must be >= default_iterations"}
	}
	if s.MinGoalProb <= 0 || s.MinGoalProb >= s.MaxGoalProb {
		return &types.ConfigurationError{Field: "simulation.min_goal_prob", Reason: "must be in (0, max_goal_prob)"}
	}
	if s.MaxGoalProb >= 1 {
		return &types.ConfigurationError{Field: "simulation.max_goal_prob", Reason: "must be below 1"}
	}
	if s.AdjustmentBound < 0 || s.AdjustmentBound >= 1 {
		return &types.ConfigurationError{Field: "simulation.adjustment_bound", Reason: "must be in [0, 1)"}
	}
	if s.MinMatchupGames <= 0 || s.FullMatchupGames < s.MinMatchupGames {
		return &types.ConfigurationError{Field: "simulation.full_matchup_games", Reason: "must be >= min_matchup_games"}
	}
	if s.LeagueShootingPct <= 0 || s.LeagueShootingPct >= 1 {
		return &types.ConfigurationError{Field: "simulation.league_shooting_pct", Reason: "must be in (0, 1)"}
	}
	if s.LeagueSavePct <= 0 || s.LeagueSavePct >= 1 {
		return &types.ConfigurationError{Field: "simulation.league_save_pct", Reason: "must be in (0, 1)"}
	}
	if len(s.PeriodModifiers) != 3 {
		return &types.ConfigurationError{Field: "simulation.period_modifiers", Reason: "must list exactly 3 periods"}
	}
	if s.SeriesWins <= 0 {
		return &types.ConfigurationError{Field: "simulation.series_wins", Reason: "must be positive"}
	}
	for _, zone := range types.AllZones {
		if p, ok := s.ZoneGoalProbs[zone]; !ok || p <= 0 || p >= 1 {
			return &types.ConfigurationError{Field: "simulation.zone_goal_probs", Reason: fmt.Sprintf("zone %q needs a probability in (0, 1)", zone)}
		}
	}
	for st, m := range s.ShotTypeModifiers {
		if m <= 0 {
			return &types.ConfigurationError{Field: "simulation.shot_type_modifiers", Reason: fmt.Sprintf("shot type %q needs a positive multiplier", st)}
		}
	}
	for _, table := range []struct {
		field string
		mods  map[int]float64
	}{
		{"simulation.rest_modifiers", s.RestModifiers},
		{"simulation.workload_modifiers", s.WorkloadModifiers},
	} {
		for days, m := range table.mods {
			if days < 0 || m <= 0 || m > 1 {
				return &types.ConfigurationError{Field: table.field, Reason: "multipliers must be in (0, 1] with non-negative keys"}
			}
		}
	}
	for _, phase := range []types.GamePhase{types.GameEarly, types.GameMid, types.GameLate, types.GameOvertime} {
		if w, ok := s.SegmentWeights[phase]; !ok || w <= 0 {
			return &types.ConfigurationError{Field: "simulation.segment_weights", Reason: fmt.Sprintf("phase %q needs a positive weight", phase)}
		}
	}
	if s.MomentumPPGThreshold <= 0 || s.MomentumShootingThreshold <= 0 {
		return &types.ConfigurationError{Field: "simulation.momentum_ppg_threshold", Reason: "momentum thresholds must be positive"}
	}
	if s.MomentumHotLow < 1 || s.MomentumHotHigh < s.MomentumHotLow {
		return &types.ConfigurationError{Field: "simulation.momentum_hot_high", Reason: "hot modifiers must satisfy 1 <= hot_low <= hot_high"}
	}
	if s.MomentumColdLow > 1 || s.MomentumColdHigh > s.MomentumColdLow || s.MomentumColdHigh <= 0 {
		return &types.ConfigurationError{Field: "simulation.momentum_cold_high", Reason: "cold modifiers must satisfy 0 < cold_high <= cold_low <= 1"}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &types.ConfigurationError{Field: "server.port", Reason: "must be a valid port"}
	}
	return nil
}

// DSN renders the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}
