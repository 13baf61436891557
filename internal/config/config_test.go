package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/hockey-sim/internal/types"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10000, cfg.Simulation.DefaultIterations)
	assert.Equal(t, 100000, cfg.Simulation.MaxIterations)
	assert.Equal(t, 30.0, cfg.Simulation.BaseShotsPerGame)
	assert.Equal(t, 1.03, cfg.Simulation.HomeIceAdvantage)
	assert.Equal(t, 0.001, cfg.Simulation.MinGoalProb)
	assert.Equal(t, 0.95, cfg.Simulation.MaxGoalProb)
	assert.Equal(t, []float64{1.0, 0.97, 0.95}, cfg.Simulation.PeriodModifiers)
	assert.Equal(t, 4, cfg.Simulation.SeriesWins)

	assert.Contains(t, cfg.Database.DSN(), "host=localhost")
	assert.Contains(t, cfg.Database.DSN(), "dbname=hockey_stats")
}

func validConfig() *Config {
	return &Config{
		Environment: "test",
		Server:      ServerConfig{Port: 8080},
		Simulation: SimulationConfig{
			DefaultIterations: 10000,
			MaxIterations:     100000,
			BaseShotsPerGame:  30,
			HomeIceAdvantage:  1.03,
			LeagueShootingPct: 0.10,
			LeagueSavePct:     0.91,
			VarianceFactor:    0.15,
			MinGoalProb:       0.001,
			MaxGoalProb:       0.95,
			AdjustmentBound:   0.15,
			MinMatchupGames:   3,
			FullMatchupGames:  10,
			MinShotsPerZone:   5,
			MinRecentGames:    5,
			PeriodModifiers:   []float64{1.0, 0.97, 0.95},
			OvertimeShots:     8,
			ShootoutRounds:    3,
			ShootoutMaxExtra:  10,
			SeriesWins:        4,

			ZoneGoalProbs:     DefaultZoneGoalProbs(),
			ShotTypeModifiers: DefaultShotTypeModifiers(),
			RestModifiers:     DefaultRestModifiers(),
			WorkloadModifiers: DefaultWorkloadModifiers(),
			SegmentWeights:    DefaultSegmentWeights(),

			MomentumPPGThreshold:      0.20,
			MomentumShootingThreshold: 0.15,
			MomentumHotHigh:           1.10,
			MomentumHotLow:            1.05,
			MomentumColdLow:           0.95,
			MomentumColdHigh:          0.90,
		},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "zero iterations",
			mutate: func(c *Config) { c.Simulation.DefaultIterations = 0 },
			field:  "simulation.default_iterations",
		},
		{
			name:   "max below default",
			mutate: func(c *Config) { c.Simulation.MaxIterations = 500 },
			field:  "simulation.max_iterations",
		},
		{
			name:   "inverted probability clamp",
			mutate: func(c *Config) { c.Simulation.MinGoalProb = 0.96 },
			field:  "simulation.min_goal_prob",
		},
		{
			name:   "ceiling at one",
			mutate: func(c *Config) { c.Simulation.MaxGoalProb = 1.0 },
			field:  "simulation.max_goal_prob",
		},
		{
			name:   "adjustment bound too wide",
			mutate: func(c *Config) { c.Simulation.AdjustmentBound = 1.0 },
			field:  "simulation.adjustment_bound",
		},
		{
			name:   "full matchup below min",
			mutate: func(c *Config) { c.Simulation.FullMatchupGames = 2 },
			field:  "simulation.full_matchup_games",
		},
		{
			name:   "shooting pct out of range",
			mutate: func(c *Config) { c.Simulation.LeagueShootingPct = 1.2 },
			field:  "simulation.league_shooting_pct",
		},
		{
			name:   "save pct out of range",
			mutate: func(c *Config) { c.Simulation.LeagueSavePct = 0 },
			field:  "simulation.league_save_pct",
		},
		{
			name:   "wrong period count",
			mutate: func(c *Config) { c.Simulation.PeriodModifiers = []float64{1.0} },
			field:  "simulation.period_modifiers",
		},
		{
			name:   "zero series wins",
			mutate: func(c *Config) { c.Simulation.SeriesWins = 0 },
			field:  "simulation.series_wins",
		},
		{
			name:   "missing zone baseline",
			mutate: func(c *Config) { delete(c.Simulation.ZoneGoalProbs, types.ZoneCrease) },
			field:  "simulation.zone_goal_probs",
		},
		{
			name:   "zero shot type modifier",
			mutate: func(c *Config) { c.Simulation.ShotTypeModifiers[types.ShotTipIn] = 0 },
			field:  "simulation.shot_type_modifiers",
		},
		{
			name:   "rest modifier above one",
			mutate: func(c *Config) { c.Simulation.RestModifiers[0] = 1.2 },
			field:  "simulation.rest_modifiers",
		},
		{
			name:   "missing overtime segment weight",
			mutate: func(c *Config) { delete(c.Simulation.SegmentWeights, types.GameOvertime) },
			field:  "simulation.segment_weights",
		},
		{
			name:   "inverted hot momentum modifiers",
			mutate: func(c *Config) { c.Simulation.MomentumHotHigh = 1.01 },
			field:  "simulation.momentum_hot_high",
		},
		{
			name:   "cold momentum above neutral",
			mutate: func(c *Config) { c.Simulation.MomentumColdLow = 1.1 },
			field:  "simulation.momentum_cold_high",
		},
		{
			name:   "bad port",
			mutate: func(c *Config) { c.Server.Port = 70000 },
			field:  "server.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var cfgErr *types.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestBaselineTables(t *testing.T) {
	zones := DefaultZoneGoalProbs()
	shotTypes := DefaultShotTypeModifiers()
	rest := DefaultRestModifiers()
	work := DefaultWorkloadModifiers()
	weights := DefaultSegmentWeights()

	// Every zone carries a baseline, and danger ordering holds.
	for _, z := range types.AllZones {
		assert.Contains(t, zones, z)
	}
	assert.Greater(t, zones[types.ZoneCrease], zones[types.ZoneInnerSlot])
	assert.Greater(t, zones[types.ZoneInnerSlot], zones[types.ZoneSlot])
	assert.Greater(t, zones[types.ZoneSlot], zones[types.ZoneLeftPoint])

	assert.Greater(t, shotTypes[types.ShotTipIn], shotTypes[types.ShotWrist])
	assert.Less(t, shotTypes[types.ShotWrapAround], shotTypes[types.ShotBackhand])

	// Heavier schedules never help.
	assert.Less(t, rest[0], rest[1])
	assert.Less(t, work[5], work[3])
	assert.Greater(t, weights[types.GameLate], weights[types.GameEarly])
}

func TestLoadFillsModelTables(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	s := cfg.Simulation
	assert.Equal(t, DefaultZoneGoalProbs(), s.ZoneGoalProbs)
	assert.Equal(t, DefaultShotTypeModifiers(), s.ShotTypeModifiers)
	assert.Equal(t, DefaultRestModifiers(), s.RestModifiers)
	assert.Equal(t, DefaultWorkloadModifiers(), s.WorkloadModifiers)
	assert.Equal(t, DefaultSegmentWeights(), s.SegmentWeights)
	assert.Equal(t, 0.20, s.MomentumPPGThreshold)
	assert.Equal(t, 1.10, s.MomentumHotHigh)
}
