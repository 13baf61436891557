package simulator

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	exprand "golang.org/x/exp/rand"

	"github.com/stitts-dev/hockey-sim/internal/config"
	"github.com/stitts-dev/hockey-sim/internal/types"
	"github.com/stitts-dev/hockey-sim/pkg/logger"
)

// ProgressUpdate reports simulation progress to observers.
type ProgressUpdate struct {
	RunID     string    `json:"run_id"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	StartTime time.Time `json:"start_time"`
}

// progressInterval is how many completed trials between progress updates.
const progressInterval = 500

// In-trial momentum swing: scoring lifts a team's next chances, conceding
// dents them, both decaying back toward neutral and hard-bounded.
const (
	momentumGoalBoost   = 1.02
	momentumConcedeDrop = 0.99
	momentumCeiling     = 1.08
	momentumFloor       = 0.94
)

// shootoutBaseConversion approximates the league shootout conversion rate.
const shootoutBaseConversion = 0.32

// Engine runs Monte Carlo game simulations.
type Engine struct {
	cfg      config.SimulationConfig
	resolver *Resolver
	log      *logrus.Entry
}

func NewEngine(cfg config.SimulationConfig) *Engine {
	return &Engine{
		cfg:      cfg,
		resolver: NewResolver(cfg),
		log:      logger.WithService("simulation-engine"),
	}
}

// Simulate runs the configured number of trials across a worker pool and
// aggregates them. Results are bit-identical for a fixed seed regardless of
// worker count: every trial derives its own random stream from the seed and
// trial index, and lands in a preassigned slot.
//
// Cancellation is honored at trial boundaries; a cancelled run returns the
// partial aggregate alongside a SimulationAbortedError.
func (e *Engine) Simulate(ctx context.Context, simCfg types.SimulationConfig, home, away *TeamContext, progress chan<- ProgressUpdate) (*types.SimulationResult, error) {
	if simCfg.Iterations <= 0 {
		simCfg.Iterations = e.cfg.DefaultIterations
	}
	if simCfg.Iterations > e.cfg.MaxIterations {
		return nil, &types.ConfigurationError{Field: "iterations", Reason: "exceeds configured maximum"}
	}
	if len(home.Skaters) == 0 || len(away.Skaters) == 0 {
		return nil, &types.InsufficientDataError{Entity: "team context", Scope: "skaters", Have: 0, Need: 1}
	}

	seed := time.Now().UnixNano()
	if simCfg.Seed != nil {
		seed = *simCfg.Seed
	}

	weights := simCfg.SegmentWeights
	if len(weights) == 0 {
		weights = e.cfg.SegmentWeights
	}
	varianceFactor := simCfg.VarianceFactor
	if varianceFactor == 0 {
		varianceFactor = e.cfg.VarianceFactor
	}

	runID := simCfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	start := time.Now()

	gs := newGameState(e, home, away, weights, varianceFactor, simCfg)

	numWorkers := runtime.NumCPU()
	if simCfg.Workers > 0 {
		numWorkers = simCfg.Workers
	}
	if numWorkers > simCfg.Iterations {
		numWorkers = simCfg.Iterations
	}

	e.log.WithFields(logrus.Fields{
		"run_id":     runID,
		"iterations": simCfg.Iterations,
		"workers":    numWorkers,
		"seed":       seed,
	}).Info("Starting simulation")

	outcomes := make([]types.TrialOutcome, simCfg.Iterations)
	done := make([]bool, simCfg.Iterations)

	trials := make(chan int, numWorkers*2)
	var completed int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for trial := range trials {
				outcomes[trial] = gs.runTrial(trialRNG(seed, trial))
				done[trial] = true

				mu.Lock()
				completed++
				n := completed
				mu.Unlock()
				if progress != nil && n%progressInterval == 0 {
					progress <- ProgressUpdate{
						RunID:     runID,
						Total:     simCfg.Iterations,
						Completed: int(n),
						StartTime: start,
					}
				}
			}
		}()
	}

	cancelled := false
dispatch:
	for i := 0; i < simCfg.Iterations; i++ {
		select {
		case <-ctx.Done():
			cancelled = true
			break dispatch
		case trials <- i:
		}
	}
	close(trials)
	wg.Wait()

	result := aggregate(runID, simCfg, seed, start, outcomes, done)
	result.Confidence = confidenceScore(home, away, result.Trials)

	if cancelled {
		result.Incomplete = true
		e.log.WithField("run_id", runID).WithField("completed", result.Trials).
			Warn("Simulation cancelled before completion")
		return result, &types.SimulationAbortedError{Completed: result.Trials, Requested: simCfg.Iterations}
	}

	e.log.WithFields(logrus.Fields{
		"run_id":       runID,
		"duration_ms":  result.Duration.Milliseconds(),
		"home_win_pct": result.HomeWinPct,
	}).Info("Simulation complete")

	return result, nil
}

// SimulateSeries runs a best-of-N series. Home ice alternates on the
// 2-2-1-1-1 pattern: the higher seed hosts games 1, 2, 5 and 7.
func (e *Engine) SimulateSeries(ctx context.Context, simCfg types.SimulationConfig, home, away *TeamContext, progress chan<- ProgressUpdate) (*types.SimulationResult, error) {
	wins := simCfg.SeriesWins
	if wins <= 0 {
		wins = e.cfg.SeriesWins
	}
	maxGames := 2*wins - 1
	homeGames := homeIcePattern(maxGames)

	seed := time.Now().UnixNano()
	if simCfg.Seed != nil {
		seed = *simCfg.Seed
	}
	perGame := simCfg
	perGame.Seed = &seed
	perGame.Mode = types.ModeSingleGame

	// Base game: higher seed at home. The road arrangement reuses the same
	// trial outcomes with the venues flipped.
	homeCfg := *home
	homeCfg.IsHome = true
	awayRoad := *away
	awayRoad.IsHome = false
	base, err := e.Simulate(ctx, perGame, &homeCfg, &awayRoad, progress)
	if err != nil {
		return nil, err
	}

	roadSeed := seed + 1
	perGame.Seed = &roadSeed
	homeRoad := *home
	homeRoad.IsHome = false
	awayHome := *away
	awayHome.IsHome = true
	road, err := e.Simulate(ctx, perGame, &awayHome, &homeRoad, nil)
	if err != nil {
		return nil, err
	}

	// In the road result "home" is the lower seed; invert for our view.
	pHomeAtHome := base.HomeWinPct / (base.HomeWinPct + base.AwayWinPct)
	pHomeOnRoad := road.AwayWinPct / (road.HomeWinPct + road.AwayWinPct)

	series := playSeries(wins, homeGames, pHomeAtHome, pHomeOnRoad)
	base.Series = series
	base.Config.Mode = types.ModeSeries
	return base, nil
}

// homeIcePattern returns which games of a series the higher seed hosts.
func homeIcePattern(maxGames int) []bool {
	hosts := make([]bool, maxGames)
	for i := range hosts {
		// 2-2-1-1-1: games 1, 2, 5, 7 at the higher seed.
		hosts[i] = i == 0 || i == 1 || i == 4 || i == 6
	}
	return hosts
}

// playSeries enumerates series outcomes analytically from per-venue win
// probabilities.
func playSeries(wins int, hosts []bool, pHome, pRoad float64) *types.SeriesResult {
	res := &types.SeriesResult{GamesDistribution: make(map[int]float64)}

	// state: (games played, home wins) -> probability
	type state struct{ played, homeWins int }
	probs := map[state]float64{{0, 0}: 1}

	for g := 0; g < len(hosts); g++ {
		next := make(map[state]float64)
		p := pRoad
		if hosts[g] {
			p = pHome
		}
		for s, mass := range probs {
			if s.homeWins == wins || s.played-s.homeWins == wins {
				next[s] += mass
				continue
			}
			next[state{s.played + 1, s.homeWins + 1}] += mass * p
			next[state{s.played + 1, s.homeWins}] += mass * (1 - p)
		}
		probs = next
	}

	for s, mass := range probs {
		if s.homeWins == wins {
			res.HomeSeriesWinPct += mass
			res.GamesDistribution[s.played] += mass
		} else if s.played-s.homeWins == wins {
			res.AwaySeriesWinPct += mass
			res.GamesDistribution[s.played] += mass
		}
	}
	return res
}

// confidenceScore blends roster data quality with trial volume.
func confidenceScore(home, away *TeamContext, trials int) float64 {
	quality := (home.DataQuality + away.DataQuality) / 2
	volume := float64(trials) / 10000.0
	if volume > 1 {
		volume = 1
	}
	return 0.7*quality + 0.3*volume
}

// gameState holds the precomputed, trial-invariant sampling tables for one
// matchup. Building them once keeps the per-trial hot loop allocation free.
type gameState struct {
	engine   *Engine
	home     *teamSampler
	away     *teamSampler
	weights  map[types.GamePhase]float64
	variance float64
	simCfg   types.SimulationConfig
}

type teamSampler struct {
	ctx       *TeamContext
	opponent  *TeamContext
	shooterCW []float64 // cumulative shot-share weights
	zoneCW    [][]float64
	zones     []types.Zone
	shotTypes [][]types.ShotType // dominant type per (shooter, zone)
	lineMod   []float64          // per shooter
	fatigue   float64            // average skater fatigue, scales shot volume
	homeIce   float64
	shootout  []int // skater indices in shootout order
}

func newGameState(e *Engine, home, away *TeamContext, weights map[types.GamePhase]float64, variance float64, simCfg types.SimulationConfig) *gameState {
	return &gameState{
		engine:   e,
		home:     newTeamSampler(e, home, away),
		away:     newTeamSampler(e, away, home),
		weights:  weights,
		variance: variance,
		simCfg:   simCfg,
	}
}

func newTeamSampler(e *Engine, tc, opponent *TeamContext) *teamSampler {
	ts := &teamSampler{
		ctx:      tc,
		opponent: opponent,
		zones:    types.AllZones,
		homeIce:  1.0,
	}
	if tc.IsHome {
		ts.homeIce = e.cfg.HomeIceAdvantage
	}

	var cum, fatigueSum float64
	for i := range tc.Skaters {
		s := &tc.Skaters[i]
		w := s.Blended.ShotsPerGame
		if w <= 0 {
			w = 0.5
		}
		cum += w
		ts.shooterCW = append(ts.shooterCW, cum)
		fatigueSum += s.Adjust.Fatigue

		zoneCum := make([]float64, len(ts.zones))
		typeRow := make([]types.ShotType, len(ts.zones))
		var zc float64
		dist := s.Zones.ZoneDistribution()
		for zi, zone := range ts.zones {
			share, ok := dist[zone]
			if !ok && len(dist) == 0 && zone == types.ZoneUnknown {
				share = 1 // no shot data: everything lands in unknown
			}
			zc += share
			zoneCum[zi] = zc
			typeRow[zi] = dominantShotType(s.Zones, zone)
		}
		ts.zoneCW = append(ts.zoneCW, zoneCum)
		ts.shotTypes = append(ts.shotTypes, typeRow)

		ts.lineMod = append(ts.lineMod, lineModifierFor(tc, s.PlayerID))
	}
	ts.fatigue = fatigueSum / float64(len(tc.Skaters))
	ts.shootout = shootoutOrder(tc)
	return ts
}

func lineModifierFor(tc *TeamContext, playerID int64) float64 {
	for li, line := range tc.Lines {
		for _, id := range line {
			if id == playerID && li < len(tc.LineModifiers) {
				return tc.LineModifiers[li]
			}
		}
	}
	return 1.0
}

// shootoutOrder ranks skaters by goals per game, best shooters first.
func shootoutOrder(tc *TeamContext) []int {
	order := make([]int, len(tc.Skaters))
	for i := range order {
		order[i] = i
	}
	for i := 0; i < len(order)-1; i++ {
		for j := i + 1; j < len(order); j++ {
			if tc.Skaters[order[j]].Blended.GoalsPerGame > tc.Skaters[order[i]].Blended.GoalsPerGame {
				order[i], order[j] = order[j], order[i]
			}
		}
	}
	return order
}

// pickIndex samples an index from a cumulative weight table.
func pickIndex(rng *exprand.Rand, cum []float64) int {
	total := cum[len(cum)-1]
	if total <= 0 {
		return 0
	}
	x := rng.Float64() * total
	for i, c := range cum {
		if x < c {
			return i
		}
	}
	return len(cum) - 1
}

// runTrial simulates one complete game.
func (gs *gameState) runTrial(rng *exprand.Rand) types.TrialOutcome {
	e := gs.engine

	// Per-game variance draw, one per side.
	varDist := NewTruncatedNormalDistribution(1.0, gs.variance, 0.5, 1.5)
	homeVar := varDist.Sample(rng)
	awayVar := varDist.Sample(rng)

	var out types.TrialOutcome
	homeMomentum, awayMomentum := 1.0, 1.0

	for pi, phase := range types.RegulationPhases {
		periodMod := e.cfg.PeriodModifiers[pi]
		lambdaBase := e.cfg.BaseShotsPerGame / float64(len(types.RegulationPhases))

		homeShots := samplePoisson(rng, lambdaBase*periodMod*gs.home.fatigue*homeVar)
		awayShots := samplePoisson(rng, lambdaBase*periodMod*gs.away.fatigue*awayVar)

		for s := 0; s < homeShots+awayShots; s++ {
			// Interleave proportionally so momentum swings affect both
			// sides within the period.
			isHome := rng.Float64()*float64(homeShots+awayShots) < float64(homeShots)
			if isHome {
				if gs.attempt(rng, gs.home, phase, homeMomentum*homeVar) {
					out.HomeGoals++
					out.HomeByPhase[pi]++
					homeMomentum = boost(homeMomentum)
					awayMomentum = dent(awayMomentum)
				}
			} else {
				if gs.attempt(rng, gs.away, phase, awayMomentum*awayVar) {
					out.AwayGoals++
					out.AwayByPhase[pi]++
					awayMomentum = boost(awayMomentum)
					homeMomentum = dent(homeMomentum)
				}
			}
		}
	}

	if out.HomeGoals != out.AwayGoals {
		out.HomeWin = out.HomeGoals > out.AwayGoals
		out.DecidedIn = types.GameLate
		return out
	}

	// Overtime: sudden death over a bounded number of interleaved attempts.
	out.WentToOT = true
	out.DecidedIn = types.GameOvertime
	homeStrength := gs.home.fatigue * homeVar
	awayStrength := gs.away.fatigue * awayVar
	pHomeAttempt := homeStrength / (homeStrength + awayStrength)
	otIdx := len(types.RegulationPhases)
	for i := 0; i < e.cfg.OvertimeShots; i++ {
		if rng.Float64() < pHomeAttempt {
			if gs.attempt(rng, gs.home, types.GameOvertime, homeMomentum*homeVar) {
				out.HomeGoals++
				out.HomeByPhase[otIdx]++
				out.HomeWin = true
				return out
			}
		} else {
			if gs.attempt(rng, gs.away, types.GameOvertime, awayMomentum*awayVar) {
				out.AwayGoals++
				out.AwayByPhase[otIdx]++
				out.HomeWin = false
				return out
			}
		}
	}

	// Shootout: fixed rounds, then bounded sudden death. A trial that
	// survives every round is recorded as a draw rather than looping
	// forever on two stubborn goalies.
	out.WentToSO = true
	maxRounds := e.cfg.ShootoutRounds + e.cfg.ShootoutMaxExtra
	homeSO, awaySO := 0, 0
	for round := 0; round < maxRounds; round++ {
		if gs.shootoutAttempt(rng, gs.home, round) {
			homeSO++
		}
		if gs.shootoutAttempt(rng, gs.away, round) {
			awaySO++
		}
		settled := round >= e.cfg.ShootoutRounds-1
		if settled && homeSO != awaySO {
			out.HomeWin = homeSO > awaySO
			if out.HomeWin {
				out.HomeGoals++
			} else {
				out.AwayGoals++
			}
			return out
		}
	}

	out.Draw = true
	return out
}

// attempt resolves one shot attempt, returning whether it scored.
func (gs *gameState) attempt(rng *exprand.Rand, ts *teamSampler, phase types.GamePhase, trialMod float64) bool {
	si := pickIndex(rng, ts.shooterCW)
	shooter := &ts.ctx.Skaters[si]
	zi := pickIndex(rng, ts.zoneCW[si])
	zone := ts.zones[zi]
	shotType := ts.shotTypes[si][zi]

	situational := ts.homeIce * ts.lineMod[si] * trialMod
	p := gs.engine.resolver.ShotProbability(shooter, &ts.opponent.Goalie, zone, shotType, phase, gs.weights, situational)
	return rng.Float64() < p
}

// shootoutAttempt resolves one shootout round for a team.
func (gs *gameState) shootoutAttempt(rng *exprand.Rand, ts *teamSampler, round int) bool {
	shooter := &ts.ctx.Skaters[ts.shootout[round%len(ts.shootout)]]
	skill := 1.0
	if shooter.Blended.ShootingPct > 0 {
		skill = shooter.Blended.ShootingPct / gs.engine.cfg.LeagueShootingPct
	}
	goalieFactor := (1 - ts.opponent.Goalie.Blended.SavePct) / (1 - gs.engine.cfg.LeagueSavePct)
	p := gs.engine.resolver.clamp(shootoutBaseConversion * skill * goalieFactor)
	return rng.Float64() < p
}

func boost(m float64) float64 {
	m *= momentumGoalBoost
	if m > momentumCeiling {
		return momentumCeiling
	}
	return m
}

func dent(m float64) float64 {
	m *= momentumConcedeDrop
	if m < momentumFloor {
		return momentumFloor
	}
	return m
}
