package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/hockey-sim/internal/config"
	"github.com/stitts-dev/hockey-sim/internal/simulator"
	"github.com/stitts-dev/hockey-sim/internal/types"
	"github.com/stitts-dev/hockey-sim/internal/websocket"
	"github.com/stitts-dev/hockey-sim/pkg/logger"
)

// simulationTimeout bounds a background run.
const simulationTimeout = 5 * time.Minute

// SimulationRequest is the POST body for starting a run.
type SimulationRequest struct {
	HomeTeamID int64  `json:"home_team_id" binding:"required"`
	AwayTeamID int64  `json:"away_team_id" binding:"required"`
	Season     int    `json:"season" binding:"required"`
	GameDate   string `json:"game_date"`
	Iterations int    `json:"iterations"`
	Mode       string `json:"mode"`
	Seed       *int64 `json:"seed"`

	UseSynergy  *bool `json:"use_synergy"`
	UseClutch   *bool `json:"use_clutch"`
	UseFatigue  *bool `json:"use_fatigue"`
	UseMomentum *bool `json:"use_momentum"`

	VarianceFactor float64 `json:"variance_factor"`
	SeriesWins     int     `json:"series_wins"`
	Workers        int     `json:"workers"`
}

type runStatus string

const (
	statusRunning   runStatus = "running"
	statusComplete  runStatus = "complete"
	statusCancelled runStatus = "cancelled"
	statusFailed    runStatus = "failed"
)

type runState struct {
	Status runStatus               `json:"status"`
	Result *types.SimulationResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
	cancel context.CancelFunc
}

// SimulationHandler serves the simulation endpoints.
type SimulationHandler struct {
	builder *simulator.Builder
	engine  *simulator.Engine
	hub     *websocket.Hub
	cfg     *config.Config
	logger  *logrus.Logger

	mu   sync.RWMutex
	runs map[string]*runState
}

func NewSimulationHandler(builder *simulator.Builder, engine *simulator.Engine, hub *websocket.Hub, cfg *config.Config, logger *logrus.Logger) *SimulationHandler {
	return &SimulationHandler{
		builder: builder,
		engine:  engine,
		hub:     hub,
		cfg:     cfg,
		logger:  logger,
		runs:    make(map[string]*runState),
	}
}

// StartSimulation launches a run in the background and returns its run ID.
// Progress streams over the run's websocket channel; the finished result is
// fetched from GetSimulation.
func (h *SimulationHandler) StartSimulation(c *gin.Context) {
	var req SimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.HomeTeamID == req.AwayTeamID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "home and away teams must differ"})
		return
	}

	gameDate := time.Now()
	if req.GameDate != "" {
		parsed, err := time.Parse("2006-01-02", req.GameDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "game_date must be YYYY-MM-DD"})
			return
		}
		gameDate = parsed
	}

	simCfg := h.toSimConfig(req)
	simCfg.RunID = uuid.New().String()

	ctx, cancel := context.WithTimeout(context.Background(), simulationTimeout)
	state := &runState{Status: statusRunning, cancel: cancel}
	h.mu.Lock()
	h.runs[simCfg.RunID] = state
	h.mu.Unlock()

	logger.WithMatchupContext(simCfg.RunID, req.HomeTeamID, req.AwayTeamID).
		WithField("iterations", simCfg.Iterations).Info("Queued simulation run")
	go h.runSimulation(ctx, cancel, simCfg, gameDate, state)

	c.JSON(http.StatusAccepted, gin.H{
		"run_id": simCfg.RunID,
		"status": statusRunning,
	})
}

func (h *SimulationHandler) runSimulation(ctx context.Context, cancel context.CancelFunc, simCfg types.SimulationConfig, gameDate time.Time, state *runState) {
	defer cancel()

	progress := make(chan simulator.ProgressUpdate, 16)
	go func() {
		for update := range progress {
			h.hub.BroadcastToRun(update.RunID, gin.H{
				"type":      "progress",
				"run_id":    update.RunID,
				"total":     update.Total,
				"completed": update.Completed,
			})
		}
	}()

	result, err := h.execute(ctx, simCfg, gameDate, progress)
	close(progress)

	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case err == nil:
		state.Status = statusComplete
		state.Result = result
	default:
		var aborted *types.SimulationAbortedError
		if errors.As(err, &aborted) {
			state.Status = statusCancelled
			state.Result = result
			state.Error = err.Error()
		} else {
			state.Status = statusFailed
			state.Error = err.Error()
			h.logger.WithError(err).WithField("run_id", simCfg.RunID).Error("Simulation failed")
		}
	}

	h.hub.BroadcastToRun(simCfg.RunID, gin.H{
		"type":   "done",
		"run_id": simCfg.RunID,
		"status": state.Status,
	})
}

func (h *SimulationHandler) execute(ctx context.Context, simCfg types.SimulationConfig, gameDate time.Time, progress chan<- simulator.ProgressUpdate) (*types.SimulationResult, error) {
	home, err := h.builder.BuildTeamContext(ctx, simCfg.HomeTeamID, simCfg.AwayTeamID, simCfg.Season, gameDate, true, simCfg)
	if err != nil {
		return nil, err
	}
	away, err := h.builder.BuildTeamContext(ctx, simCfg.AwayTeamID, simCfg.HomeTeamID, simCfg.Season, gameDate, false, simCfg)
	if err != nil {
		return nil, err
	}

	if simCfg.Mode == types.ModeSeries {
		return h.engine.SimulateSeries(ctx, simCfg, home, away, progress)
	}
	return h.engine.Simulate(ctx, simCfg, home, away, progress)
}

// GetSimulation returns a run's status and, once finished, its result.
func (h *SimulationHandler) GetSimulation(c *gin.Context) {
	runID := c.Param("run_id")
	h.mu.RLock()
	state, ok := h.runs[runID]
	h.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	resp := gin.H{"run_id": runID, "status": state.Status}
	if state.Result != nil {
		resp["result"] = state.Result
		resp["scorelines"] = state.Result.ScorelineTable()
		resp["summary"] = state.Result.Summary()
	}
	if state.Error != "" {
		resp["error"] = state.Error
	}
	c.JSON(http.StatusOK, resp)
}

// CancelSimulation requests cancellation of a running simulation. The run
// settles into cancelled state with whatever trials completed.
func (h *SimulationHandler) CancelSimulation(c *gin.Context) {
	runID := c.Param("run_id")
	h.mu.RLock()
	state, ok := h.runs[runID]
	h.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if state.Status != statusRunning {
		c.JSON(http.StatusConflict, gin.H{"error": "run already finished"})
		return
	}
	state.cancel()
	logger.WithRunID(runID).Info("Cancellation requested")
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "status": "cancelling"})
}

func (h *SimulationHandler) toSimConfig(req SimulationRequest) types.SimulationConfig {
	simCfg := types.SimulationConfig{
		HomeTeamID:     req.HomeTeamID,
		AwayTeamID:     req.AwayTeamID,
		Season:         req.Season,
		Iterations:     req.Iterations,
		Mode:           types.ModeSingleGame,
		Seed:           req.Seed,
		UseSynergy:     true,
		UseClutch:      true,
		UseFatigue:     true,
		UseMomentum:    true,
		VarianceFactor: req.VarianceFactor,
		SeriesWins:     req.SeriesWins,
		Workers:        req.Workers,
	}
	if req.Mode == string(types.ModeSeries) {
		simCfg.Mode = types.ModeSeries
	}
	if req.Iterations == 0 {
		simCfg.Iterations = h.cfg.Simulation.DefaultIterations
	}
	if req.UseSynergy != nil {
		simCfg.UseSynergy = *req.UseSynergy
	}
	if req.UseClutch != nil {
		simCfg.UseClutch = *req.UseClutch
	}
	if req.UseFatigue != nil {
		simCfg.UseFatigue = *req.UseFatigue
	}
	if req.UseMomentum != nil {
		simCfg.UseMomentum = *req.UseMomentum
	}
	return simCfg
}
