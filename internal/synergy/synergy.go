// Package synergy scores how player pairs perform together relative to what
// their individual rates predict. Scores are symmetric in the pair by
// construction: records are keyed on the ordered (low, high) player IDs, so
// score(a, b) and score(b, a) read the same accumulator.
package synergy

import (
	"github.com/stitts-dev/hockey-sim/internal/types"
)

// Event weights for the composite pair score.
const (
	weightGoal   = 2.5
	weightXG     = 1.3
	weightShot   = 0.4
	weightEvent  = 0.1
	weightMinute = 0.02
)

// phaseWeights tilt the score toward production in higher-leverage phases.
var phaseWeights = map[types.GamePhase]float64{
	types.GameEarly:    0.8,
	types.GameMid:      1.0,
	types.GameLate:     1.2,
	types.GameOvertime: 1.2,
}

// PairKey orders a player pair canonically.
type PairKey struct {
	Low  int64
	High int64
}

// NewPairKey builds the canonical key for two players.
func NewPairKey(a, b int64) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{Low: a, High: b}
}

type pairAccum struct {
	weighted   float64
	events     int
	jointXG    float64
	expectedXG float64
	toiSeconds int
}

// Matrix holds accumulated pair records and answers score queries.
type Matrix struct {
	pairs  map[PairKey]*pairAccum
	minTOI int
}

// NewMatrix builds a synergy matrix from shared-ice records. Pairs with less
// than minTOISeconds of shared ice are kept in the accumulator but rejected
// at query time.
func NewMatrix(records []types.SharedIceRecord, minTOISeconds int) *Matrix {
	m := &Matrix{pairs: make(map[PairKey]*pairAccum), minTOI: minTOISeconds}
	for _, rec := range records {
		key := NewPairKey(rec.PlayerA, rec.PlayerB)
		acc, ok := m.pairs[key]
		if !ok {
			acc = &pairAccum{}
			m.pairs[key] = acc
		}
		pw, ok := phaseWeights[rec.Phase]
		if !ok {
			pw = 1.0
		}
		minutes := float64(rec.TOISeconds) / 60.0
		acc.weighted += pw * (weightGoal*float64(rec.JointGoals) +
			weightXG*rec.JointXG +
			weightShot*float64(rec.JointShots) +
			weightEvent*float64(rec.JointShots+rec.JointGoals) +
			weightMinute*minutes)
		acc.events += rec.JointShots + rec.JointGoals
		acc.jointXG += rec.JointXG
		acc.expectedXG += rec.ExpectedXGA + rec.ExpectedXGB
		acc.toiSeconds += rec.TOISeconds
	}
	return m
}

// PairScore returns the per-event composite score for a pair. Pairs without
// enough shared ice return an InsufficientDataError.
func (m *Matrix) PairScore(a, b int64) (float64, error) {
	acc, ok := m.pairs[NewPairKey(a, b)]
	if !ok || acc.toiSeconds < m.minTOI || acc.events == 0 {
		have := 0
		if ok {
			have = acc.toiSeconds
		}
		return 0, &types.InsufficientDataError{
			Entity: "player pair",
			Scope:  "shared ice",
			Have:   have,
			Need:   m.minTOI,
		}
	}
	return acc.weighted / float64(acc.events), nil
}

// PairLift returns joint expected goals relative to the sum of the pair's
// individual expectations over the same ice time. 1.0 means the pair
// produces exactly what its members would alone.
func (m *Matrix) PairLift(a, b int64) (float64, error) {
	acc, ok := m.pairs[NewPairKey(a, b)]
	if !ok || acc.toiSeconds < m.minTOI {
		have := 0
		if ok {
			have = acc.toiSeconds
		}
		return 0, &types.InsufficientDataError{
			Entity: "player pair",
			Scope:  "shared ice",
			Have:   have,
			Need:   m.minTOI,
		}
	}
	if acc.expectedXG == 0 {
		return 1.0, nil
	}
	return acc.jointXG / acc.expectedXG, nil
}

// LineLift averages pairwise lift over every pair in a line. Pairs without
// enough data are skipped; a line with no usable pairs is neutral.
func (m *Matrix) LineLift(players []int64) float64 {
	var total float64
	var counted int
	for i := 0; i < len(players); i++ {
		for j := i + 1; j < len(players); j++ {
			lift, err := m.PairLift(players[i], players[j])
			if err != nil {
				continue
			}
			total += lift
			counted++
		}
	}
	if counted == 0 {
		return 1.0
	}
	return total / float64(counted)
}

// LineModifier converts a line's lift into a damped scoring multiplier.
// Chemistry is real but small; the modifier moves a tenth of the lift and
// stays inside [0.9, 1.1].
func (m *Matrix) LineModifier(players []int64) float64 {
	mod := 1 + 0.1*(m.LineLift(players)-1)
	if mod < 0.9 {
		return 0.9
	}
	if mod > 1.1 {
		return 1.1
	}
	return mod
}
