package simulator

import (
	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution represents a probability distribution used during trials.
type Distribution interface {
	Sample(rng *exprand.Rand) float64
	Mean() float64
	StdDev() float64
}

// NormalDistribution represents a normal (Gaussian) distribution
type NormalDistribution struct {
	mean   float64
	stdDev float64
}

func NewNormalDistribution(mean, stdDev float64) *NormalDistribution {
	return &NormalDistribution{
		mean:   mean,
		stdDev: stdDev,
	}
}

func (d *NormalDistribution) Sample(rng *exprand.Rand) float64 {
	n := distuv.Normal{Mu: d.mean, Sigma: d.stdDev, Src: rng}
	return n.Rand()
}

func (d *NormalDistribution) Mean() float64 {
	return d.mean
}

func (d *NormalDistribution) StdDev() float64 {
	return d.stdDev
}

// TruncatedNormalDistribution represents a normal distribution with bounds
type TruncatedNormalDistribution struct {
	*NormalDistribution
	min float64
	max float64
}

func NewTruncatedNormalDistribution(mean, stdDev, min, max float64) *TruncatedNormalDistribution {
	return &TruncatedNormalDistribution{
		NormalDistribution: NewNormalDistribution(mean, stdDev),
		min:                min,
		max:                max,
	}
}

func (d *TruncatedNormalDistribution) Sample(rng *exprand.Rand) float64 {
	for {
		sample := d.NormalDistribution.Sample(rng)
		if sample >= d.min && sample <= d.max {
			return sample
		}
	}
}

// samplePoisson draws a shot count with the given expectation.
func samplePoisson(rng *exprand.Rand, lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	p := distuv.Poisson{Lambda: lambda, Src: rng}
	return int(p.Rand())
}

// splitmix64 derives a well-mixed sub-seed from a base seed and an index.
// Each trial gets its own stream so the worker count and scheduling order
// never change the drawn sequence for a fixed base seed.
func splitmix64(seed int64, index int) uint64 {
	z := uint64(seed) + uint64(index)*0x9E3779B97F4A7C15 + 0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// trialRNG builds the deterministic random source for one trial.
func trialRNG(seed int64, trial int) *exprand.Rand {
	return exprand.New(exprand.NewSource(splitmix64(seed, trial)))
}
