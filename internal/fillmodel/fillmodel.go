// Package fillmodel provides the stochastic oracle for slippage and
// marginal (touch-price) fills (spec.md §4.4, §9). The engine's matching
// loop consults only IsSlipped; IsStopFilled and IsLimitFilled are part of
// the contract but are not called by the engine.
// Implementations must be seeded and reproducible: the same call sequence
// against the same seed must return the same bool sequence.
package fillmodel

import "math/rand"

// Model decides whether a pending fill slips and whether a marginal
// (touch-price) fill fires for STOP-kind or LIMIT orders.
type Model interface {
	// IsSlipped reports whether the fill should be offset by one slippage
	// unit against the order's side.
	IsSlipped() bool
	// IsStopFilled reports whether a STOP-kind order fills when the tick
	// touches its price exactly, rather than crossing it.
	IsStopFilled() bool
	// IsLimitFilled reports whether a LIMIT order fills when the tick
	// touches its price exactly, rather than crossing it.
	IsLimitFilled() bool
}

// Seeded is the production Model: three independent probabilities driven by
// a single seeded *rand.Rand, so a fixed seed replays identical decisions
// across runs (spec.md §5, determinism invariant).
type Seeded struct {
	rng *rand.Rand

	slipProbability      float64
	stopFillProbability  float64
	limitFillProbability float64
}

// NewSeeded builds a Seeded model. Probabilities are clamped to [0, 1].
func NewSeeded(seed int64, slipProbability, stopFillProbability, limitFillProbability float64) *Seeded {
	return &Seeded{
		rng:                  rand.New(rand.NewSource(seed)),
		slipProbability:      clamp01(slipProbability),
		stopFillProbability:  clamp01(stopFillProbability),
		limitFillProbability: clamp01(limitFillProbability),
	}
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func (s *Seeded) IsSlipped() bool {
	return s.rng.Float64() < s.slipProbability
}

func (s *Seeded) IsStopFilled() bool {
	return s.rng.Float64() < s.stopFillProbability
}

func (s *Seeded) IsLimitFilled() bool {
	return s.rng.Float64() < s.limitFillProbability
}

// Fixed is a scripted Model for literal test scenarios (spec.md §9 worked
// examples), where every decision is a constant rather than drawn from a
// distribution.
type Fixed struct {
	Slipped     bool
	StopFilled  bool
	LimitFilled bool
}

func (f Fixed) IsSlipped() bool     { return f.Slipped }
func (f Fixed) IsStopFilled() bool  { return f.StopFilled }
func (f Fixed) IsLimitFilled() bool { return f.LimitFilled }
