// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package radial implements the positioning engine for the exploration
// surface.
//
// # Description
//
// The engine assigns every company a collision-free polar placement as a
// pure function of its match score and the placements already occupied in
// the destination view. Higher scores land closer to the center. Placement
// escalates through four stages, each strictly more disruptive than the
// last, and the final stage succeeds by construction, so the engine always
// terminates with a placement.
//
//	Stage 1: scan the target ring at equally spaced angles, in an order
//	         seeded by the company id (deterministic across calls).
//	Stage 2: retry stage 1 on nearby rings, alternating outward/inward in
//	         fixed increments; saturated outer rings extend outward only.
//	Stage 3: evict the occupant whose placement deviates most from its own
//	         ideal ring, place the newcomer, then re-place the evictee.
//	         Applied only when it actually reduces total positioning error.
//	Stage 4: drop the newcomer at the midpoint of the least populated 90°
//	         sector, beyond every occupied radius.
//
// # Thread Safety
//
// The engine holds only immutable parameters; all methods are pure and
// safe for concurrent use.
package radial

import "math"

// =============================================================================
// Types
// =============================================================================

// Placement is a polar coordinate on the surface.
type Placement struct {
	AngleDeg float64
	Distance float64
}

// Occupant is a company already placed in the destination view.
type Occupant struct {
	ID       int64
	Score    float64
	Position Placement
}

// Candidate is the company being placed.
type Candidate struct {
	ID    int64
	Score float64
}

// Stage identifies which escalation stage produced a placement.
type Stage string

const (
	StageDirect     Stage = "direct"
	StageNearTarget Stage = "near_target"
	StageRelocation Stage = "relocation"
	StageFallback   Stage = "fallback"
)

// Moved records an occupant whose placement changed as part of a
// relocation solution.
type Moved struct {
	ID       int64
	Position Placement
}

// Result is the outcome of a placement request.
//
// Placement is always set. Relocated lists existing occupants that were
// moved to make room; it is empty except for stage 3 outcomes.
type Result struct {
	Placement Placement
	Relocated []Moved
	Stage     Stage
}

// =============================================================================
// Parameters
// =============================================================================

// Params holds the tuning constants for the engine.
type Params struct {
	// MinRadius and MaxRadius bound the score-to-radius mapping.
	// A score of 100 maps to MinRadius, 0 to MaxRadius.
	MinRadius float64
	MaxRadius float64

	// AngleSlots is the number of equally spaced angles scanned per ring.
	AngleSlots int

	// MinAngularSepDeg and MinRadialSep define the dual-tolerance conflict
	// rule: two placements conflict only when both separations are below
	// their tolerance.
	MinAngularSepDeg float64
	MinRadialSep     float64

	// RingStep is the radial increment between candidate rings in stage 2.
	RingStep float64

	// MaxRingOffsets bounds the alternating outward/inward expansion.
	MaxRingOffsets int

	// OuterExtensionSteps is how many extra outward-only rings are tried
	// when the target ring is already near the outer edge.
	OuterExtensionSteps int

	// RelocationImprovement is the minimum reduction in summed positioning
	// error (|actual - ideal| distance) for a multi-company relocation to
	// be applied.
	RelocationImprovement float64

	// FallbackMargin is the safety margin added beyond the outermost
	// occupant by the stage 4 fallback.
	FallbackMargin float64
}

// DefaultParams returns the production tuning.
func DefaultParams() Params {
	return Params{
		MinRadius:             80,
		MaxRadius:             400,
		AngleSlots:            24,
		MinAngularSepDeg:      12,
		MinRadialSep:          25,
		RingStep:              30,
		MaxRingOffsets:        5,
		OuterExtensionSteps:   4,
		RelocationImprovement: 15,
		FallbackMargin:        40,
	}
}

// Engine computes collision-free placements. Construct with NewEngine.
type Engine struct {
	params Params
}

// NewEngine returns an engine with the given parameters. Zero-valued
// parameters fall back to DefaultParams.
func NewEngine(params Params) *Engine {
	if params.AngleSlots == 0 {
		params = DefaultParams()
	}
	return &Engine{params: params}
}

// Params returns the engine's tuning constants.
func (e *Engine) Params() Params {
	return e.params
}

// IdealDistance maps a match score to its target ring distance.
// The mapping is monotonic: a higher score gives a smaller radius.
func (e *Engine) IdealDistance(score float64) float64 {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	p := e.params
	return p.MinRadius + (1-score/100)*(p.MaxRadius-p.MinRadius)
}

// =============================================================================
// Placement Pipeline
// =============================================================================

// Place computes a collision-free placement for the candidate among the
// given occupants.
//
// # Description
//
// Runs the four-stage escalation pipeline. The first successful stage
// wins. A stage 3 (relocation) solution is applied only when beneficial:
// trivially so when nothing but the newcomer moves, otherwise only when
// it reduces the summed positioning error of the moved occupants by more
// than the configured improvement threshold. Stage 4 always succeeds, so
// Place never fails for any finite occupant set.
//
// # Inputs
//
//   - c: The company being placed.
//   - occupants: Companies already placed in the destination view. Not
//     modified; relocation outcomes are reported via Result.Relocated.
//
// # Outputs
//
//   - Result: The placement, any relocated occupants, and the stage used.
func (e *Engine) Place(c Candidate, occupants []Occupant) Result {
	ideal := e.IdealDistance(c.Score)

	// Stage 1: exact target ring.
	if pos, ok := e.placeOnRing(c.ID, ideal, occupants); ok {
		return Result{Placement: pos, Stage: StageDirect}
	}

	// Stage 2: nearby rings.
	if pos, ok := e.placeNearTarget(c.ID, ideal, occupants); ok {
		return Result{Placement: pos, Stage: StageNearTarget}
	}

	// Stage 3: relocate the worst-placed occupant to make room.
	if sol, ok := e.relocate(c, ideal, occupants); ok && e.beneficial(sol) {
		return Result{
			Placement: sol.newPosition,
			Relocated: sol.moved,
			Stage:     StageRelocation,
		}
	}

	// Stage 4: guaranteed fallback.
	return Result{Placement: e.fallback(ideal, occupants), Stage: StageFallback}
}

// placeOnRing scans the ring at the given distance for a conflict-free
// angle. The scan order is derived from the company id so repeated calls
// for the same company walk the slots in the same order.
func (e *Engine) placeOnRing(id int64, distance float64, occupants []Occupant) (Placement, bool) {
	p := e.params
	slotWidth := 360.0 / float64(p.AngleSlots)
	offset := angleSeed(id, p.AngleSlots)

	for k := 0; k < p.AngleSlots; k++ {
		// Stride 7 is coprime with the default slot count, scattering
		// consecutive attempts instead of clustering them.
		slot := (offset + k*7) % p.AngleSlots
		pos := Placement{
			AngleDeg: NormalizeAngle(float64(slot) * slotWidth),
			Distance: distance,
		}
		if !p.conflictsAny(pos, occupants) {
			return pos, true
		}
	}
	return Placement{}, false
}

// placeNearTarget retries the ring scan at radial offsets from the target
// distance: +step, -step, +2*step, -2*step, ... so small deviations are
// tried before large ones. When the target is already near the outer edge
// the search extends further outward only, so high-score saturation never
// silently rejects a legitimate placement.
func (e *Engine) placeNearTarget(id int64, ideal float64, occupants []Occupant) (Placement, bool) {
	p := e.params

	for i := 1; i <= p.MaxRingOffsets; i++ {
		step := float64(i) * p.RingStep
		for _, d := range []float64{ideal + step, ideal - step} {
			if d < p.MinRadius/2 {
				continue
			}
			if pos, ok := e.placeOnRing(id, d, occupants); ok {
				return pos, true
			}
		}
	}

	// Outward-only extension for large target radii.
	if ideal >= p.MaxRadius-float64(p.MaxRingOffsets)*p.RingStep {
		for i := p.MaxRingOffsets + 1; i <= p.MaxRingOffsets+p.OuterExtensionSteps; i++ {
			d := ideal + float64(i)*p.RingStep
			if pos, ok := e.placeOnRing(id, d, occupants); ok {
				return pos, true
			}
		}
	}

	return Placement{}, false
}

// fallback partitions the circle into four 90° sectors, picks the least
// populated one, and places the candidate at its angular midpoint beyond
// every occupied radius. Conflict-free by construction: the distance
// strictly exceeds every occupant's distance by more than the radial
// tolerance.
func (e *Engine) fallback(ideal float64, occupants []Occupant) Placement {
	var counts [4]int
	for i := range occupants {
		sector := int(NormalizeAngle(occupants[i].Position.AngleDeg) / 90)
		if sector > 3 {
			sector = 3
		}
		counts[sector]++
	}

	best := 0
	for s := 1; s < 4; s++ {
		if counts[s] < counts[best] {
			best = s
		}
	}

	distance := math.Max(ideal, maxOccupiedDistance(occupants)) + e.params.FallbackMargin
	return Placement{
		AngleDeg: float64(best)*90 + 45,
		Distance: distance,
	}
}

// angleSeed derives a deterministic starting slot from a company id.
// Knuth multiplicative hash; reproducible across calls and processes.
func angleSeed(id int64, slots int) int {
	h := uint64(id) * 2654435761
	return int(h % uint64(slots))
}
