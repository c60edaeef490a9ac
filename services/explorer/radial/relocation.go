// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package radial

import (
	"math"
	"sort"
)

// maxRelocationCandidates bounds how many existing occupants may be
// considered for eviction in a single relocation attempt.
const maxRelocationCandidates = 2

// relocationSolution is a tentative stage 3 outcome.
type relocationSolution struct {
	newPosition Placement
	moved       []Moved

	// errorBefore/errorAfter are the summed |actual - ideal| distances of
	// the evicted occupants, before and after relocation. Used by the
	// benefit gate.
	errorBefore float64
	errorAfter  float64
}

// relocate attempts stage 3: evict up to maxRelocationCandidates occupants
// whose current distance deviates most from their own ideal ring, place
// the newcomer among the remainder, then re-place each evictee (targeting
// its own ideal distance) among the remainder plus the newcomer.
//
// The solution succeeds only if every displaced company finds a spot via
// the stage 1/2 scans. Occupants are never modified; moves are reported
// in the solution.
func (e *Engine) relocate(c Candidate, ideal float64, occupants []Occupant) (relocationSolution, bool) {
	candidates := e.worstPlaced(occupants)

	for n := 1; n <= len(candidates); n++ {
		evicted := candidates[:n]
		if sol, ok := e.tryEviction(c, ideal, occupants, evicted); ok {
			return sol, true
		}
	}
	return relocationSolution{}, false
}

// tryEviction runs one eviction attempt with a fixed evictee set.
func (e *Engine) tryEviction(c Candidate, ideal float64, occupants, evicted []Occupant) (relocationSolution, bool) {
	remainder := make([]Occupant, 0, len(occupants))
	for i := range occupants {
		if !containsOccupant(evicted, occupants[i].ID) {
			remainder = append(remainder, occupants[i])
		}
	}

	// Place the newcomer among the remainder.
	newPos, ok := e.placeOnRing(c.ID, ideal, remainder)
	if !ok {
		newPos, ok = e.placeNearTarget(c.ID, ideal, remainder)
		if !ok {
			return relocationSolution{}, false
		}
	}

	sol := relocationSolution{newPosition: newPos}
	sol.moved = append(sol.moved, Moved{ID: c.ID, Position: newPos})

	// Re-place each evictee among remainder + newcomer + evictees placed
	// so far, each targeting its own ideal ring.
	field := append([]Occupant{}, remainder...)
	field = append(field, Occupant{ID: c.ID, Score: c.Score, Position: newPos})

	for i := range evicted {
		ev := evicted[i]
		evIdeal := e.IdealDistance(ev.Score)
		sol.errorBefore += math.Abs(ev.Position.Distance - evIdeal)

		pos, ok := e.placeOnRing(ev.ID, evIdeal, field)
		if !ok {
			pos, ok = e.placeNearTarget(ev.ID, evIdeal, field)
			if !ok {
				return relocationSolution{}, false
			}
		}

		sol.errorAfter += math.Abs(pos.Distance - evIdeal)
		sol.moved = append(sol.moved, Moved{ID: ev.ID, Position: pos})
		field = append(field, Occupant{ID: ev.ID, Score: ev.Score, Position: pos})
	}

	return sol, true
}

// beneficial decides whether a relocation solution should be applied.
//
// A solution that moves only the newcomer is trivially beneficial. A
// multi-company solution must reduce the summed positioning error of the
// relocated occupants by more than the improvement threshold; shuffling
// existing companies around for a marginal gain is worse than falling
// through to the stage 4 fallback.
func (e *Engine) beneficial(sol relocationSolution) bool {
	if len(sol.moved) <= 1 {
		return true
	}
	return sol.errorBefore-sol.errorAfter > e.params.RelocationImprovement
}

// worstPlaced returns up to maxRelocationCandidates occupants ordered by
// how far their current distance deviates from their own ideal ring,
// worst first. Occupants already sitting on their ideal ring are skipped.
func (e *Engine) worstPlaced(occupants []Occupant) []Occupant {
	type scored struct {
		occ       Occupant
		deviation float64
	}

	var out []scored
	for i := range occupants {
		dev := math.Abs(occupants[i].Position.Distance - e.IdealDistance(occupants[i].Score))
		if dev > 0 {
			out = append(out, scored{occ: occupants[i], deviation: dev})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].deviation != out[j].deviation {
			return out[i].deviation > out[j].deviation
		}
		return out[i].occ.ID < out[j].occ.ID
	})

	if len(out) > maxRelocationCandidates {
		out = out[:maxRelocationCandidates]
	}

	result := make([]Occupant, len(out))
	for i := range out {
		result[i] = out[i].occ
	}
	return result
}

func containsOccupant(occupants []Occupant, id int64) bool {
	for i := range occupants {
		if occupants[i].ID == id {
			return true
		}
	}
	return false
}
