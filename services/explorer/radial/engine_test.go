// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package radial

import (
	"math"
	"reflect"
	"testing"
)

func TestIdealDistance(t *testing.T) {
	e := NewEngine(DefaultParams())
	p := e.Params()

	tests := []struct {
		name  string
		score float64
		want  float64
	}{
		{"perfect score at inner edge", 100, p.MinRadius},
		{"zero score at outer edge", 0, p.MaxRadius},
		{"midpoint", 50, p.MinRadius + (p.MaxRadius-p.MinRadius)/2},
		{"above range clamped", 250, p.MinRadius},
		{"below range clamped", -40, p.MaxRadius},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.IdealDistance(tt.score)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("IdealDistance(%v) = %v, want %v", tt.score, got, tt.want)
			}
		})
	}
}

func TestIdealDistance_Monotonic(t *testing.T) {
	e := NewEngine(DefaultParams())
	prev := e.IdealDistance(0)
	for score := 1.0; score <= 100; score++ {
		d := e.IdealDistance(score)
		if d > prev {
			t.Fatalf("IdealDistance not monotonic at score %v: %v > %v", score, d, prev)
		}
		prev = d
	}
}

func TestPlace_EmptyField(t *testing.T) {
	e := NewEngine(DefaultParams())
	res := e.Place(Candidate{ID: 1, Score: 90}, nil)

	if res.Stage != StageDirect {
		t.Errorf("Stage = %v, want %v", res.Stage, StageDirect)
	}
	if res.Placement.Distance != e.IdealDistance(90) {
		t.Errorf("Distance = %v, want ideal %v", res.Placement.Distance, e.IdealDistance(90))
	}
	if len(res.Relocated) != 0 {
		t.Errorf("Relocated = %v, want empty", res.Relocated)
	}
}

func TestPlace_Deterministic(t *testing.T) {
	e := NewEngine(DefaultParams())
	occupants := []Occupant{
		{ID: 1, Score: 80, Position: Placement{AngleDeg: 45, Distance: 144}},
		{ID: 2, Score: 60, Position: Placement{AngleDeg: 200, Distance: 208}},
		{ID: 3, Score: 40, Position: Placement{AngleDeg: 120, Distance: 272}},
	}

	first := e.Place(Candidate{ID: 9, Score: 75}, occupants)
	second := e.Place(Candidate{ID: 9, Score: 75}, occupants)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("placements differ: %+v vs %+v", first, second)
	}
}

// Two companies with the same score share the ideal ring but take
// different angles; neither is pushed off the ring.
func TestPlace_SameRingDifferentAngles(t *testing.T) {
	e := NewEngine(DefaultParams())
	ideal := e.IdealDistance(70)

	first := e.Place(Candidate{ID: 10, Score: 70}, nil)
	occupants := []Occupant{{ID: 10, Score: 70, Position: first.Placement}}
	second := e.Place(Candidate{ID: 11, Score: 70}, occupants)

	if second.Stage != StageDirect {
		t.Fatalf("Stage = %v, want %v", second.Stage, StageDirect)
	}
	if second.Placement.Distance != ideal {
		t.Errorf("Distance = %v, want %v", second.Placement.Distance, ideal)
	}
	sep := AngularSeparation(first.Placement.AngleDeg, second.Placement.AngleDeg)
	if sep < e.Params().MinAngularSepDeg {
		t.Errorf("angular separation %v below tolerance", sep)
	}
}

// occupyRing fills every angle slot on the ring at the given distance so
// no direct placement there can succeed.
func occupyRing(p Params, distance float64, firstID int64) []Occupant {
	slotWidth := 360.0 / float64(p.AngleSlots)
	out := make([]Occupant, 0, p.AngleSlots)
	for i := 0; i < p.AngleSlots; i++ {
		out = append(out, Occupant{
			ID:       firstID + int64(i),
			Score:    50,
			Position: Placement{AngleDeg: float64(i) * slotWidth, Distance: distance},
		})
	}
	return out
}

func TestPlace_SaturatedRingEscalatesToNearTarget(t *testing.T) {
	e := NewEngine(DefaultParams())
	p := e.Params()
	ideal := e.IdealDistance(50)

	occupants := occupyRing(p, ideal, 100)
	res := e.Place(Candidate{ID: 500, Score: 50}, occupants)

	if res.Stage != StageNearTarget {
		t.Fatalf("Stage = %v, want %v", res.Stage, StageNearTarget)
	}
	if len(res.Relocated) != 0 {
		t.Errorf("near-target placement relocated occupants: %v", res.Relocated)
	}

	// The chosen ring is within the bounded offsets of the target.
	offset := math.Abs(res.Placement.Distance - ideal)
	maxOffset := float64(p.MaxRingOffsets) * p.RingStep
	if offset < p.RingStep-1e-9 || offset > maxOffset+1e-9 {
		t.Errorf("distance offset %v outside [%v, %v]", offset, p.RingStep, maxOffset)
	}
	assertNoConflicts(t, p, res, occupants)
}

func TestPlace_OuterEdgeExtendsOutwardOnly(t *testing.T) {
	e := NewEngine(DefaultParams())
	p := e.Params()
	ideal := e.IdealDistance(0) // MaxRadius: already at the outer edge

	// Block the target ring and every bounded offset ring.
	var occupants []Occupant
	id := int64(100)
	for i := -p.MaxRingOffsets; i <= p.MaxRingOffsets; i++ {
		d := ideal + float64(i)*p.RingStep
		occupants = append(occupants, occupyRing(p, d, id)...)
		id += int64(p.AngleSlots)
	}

	res := e.Place(Candidate{ID: 999, Score: 0}, occupants)

	// Whatever stage resolves it, a low-score company saturating the
	// outer edge must end up outside the blocked band, never inside.
	if res.Placement.Distance <= ideal+float64(p.MaxRingOffsets)*p.RingStep &&
		res.Stage == StageNearTarget {
		t.Errorf("placement %v inside the blocked band", res.Placement.Distance)
	}
	assertNoConflicts(t, p, res, occupants)
}

func TestPlace_FallbackAlwaysSucceeds(t *testing.T) {
	e := NewEngine(DefaultParams())
	p := e.Params()

	// Saturate a wide band of rings around every plausible target so
	// stages 1-3 cannot find room.
	var occupants []Occupant
	id := int64(1000)
	for d := p.MinRadius / 2; d <= p.MaxRadius+float64(p.MaxRingOffsets+p.OuterExtensionSteps)*p.RingStep; d += p.RingStep / 2 {
		occupants = append(occupants, occupyRing(p, d, id)...)
		id += int64(p.AngleSlots)
	}

	res := e.Place(Candidate{ID: 7, Score: 50}, occupants)

	if res.Stage != StageFallback {
		t.Fatalf("Stage = %v, want %v", res.Stage, StageFallback)
	}
	max := maxOccupiedDistance(occupants)
	if res.Placement.Distance <= max {
		t.Errorf("fallback distance %v not beyond outermost occupant %v", res.Placement.Distance, max)
	}
	assertNoConflicts(t, p, res, occupants)
}

func TestPlace_RelocationMovesAtMostTwoOccupants(t *testing.T) {
	e := NewEngine(DefaultParams())

	// Run a dense sequential fill; whenever a relocation fires it may
	// move at most two existing occupants plus the newcomer.
	var occupants []Occupant
	for i := 0; i < 120; i++ {
		c := Candidate{ID: int64(i + 1), Score: float64((i * 13) % 101)}
		res := e.Place(c, occupants)

		moved := 0
		for _, mv := range res.Relocated {
			if mv.ID != c.ID {
				moved++
			}
		}
		if moved > maxRelocationCandidates {
			t.Fatalf("placement %d relocated %d occupants", i, moved)
		}
		if res.Stage != StageRelocation && moved != 0 {
			t.Fatalf("stage %v reported relocations", res.Stage)
		}

		occupants = applyResult(occupants, c, res)
	}
}

// A sequential fill of many companies stays conflict-free throughout,
// whichever stages fire along the way.
func TestPlace_SequentialFillIsConflictFree(t *testing.T) {
	e := NewEngine(DefaultParams())
	p := e.Params()

	var occupants []Occupant
	for i := 0; i < 200; i++ {
		c := Candidate{ID: int64(i + 1), Score: float64((i * 37) % 101)}
		res := e.Place(c, occupants)
		occupants = applyResult(occupants, c, res)

		for a := 0; a < len(occupants); a++ {
			for b := a + 1; b < len(occupants); b++ {
				if p.conflicts(occupants[a].Position, occupants[b].Position) {
					t.Fatalf("conflict after placing %d companies: %d vs %d (%+v vs %+v)",
						i+1, occupants[a].ID, occupants[b].ID,
						occupants[a].Position, occupants[b].Position)
				}
			}
		}
	}
}

func TestAngleSeed_StableAndInRange(t *testing.T) {
	for _, slots := range []int{4, 24, 36} {
		for id := int64(0); id < 100; id++ {
			s1 := angleSeed(id, slots)
			s2 := angleSeed(id, slots)
			if s1 != s2 {
				t.Fatalf("angleSeed(%d, %d) unstable", id, slots)
			}
			if s1 < 0 || s1 >= slots {
				t.Fatalf("angleSeed(%d, %d) = %d out of range", id, slots, s1)
			}
		}
	}
}

// applyResult folds a placement result into the occupant field the way
// the state manager does: relocated occupants move, the newcomer joins.
func applyResult(occupants []Occupant, c Candidate, res Result) []Occupant {
	out := make([]Occupant, 0, len(occupants)+1)
	for _, occ := range occupants {
		pos := occ.Position
		for _, mv := range res.Relocated {
			if mv.ID == occ.ID {
				pos = mv.Position
			}
		}
		out = append(out, Occupant{ID: occ.ID, Score: occ.Score, Position: pos})
	}
	return append(out, Occupant{ID: c.ID, Score: c.Score, Position: res.Placement})
}

// assertNoConflicts verifies the new placement (and any relocated
// occupants) against the rest of the field. Occupant-to-occupant pairs
// are not checked: some tests build deliberately over-dense fields.
func assertNoConflicts(t *testing.T, p Params, res Result, occupants []Occupant) {
	t.Helper()
	field := applyResult(occupants, Candidate{ID: -1}, res)

	moved := map[int64]bool{-1: true}
	for _, mv := range res.Relocated {
		moved[mv.ID] = true
	}

	for a := 0; a < len(field); a++ {
		if !moved[field[a].ID] {
			continue
		}
		for b := 0; b < len(field); b++ {
			if a == b {
				continue
			}
			if p.conflicts(field[a].Position, field[b].Position) {
				t.Errorf("conflict between %d and %d: %+v vs %+v",
					field[a].ID, field[b].ID, field[a].Position, field[b].Position)
			}
		}
	}
}
