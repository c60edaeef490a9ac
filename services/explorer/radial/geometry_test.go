// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package radial

import (
	"math"
	"testing"
)

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		name string
		deg  float64
		want float64
	}{
		{"zero", 0, 0},
		{"in range", 123.4, 123.4},
		{"exactly 360", 360, 0},
		{"over 360", 370, 10},
		{"negative", -10, 350},
		{"large negative", -730, 350},
		{"multiple wraps", 725, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAngle(tt.deg)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("NormalizeAngle(%v) = %v, want %v", tt.deg, got, tt.want)
			}
		})
	}
}

func TestAngularSeparation(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		want float64
	}{
		{"identical", 45, 45, 0},
		{"simple", 10, 40, 30},
		{"order independent", 40, 10, 30},
		{"wrap around", 350, 10, 20},
		{"opposite", 0, 180, 180},
		{"beyond half circle", 0, 190, 170},
		{"unnormalized inputs", -10, 370, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AngularSeparation(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("AngularSeparation(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// The conflict rule requires BOTH separations below tolerance. Close in
// angle but far in radius (or the reverse) is not a conflict.
func TestParams_Conflicts(t *testing.T) {
	p := DefaultParams() // 12 deg angular, 25 radial

	tests := []struct {
		name string
		a, b Placement
		want bool
	}{
		{
			name: "both below tolerance",
			a:    Placement{AngleDeg: 10, Distance: 200},
			b:    Placement{AngleDeg: 15, Distance: 210},
			want: true,
		},
		{
			name: "same ring different angle",
			a:    Placement{AngleDeg: 0, Distance: 200},
			b:    Placement{AngleDeg: 90, Distance: 200},
			want: false,
		},
		{
			name: "same angle adjacent ring",
			a:    Placement{AngleDeg: 30, Distance: 200},
			b:    Placement{AngleDeg: 30, Distance: 230},
			want: false,
		},
		{
			name: "exactly at angular tolerance",
			a:    Placement{AngleDeg: 0, Distance: 200},
			b:    Placement{AngleDeg: 12, Distance: 200},
			want: false,
		},
		{
			name: "exactly at radial tolerance",
			a:    Placement{AngleDeg: 0, Distance: 200},
			b:    Placement{AngleDeg: 0, Distance: 225},
			want: false,
		},
		{
			name: "wrap-around angles close",
			a:    Placement{AngleDeg: 355, Distance: 100},
			b:    Placement{AngleDeg: 2, Distance: 110},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.conflicts(tt.a, tt.b); got != tt.want {
				t.Errorf("conflicts(%+v, %+v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			// Symmetry.
			if got := p.conflicts(tt.b, tt.a); got != tt.want {
				t.Errorf("conflicts not symmetric for %s", tt.name)
			}
		})
	}
}

func TestMaxOccupiedDistance(t *testing.T) {
	if got := maxOccupiedDistance(nil); got != 0 {
		t.Errorf("empty field: got %v, want 0", got)
	}

	occupants := []Occupant{
		{ID: 1, Position: Placement{Distance: 120}},
		{ID: 2, Position: Placement{Distance: 310}},
		{ID: 3, Position: Placement{Distance: 90}},
	}
	if got := maxOccupiedDistance(occupants); got != 310 {
		t.Errorf("got %v, want 310", got)
	}
}
