// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package radial

import "math"

// NormalizeAngle wraps an angle into [0, 360).
func NormalizeAngle(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// AngularSeparation returns the shortest wrap-around separation between two
// angles, in degrees. Always in [0, 180].
func AngularSeparation(a, b float64) float64 {
	d := math.Abs(NormalizeAngle(a) - NormalizeAngle(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}

// conflicts applies the dual-tolerance conflict rule: two points conflict
// only when they are close on BOTH axes. Being far apart on either axis
// alone is enough to avoid a conflict.
func (p Params) conflicts(a, b Placement) bool {
	return AngularSeparation(a.AngleDeg, b.AngleDeg) < p.MinAngularSepDeg &&
		math.Abs(a.Distance-b.Distance) < p.MinRadialSep
}

// conflictsAny reports whether the placement conflicts with any occupant.
func (p Params) conflictsAny(pos Placement, occupants []Occupant) bool {
	for i := range occupants {
		if p.conflicts(pos, occupants[i].Position) {
			return true
		}
	}
	return false
}

// maxOccupiedDistance returns the radial extent of the occupied surface.
func maxOccupiedDistance(occupants []Occupant) float64 {
	var max float64
	for i := range occupants {
		if occupants[i].Position.Distance > max {
			max = occupants[i].Position.Distance
		}
	}
	return max
}
