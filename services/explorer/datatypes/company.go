// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the core data model for the explorer service.
//
// The model is a plain DAG of records: companies, per-view placements, and
// the exploration state that owns them. There are no back-references or
// cycles, so defensive copies are done with explicit per-field Clone methods
// instead of serialize round-trips.
package datatypes

// =============================================================================
// Placement
// =============================================================================

// Position is a polar placement on the exploration surface.
//
// AngleDeg is in degrees, normalized to [0, 360). Distance is the radial
// distance from the center and is always >= 0.
type Position struct {
	AngleDeg float64 `json:"angle_deg"`
	Distance float64 `json:"distance"`
}

// Clone returns a copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// =============================================================================
// Company
// =============================================================================

// Company is a single curated company on the exploration surface.
//
// # Description
//
// A company carries two independent placement records, one per view mode.
// Mutating one placement never touches the other: a company keeps its spot
// in "explore" even while it is parked on the watchlist.
//
// IDs are unique across base and added companies, monotonically assigned,
// and never reused. MatchScore is 0-100 and drives the target ring distance
// (higher score means closer to the center).
type Company struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Industry   string `json:"industry,omitempty"`
	Location   string `json:"location,omitempty"`
	Notes      string `json:"notes,omitempty"`

	// MatchScore is 0-100. Drives the ideal ring distance.
	MatchScore float64 `json:"match_score"`

	// OpenRoles is the number of currently open roles at the company.
	OpenRoles int `json:"open_roles,omitempty"`

	// Connections are names of known contacts at the company.
	Connections []string `json:"connections,omitempty"`

	// ExplorePosition and WatchlistPosition are independent per-view
	// placements. Nil means the company has never been placed in that view.
	ExplorePosition   *Position `json:"explore_position,omitempty"`
	WatchlistPosition *Position `json:"watchlist_position,omitempty"`

	// AddedAt is when the company entered the state (Unix milliseconds UTC).
	// Zero for base companies supplied by the profile loader.
	AddedAt int64 `json:"added_at,omitempty"`
}

// ExcellentMatchThreshold is the minimum MatchScore for a company to count
// as an "excellent" match in watchlist statistics.
const ExcellentMatchThreshold = 85.0

// IsExcellentMatch reports whether the company counts as an excellent match.
func (c *Company) IsExcellentMatch() bool {
	return c.MatchScore >= ExcellentMatchThreshold
}

// Clone returns a deep copy of the company.
//
// Explicit per-field copy; the only reference fields are the connection
// slice and the two placement pointers.
func (c *Company) Clone() Company {
	cp := *c
	if c.Connections != nil {
		cp.Connections = make([]string, len(c.Connections))
		copy(cp.Connections, c.Connections)
	}
	cp.ExplorePosition = c.ExplorePosition.Clone()
	cp.WatchlistPosition = c.WatchlistPosition.Clone()
	return cp
}

// CloneCompanies returns a deep copy of a company slice.
func CloneCompanies(companies []Company) []Company {
	if companies == nil {
		return nil
	}
	out := make([]Company, len(companies))
	for i := range companies {
		out[i] = companies[i].Clone()
	}
	return out
}
