// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// =============================================================================
// View Modes
// =============================================================================

// ViewMode selects which of the two mutually exclusive display partitions
// is active.
type ViewMode string

const (
	// ViewModeExplore shows all visible companies that are not watchlisted.
	ViewModeExplore ViewMode = "explore"

	// ViewModeWatchlist shows only visible, watchlisted companies.
	ViewModeWatchlist ViewMode = "watchlist"
)

// Valid reports whether the view mode is one of the known values.
func (m ViewMode) Valid() bool {
	return m == ViewModeExplore || m == ViewModeWatchlist
}

// =============================================================================
// Tombstones
// =============================================================================

// Tombstone marks a company as removed without erasing its record.
//
// The underlying company stays in BaseCompanies/AddedCompanies so that a
// restore brings it back exactly as it was (minus watchlist membership,
// which is intentionally not preserved across remove/restore).
type Tombstone struct {
	CompanyID int64 `json:"company_id"`

	// RemovedAt is when the company was removed (Unix milliseconds UTC).
	// Used by the retention scheduler to decide when a tombstone may be
	// compacted away.
	RemovedAt int64 `json:"removed_at"`
}

// =============================================================================
// ExplorationState
// =============================================================================

// ExplorationState is the canonical, JSON-serializable curation state for
// one user profile.
//
// # Description
//
// The state is constructed once from an externally supplied snapshot and
// mutated exclusively through the state.Manager operations. The whole
// object is persisted wholesale under a single key on every mutation;
// there is no delta encoding.
//
// # Thread Safety
//
// Not safe for concurrent use on its own. Ownership and locking live in
// the state.Manager; everything handed to callers is a Clone.
type ExplorationState struct {
	// IdentityToken is the externally issued identifier for the owning
	// user profile. Must be a well-formed UUID before any remote write.
	IdentityToken string `json:"identity_token" binding:"required,identity_token"`

	// BaseCompanies is the initial set supplied by the profile loader.
	BaseCompanies []Company `json:"base_companies"`

	// AddedCompanies grows through AddCompany/UpsertCompany.
	AddedCompanies []Company `json:"added_companies"`

	// RemovedCompanies are tombstones. A removed id is never deleted from
	// the company lists; removal is reversible via restore.
	RemovedCompanies []Tombstone `json:"removed_companies"`

	// WatchlistCompanyIDs is ordered and deduplicated.
	WatchlistCompanyIDs []int64 `json:"watchlist_company_ids"`

	// ViewMode is the active display partition.
	ViewMode ViewMode `json:"view_mode"`

	// SelectedCompanyID is the last selected company, 0 if none.
	// Company ids start at 1, so 0 is a safe sentinel.
	SelectedCompanyID int64 `json:"selected_company_id,omitempty"`

	// LastAssignedID is the high-water mark for assigned company ids.
	// Survives tombstone compaction so ids are never reused even after
	// the highest added company is erased.
	LastAssignedID int64 `json:"last_assigned_id,omitempty"`

	// Version increases by one on every mutation. External collaborators
	// use it to decide whether to reload; it is never used to merge.
	Version int64 `json:"version"`
}

// NewExplorationState returns an empty state for the given identity.
func NewExplorationState(identityToken string) *ExplorationState {
	return &ExplorationState{
		IdentityToken:       identityToken,
		BaseCompanies:       []Company{},
		AddedCompanies:      []Company{},
		RemovedCompanies:    []Tombstone{},
		WatchlistCompanyIDs: []int64{},
		ViewMode:            ViewModeExplore,
	}
}

// Clone returns a deep copy of the state.
//
// Explicit per-field copy (the model is a plain DAG, no cycles). This is
// what every query returns instead of the live object.
func (s *ExplorationState) Clone() *ExplorationState {
	if s == nil {
		return nil
	}
	cp := &ExplorationState{
		IdentityToken:     s.IdentityToken,
		ViewMode:          s.ViewMode,
		SelectedCompanyID: s.SelectedCompanyID,
		LastAssignedID:    s.LastAssignedID,
		Version:           s.Version,
	}
	cp.BaseCompanies = CloneCompanies(s.BaseCompanies)
	cp.AddedCompanies = CloneCompanies(s.AddedCompanies)
	if s.RemovedCompanies != nil {
		cp.RemovedCompanies = make([]Tombstone, len(s.RemovedCompanies))
		copy(cp.RemovedCompanies, s.RemovedCompanies)
	}
	if s.WatchlistCompanyIDs != nil {
		cp.WatchlistCompanyIDs = make([]int64, len(s.WatchlistCompanyIDs))
		copy(cp.WatchlistCompanyIDs, s.WatchlistCompanyIDs)
	}
	return cp
}

// IsRemoved reports whether the id has a tombstone.
func (s *ExplorationState) IsRemoved(id int64) bool {
	for _, t := range s.RemovedCompanies {
		if t.CompanyID == id {
			return true
		}
	}
	return false
}

// IsWatchlisted reports whether the id is on the watchlist.
func (s *ExplorationState) IsWatchlisted(id int64) bool {
	for _, wid := range s.WatchlistCompanyIDs {
		if wid == id {
			return true
		}
	}
	return false
}

// FindCompany returns a pointer into the live company lists, or nil.
// Internal helper for the manager; callers outside the core get clones.
func (s *ExplorationState) FindCompany(id int64) *Company {
	for i := range s.BaseCompanies {
		if s.BaseCompanies[i].ID == id {
			return &s.BaseCompanies[i]
		}
	}
	for i := range s.AddedCompanies {
		if s.AddedCompanies[i].ID == id {
			return &s.AddedCompanies[i]
		}
	}
	return nil
}

// MaxCompanyID returns the largest id across both company lists, 0 if empty.
func (s *ExplorationState) MaxCompanyID() int64 {
	var max int64
	for i := range s.BaseCompanies {
		if s.BaseCompanies[i].ID > max {
			max = s.BaseCompanies[i].ID
		}
	}
	for i := range s.AddedCompanies {
		if s.AddedCompanies[i].ID > max {
			max = s.AddedCompanies[i].ID
		}
	}
	return max
}
