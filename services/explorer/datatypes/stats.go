// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// WatchlistStats is a derived aggregate over the visible watchlist.
// Recomputed on demand, never stored.
type WatchlistStats struct {
	TotalCompanies   int `json:"total_companies"`
	ExcellentMatches int `json:"excellent_matches"`
	TotalOpenRoles   int `json:"total_open_roles"`
}

// ExplorationStats summarizes the whole exploration state.
type ExplorationStats struct {
	TotalCompanies     int      `json:"total_companies"`
	BaseCompanies      int      `json:"base_companies"`
	AddedCompanies     int      `json:"added_companies"`
	RemovedCompanies   int      `json:"removed_companies"`
	WatchlistCompanies int      `json:"watchlist_companies"`
	ViewMode           ViewMode `json:"view_mode"`
	Version            int64    `json:"version"`
}
