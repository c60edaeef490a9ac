// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// API request/response shapes for the explorer HTTP surface.
// Validation happens through gin's binding tags (go-playground/validator).

// AddCompanyRequest is the body for POST /v1/companies.
// The id is assigned by the state manager, never by the caller.
type AddCompanyRequest struct {
	Name        string   `json:"name" binding:"required"`
	Industry    string   `json:"industry,omitempty"`
	Location    string   `json:"location,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	MatchScore  float64  `json:"match_score" binding:"gte=0,lte=100"`
	OpenRoles   int      `json:"open_roles,omitempty" binding:"gte=0"`
	Connections []string `json:"connections,omitempty"`
}

// Company converts the request into a Company with an unset id.
func (r *AddCompanyRequest) Company() Company {
	return Company{
		Name:        r.Name,
		Industry:    r.Industry,
		Location:    r.Location,
		Notes:       r.Notes,
		MatchScore:  r.MatchScore,
		OpenRoles:   r.OpenRoles,
		Connections: r.Connections,
	}
}

// UpsertCompanyRequest is the body for PUT /v1/companies/:id.
type UpsertCompanyRequest struct {
	Name        string   `json:"name" binding:"required"`
	Industry    string   `json:"industry,omitempty"`
	Location    string   `json:"location,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	MatchScore  float64  `json:"match_score" binding:"gte=0,lte=100"`
	OpenRoles   int      `json:"open_roles,omitempty" binding:"gte=0"`
	Connections []string `json:"connections,omitempty"`
}

// SetViewModeRequest is the body for PUT /v1/state/view.
type SetViewModeRequest struct {
	Mode ViewMode `json:"mode" binding:"required,oneof=explore watchlist"`
}

// SetSelectionRequest is the body for PUT /v1/state/selection.
// A zero (or omitted) CompanyID clears the selection.
type SetSelectionRequest struct {
	CompanyID int64 `json:"company_id" binding:"gte=0"`
}

// ToggleWatchlistResponse reports the new membership after a toggle.
type ToggleWatchlistResponse struct {
	CompanyID   int64 `json:"company_id"`
	InWatchlist bool  `json:"in_watchlist"`
}

// VersionEvent is pushed on the state watch socket after each mutation.
type VersionEvent struct {
	Version int64 `json:"version"`
}
