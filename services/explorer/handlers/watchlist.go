// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scoutline/scoutline/services/explorer/datatypes"
	"github.com/scoutline/scoutline/services/explorer/state"
)

// ToggleWatchlist handles POST /v1/companies/:id/watchlist.
func ToggleWatchlist(mgr *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := companyID(c)
		if !ok {
			return
		}

		inWatchlist, err := mgr.ToggleWatchlist(c.Request.Context(), id)
		if err != nil {
			handleNotFound(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.ToggleWatchlistResponse{
			CompanyID:   id,
			InWatchlist: inWatchlist,
		})
	}
}

// ListWatchlist handles GET /v1/watchlist.
func ListWatchlist(mgr *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		companies := mgr.WatchlistCompanies()
		if companies == nil {
			companies = []datatypes.Company{}
		}
		c.JSON(http.StatusOK, gin.H{"companies": companies, "count": len(companies)})
	}
}

// WatchlistStats handles GET /v1/watchlist/stats.
func WatchlistStats(mgr *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, mgr.WatchlistStats())
	}
}
