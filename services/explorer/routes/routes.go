// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scoutline/scoutline/services/explorer/handlers"
	"github.com/scoutline/scoutline/services/explorer/state"
)

// SetupRoutes registers the explorer HTTP surface on the router.
func SetupRoutes(router *gin.Engine, mgr *state.Manager) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		companies := v1.Group("/companies")
		{
			companies.GET("", handlers.ListCompanies(mgr))
			companies.POST("", handlers.AddCompany(mgr))
			companies.PUT("/:id", handlers.UpsertCompany(mgr))
			companies.DELETE("/:id", handlers.RemoveCompany(mgr))
			companies.POST("/:id/restore", handlers.RestoreCompany(mgr))
			companies.POST("/:id/watchlist", handlers.ToggleWatchlist(mgr))
		}

		watchlist := v1.Group("/watchlist")
		{
			watchlist.GET("", handlers.ListWatchlist(mgr))
			watchlist.GET("/stats", handlers.WatchlistStats(mgr))
		}

		st := v1.Group("/state")
		{
			st.GET("", handlers.GetState(mgr))
			st.PUT("", handlers.ReplaceState(mgr))
			st.GET("/stats", handlers.GetExplorationStats(mgr))
			st.GET("/selection", handlers.GetSelection(mgr))
			st.PUT("/selection", handlers.SetSelection(mgr))
			st.PUT("/view", handlers.SetViewMode(mgr))
			st.GET("/watch", handlers.WatchState(mgr))
		}
	}
}
