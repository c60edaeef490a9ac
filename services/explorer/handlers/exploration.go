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
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/scoutline/scoutline/pkg/validation"
	"github.com/scoutline/scoutline/services/explorer/datatypes"
	"github.com/scoutline/scoutline/services/explorer/state"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("identity_token", func(fl validator.FieldLevel) bool {
			return validation.ValidateIdentityToken(fl.Field().String()) == nil
		})
	}
}

// HealthCheck handles GET /health.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "explorer"})
}

// GetState handles GET /v1/state. Returns a snapshot of the whole
// exploration state; never the live object.
func GetState(mgr *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, mgr.Snapshot())
	}
}

// ReplaceState handles PUT /v1/state. The submitted snapshot becomes
// the new canonical state wholesale. Intended for restoring a dumped
// snapshot; normal clients mutate through the narrower endpoints.
func ReplaceState(mgr *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var snap datatypes.ExplorationState
		if err := c.ShouldBindJSON(&snap); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := mgr.ReplaceState(c.Request.Context(), &snap); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"version": mgr.Version()})
	}
}

// GetExplorationStats handles GET /v1/state/stats.
func GetExplorationStats(mgr *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, mgr.ExplorationStats())
	}
}

// SetViewMode handles PUT /v1/state/view.
func SetViewMode(mgr *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.SetViewModeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := mgr.SetViewMode(c.Request.Context(), req.Mode); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"view_mode": req.Mode})
	}
}

// SetSelection handles PUT /v1/state/selection. A zero company id
// clears the selection.
func SetSelection(mgr *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.SetSelectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := mgr.SetSelectedCompany(c.Request.Context(), req.CompanyID); err != nil {
			handleNotFound(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"selected_company_id": req.CompanyID})
	}
}

// GetSelection handles GET /v1/state/selection.
func GetSelection(mgr *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		company, ok := mgr.SelectedCompany()
		if !ok {
			c.JSON(http.StatusOK, gin.H{"selected": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"selected": true, "company": company})
	}
}
