// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the gin handlers for the explorer HTTP
// surface.
//
// Handlers are thin: request binding and status codes live here, every
// rule lives in the state manager. Mutations never fail for persistence
// reasons — the manager absorbs those — so the only error responses are
// bad requests and unknown ids.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/scoutline/scoutline/services/explorer/datatypes"
	"github.com/scoutline/scoutline/services/explorer/state"
)

// companyID parses the :id path parameter.
func companyID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company id"})
		return 0, false
	}
	return id, true
}

// AddCompany handles POST /v1/companies.
func AddCompany(mgr *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.AddCompanyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		stored := mgr.AddCompany(c.Request.Context(), req.Company())
		c.JSON(http.StatusCreated, stored)
	}
}

// UpsertCompany handles PUT /v1/companies/:id.
//
// Keeps the original update contract: an unknown id is promoted to an
// insert rather than rejected, so the response can carry a different id
// than the path.
func UpsertCompany(mgr *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := companyID(c)
		if !ok {
			return
		}

		var req datatypes.UpsertCompanyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		company := datatypes.Company{
			ID:          id,
			Name:        req.Name,
			Industry:    req.Industry,
			Location:    req.Location,
			Notes:       req.Notes,
			MatchScore:  req.MatchScore,
			OpenRoles:   req.OpenRoles,
			Connections: req.Connections,
		}
		stored := mgr.UpsertCompany(c.Request.Context(), company)
		c.JSON(http.StatusOK, stored)
	}
}

// RemoveCompany handles DELETE /v1/companies/:id. Idempotent.
func RemoveCompany(mgr *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := companyID(c)
		if !ok {
			return
		}

		mgr.RemoveCompany(c.Request.Context(), id)
		c.JSON(http.StatusOK, gin.H{"status": "removed", "company_id": id})
	}
}

// RestoreCompany handles POST /v1/companies/:id/restore. Idempotent.
func RestoreCompany(mgr *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := companyID(c)
		if !ok {
			return
		}

		mgr.RestoreCompany(c.Request.Context(), id)
		c.JSON(http.StatusOK, gin.H{"status": "restored", "company_id": id})
	}
}

// ListCompanies handles GET /v1/companies.
//
// Returns the companies visible in the active view; ?scope=all returns
// every non-removed company regardless of view.
func ListCompanies(mgr *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var companies []datatypes.Company
		if c.Query("scope") == "all" {
			companies = mgr.AllCompanies()
		} else {
			companies = mgr.DisplayedCompanies()
		}
		if companies == nil {
			companies = []datatypes.Company{}
		}
		c.JSON(http.StatusOK, gin.H{"companies": companies, "count": len(companies)})
	}
}

// handleNotFound maps manager errors to HTTP statuses.
func handleNotFound(c *gin.Context, err error) {
	if errors.Is(err, state.ErrCompanyNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	slog.Error("unexpected state manager error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
