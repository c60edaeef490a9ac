// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package state

import (
	"context"
	"time"

	"github.com/scoutline/scoutline/services/explorer/datatypes"
)

// CompactResult summarizes one tombstone compaction pass.
type CompactResult struct {
	// TombstonesFound is how many tombstones were older than the cutoff.
	TombstonesFound int

	// TombstonesCompacted is how many were actually erased this pass
	// (bounded by the batch limit).
	TombstonesCompacted int

	// OrphansErased is how many added-company records were erased along
	// with their tombstone. Base companies are never erased; the profile
	// loader owns them.
	OrphansErased int
}

// CompactTombstones erases tombstones older than maxAge, together with
// the added-company records they hide.
//
// # Description
//
// Tombstones exist so removal stays reversible, but nothing in the core
// ever expires them on its own. This is the retention policy: a
// compacted company is gone for good — its id is never reused (ids are
// monotonic over MaxCompanyID of the survivors plus the floor, and base
// ids never change), but it can no longer be restored. The retention
// scheduler calls this on an interval; a maxAge of 0 disables compaction
// entirely, which matches the keep-forever behavior of doing nothing.
//
// # Inputs
//
//   - ctx: Context for the synchronous local cache write.
//   - maxAge: Minimum tombstone age before compaction. 0 disables.
//   - limit: Maximum tombstones to compact in one pass. <=0 means all.
//
// # Outputs
//
//   - CompactResult: What was found and erased.
func (m *Manager) CompactTombstones(ctx context.Context, maxAge time.Duration, limit int) CompactResult {
	if maxAge <= 0 {
		return CompactResult{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.clock().Add(-maxAge).UnixMilli()

	var result CompactResult
	var keep []datatypes.Tombstone
	var compactIDs []int64
	for _, t := range m.st.RemovedCompanies {
		if t.RemovedAt >= cutoff {
			keep = append(keep, t)
			continue
		}
		result.TombstonesFound++
		if limit > 0 && result.TombstonesCompacted >= limit {
			keep = append(keep, t)
			continue
		}
		result.TombstonesCompacted++
		compactIDs = append(compactIDs, t.CompanyID)
	}

	if result.TombstonesCompacted == 0 {
		return result
	}

	m.st.RemovedCompanies = keep
	if m.st.RemovedCompanies == nil {
		m.st.RemovedCompanies = []datatypes.Tombstone{}
	}

	for _, id := range compactIDs {
		if m.eraseAddedCompany(id) {
			result.OrphansErased++
		}
	}

	m.logger.Info("tombstones compacted",
		"found", result.TombstonesFound,
		"compacted", result.TombstonesCompacted,
		"orphans_erased", result.OrphansErased,
	)
	m.commit(ctx, "compact_tombstones", true)
	return result
}

// eraseAddedCompany deletes an added-company record for good. Caller
// holds the lock. Returns false for base companies, which are retained.
func (m *Manager) eraseAddedCompany(id int64) bool {
	for i := range m.st.AddedCompanies {
		if m.st.AddedCompanies[i].ID == id {
			m.st.AddedCompanies = append(m.st.AddedCompanies[:i], m.st.AddedCompanies[i+1:]...)
			return true
		}
	}
	return false
}
