// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package state

import (
	"github.com/scoutline/scoutline/services/explorer/datatypes"
)

// =============================================================================
// Query Surface
// =============================================================================
//
// Every query returns defensive copies. The canonical state never leaves
// the manager.

// AllCompanies returns every non-removed company, base and added.
func (m *Manager) AllCompanies() []datatypes.Company {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []datatypes.Company
	collect := func(list []datatypes.Company) {
		for i := range list {
			if !m.st.IsRemoved(list[i].ID) {
				out = append(out, list[i].Clone())
			}
		}
	}
	collect(m.st.BaseCompanies)
	collect(m.st.AddedCompanies)
	return out
}

// DisplayedCompanies returns the companies visible in the active view.
//
// Explore shows (all − removed − watchlisted); watchlist shows
// ((all − removed) ∩ watchlisted). The two sets are always disjoint.
func (m *Manager) DisplayedCompanies() []datatypes.Company {
	m.mu.Lock()
	defer m.mu.Unlock()

	visible := m.visibleIn(m.st.ViewMode)
	out := make([]datatypes.Company, 0, len(visible))
	for _, c := range visible {
		out = append(out, c.Clone())
	}
	return out
}

// IsInWatchlist reports whether the id is on the watchlist.
func (m *Manager) IsInWatchlist(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.IsWatchlisted(id)
}

// WatchlistCompanies returns the visible watchlisted companies in
// watchlist order.
func (m *Manager) WatchlistCompanies() []datatypes.Company {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []datatypes.Company
	for _, id := range m.st.WatchlistCompanyIDs {
		if m.st.IsRemoved(id) {
			continue
		}
		if c := m.st.FindCompany(id); c != nil {
			out = append(out, c.Clone())
		}
	}
	return out
}

// WatchlistStats recomputes the watchlist aggregate. Never stored.
func (m *Manager) WatchlistStats() datatypes.WatchlistStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats datatypes.WatchlistStats
	for _, id := range m.st.WatchlistCompanyIDs {
		if m.st.IsRemoved(id) {
			continue
		}
		c := m.st.FindCompany(id)
		if c == nil {
			continue
		}
		stats.TotalCompanies++
		if c.IsExcellentMatch() {
			stats.ExcellentMatches++
		}
		stats.TotalOpenRoles += c.OpenRoles
	}
	return stats
}

// ExplorationStats summarizes the whole state.
func (m *Manager) ExplorationStats() datatypes.ExplorationStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	visible := 0
	for i := range m.st.BaseCompanies {
		if !m.st.IsRemoved(m.st.BaseCompanies[i].ID) {
			visible++
		}
	}
	for i := range m.st.AddedCompanies {
		if !m.st.IsRemoved(m.st.AddedCompanies[i].ID) {
			visible++
		}
	}

	watchlisted := 0
	for _, id := range m.st.WatchlistCompanyIDs {
		if !m.st.IsRemoved(id) {
			watchlisted++
		}
	}

	return datatypes.ExplorationStats{
		TotalCompanies:     visible,
		BaseCompanies:      len(m.st.BaseCompanies),
		AddedCompanies:     len(m.st.AddedCompanies),
		RemovedCompanies:   len(m.st.RemovedCompanies),
		WatchlistCompanies: watchlisted,
		ViewMode:           m.st.ViewMode,
		Version:            m.st.Version,
	}
}

// SelectedCompany returns the selected company, if any.
func (m *Manager) SelectedCompany() (datatypes.Company, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.st.SelectedCompanyID
	if id == 0 || m.st.IsRemoved(id) {
		return datatypes.Company{}, false
	}
	c := m.st.FindCompany(id)
	if c == nil {
		return datatypes.Company{}, false
	}
	return c.Clone(), true
}

// ViewMode returns the active view.
func (m *Manager) ViewMode() datatypes.ViewMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ViewMode
}

// Version returns the current state version.
func (m *Manager) Version() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Version
}

// Snapshot returns a defensive copy of the whole state. This is also the
// snapshot function handed to the persistence cascade, so the deferred
// remote write always reads the latest state at flush time.
func (m *Manager) Snapshot() *datatypes.ExplorationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Clone()
}

// =============================================================================
// Version Watch
// =============================================================================

// Subscribe registers a watcher for state version changes.
//
// # Description
//
// The returned channel carries the version after each mutation. Slow
// watchers never block a mutation: the channel holds one pending value
// and a newer version replaces an unread older one (latest wins, which
// is all a reload-or-not decision needs).
//
// # Outputs
//
//   - <-chan int64: Version events.
//   - func(): Cancel function; closes the channel.
func (m *Manager) Subscribe() (<-chan int64, func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan int64, 1)
	m.subs[id] = ch

	cancel := func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if existing, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

// notify pushes a version to every subscriber, replacing any unread
// older value.
func (m *Manager) notify(version int64) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for _, ch := range m.subs {
		select {
		case ch <- version:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- version:
			default:
			}
		}
	}
}
