// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package state implements the exploration state manager.
//
// # Description
//
// The manager owns the canonical in-memory exploration state for one user
// profile and is the only code that mutates it. Mutations are synchronous
// and always succeed from the caller's point of view: the in-memory model
// is updated, a full snapshot goes to the local cache synchronously and
// best-effort, and one coalesced remote write is scheduled through the
// persistence cascade. Persistence failures are logged, never surfaced.
//
// The manager is also the sole caller of the radial positioning engine:
// insertions and moves between views consult the engine for a
// collision-free placement scoped to the destination view's occupants.
//
// # Thread Safety
//
// All operations are safe for concurrent use. Query results are defensive
// copies; the live state never escapes.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/scoutline/scoutline/services/explorer/datatypes"
	"github.com/scoutline/scoutline/services/explorer/persistence"
	"github.com/scoutline/scoutline/services/explorer/radial"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrCompanyNotFound indicates the id matches no visible company.
	ErrCompanyNotFound = errors.New("company not found")

	// ErrInvalidViewMode indicates an unknown view mode.
	ErrInvalidViewMode = errors.New("invalid view mode")
)

// =============================================================================
// Metrics
// =============================================================================

var (
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scoutline_state_mutations_total",
		Help: "State mutations by operation",
	}, []string{"op"})

	placementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scoutline_placements_total",
		Help: "Radial placements by destination view and pipeline stage",
	}, []string{"view", "stage"})
)

// =============================================================================
// Configuration
// =============================================================================

// DefaultAddedIDFloor is the minimum id for companies added through the
// manager. Base companies from the profile loader sit below the floor, so
// added ids never collide with a later base refresh.
const DefaultAddedIDFloor = 10000

// Config configures a Manager.
//
// Dependencies are injected explicitly; the manager reads no ambient
// singletons, so multiple independent instances can coexist in one
// process (one per tenant profile).
type Config struct {
	// Initial is the externally supplied starting snapshot. Required.
	Initial *datatypes.ExplorationState

	// Engine computes placements. Defaults to radial.DefaultParams().
	Engine *radial.Engine

	// AddedIDFloor overrides DefaultAddedIDFloor.
	AddedIDFloor int64

	// Clock supplies timestamps. Defaults to time.Now. Injectable for
	// retention tests.
	Clock func() time.Time

	// Logger for manager operations.
	Logger *slog.Logger
}

// =============================================================================
// Manager
// =============================================================================

// Manager owns one profile's exploration state.
type Manager struct {
	mu      sync.Mutex
	st      *datatypes.ExplorationState
	engine  *radial.Engine
	cascade *persistence.Cascade
	clock   func() time.Time
	logger  *slog.Logger
	idFloor int64

	subMu   sync.Mutex
	subs    map[int64]chan int64
	nextSub int64
}

// NewManager creates a manager around the supplied snapshot.
//
// # Inputs
//
//   - cfg: Configuration. Initial is required; everything else defaults.
//
// # Outputs
//
//   - *Manager: The manager, not yet wired to a persistence cascade.
//   - error: Non-nil if the initial snapshot is missing.
//
// # Examples
//
//	mgr, err := state.NewManager(state.Config{Initial: snap})
//	if err != nil {
//	    return err
//	}
//	casc, err := persistence.NewCascade(pcfg, mgr.Snapshot)
//	if err != nil {
//	    return err
//	}
//	mgr.SetCascade(casc)
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Initial == nil {
		return nil, errors.New("initial state is required")
	}
	if cfg.Engine == nil {
		cfg.Engine = radial.NewEngine(radial.DefaultParams())
	}
	if cfg.AddedIDFloor <= 0 {
		cfg.AddedIDFloor = DefaultAddedIDFloor
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if !cfg.Initial.ViewMode.Valid() {
		cfg.Initial.ViewMode = datatypes.ViewModeExplore
	}

	return &Manager{
		st:      cfg.Initial.Clone(),
		engine:  cfg.Engine,
		clock:   cfg.Clock,
		logger:  cfg.Logger.With(slog.String("component", "state_manager")),
		idFloor: cfg.AddedIDFloor,
		subs:    make(map[int64]chan int64),
	}, nil
}

// SetCascade wires the persistence cascade. The cascade's snapshot
// function must be this manager's Snapshot method. Mutations before the
// cascade is wired stay in memory only.
func (m *Manager) SetCascade(c *persistence.Cascade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cascade = c
}

// Engine returns the positioning engine.
func (m *Manager) Engine() *radial.Engine {
	return m.engine
}

// =============================================================================
// Mutations
// =============================================================================

// AddCompany inserts a company and places it on the explore surface.
//
// # Description
//
// The id is assigned by the manager: one past the largest known id, never
// below the added-id floor, never reused. The company is placed among the
// explore view's current occupants; a relocation solution from the engine
// may also move up to two existing companies onto better rings.
//
// # Inputs
//
//   - ctx: Context for the synchronous local cache write.
//   - c: The company to add. Any caller-supplied id is ignored.
//
// # Outputs
//
//   - datatypes.Company: The stored company with its assigned id.
func (m *Manager) AddCompany(ctx context.Context, c datatypes.Company) datatypes.Company {
	m.mu.Lock()
	defer m.mu.Unlock()

	c.ID = m.nextID()
	c.AddedAt = m.clock().UnixMilli()
	c.WatchlistPosition = nil

	m.placeInView(&c, datatypes.ViewModeExplore)
	m.st.AddedCompanies = append(m.st.AddedCompanies, c)

	m.logger.Info("company added",
		"company_id", c.ID,
		"name", c.Name,
		"match_score", c.MatchScore,
	)
	m.commit(ctx, "add_company", true)
	return c.Clone()
}

// UpdateCompany replaces a company by id, strictly.
//
// # Outputs
//
//   - datatypes.Company: The stored company after replacement.
//   - error: ErrCompanyNotFound if no company has the id.
func (m *Manager) UpdateCompany(ctx context.Context, c datatypes.Company) (datatypes.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.st.FindCompany(c.ID)
	if existing == nil {
		return datatypes.Company{}, fmt.Errorf("update company %d: %w", c.ID, ErrCompanyNotFound)
	}

	m.replaceCompany(existing, c)
	m.commit(ctx, "update_company", true)
	return existing.Clone(), nil
}

// UpsertCompany replaces a company by id, falling back to an insert when
// the id is unknown.
//
// # Description
//
// This preserves the original upsert-on-miss contract of the HTTP
// surface: an update targeting a company that was never inserted is
// promoted to an insert instead of raising not-found. Callers that want
// misses to be loud use UpdateCompany.
func (m *Manager) UpsertCompany(ctx context.Context, c datatypes.Company) datatypes.Company {
	m.mu.Lock()
	existing := m.st.FindCompany(c.ID)
	if existing == nil {
		m.mu.Unlock()
		m.logger.Warn("upsert miss promoted to insert", "company_id", c.ID)
		return m.AddCompany(ctx, c)
	}

	defer m.mu.Unlock()
	m.replaceCompany(existing, c)
	m.commit(ctx, "upsert_company", true)
	return existing.Clone()
}

// replaceCompany overwrites the stored record in place. Caller holds the
// lock. Placement records survive unless the incoming company carries its
// own; descriptive updates must not knock a company off the surface.
func (m *Manager) replaceCompany(existing *datatypes.Company, c datatypes.Company) {
	if c.ExplorePosition == nil {
		c.ExplorePosition = existing.ExplorePosition
	}
	if c.WatchlistPosition == nil {
		c.WatchlistPosition = existing.WatchlistPosition
	}
	if c.AddedAt == 0 {
		c.AddedAt = existing.AddedAt
	}
	c.ID = existing.ID
	*existing = c
}

// RemoveCompany tombstones a company. Idempotent.
//
// # Description
//
// The record is not erased; a tombstone hides it from every view and a
// later restore brings it back. Removal also drops the company from the
// watchlist and clears the selection if it was the selected company —
// a removed company must be invisible everywhere at once.
func (m *Manager) RemoveCompany(ctx context.Context, id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.st.IsRemoved(id) {
		return
	}

	m.st.RemovedCompanies = append(m.st.RemovedCompanies, datatypes.Tombstone{
		CompanyID: id,
		RemovedAt: m.clock().UnixMilli(),
	})
	m.dropFromWatchlist(id)
	if m.st.SelectedCompanyID == id {
		m.st.SelectedCompanyID = 0
	}

	m.logger.Info("company removed", "company_id", id)
	m.commit(ctx, "remove_company", true)
}

// RestoreCompany removes a tombstone. Idempotent; a no-op for ids that
// are not removed.
//
// # Description
//
// A restored company always reappears in "explore", never directly on the
// watchlist, even if it was watchlisted before removal. Its explore
// placement is recomputed among the current occupants.
func (m *Manager) RestoreCompany(ctx context.Context, id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, t := range m.st.RemovedCompanies {
		if t.CompanyID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	m.st.RemovedCompanies = append(m.st.RemovedCompanies[:idx], m.st.RemovedCompanies[idx+1:]...)

	if c := m.st.FindCompany(id); c != nil {
		m.placeInView(c, datatypes.ViewModeExplore)
	}

	m.logger.Info("company restored", "company_id", id)
	m.commit(ctx, "restore_company", true)
}

// ToggleWatchlist flips a company's watchlist membership.
//
// # Description
//
// Moving between views re-runs the placement pipeline scoped to the
// destination view's occupants; the placement in the view being left is
// never perturbed.
//
// # Outputs
//
//   - bool: The new membership.
//   - error: ErrCompanyNotFound if the id is unknown or removed.
func (m *Manager) ToggleWatchlist(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.st.FindCompany(id)
	if c == nil || m.st.IsRemoved(id) {
		return false, fmt.Errorf("toggle watchlist %d: %w", id, ErrCompanyNotFound)
	}

	var inWatchlist bool
	if m.st.IsWatchlisted(id) {
		m.dropFromWatchlist(id)
		m.placeInView(c, datatypes.ViewModeExplore)
		inWatchlist = false
	} else {
		m.placeInView(c, datatypes.ViewModeWatchlist)
		m.st.WatchlistCompanyIDs = append(m.st.WatchlistCompanyIDs, id)
		inWatchlist = true
	}

	m.logger.Info("watchlist toggled", "company_id", id, "in_watchlist", inWatchlist)
	m.commit(ctx, "toggle_watchlist", true)
	return inWatchlist, nil
}

// SetSelectedCompany updates the selection. Zero clears it.
//
// # Description
//
// Selection persists to the local cache only: it changes on every click
// and is not worth a remote write per pointer interaction.
//
// # Outputs
//
//   - error: ErrCompanyNotFound for a non-zero id that is unknown or
//     removed.
func (m *Manager) SetSelectedCompany(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != 0 {
		if c := m.st.FindCompany(id); c == nil || m.st.IsRemoved(id) {
			return fmt.Errorf("select company %d: %w", id, ErrCompanyNotFound)
		}
	}

	m.st.SelectedCompanyID = id
	m.commit(ctx, "set_selection", false)
	return nil
}

// SetViewMode switches the active view.
func (m *Manager) SetViewMode(ctx context.Context, mode datatypes.ViewMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidViewMode, mode)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.st.ViewMode = mode
	m.commit(ctx, "set_view_mode", true)
	return nil
}

// ReplaceState swaps the whole state wholesale, e.g. when the caller
// switches the active profile. The new snapshot is written to the local
// cache; no remote write is scheduled, since the snapshot just came from
// an authoritative source.
func (m *Manager) ReplaceState(ctx context.Context, snap *datatypes.ExplorationState) error {
	if snap == nil {
		return errors.New("replacement state is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.st = snap.Clone()
	if !m.st.ViewMode.Valid() {
		m.st.ViewMode = datatypes.ViewModeExplore
	}
	m.commit(ctx, "replace_state", false)
	return nil
}

// =============================================================================
// Internals
// =============================================================================

// nextID assigns the next company id. Caller holds the lock.
// The high-water mark keeps ids monotonic even after compaction erases
// the highest added company.
func (m *Manager) nextID() int64 {
	max := m.st.MaxCompanyID()
	if m.st.LastAssignedID > max {
		max = m.st.LastAssignedID
	}
	if max < m.idFloor {
		max = m.idFloor
	}
	id := max + 1
	m.st.LastAssignedID = id
	return id
}

// dropFromWatchlist removes an id from the watchlist, preserving order.
// Caller holds the lock.
func (m *Manager) dropFromWatchlist(id int64) {
	ids := m.st.WatchlistCompanyIDs
	for i, wid := range ids {
		if wid == id {
			m.st.WatchlistCompanyIDs = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

// placeInView computes a fresh placement for the company in the given
// view and applies any relocations the engine decided on. Caller holds
// the lock.
func (m *Manager) placeInView(c *datatypes.Company, view datatypes.ViewMode) {
	occupants := m.occupants(view, c.ID)
	result := m.engine.Place(radial.Candidate{ID: c.ID, Score: c.MatchScore}, occupants)
	placementsTotal.WithLabelValues(string(view), string(result.Stage)).Inc()

	setViewPosition(c, view, result.Placement)

	for _, moved := range result.Relocated {
		if moved.ID == c.ID {
			continue
		}
		if other := m.st.FindCompany(moved.ID); other != nil {
			setViewPosition(other, view, moved.Position)
		}
	}

	if result.Stage != radial.StageDirect {
		m.logger.Debug("placement escalated",
			"company_id", c.ID,
			"view", string(view),
			"stage", string(result.Stage),
			"relocated", len(result.Relocated),
		)
	}
}

// occupants collects the already-placed companies visible in a view,
// excluding the company being placed. Caller holds the lock.
func (m *Manager) occupants(view datatypes.ViewMode, excludeID int64) []radial.Occupant {
	var out []radial.Occupant
	for _, c := range m.visibleIn(view) {
		if c.ID == excludeID {
			continue
		}
		pos := viewPosition(c, view)
		if pos == nil {
			continue
		}
		out = append(out, radial.Occupant{
			ID:    c.ID,
			Score: c.MatchScore,
			Position: radial.Placement{
				AngleDeg: pos.AngleDeg,
				Distance: pos.Distance,
			},
		})
	}
	return out
}

// visibleIn returns pointers to the live companies visible in a view.
// Explore is (all − removed − watchlisted); watchlist is
// ((all − removed) ∩ watchlisted). The two sets are always disjoint.
// Caller holds the lock.
func (m *Manager) visibleIn(view datatypes.ViewMode) []*datatypes.Company {
	var out []*datatypes.Company
	collect := func(list []datatypes.Company) {
		for i := range list {
			c := &list[i]
			if m.st.IsRemoved(c.ID) {
				continue
			}
			watchlisted := m.st.IsWatchlisted(c.ID)
			if view == datatypes.ViewModeWatchlist && !watchlisted {
				continue
			}
			if view == datatypes.ViewModeExplore && watchlisted {
				continue
			}
			out = append(out, c)
		}
	}
	collect(m.st.BaseCompanies)
	collect(m.st.AddedCompanies)
	return out
}

// commit finishes a mutation: bump the version, persist, notify watchers.
// Caller holds the lock. Selection changes skip the remote schedule.
func (m *Manager) commit(ctx context.Context, op string, remote bool) {
	m.st.Version++
	mutationsTotal.WithLabelValues(op).Inc()

	if m.cascade != nil {
		m.cascade.SaveLocal(ctx, m.st.Clone())
		if remote {
			m.cascade.ScheduleRemote()
		}
	}

	m.notify(m.st.Version)
}

func setViewPosition(c *datatypes.Company, view datatypes.ViewMode, p radial.Placement) {
	pos := &datatypes.Position{AngleDeg: p.AngleDeg, Distance: p.Distance}
	if view == datatypes.ViewModeWatchlist {
		c.WatchlistPosition = pos
	} else {
		c.ExplorePosition = pos
	}
}

func viewPosition(c *datatypes.Company, view datatypes.ViewMode) *datatypes.Position {
	if view == datatypes.ViewModeWatchlist {
		return c.WatchlistPosition
	}
	return c.ExplorePosition
}
