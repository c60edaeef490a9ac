// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutline/scoutline/services/explorer/datatypes"
)

// testClock is an injectable clock that only moves when told to.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestManager(t *testing.T, initial *datatypes.ExplorationState) (*Manager, *testClock) {
	t.Helper()
	if initial == nil {
		initial = datatypes.NewExplorationState("720e3968-2d55-489a-b234-6bd68775a324")
	}
	clock := newTestClock()
	mgr, err := NewManager(Config{Initial: initial, Clock: clock.Now})
	require.NoError(t, err)
	return mgr, clock
}

func baseState(identity string, companies ...datatypes.Company) *datatypes.ExplorationState {
	st := datatypes.NewExplorationState(identity)
	st.BaseCompanies = companies
	return st
}

func TestNewManager_RequiresInitialState(t *testing.T) {
	_, err := NewManager(Config{})
	require.Error(t, err)
}

func TestNewManager_ClonesInitialState(t *testing.T) {
	initial := baseState("id-1", datatypes.Company{ID: 1, Name: "Acme", MatchScore: 70})
	mgr, _ := newTestManager(t, initial)

	initial.BaseCompanies[0].Name = "mutated"

	all := mgr.AllCompanies()
	require.Len(t, all, 1)
	assert.Equal(t, "Acme", all[0].Name)
}

// =============================================================================
// AddCompany
// =============================================================================

func TestAddCompany_AssignsIDAboveFloor(t *testing.T) {
	mgr, _ := newTestManager(t, baseState("id-1",
		datatypes.Company{ID: 1, Name: "Acme", MatchScore: 70},
		datatypes.Company{ID: 2, Name: "Globex", MatchScore: 55},
	))

	stored := mgr.AddCompany(context.Background(), datatypes.Company{Name: "Initech", MatchScore: 90})
	assert.Equal(t, int64(DefaultAddedIDFloor+1), stored.ID)

	next := mgr.AddCompany(context.Background(), datatypes.Company{Name: "Hooli", MatchScore: 40})
	assert.Equal(t, stored.ID+1, next.ID)
}

func TestAddCompany_AssignsMaxPlusOneAboveFloor(t *testing.T) {
	mgr, _ := newTestManager(t, baseState("id-1",
		datatypes.Company{ID: 20005, Name: "BigCo", MatchScore: 70},
	))

	stored := mgr.AddCompany(context.Background(), datatypes.Company{Name: "NewCo", MatchScore: 60})
	assert.Equal(t, int64(20006), stored.ID)
}

func TestAddCompany_IgnoresCallerID(t *testing.T) {
	mgr, _ := newTestManager(t, nil)

	stored := mgr.AddCompany(context.Background(), datatypes.Company{ID: 42, Name: "Imposed", MatchScore: 50})
	assert.NotEqual(t, int64(42), stored.ID)
	assert.Equal(t, int64(DefaultAddedIDFloor+1), stored.ID)
}

func TestAddCompany_PlacesInExplore(t *testing.T) {
	mgr, clock := newTestManager(t, nil)

	stored := mgr.AddCompany(context.Background(), datatypes.Company{Name: "Acme", MatchScore: 95})

	require.NotNil(t, stored.ExplorePosition)
	assert.Nil(t, stored.WatchlistPosition)
	assert.Equal(t, clock.Now().UnixMilli(), stored.AddedAt)

	// High score lands near the inner edge.
	params := mgr.Engine().Params()
	assert.InDelta(t, mgr.Engine().IdealDistance(95), stored.ExplorePosition.Distance,
		float64(params.MaxRingOffsets)*params.RingStep)
}

func TestAddCompany_ReturnsDefensiveCopy(t *testing.T) {
	mgr, _ := newTestManager(t, nil)

	stored := mgr.AddCompany(context.Background(), datatypes.Company{
		Name:        "Acme",
		MatchScore:  80,
		Connections: []string{"Jordan"},
	})
	stored.Name = "mutated"
	stored.Connections[0] = "mutated"
	stored.ExplorePosition.Distance = -1

	fresh := mgr.AllCompanies()
	require.Len(t, fresh, 1)
	assert.Equal(t, "Acme", fresh[0].Name)
	assert.Equal(t, "Jordan", fresh[0].Connections[0])
	assert.NotEqual(t, float64(-1), fresh[0].ExplorePosition.Distance)
}

func TestAddCompany_IDsNeverReusedAfterCompaction(t *testing.T) {
	mgr, clock := newTestManager(t, nil)
	ctx := context.Background()

	first := mgr.AddCompany(ctx, datatypes.Company{Name: "Acme", MatchScore: 50})
	mgr.RemoveCompany(ctx, first.ID)

	clock.Advance(48 * time.Hour)
	result := mgr.CompactTombstones(ctx, 24*time.Hour, 0)
	require.Equal(t, 1, result.TombstonesCompacted)
	require.Equal(t, 1, result.OrphansErased)

	second := mgr.AddCompany(ctx, datatypes.Company{Name: "Globex", MatchScore: 50})
	assert.Greater(t, second.ID, first.ID)
}

// =============================================================================
// Update / Upsert
// =============================================================================

func TestUpdateCompany_StrictMiss(t *testing.T) {
	mgr, _ := newTestManager(t, nil)

	_, err := mgr.UpdateCompany(context.Background(), datatypes.Company{ID: 999, Name: "Ghost"})
	require.ErrorIs(t, err, ErrCompanyNotFound)
}

func TestUpdateCompany_PreservesPlacementAndAddedAt(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	ctx := context.Background()

	stored := mgr.AddCompany(ctx, datatypes.Company{Name: "Acme", MatchScore: 70, Notes: "old"})

	updated, err := mgr.UpdateCompany(ctx, datatypes.Company{
		ID:         stored.ID,
		Name:       "Acme Corp",
		MatchScore: 72,
		Notes:      "new",
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", updated.Name)
	assert.Equal(t, "new", updated.Notes)
	require.NotNil(t, updated.ExplorePosition)
	assert.Equal(t, *stored.ExplorePosition, *updated.ExplorePosition)
	assert.Equal(t, stored.AddedAt, updated.AddedAt)
}

func TestUpsertCompany_MissPromotedToInsert(t *testing.T) {
	mgr, _ := newTestManager(t, nil)

	stored := mgr.UpsertCompany(context.Background(), datatypes.Company{ID: 777, Name: "Surprise", MatchScore: 66})

	// The requested id is not honored; the manager assigns its own.
	assert.Equal(t, int64(DefaultAddedIDFloor+1), stored.ID)
	assert.NotNil(t, stored.ExplorePosition)

	all := mgr.AllCompanies()
	require.Len(t, all, 1)
	assert.Equal(t, "Surprise", all[0].Name)
}

func TestUpsertCompany_HitReplacesInPlace(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	ctx := context.Background()

	stored := mgr.AddCompany(ctx, datatypes.Company{Name: "Acme", MatchScore: 70})
	updated := mgr.UpsertCompany(ctx, datatypes.Company{ID: stored.ID, Name: "Acme v2", MatchScore: 75})

	assert.Equal(t, stored.ID, updated.ID)
	assert.Equal(t, "Acme v2", updated.Name)
	assert.Len(t, mgr.AllCompanies(), 1)
}

// =============================================================================
// Remove / Restore
// =============================================================================

func TestRemoveCompany_TombstonesWithoutErasing(t *testing.T) {
	mgr, clock := newTestManager(t, baseState("id-1",
		datatypes.Company{ID: 1, Name: "Acme", MatchScore: 70},
	))
	ctx := context.Background()

	mgr.RemoveCompany(ctx, 1)

	assert.Empty(t, mgr.AllCompanies())

	snap := mgr.Snapshot()
	require.Len(t, snap.RemovedCompanies, 1)
	assert.Equal(t, int64(1), snap.RemovedCompanies[0].CompanyID)
	assert.Equal(t, clock.Now().UnixMilli(), snap.RemovedCompanies[0].RemovedAt)
	// The record itself survives for a later restore.
	assert.Len(t, snap.BaseCompanies, 1)
}

func TestRemoveCompany_Idempotent(t *testing.T) {
	mgr, _ := newTestManager(t, baseState("id-1",
		datatypes.Company{ID: 1, Name: "Acme", MatchScore: 70},
	))
	ctx := context.Background()

	mgr.RemoveCompany(ctx, 1)
	v := mgr.Version()
	mgr.RemoveCompany(ctx, 1)

	snap := mgr.Snapshot()
	assert.Len(t, snap.RemovedCompanies, 1)
	assert.Equal(t, v, mgr.Version(), "repeat removal must not commit")
}

func TestRemoveCompany_DropsWatchlistAndSelection(t *testing.T) {
	mgr, _ := newTestManager(t, baseState("id-1",
		datatypes.Company{ID: 1, Name: "Acme", MatchScore: 90},
	))
	ctx := context.Background()

	_, err := mgr.ToggleWatchlist(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, mgr.SetSelectedCompany(ctx, 1))

	mgr.RemoveCompany(ctx, 1)

	assert.False(t, mgr.IsInWatchlist(1))
	_, selected := mgr.SelectedCompany()
	assert.False(t, selected)
	assert.Empty(t, mgr.WatchlistCompanies())
}

func TestRestoreCompany_ReturnsToExplore(t *testing.T) {
	mgr, _ := newTestManager(t, baseState("id-1",
		datatypes.Company{ID: 1, Name: "Acme", MatchScore: 90},
	))
	ctx := context.Background()

	// Watchlisted, then removed, then restored: lands in explore, not
	// back on the watchlist.
	_, err := mgr.ToggleWatchlist(ctx, 1)
	require.NoError(t, err)
	mgr.RemoveCompany(ctx, 1)
	mgr.RestoreCompany(ctx, 1)

	all := mgr.AllCompanies()
	require.Len(t, all, 1)
	assert.False(t, mgr.IsInWatchlist(1))
	require.NotNil(t, all[0].ExplorePosition)

	snap := mgr.Snapshot()
	assert.Empty(t, snap.RemovedCompanies)
}

func TestRestoreCompany_IdempotentOnUnknownID(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	v := mgr.Version()

	mgr.RestoreCompany(context.Background(), 999)
	assert.Equal(t, v, mgr.Version())
}

// =============================================================================
// Watchlist
// =============================================================================

func TestToggleWatchlist_MovesBetweenViews(t *testing.T) {
	mgr, _ := newTestManager(t, baseState("id-1",
		datatypes.Company{ID: 1, Name: "Acme", MatchScore: 90},
		datatypes.Company{ID: 2, Name: "Globex", MatchScore: 60},
	))
	ctx := context.Background()

	in, err := mgr.ToggleWatchlist(ctx, 1)
	require.NoError(t, err)
	assert.True(t, in)

	// Watchlisted companies leave the explore view.
	displayed := mgr.DisplayedCompanies()
	require.Len(t, displayed, 1)
	assert.Equal(t, int64(2), displayed[0].ID)

	watch := mgr.WatchlistCompanies()
	require.Len(t, watch, 1)
	assert.Equal(t, int64(1), watch[0].ID)
	require.NotNil(t, watch[0].WatchlistPosition)

	// Toggling off returns it to explore with a fresh placement there.
	in, err = mgr.ToggleWatchlist(ctx, 1)
	require.NoError(t, err)
	assert.False(t, in)
	assert.Len(t, mgr.DisplayedCompanies(), 2)
	assert.Empty(t, mgr.WatchlistCompanies())
}

func TestToggleWatchlist_PreservesExplorePlacementWhileParked(t *testing.T) {
	mgr, _ := newTestManager(t, baseState("id-1",
		datatypes.Company{ID: 1, Name: "Acme", MatchScore: 90,
			ExplorePosition: &datatypes.Position{AngleDeg: 30, Distance: 120}},
	))
	ctx := context.Background()

	_, err := mgr.ToggleWatchlist(ctx, 1)
	require.NoError(t, err)

	snap := mgr.Snapshot()
	c := snap.BaseCompanies[0]
	require.NotNil(t, c.ExplorePosition)
	assert.Equal(t, datatypes.Position{AngleDeg: 30, Distance: 120}, *c.ExplorePosition)
}

func TestToggleWatchlist_UnknownAndRemoved(t *testing.T) {
	mgr, _ := newTestManager(t, baseState("id-1",
		datatypes.Company{ID: 1, Name: "Acme", MatchScore: 70},
	))
	ctx := context.Background()

	_, err := mgr.ToggleWatchlist(ctx, 999)
	require.ErrorIs(t, err, ErrCompanyNotFound)

	mgr.RemoveCompany(ctx, 1)
	_, err = mgr.ToggleWatchlist(ctx, 1)
	require.ErrorIs(t, err, ErrCompanyNotFound)
}

func TestToggleWatchlist_PreservesOrder(t *testing.T) {
	mgr, _ := newTestManager(t, baseState("id-1",
		datatypes.Company{ID: 1, Name: "A", MatchScore: 50},
		datatypes.Company{ID: 2, Name: "B", MatchScore: 60},
		datatypes.Company{ID: 3, Name: "C", MatchScore: 70},
	))
	ctx := context.Background()

	for _, id := range []int64{3, 1, 2} {
		_, err := mgr.ToggleWatchlist(ctx, id)
		require.NoError(t, err)
	}

	watch := mgr.WatchlistCompanies()
	require.Len(t, watch, 3)
	assert.Equal(t, int64(3), watch[0].ID)
	assert.Equal(t, int64(1), watch[1].ID)
	assert.Equal(t, int64(2), watch[2].ID)

	// Dropping the middle entry keeps the rest in order.
	_, err := mgr.ToggleWatchlist(ctx, 1)
	require.NoError(t, err)
	watch = mgr.WatchlistCompanies()
	require.Len(t, watch, 2)
	assert.Equal(t, int64(3), watch[0].ID)
	assert.Equal(t, int64(2), watch[1].ID)
}

func TestWatchlistStats(t *testing.T) {
	mgr, _ := newTestManager(t, baseState("id-1",
		datatypes.Company{ID: 1, Name: "A", MatchScore: 92, OpenRoles: 3},
		datatypes.Company{ID: 2, Name: "B", MatchScore: 85, OpenRoles: 1},
		datatypes.Company{ID: 3, Name: "C", MatchScore: 40, OpenRoles: 7},
	))
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		_, err := mgr.ToggleWatchlist(ctx, id)
		require.NoError(t, err)
	}

	stats := mgr.WatchlistStats()
	assert.Equal(t, 3, stats.TotalCompanies)
	// Threshold is inclusive: 85 counts.
	assert.Equal(t, 2, stats.ExcellentMatches)
	assert.Equal(t, 11, stats.TotalOpenRoles)

	// Removal recomputes the aggregate.
	mgr.RemoveCompany(ctx, 1)
	stats = mgr.WatchlistStats()
	assert.Equal(t, 2, stats.TotalCompanies)
	assert.Equal(t, 1, stats.ExcellentMatches)
	assert.Equal(t, 8, stats.TotalOpenRoles)
}

// =============================================================================
// Selection and View Mode
// =============================================================================

func TestSetSelectedCompany(t *testing.T) {
	mgr, _ := newTestManager(t, baseState("id-1",
		datatypes.Company{ID: 1, Name: "Acme", MatchScore: 70},
	))
	ctx := context.Background()

	require.NoError(t, mgr.SetSelectedCompany(ctx, 1))
	c, ok := mgr.SelectedCompany()
	require.True(t, ok)
	assert.Equal(t, int64(1), c.ID)

	// Zero clears.
	require.NoError(t, mgr.SetSelectedCompany(ctx, 0))
	_, ok = mgr.SelectedCompany()
	assert.False(t, ok)

	// Unknown ids are rejected.
	err := mgr.SetSelectedCompany(ctx, 999)
	require.ErrorIs(t, err, ErrCompanyNotFound)
}

func TestSetViewMode(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	ctx := context.Background()

	require.NoError(t, mgr.SetViewMode(ctx, datatypes.ViewModeWatchlist))
	assert.Equal(t, datatypes.ViewModeWatchlist, mgr.ViewMode())

	err := mgr.SetViewMode(ctx, datatypes.ViewMode("sideways"))
	require.ErrorIs(t, err, ErrInvalidViewMode)
	assert.Equal(t, datatypes.ViewModeWatchlist, mgr.ViewMode())
}

// =============================================================================
// Versioning and Subscriptions
// =============================================================================

func TestVersion_IncrementsPerMutation(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	ctx := context.Background()

	v0 := mgr.Version()
	mgr.AddCompany(ctx, datatypes.Company{Name: "Acme", MatchScore: 50})
	assert.Equal(t, v0+1, mgr.Version())

	require.NoError(t, mgr.SetViewMode(ctx, datatypes.ViewModeWatchlist))
	assert.Equal(t, v0+2, mgr.Version())
}

func TestSubscribe_DeliversLatestVersion(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	ctx := context.Background()

	ch, cancel := mgr.Subscribe()
	defer cancel()

	// A burst of mutations coalesces; the subscriber always ends up
	// observing the newest version.
	for i := 0; i < 5; i++ {
		mgr.AddCompany(ctx, datatypes.Company{Name: "Co", MatchScore: 50})
	}

	want := mgr.Version()
	var got int64
	deadline := time.After(2 * time.Second)
	for got < want {
		select {
		case v := <-ch:
			got = v
		case <-deadline:
			t.Fatalf("timed out at version %d, want %d", got, want)
		}
	}
	assert.Equal(t, want, got)
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	mgr, _ := newTestManager(t, nil)

	ch, cancel := mgr.Subscribe()
	cancel()

	// Mutating after cancel must not panic or block.
	mgr.AddCompany(context.Background(), datatypes.Company{Name: "Acme", MatchScore: 50})

	select {
	case _, open := <-ch:
		assert.False(t, open, "channel should be closed after cancel")
	case <-time.After(time.Second):
		t.Fatal("subscriber channel not closed")
	}
}

// =============================================================================
// Compaction
// =============================================================================

func TestCompactTombstones_ZeroMaxAgeKeepsForever(t *testing.T) {
	mgr, clock := newTestManager(t, nil)
	ctx := context.Background()

	c := mgr.AddCompany(ctx, datatypes.Company{Name: "Acme", MatchScore: 50})
	mgr.RemoveCompany(ctx, c.ID)
	clock.Advance(1000 * time.Hour)

	result := mgr.CompactTombstones(ctx, 0, 0)
	assert.Zero(t, result.TombstonesCompacted)
	assert.Len(t, mgr.Snapshot().RemovedCompanies, 1)
}

func TestCompactTombstones_ErasesOldAddedCompanies(t *testing.T) {
	mgr, clock := newTestManager(t, baseState("id-1",
		datatypes.Company{ID: 1, Name: "Base", MatchScore: 70},
	))
	ctx := context.Background()

	added := mgr.AddCompany(ctx, datatypes.Company{Name: "Added", MatchScore: 50})
	mgr.RemoveCompany(ctx, added.ID)
	mgr.RemoveCompany(ctx, 1)

	clock.Advance(48 * time.Hour)

	// A fresh tombstone inside the window survives.
	late := mgr.AddCompany(ctx, datatypes.Company{Name: "Late", MatchScore: 60})
	mgr.RemoveCompany(ctx, late.ID)

	result := mgr.CompactTombstones(ctx, 24*time.Hour, 0)
	assert.Equal(t, 2, result.TombstonesFound)
	assert.Equal(t, 2, result.TombstonesCompacted)
	// Base companies are never erased, only their tombstone goes.
	assert.Equal(t, 1, result.OrphansErased)

	snap := mgr.Snapshot()
	require.Len(t, snap.RemovedCompanies, 1)
	assert.Equal(t, late.ID, snap.RemovedCompanies[0].CompanyID)
	assert.Len(t, snap.BaseCompanies, 1)
	require.Len(t, snap.AddedCompanies, 1)
	assert.Equal(t, late.ID, snap.AddedCompanies[0].ID)
}

func TestCompactTombstones_BatchLimit(t *testing.T) {
	mgr, clock := newTestManager(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c := mgr.AddCompany(ctx, datatypes.Company{Name: "Co", MatchScore: 50})
		mgr.RemoveCompany(ctx, c.ID)
	}
	clock.Advance(48 * time.Hour)

	result := mgr.CompactTombstones(ctx, 24*time.Hour, 2)
	assert.Equal(t, 5, result.TombstonesFound)
	assert.Equal(t, 2, result.TombstonesCompacted)
	assert.Len(t, mgr.Snapshot().RemovedCompanies, 3)
}

// =============================================================================
// ReplaceState
// =============================================================================

func TestReplaceState(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	ctx := context.Background()

	replacement := baseState("id-2",
		datatypes.Company{ID: 5, Name: "Imported", MatchScore: 88},
	)
	require.NoError(t, mgr.ReplaceState(ctx, replacement))

	all := mgr.AllCompanies()
	require.Len(t, all, 1)
	assert.Equal(t, "Imported", all[0].Name)
	assert.Equal(t, "id-2", mgr.Snapshot().IdentityToken)

	// The manager keeps its own copy.
	replacement.BaseCompanies[0].Name = "mutated"
	assert.Equal(t, "Imported", mgr.AllCompanies()[0].Name)

	require.Error(t, mgr.ReplaceState(ctx, nil))
}
