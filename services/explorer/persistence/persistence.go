// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package persistence implements the layered persistence cascade for
// exploration state.
//
// # Description
//
// Every mutation writes the full serialized state to a local durable
// cache synchronously and best-effort; a cache failure is logged, never
// surfaced, because the in-memory mutation has already succeeded. The
// authoritative remote write is deferred and coalesced: the first
// mutation in a burst arms a timer, later mutations are absorbed into the
// same burst, and the flush carries whatever the in-memory state is at
// the time it runs.
//
//	Mutation ──► local cache (sync, best-effort)
//	        └──► schedule ──► debounce ──► ranked remote backends
//
// Remote backends are a ranked list tried in declared order under one
// policy object; which backends are present (HTTP store, recoverable
// file snapshots) is decided at construction, not through scattered
// environment conditionals.
//
// There is no retry loop. The next mutation's coalesced write is the de
// facto retry and always carries the latest state.
package persistence

import (
	"context"
	"errors"

	"github.com/scoutline/scoutline/services/explorer/datatypes"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidIdentityToken indicates the state's identity token is not
	// a well-formed externally issued identifier. This is a caller-contract
	// violation and fails fast instead of being sent downstream.
	ErrInvalidIdentityToken = errors.New("identity token is not a well-formed UUID")

	// ErrNoBackends indicates the cascade has no remote backend configured.
	ErrNoBackends = errors.New("no remote backends configured")

	// ErrCascadeClosed indicates the cascade has been closed.
	ErrCascadeClosed = errors.New("persistence cascade is closed")

	// ErrSnapshotNotFound indicates the local cache holds no snapshot.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// =============================================================================
// Interfaces
// =============================================================================

// LocalCache is the local durable snapshot store.
//
// One JSON snapshot of the whole state is kept under a single fixed key
// and overwritten wholesale on every mutation.
type LocalCache interface {
	// Get returns the stored snapshot bytes for the key.
	// Returns ErrSnapshotNotFound if nothing is stored.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites the snapshot bytes for the key.
	Set(ctx context.Context, key string, value []byte) error

	// Close releases the underlying store.
	Close() error
}

// RemoteBackend persists a state snapshot to an authoritative store.
//
// Backends are ranked: the cascade tries them in declared order and stops
// at the first success.
type RemoteBackend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Save persists the snapshot. Last write wins; there is no merging
	// of partial states.
	Save(ctx context.Context, snap *datatypes.ExplorationState) error
}
