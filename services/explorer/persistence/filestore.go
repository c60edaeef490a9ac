// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/scoutline/scoutline/services/explorer/datatypes"
)

// =============================================================================
// File Snapshot Store
// =============================================================================

// FileSnapshotStore writes recoverable JSON snapshots to a local directory.
//
// # Description
//
// Development fallback channel: ranked after the HTTP remote store so a
// failed remote write in a development configuration still leaves a
// recoverable snapshot on disk. Writes are atomic (temp file + rename) so
// a crash mid-write never corrupts the latest snapshot.
//
// Not available in production configurations; the production cascade
// ranks only the HTTP store and logs its failures.
type FileSnapshotStore struct {
	dir string
}

// NewFileSnapshotStore creates a snapshot store rooted at dir.
// The directory is created if it doesn't exist.
func NewFileSnapshotStore(dir string) (*FileSnapshotStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create snapshot directory %s: %w", dir, err)
	}
	return &FileSnapshotStore{dir: dir}, nil
}

// Name identifies the backend in logs and metrics.
func (s *FileSnapshotStore) Name() string {
	return "file_snapshot"
}

// Save writes the snapshot as pretty-printed JSON, atomically.
func (s *FileSnapshotStore) Save(ctx context.Context, snap *datatypes.ExplorationState) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	final := s.SnapshotPath(snap.IdentityToken)
	tmp, err := os.CreateTemp(s.dir, "snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot for an identity, if any.
func (s *FileSnapshotStore) Load(identityToken string) (*datatypes.ExplorationState, error) {
	data, err := os.ReadFile(s.SnapshotPath(identityToken))
	if os.IsNotExist(err) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap datatypes.ExplorationState
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// SnapshotPath returns the on-disk path for an identity's snapshot.
func (s *FileSnapshotStore) SnapshotPath(identityToken string) string {
	return filepath.Join(s.dir, identityToken+".exploration.json")
}
