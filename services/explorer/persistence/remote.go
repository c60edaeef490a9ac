// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/scoutline/scoutline/services/explorer/datatypes"
)

// =============================================================================
// HTTP Remote Store
// =============================================================================

// HTTPRemoteStore persists snapshots to the remote profile store over HTTP.
//
// # Description
//
// Sends the whole serialized state as a single PUT; the remote store is
// last-write-wins and does no merging. The identity token rides in a
// header so the store can route the snapshot to the owning profile.
//
// # Thread Safety
//
// Safe for concurrent use; http.Client is safe for concurrent use.
type HTTPRemoteStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRemoteStore creates a remote store client for the given base URL.
//
// # Inputs
//
//   - baseURL: Base URL of the profile store, e.g. "http://store:12300".
//   - timeout: Per-request timeout. Zero means 10 seconds.
//
// # Outputs
//
//   - *HTTPRemoteStore: The client.
//   - error: Non-nil if baseURL is empty.
func NewHTTPRemoteStore(baseURL string, timeout time.Duration) (*HTTPRemoteStore, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("remote store base URL must not be empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRemoteStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Name identifies the backend in logs and metrics.
func (s *HTTPRemoteStore) Name() string {
	return "http_remote"
}

// Save sends the snapshot to the remote store.
func (s *HTTPRemoteStore) Save(ctx context.Context, snap *datatypes.ExplorationState) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	url := s.baseURL + "/v1/profiles/" + snap.IdentityToken + "/exploration"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build remote save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Scoutline-Identity", snap.IdentityToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote save: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little of the body for the error message; the store
		// returns short JSON errors.
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote save: status %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}
