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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutline/scoutline/services/explorer/datatypes"
)

func TestNewHTTPRemoteStore_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPRemoteStore("", 0)
	require.Error(t, err)
}

func TestHTTPRemoteStore_Save(t *testing.T) {
	var gotPath, gotIdentity, gotContentType string
	var gotSnap datatypes.ExplorationState

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		gotPath = r.URL.Path
		gotIdentity = r.Header.Get("X-Scoutline-Identity")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotSnap))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewHTTPRemoteStore(srv.URL, 0)
	require.NoError(t, err)

	snap := datatypes.NewExplorationState(testIdentity)
	snap.Version = 5
	require.NoError(t, store.Save(context.Background(), snap))

	assert.Equal(t, "/v1/profiles/"+testIdentity+"/exploration", gotPath)
	assert.Equal(t, testIdentity, gotIdentity)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, int64(5), gotSnap.Version)
}

func TestHTTPRemoteStore_SaveNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"profile locked"}`, http.StatusConflict)
	}))
	defer srv.Close()

	store, err := NewHTTPRemoteStore(srv.URL, 0)
	require.NoError(t, err)

	err = store.Save(context.Background(), datatypes.NewExplorationState(testIdentity))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "profile locked")
}

func TestHTTPRemoteStore_SaveUnreachable(t *testing.T) {
	store, err := NewHTTPRemoteStore("http://127.0.0.1:1", 0)
	require.NoError(t, err)

	err = store.Save(context.Background(), datatypes.NewExplorationState(testIdentity))
	require.Error(t, err)
}
