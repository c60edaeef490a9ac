// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutline/scoutline/services/explorer/datatypes"
)

func dialWatch(t *testing.T, router *gin.Engine) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/state/watch"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readVersion(t *testing.T, ws *websocket.Conn) int64 {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev datatypes.VersionEvent
	require.NoError(t, ws.ReadJSON(&ev))
	return ev.Version
}

func TestWatchState_SendsCurrentVersionOnConnect(t *testing.T) {
	router, mgr := testRouter(t, nil)
	router.GET("/v1/state/watch", WatchState(mgr))
	mgr.AddCompany(context.Background(), datatypes.Company{Name: "Acme", MatchScore: 70})

	ws := dialWatch(t, router)
	assert.Equal(t, int64(1), readVersion(t, ws))
}

func TestWatchState_PushesVersionAfterMutation(t *testing.T) {
	router, mgr := testRouter(t, nil)
	router.GET("/v1/state/watch", WatchState(mgr))

	ws := dialWatch(t, router)
	require.Equal(t, int64(0), readVersion(t, ws))

	mgr.AddCompany(context.Background(), datatypes.Company{Name: "Acme", MatchScore: 70})
	assert.Equal(t, int64(1), readVersion(t, ws))
}
