// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/scoutline/scoutline/services/explorer/datatypes"
	"github.com/scoutline/scoutline/services/explorer/state"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// watchWriteTimeout bounds each websocket write so a stalled client
// cannot wedge the watch goroutine.
const watchWriteTimeout = 10 * time.Second

// WatchState handles GET /v1/state/watch.
//
// # Description
//
// Upgrades to a websocket and pushes a VersionEvent after every state
// mutation. This is the surface for the external version-polling
// collaborator: clients only learn that the state changed and decide
// whether to reload; no state content travels on this socket and
// nothing is ever merged.
//
// The subscription drops intermediate versions for slow clients; the
// latest version is all a reload decision needs.
func WatchState(mgr *state.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade state watch websocket", "error", err)
			return
		}
		defer ws.Close()

		versions, cancel := mgr.Subscribe()
		defer cancel()

		slog.Info("state watch client connected")

		// Current version first, so a client connecting mid-burst can
		// reconcile immediately.
		if err := writeVersion(ws, mgr.Version()); err != nil {
			return
		}

		// Reader goroutine: the client never sends data, but reading is
		// required to notice a closed connection.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				slog.Info("state watch client disconnected")
				return
			case version, ok := <-versions:
				if !ok {
					return
				}
				if err := writeVersion(ws, version); err != nil {
					slog.Warn("state watch write failed", "error", err)
					return
				}
			}
		}
	}
}

func writeVersion(ws *websocket.Conn, version int64) error {
	ws.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
	return ws.WriteJSON(datatypes.VersionEvent{Version: version})
}
