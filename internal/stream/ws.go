// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/metrics"
	"github.com/marekvk/fotofable/internal/models"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browser clients connect cross-origin from the photo library UI; the
	// stream carries no credentials and request ids are unguessable UUIDs.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsFrame mirrors the SSE framing over one JSON message.
type wsFrame struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// ServeWS runs the reader loop over a WebSocket, mirroring the SSE event
// taxonomy for clients that cannot consume SSE. One reader per request id.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, conn *Connection) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Str("request_id", conn.RequestID()).Msg("WebSocket upgrade failed")
		return
	}
	defer ws.Close()

	metrics.StreamSubscribers.WithLabelValues("websocket").Inc()
	defer metrics.StreamSubscribers.WithLabelValues("websocket").Dec()
	defer h.CloseConnection(conn.RequestID())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Read pump: the client sends nothing meaningful, but reading is the
	// only way to notice a close frame or a dead peer.
	go func() {
		defer cancel()
		_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	emptyPolls := 0
	for {
		select {
		case <-ctx.Done():
			logging.Debug().Str("request_id", conn.RequestID()).Msg("WebSocket client disconnected")
			return
		default:
		}

		ev, got := conn.Next(pollTimeout)
		if !got {
			emptyPolls++
			if emptyPolls >= heartbeatPolls {
				emptyPolls = 0
				if err := writeWS(ws, models.NewHeartbeatEvent(conn.RequestID())); err != nil {
					return
				}
			}
			continue
		}
		emptyPolls = 0

		if err := writeWS(ws, ev); err != nil {
			logging.Debug().Err(err).Str("request_id", conn.RequestID()).Msg("WebSocket write failed")
			return
		}

		if ev.Type.Terminal() {
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		}
	}
}

func writeWS(ws *websocket.Conn, ev models.Event) error {
	if err := ws.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return ws.WriteJSON(wsFrame{Event: string(ev.Type), Data: ev.Payload})
}
