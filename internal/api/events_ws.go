/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"net/http"
	"time"

	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/friendsincode/fillline/internal/events"
	"github.com/friendsincode/fillline/internal/telemetry"
)

// streamedEvents lists the event types fanned out to WebSocket clients.
var streamedEvents = []events.EventType{
	events.EventRunQueued,
	events.EventRunStarted,
	events.EventRunProgress,
	events.EventRunCompleted,
	events.EventRunFailed,
	events.EventComparisonQueued,
	events.EventComparisonStarted,
	events.EventComparisonProgress,
	events.EventComparisonCompleted,
	events.EventComparisonFailed,
}

// wsEvent is the wire form of one streamed event.
type wsEvent struct {
	Type      events.EventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Data      events.Payload   `json:"data,omitempty"`
}

// handleEvents upgrades to a WebSocket and streams run and comparison
// progress until the client disconnects.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.APIWebSocketConnections.Inc()
	defer telemetry.APIWebSocketConnections.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	merged := make(chan wsEvent, 32)
	for _, et := range streamedEvents {
		sub := a.bus.Subscribe(et)
		defer a.bus.Unsubscribe(et, sub)

		go func(et events.EventType, sub events.Subscriber) {
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-sub:
					if !ok {
						return
					}
					select {
					case merged <- wsEvent{Type: et, Timestamp: time.Now().UTC(), Data: payload}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(et, sub)
	}

	// Reader goroutine: we send only, but must drain control frames and
	// notice the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	a.logger.Debug().Str("remote", r.RemoteAddr).Msg("event stream opened")

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "bye")
			return
		case ev := <-merged:
			writeCtx, writeCancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, ev)
			writeCancel()
			if err != nil {
				a.logger.Debug().Err(err).Msg("event stream write failed")
				return
			}
		}
	}
}
