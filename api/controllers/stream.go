package controllers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/kitchenlinehq/kitchenline-backend/api/middleware"
	"github.com/kitchenlinehq/kitchenline-backend/api/responses"
	"github.com/kitchenlinehq/kitchenline-backend/internal/realtime"
	pkgerrors "github.com/kitchenlinehq/kitchenline-backend/pkg/errors"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/logger"
)

type streamEvent struct {
	name     string
	data     []byte
	terminal bool
}

// StreamEvents bridges a subscription channel onto a server-sent-events
// response. The optional station_id query narrows the interest to one
// station; closing the request tears the channel down.
func StreamEvents(manager *realtime.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming not supported"))
			return
		}

		interest := realtime.GlobalInterest()
		if raw := r.URL.Query().Get("station_id"); raw != "" {
			stationID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid station_id"))
				return
			}
			interest = realtime.StationInterest(stationID)
		}

		events := make(chan streamEvent, 64)
		push := func(ev streamEvent) {
			// Callbacks run on the channel goroutine; a stalled response
			// drops events instead of blocking it.
			select {
			case events <- ev:
			default:
			}
		}

		channelID, err := manager.Subscribe(r.Context(), middleware.AccessIDFromContext(r.Context()), interest, realtime.Callbacks{
			OnData: func(msg realtime.Message) {
				push(streamEvent{name: msg.EventType, data: msg.Data})
			},
			OnConnect: func(channelID string) {
				push(streamEvent{name: "connected", data: []byte(`{"channel_id":"` + channelID + `"}`)})
			},
			OnError: func(err error) {
				push(streamEvent{name: "channel_error", data: []byte(`{"message":"reconnecting"}`)})
			},
			OnDisconnect: func(channelID string, err error) {
				push(streamEvent{name: "disconnected", data: []byte(`{"channel_id":"` + channelID + `"}`), terminal: true})
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer func() {
			if err := manager.Unsubscribe(channelID); err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				logg.Error(r.Context(), "failed to unsubscribe stream channel", err)
			}
		}()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev := <-events:
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
				flusher.Flush()
				if ev.terminal {
					return
				}
			}
		}
	}
}
