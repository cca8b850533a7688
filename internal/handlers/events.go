package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/noticing/internal/events"
)

const heartbeatInterval = 30 * time.Second

// EventsHandler streams view staleness events as Server-Sent Events.
func EventsHandler(broadcaster *events.Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable Nginx buffering

		clientID := uuid.New().String()
		client := broadcaster.RegisterClient(clientID)
		defer broadcaster.UnregisterClient(client)

		fmt.Fprintf(w, "event: connected\ndata: {\"client_id\":\"%s\"}\n\n", clientID)
		flusher.Flush()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case event, ok := <-client.Events:
				if !ok {
					return
				}
				if sseData, err := events.FormatSSE(event); err == nil {
					fmt.Fprint(w, sseData)
					flusher.Flush()
				}

			case <-heartbeat.C:
				fmt.Fprint(w, ":heartbeat\n\n")
				flusher.Flush()

			case <-r.Context().Done():
				return
			}
		}
	}
}
