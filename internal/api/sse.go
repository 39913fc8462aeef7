package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/narastore/narastore/internal/live"
)

// streamSnapshots writes every snapshot from src as a server-sent event until
// the client goes away or src ends. Each "snapshot" event carries the full
// list; a failed fetch is sent as an "error" event and the stream continues.
func streamSnapshots[T any](w http.ResponseWriter, r *http.Request, src live.Source[T]) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for items, err := range src(r.Context()) {
		event, payload := "snapshot", any(items)
		if err != nil {
			event = "error"
			payload = map[string]any{"error": map[string]any{"message": err.Error(), "type": "api_error"}}
		} else if items == nil {
			payload = []T{}
		}
		data, mErr := json.Marshal(payload)
		if mErr != nil {
			return
		}
		if _, wErr := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); wErr != nil {
			return
		}
		flusher.Flush()
	}
}

func handleStreamRFPs(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streamSnapshots(w, r, live.Snapshots(deps.Store, live.RFPs(deps.Store)))
	}
}

func handleStreamTodos(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streamSnapshots(w, r, live.Snapshots(deps.Store, live.Todos(deps.Store, todoFilter(r))))
	}
}

func handleStreamPersonnel(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streamSnapshots(w, r, live.Snapshots(deps.Store, live.Personnel(deps.Store)))
	}
}
