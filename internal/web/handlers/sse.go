package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// isJobTerminal returns true if the job status is a terminal state.
func isJobTerminal(status JobStatus) bool {
	return status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled
}

// setupSSEConnection sets SSE headers and returns a flusher, or an error response.
func setupSSEConnection(w http.ResponseWriter) (http.Flusher, bool) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return nil, false
	}
	return flusher, true
}

// sendSSEEvent writes a single SSE event and flushes.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event JobEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// streamSSEEvents streams events from a job to the client until the job
// reaches a terminal state or the client disconnects.
func streamSSEEvents(w http.ResponseWriter, r *http.Request, job SSEJob) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	events := job.AddListener()
	defer job.RemoveListener(events)

	// If the job already finished, emit a final status event and return
	// so late subscribers do not hang forever.
	if isJobTerminal(job.GetStatus()) {
		sendSSEEvent(w, flusher, JobEvent{Type: "status", Message: string(job.GetStatus())})
		return
	}

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return
			}
			sendSSEEvent(w, flusher, event)
			if event.Type == "completed" || event.Type == "failed" || event.Type == "cancelled" {
				return
			}
		}
	}
}
