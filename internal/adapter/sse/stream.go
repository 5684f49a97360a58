// Package sse serves the progress stream: a server-sent event channel
// that polls a SyncSession and emits snapshots as they change.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"github.com/strob0t/sprintsync/internal/domain/sync"
)

// SessionGetter is the narrow slice of the persistence port the stream
// needs: read-only access to one SyncSession by ID.
type SessionGetter interface {
	GetSession(ctx context.Context, id string) (sync.Session, error)
}

// Stream serves GET /sync/progress/{session_id}.
type Stream struct {
	store        SessionGetter
	pollInterval time.Duration
	heartbeat    time.Duration
	timeout      time.Duration
	now          func() time.Time
}

// New creates a Stream. Zero durations fall back to spec defaults (500ms
// poll, 30s heartbeat, 120s timeout).
func New(store SessionGetter, pollInterval, heartbeat, timeout time.Duration) *Stream {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Stream{
		store:        store,
		pollInterval: pollInterval,
		heartbeat:    heartbeat,
		timeout:      timeout,
		now:          time.Now,
	}
}

// ServeHTTP streams progress snapshots for the session named by the
// "session_id" URL parameter until the session reaches a terminal status,
// the client disconnects, or the stream's lifetime budget is exhausted.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request, sessionID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	deadline := s.now().Add(s.timeout)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var lastSent *sync.Progress
	lastChangeAt := s.now()

	for {
		select {
		case <-ctx.Done():
			return

		case now := <-ticker.C:
			if now.After(deadline) {
				writeEvent(w, "timeout", nil)
				flusher.Flush()
				return
			}

			session, err := s.store.GetSession(ctx, sessionID)
			if err != nil {
				slog.Error("progress stream: get session failed", "session_id", sessionID, "error", err)
				writeEvent(w, "timeout", nil)
				flusher.Flush()
				return
			}

			snapshot := session.Snapshot()
			if lastSent == nil || !reflect.DeepEqual(snapshot, *lastSent) {
				lastSent = &snapshot
				lastChangeAt = now

				if session.Status.Terminal() {
					writeEvent(w, "complete", snapshot)
					flusher.Flush()
					return
				}
				writeEvent(w, "", snapshot)
				flusher.Flush()
				continue
			}

			if now.Sub(lastChangeAt) >= s.heartbeat {
				fmt.Fprint(w, ": keep-alive\n\n")
				flusher.Flush()
				lastChangeAt = now
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, payload any) {
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	if payload == nil {
		fmt.Fprint(w, "data: {}\n\n")
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("progress stream: marshal snapshot failed", "error", err)
		fmt.Fprint(w, "data: {}\n\n")
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
