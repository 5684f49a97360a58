package http

import (
	"net/http"
)

// StreamProgress handles GET /sync/progress/{session_id}: an SSE channel of
// live progress snapshots.
func (h *Handlers) StreamProgress(w http.ResponseWriter, r *http.Request) {
	h.stream.ServeHTTP(w, r, urlParam(r, "session_id"))
}

// GetSessionStatus handles GET /sync/status/{session_id}: a one-shot poll
// alternative to the SSE stream.
func (h *Handlers) GetSessionStatus(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.GetSession(r.Context(), urlParam(r, "session_id"))
	if err != nil {
		writeDomainError(w, err, "sync session not found")
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}
