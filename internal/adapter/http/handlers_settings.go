package http

import (
	"net/http"

	"github.com/strob0t/sprintsync/internal/teamsettings"
)

const maxSettingsBodyBytes = 1 << 20 // 1 MiB

type settingsPatchRequest struct {
	Document string         `json:"document"`
	Patch    map[string]any `json:"patch"`
}

// GetSettings handles GET /team/{team_id}/settings: the fully resolved
// merge of built-in defaults and the team's stored overrides.
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	resolved, err := h.resolver.Resolve(r.Context(), urlParam(r, "team_id"))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

// UpdateSettings handles PUT /team/{team_id}/settings: a partial override
// merged recursively into the team's stored document for the named domain
// (analysis, workflow, or metrics).
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	teamID := urlParam(r, "team_id")

	req, ok := readJSON[settingsPatchRequest](w, r, maxSettingsBodyBytes)
	if !ok {
		return
	}
	if !requireField(w, req.Document, "document") {
		return
	}

	doc := teamsettings.Document(req.Document)
	switch doc {
	case teamsettings.DocumentAnalysis, teamsettings.DocumentWorkflow, teamsettings.DocumentMetrics:
	default:
		writeError(w, http.StatusBadRequest, "document must be one of: analysis, workflow, metrics")
		return
	}

	if err := h.resolver.UpdateOverride(r.Context(), teamID, doc, req.Patch); err != nil {
		writeInternalError(w, err)
		return
	}

	resolved, err := h.resolver.Resolve(r.Context(), teamID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

// requireField writes a 400 error and returns false when value is empty.
func requireField(w http.ResponseWriter, value, fieldName string) bool {
	if value == "" {
		writeError(w, http.StatusBadRequest, fieldName+" is required")
		return false
	}
	return true
}
