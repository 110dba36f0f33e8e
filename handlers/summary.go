package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/medicalia/ordonnances-api/aiclient"
	"github.com/medicalia/ordonnances-api/logging"
)

// MedicalSummary builds the facts-only text from the declared profile and
// ordonnances and asks the summary model for a short French synthesis. When
// the model yields nothing after the retries, the deterministic fallback
// summary answers instead, so a validated request always gets a summary.
func (h *Handler) MedicalSummary(w http.ResponseWriter, r *http.Request) {
	var req *aiclient.SummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = nil
	}

	if code := req.Validate(); code != "" {
		RespondWithJSON(w, http.StatusBadRequest, map[string]interface{}{
			"ok":     false,
			"error":  "INVALID_BODY",
			"detail": code,
		})
		return
	}

	if !h.summarizer.Configured() {
		respondNotOK(w, http.StatusInternalServerError, "OPENAI_API_KEY_MISSING",
			"Clé API OpenAI non configurée")
		return
	}

	factsText := aiclient.BuildFactsText(req.Personal, req.Ordonnances)

	summary, err := h.summarizer.Summarize(r.Context(), factsText)
	if err != nil {
		logging.Warn("Summary model unavailable, using deterministic fallback", "error", err)
		summary = aiclient.FallbackSummary(req.Personal, req.Ordonnances)
	}

	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"summary":     summary,
		"serverBuild": summaryBuildTag,
		"serverTime":  time.Now().Format(time.RFC3339),
	})
}

// SummaryHealth answers the summary-specific health probes.
func (h *Handler) SummaryHealth(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":   true,
		"path": r.URL.Path,
	})
}
