package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/medicalia/ordonnances-api/aiclient"
	"github.com/medicalia/ordonnances-api/logging"
	"github.com/medicalia/ordonnances-api/metrics"
	"github.com/medicalia/ordonnances-api/ocrclient"
	"github.com/medicalia/ordonnances-api/ordonnance"
	"github.com/medicalia/ordonnances-api/ordonnance/entities"
)

// minBase64Length rejects payloads too small to be a photo.
const minBase64Length = 100

var dataURLMimeRe = regexp.MustCompile(`data:([^;]+)`)

type ocrPhotoRequest struct {
	Base64 string `json:"base64"`
}

// OCRPhoto runs the full photo pipeline: preprocessing + OCR with fallback,
// AI structuring with deterministic fallback, normalization and the
// frontend transform. The AI step can never fail the route on its own; only
// a missing image, an empty OCR result or an OCR provider failure do.
func (h *Handler) OCRPhoto(w http.ResponseWriter, r *http.Request) {
	if h.cfg.MistralAPIKey == "" {
		respondFail(w, http.StatusInternalServerError, "MISSING_API_KEY",
			"MISTRAL_API_KEY non configurée")
		return
	}

	var req ocrPhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Base64) <= minBase64Length {
		RespondWithJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":     "INVALID_PAYLOAD",
			"base64Len": len(req.Base64),
		})
		return
	}

	mimeType := "image/jpeg"
	if strings.HasPrefix(req.Base64, "data:") {
		if m := dataURLMimeRe.FindStringSubmatch(req.Base64); m != nil {
			mimeType = m[1]
		}
	}

	text, meta, err := h.ocr.OCRWithFallback(r.Context(), req.Base64, mimeType)
	if err != nil {
		if errors.Is(err, ocrclient.ErrTimeout) {
			metrics.OCRAttemptsTotal.WithLabelValues("timeout").Inc()
			respondFail(w, http.StatusGatewayTimeout, "MISTRAL_TIMEOUT", "OCR Mistral trop long")
			return
		}
		metrics.OCRAttemptsTotal.WithLabelValues("failed").Inc()
		logging.Error("OCR failed on both attempts", "error", err)
		RespondWithJSON(w, http.StatusInternalServerError, map[string]string{"error": "OCR_FAILED"})
		return
	}

	if meta.Fallback {
		metrics.OCRAttemptsTotal.WithLabelValues("fallback").Inc()
	} else {
		metrics.OCRAttemptsTotal.WithLabelValues("accepted").Inc()
	}

	if strings.TrimSpace(text) == "" {
		respondFail(w, http.StatusBadRequest, "EMPTY_OCR_TEXT", "Aucun texte extrait de l'image")
		return
	}

	normalized := h.structureWithFallback(r, text)
	transformed := ordonnance.TransformForFrontend(normalized)
	transformed.Meta = &meta

	RespondWithJSON(w, http.StatusOK, transformed)
}

// structureWithFallback tries the AI structurer and falls back to the
// deterministic analyzer on any failure, then normalizes either result.
func (h *Handler) structureWithFallback(r *http.Request, text string) entities.Canonical {
	if !h.structurer.Configured() {
		metrics.StructuringFallbackTotal.WithLabelValues("unconfigured").Inc()
		return ordonnance.NormalizeExtracted(ordonnance.AnalyzeText(text), text)
	}

	doc, err := h.structurer.Structure(r.Context(), text)
	if err != nil {
		reason := "error"
		if errors.Is(err, aiclient.ErrInvalidShape) {
			reason = "invalid_shape"
		}
		metrics.StructuringFallbackTotal.WithLabelValues(reason).Inc()
		logging.Warn("AI structuring failed, using deterministic analyzer", "reason", reason, "error", err)
		return ordonnance.NormalizeExtracted(ordonnance.AnalyzeText(text), text)
	}

	return ordonnance.Normalize(doc, text)
}
