package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/medicalia/ordonnances-api/logging"
	"github.com/medicalia/ordonnances-api/metrics"
	"github.com/medicalia/ordonnances-api/qrtoken"
	"github.com/medicalia/ordonnances-api/store"
)

// OrdonnanceQR issues a signed 7-day token for one ordonnance and the
// scannable web URL carrying it. The QR payload is the web URL so any
// camera app can resolve it; the deep link is for in-app scans.
func (h *Handler) OrdonnanceQR(w http.ResponseWriter, r *http.Request) {
	ordonnanceID := chi.URLParam(r, "id")
	if ordonnanceID == "" {
		respondNotOK(w, http.StatusBadRequest, "INVALID_ORDONNANCE_ID", "ID d'ordonnance invalide")
		return
	}

	token, expiresAt, err := h.ordSigner.IssueOrdonnance(ordonnanceID)
	if err != nil {
		logging.Error("QR token generation failed", "error", err)
		respondNotOK(w, http.StatusInternalServerError, "QR_GENERATION_FAILED",
			"Erreur lors de la génération du token QR")
		return
	}
	metrics.QRTokensIssuedTotal.WithLabelValues("ordonnance").Inc()

	deepLink := fmt.Sprintf("medicalia://ordonnance/%s?t=%s", ordonnanceID, token)
	webURL := fmt.Sprintf("%s/o/%s", h.cfg.PublicWebBaseURL, token)

	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":           true,
		"ordonnanceId": ordonnanceID,
		"qrPayload":    webURL,
		"qrData":       webURL, // frontend compatibility alias
		"webUrl":       webURL,
		"deepLink":     deepLink,
		"expiresAt":    expiresAt.Format(time.RFC3339),
	})
}

// ResolveQR verifies an ordonnance token and returns the id it carries.
func (h *Handler) ResolveQR(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("t")
	if token == "" {
		respondNotOK(w, http.StatusBadRequest, "TOKEN_MISSING", "Le paramètre \"t\" (token) est requis")
		return
	}

	var payload qrtoken.OrdonnancePayload
	if err := h.ordSigner.Verify(token, &payload); err != nil {
		code := qrtoken.CodeParseError
		if ve, ok := qrtoken.AsVerifyError(err); ok {
			code = ve.Code
		}
		respondNotOK(w, http.StatusBadRequest, code, "Token invalide: "+code)
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":           true,
		"ordonnanceId": payload.ID,
	})
}

type passportQRRequest struct {
	PatientID   string `json:"patientId"`
	SummaryHash string `json:"summaryHash"`
	Summary     string `json:"summary"`
	Personal    *struct {
		Nom    string `json:"nom"`
		Prenom string `json:"prenom"`
	} `json:"personal"`
	HealthProfile map[string]interface{} `json:"healthProfile"`
}

// PassportQR issues a signed 30-day passport token. When the request
// carries a summary and identity, the summary is enriched with the declared
// health profile and cached under its hash so a later scan can resolve it.
// Serves both GET (query params) and POST (JSON body); never answers with
// a null token, a missing secret is a hard error.
func (h *Handler) PassportQR(w http.ResponseWriter, r *http.Request) {
	if h.passportSigner == nil {
		respondNotOK(w, http.StatusInternalServerError, "PASSPORT_SECRET_MISSING",
			"PASSPORT_QR_SECRET ou QR_SECRET est requis pour générer un token valide")
		return
	}

	var req passportQRRequest
	if r.Body != nil {
		// GET requests have no body; decoding failures just leave the
		// query-parameter path.
		json.NewDecoder(r.Body).Decode(&req)
	}
	if v := r.URL.Query().Get("patientId"); v != "" {
		req.PatientID = v
	}
	if v := r.URL.Query().Get("summaryHash"); v != "" {
		req.SummaryHash = v
	}

	hash := req.SummaryHash
	if hash == "" && req.Personal != nil && req.Summary != "" {
		keyParts := []string{req.Personal.Nom, req.Personal.Prenom, req.Summary}
		if req.HealthProfile != nil {
			// The profile is part of the cache key so an updated profile
			// never resolves to a stale summary.
			keyParts = append(keyParts, healthProfileKey(req.HealthProfile))
		}
		hash = store.SummaryHash(keyParts...)

		h.passports.Put(hash, store.PassportSummary{
			Summary:     enrichSummary(req.Summary, req.HealthProfile),
			PatientName: strings.TrimSpace(req.Personal.Prenom + " " + req.Personal.Nom),
		})
	}

	token, expiresAt, err := h.passportSigner.IssuePassport(req.PatientID, hash)
	if err != nil || token == "" {
		logging.Error("Passport token generation failed", "error", err)
		respondNotOK(w, http.StatusInternalServerError, "PASSPORT_TOKEN_GENERATION_FAILED",
			"Erreur lors de la génération du token QR Passeport")
		return
	}
	metrics.QRTokensIssuedTotal.WithLabelValues("passport").Inc()

	deepLink := "medicalia://passport?t=" + token
	webURL := fmt.Sprintf("%s/p/%s", h.cfg.PublicWebBaseURL, token)

	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"token":       token,
		"expiresAt":   expiresAt.Format(time.RFC3339),
		"deepLink":    deepLink,
		"webUrl":      webURL,
		"qrPayload":   deepLink, // deprecated, kept for older clients
		"serverBuild": passportBuildTag,
	})
}

// ResolvePassport verifies a passport token and returns the cached summary,
// or a readable placeholder when the cache has no entry for its hash.
func (h *Handler) ResolvePassport(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("t")
	if token == "" {
		respondNotOK(w, http.StatusBadRequest, "TOKEN_MISSING", "Le paramètre \"t\" (token) est requis")
		return
	}

	if token == "unsigned" || strings.Contains(token, "mode=unsigned") {
		respondNotOK(w, http.StatusOK, "UNSIGNED_QR",
			"QR non signé. Le secret de signature n'est pas configuré.")
		return
	}

	if h.passportSigner == nil {
		respondNotOK(w, http.StatusOK, "PASSPORT_SECRET_MISSING",
			"QR non signé. Le secret de signature n'est pas configuré.")
		return
	}

	var payload qrtoken.PassportPayload
	if err := h.passportSigner.Verify(token, &payload); err != nil {
		code := qrtoken.CodeParseError
		if ve, ok := qrtoken.AsVerifyError(err); ok {
			code = ve.Code
		}
		logging.Info("Passport token rejected", "code", code)
		respondNotOK(w, http.StatusBadRequest, code, "Token invalide: "+code)
		return
	}

	if payload.Type != qrtoken.PassportType {
		respondNotOK(w, http.StatusBadRequest, "INVALID_TOKEN_TYPE",
			"Token non valide pour Passeport Santé")
		return
	}

	summary := "Résumé indisponible"
	source := "generated"
	generatedAt := time.Now().Format(time.RFC3339)
	if payload.SummaryHash != "" {
		if cached, ok := h.passports.Get(payload.SummaryHash); ok {
			summary = cached.Summary
			source = "cache"
			generatedAt = cached.GeneratedAt
		}
	}

	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"type":        qrtoken.PassportType,
		"summary":     summary,
		"source":      source,
		"generatedAt": generatedAt,
	})
}

// healthProfileKey is the cache-key discriminator for a health profile:
// its updatedAt when present, otherwise a hash of its content.
func healthProfileKey(profile map[string]interface{}) string {
	if updatedAt, ok := profile["updatedAt"].(string); ok && updatedAt != "" {
		return updatedAt
	}
	encoded, _ := json.Marshal(profile)
	digest := sha256.Sum256(encoded)
	return hex.EncodeToString(digest[:])[:16]
}

// enrichSummary appends the declared health profile facts to the summary
// text so a scan shows them without another model call.
func enrichSummary(summary string, profile map[string]interface{}) string {
	if profile == nil {
		return summary
	}

	var parts []string
	if allergies := joinStrings(profile["allergies"]); allergies != "" {
		parts = append(parts, "Allergies: "+allergies)
	}
	if diseases := joinStrings(profile["chronicDiseases"]); diseases != "" {
		parts = append(parts, "Maladies chroniques: "+diseases)
	}
	if treatments := joinTreatments(profile["longTermTreatments"]); treatments != "" {
		parts = append(parts, "Traitements au long cours: "+treatments)
	}
	if contact := formatEmergencyContact(profile["emergencyContact"]); contact != "" {
		parts = append(parts, "Contact d'urgence: "+contact)
	}

	if len(parts) == 0 {
		return summary
	}
	return summary + "\n\n" + strings.Join(parts, "\n")
}

func joinStrings(value interface{}) string {
	list, ok := value.([]interface{})
	if !ok {
		return ""
	}
	var items []string
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			items = append(items, s)
		}
	}
	return strings.Join(items, ", ")
}

// joinTreatments accepts plain strings or {name, dosage} objects.
func joinTreatments(value interface{}) string {
	list, ok := value.([]interface{})
	if !ok {
		return ""
	}
	var items []string
	for _, item := range list {
		switch t := item.(type) {
		case string:
			if t != "" {
				items = append(items, t)
			}
		case map[string]interface{}:
			name := firstString(t, "name")
			if name == "" {
				continue
			}
			if dosage := firstString(t, "dosage"); dosage != "" {
				name += " (" + dosage + ")"
			}
			items = append(items, name)
		}
	}
	return strings.Join(items, ", ")
}

func formatEmergencyContact(value interface{}) string {
	contact, ok := value.(map[string]interface{})
	if !ok {
		return ""
	}
	var parts []string
	if name := firstString(contact, "name"); name != "" {
		parts = append(parts, name)
	}
	if phone := firstString(contact, "phone"); phone != "" {
		parts = append(parts, phone)
	}
	if rel := firstString(contact, "relationship"); rel != "" {
		parts = append(parts, "("+rel+")")
	}
	return strings.Join(parts, " ")
}
