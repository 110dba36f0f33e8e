package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/medicalia/ordonnances-api/logging"
	"github.com/medicalia/ordonnances-api/ordonnance"
	"github.com/medicalia/ordonnances-api/ordonnance/entities"
	"github.com/medicalia/ordonnances-api/store"
)

// extractPDFText pulls the plain text out of an uploaded PDF.
func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", err
	}
	return strings.TrimSpace(sb.String()), nil
}

// AnalyzeOrdonnancePDF accepts a multipart PDF upload, extracts and
// structures its text, forwards the structured text to the analysis webhook
// and stores the resulting record. Every failure collapses to the single
// ANALYZE_ORDONNANCE_FAILED code the mobile client expects.
func (h *Handler) AnalyzeOrdonnancePDF(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		RespondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "ANALYZE_ORDONNANCE_FAILED"})
		return
	}
	defer file.Close()

	if header.Header.Get("Content-Type") != "application/pdf" {
		RespondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "ANALYZE_ORDONNANCE_FAILED"})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		RespondWithJSON(w, http.StatusInternalServerError, map[string]string{"error": "ANALYZE_ORDONNANCE_FAILED"})
		return
	}

	extractedText, err := h.extractPDF(data)
	if err != nil {
		logging.Error("PDF text extraction failed", "error", err)
		RespondWithJSON(w, http.StatusInternalServerError, map[string]string{"error": "ANALYZE_ORDONNANCE_FAILED"})
		return
	}
	if extractedText == "" {
		RespondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "ANALYZE_ORDONNANCE_FAILED"})
		return
	}

	structuredText := ordonnance.StructureText(extractedText)

	finalObject, err := h.callAnalysisWebhook(r, structuredText)
	if err != nil {
		logging.Error("Analysis webhook call failed", "error", err)
		RespondWithJSON(w, http.StatusInternalServerError, map[string]string{"error": "ANALYZE_ORDONNANCE_FAILED"})
		return
	}

	record := h.ordonnances.Create(store.NewOrdonnanceInput{
		Source:      entities.SourcePDF,
		RawText:     extractedText,
		DoctorName:  nilIfEmpty(firstStringAt(finalObject, []string{"meta", "prescripteur", "nom"}, []string{"prescripteur", "nom"}, []string{"doctorName"})),
		PatientName: nilIfEmpty(firstStringAt(finalObject, []string{"patient", "nom"}, []string{"patientName"})),
		Medications: webhookMedications(finalObject),
		Status:      entities.StatusARecuperer,
		CreatedAt:   time.Now().Format(time.RFC3339),
	})
	logging.Info("PDF ordonnance stored", "id", record.ID)

	RespondWithJSON(w, http.StatusOK, finalObject)
}

// callAnalysisWebhook posts the structured text and unwraps the stringified
// result field of the response, which may be double-encoded.
func (h *Handler) callAnalysisWebhook(r *http.Request, structuredText string) (map[string]interface{}, error) {
	if h.cfg.WebhookURL == "" {
		return nil, errWebhookUnavailable
	}

	body, err := json.Marshal(map[string]string{"text": structuredText})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.webhookClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, errWebhookEmptyResponse
	}

	var parsed struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	if parsed.Result == "" {
		return nil, errWebhookEmptyResult
	}

	var finalObject map[string]interface{}
	if err := json.Unmarshal([]byte(parsed.Result), &finalObject); err != nil {
		// Some workflow versions double-encode the result.
		var nested string
		if err2 := json.Unmarshal([]byte(parsed.Result), &nested); err2 != nil {
			return nil, err
		}
		if err2 := json.Unmarshal([]byte(nested), &finalObject); err2 != nil {
			return nil, err2
		}
	}
	return finalObject, nil
}

// webhookMedications maps the two medication shapes the webhook may return
// (French keys or already-translated ones) onto the stored shape.
func webhookMedications(finalObject map[string]interface{}) []entities.Medication {
	meds := []entities.Medication{}

	if list, ok := finalObject["medicaments"].([]interface{}); ok {
		for _, item := range list {
			med, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			meds = append(meds, entities.Medication{
				Name:      firstString(med, "nom", "name"),
				Dosage:    firstString(med, "posologie", "dosage"),
				Frequency: firstString(med, "frequence", "frequency"),
				Duration:  firstString(med, "duree", "duration"),
			})
		}
		return meds
	}

	if list, ok := finalObject["medications"].([]interface{}); ok {
		for _, item := range list {
			med, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			meds = append(meds, entities.Medication{
				Name:      firstString(med, "name"),
				Dosage:    firstString(med, "dosage"),
				Frequency: firstString(med, "frequency"),
				Duration:  firstString(med, "duration"),
			})
		}
	}
	return meds
}
