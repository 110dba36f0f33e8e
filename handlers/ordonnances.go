package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/medicalia/ordonnances-api/logging"
	"github.com/medicalia/ordonnances-api/ordonnance"
	"github.com/medicalia/ordonnances-api/ordonnance/entities"
	"github.com/medicalia/ordonnances-api/store"
)

// AnalyzeRawText runs the deterministic extractor over a raw ordonnance
// text and returns the strict JSON wrapped in {output: ...}.
func (h *Handler) AnalyzeRawText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RawText string `json:"rawText"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.RawText) == "" {
		respondFail(w, http.StatusBadRequest, "INVALID_RAWTEXT",
			"Le champ rawText est requis et ne peut pas être vide")
		return
	}

	analyzed := ordonnance.AnalyzeText(req.RawText)
	RespondWithJSON(w, http.StatusOK, map[string]interface{}{"output": analyzed})
}

// CreateOCRRecord stores a minimal handwritten-OCR record: raw text only,
// no field extraction.
func (h *Handler) CreateOCRRecord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source    string `json:"source"`
		RawText   string `json:"rawText"`
		CreatedAt string `json:"createdAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondFail(w, http.StatusBadRequest, "INVALID_SOURCE",
			"Le champ source doit être \"ocr_manuscrit\"")
		return
	}
	if req.Source != entities.SourceOCRManuscrit {
		respondFail(w, http.StatusBadRequest, "INVALID_SOURCE",
			"Le champ source doit être \"ocr_manuscrit\"")
		return
	}
	if strings.TrimSpace(req.RawText) == "" {
		respondFail(w, http.StatusBadRequest, "INVALID_RAWTEXT",
			"Le champ rawText est requis et ne peut pas être vide")
		return
	}

	record := h.ordonnances.Create(store.NewOrdonnanceInput{
		Source:    entities.SourceOCRManuscrit,
		RawText:   strings.TrimSpace(req.RawText),
		Status:    entities.StatusARecuperer,
		CreatedAt: validCreatedAt(req.CreatedAt),
	})
	logging.Info("Handwritten OCR record created", "id", record.ID, "rawTextLength", len(record.RawText))

	RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success":    true,
		"ordonnance": record,
	})
}

// CreateFromOCR maps raw OCR text onto the stored-record fields with the
// deterministic mapping and stores the result.
func (h *Handler) CreateFromOCR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source    string `json:"source"`
		RawText   string `json:"rawText"`
		CreatedAt string `json:"createdAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.RawText) == "" {
		respondFail(w, http.StatusBadRequest, "INVALID_RAWTEXT",
			"Le champ rawText est requis et ne peut pas être vide")
		return
	}

	fields := ordonnance.MapOCRFields(req.RawText)

	source := req.Source
	if source == "" {
		source = entities.SourceOCRManuscrit
	}

	record := h.ordonnances.Create(store.NewOrdonnanceInput{
		Source:      source,
		RawText:     strings.TrimSpace(req.RawText),
		DoctorName:  &fields.DoctorName,
		PatientName: &fields.PatientName,
		Medications: fields.Medications,
		Status:      entities.StatusARecuperer,
		CreatedAt:   validCreatedAt(req.CreatedAt),
	})
	logging.Info("OCR ordonnance created", "id", record.ID,
		"doctor", fields.DoctorName, "medications", len(fields.Medications))

	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"ordonnance": record,
	})
}

// Finalize turns a structured scan result into a stored record. The body may
// carry the legacy schema under "structured", the extractor schema under
// "output", or the extractor schema at the top level (format A).
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		RespondWithJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "INVALID_STRUCTURED",
		})
		return
	}

	structured := pickStructured(body)
	structuredMap, ok := structured.(map[string]interface{})
	if !ok {
		RespondWithJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "INVALID_STRUCTURED",
		})
		return
	}

	if isFormatA(structuredMap) {
		structuredMap = convertFormatA(structuredMap)
	}

	recordType, _ := body["type"].(string)
	if recordType != entities.TypeMedicament && recordType != entities.TypeRendezVous {
		RespondWithJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":        "INVALID_TYPE",
			"receivedType": body["type"],
			"allowedTypes": []string{entities.TypeMedicament, entities.TypeRendezVous},
		})
		return
	}

	medecin := firstString(structuredMap, "medecin")
	patient := firstString(structuredMap, "patient")
	texteBrut := firstString(structuredMap, "texte_brut")

	medications := legacyMedications(structuredMap)

	// The normalizer derives the single canonical rdv from whatever
	// appointment shape the scan produced.
	normalized := ordonnance.Normalize(structuredMap, texteBrut)
	rdv := finalizeRdv(normalized)

	appointments := []entities.RDV{}
	if rdv != nil {
		appointments = append(appointments, *rdv)
	}

	status := entities.StatusARecuperer
	if recordType == entities.TypeRendezVous {
		status = entities.StatusRdvAPlanifer
	}

	record := h.ordonnances.Create(store.NewOrdonnanceInput{
		Source:       entities.SourceOCRManuscrit,
		RawText:      texteBrut,
		DoctorName:   nilIfEmpty(medecin),
		PatientName:  nilIfEmpty(patient),
		Medications:  medications,
		Appointments: appointments,
		Rdv:          rdv,
		Status:       status,
		CreatedAt:    time.Now().Format(time.RFC3339),
		Type:         &recordType,
		IsRdv:        recordType == entities.TypeRendezVous,
	})
	logging.Info("Ordonnance finalized", "id", record.ID, "type", recordType, "status", record.Status)

	RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success":    true,
		"ordonnance": record,
		"type":       recordType,
	})
}

// ListOrdonnances returns every stored record, PDF and OCR alike.
func (h *Handler) ListOrdonnances(w http.ResponseWriter, r *http.Request) {
	records := h.ordonnances.List()
	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"ordonnances": records,
		"count":       len(records),
	})
}

// validCreatedAt keeps a parseable client timestamp, otherwise now.
func validCreatedAt(createdAt string) string {
	if createdAt != "" {
		if _, err := time.Parse(time.RFC3339, createdAt); err == nil {
			return createdAt
		}
	}
	return time.Now().Format(time.RFC3339)
}

func pickStructured(body map[string]interface{}) interface{} {
	if v, ok := body["structured"]; ok && v != nil {
		return v
	}
	if v, ok := body["output"]; ok && v != nil {
		return v
	}
	return body
}

// isFormatA detects the extractor schema (doctor/patient/prescription) as
// opposed to the legacy medecin/patient/medicaments schema.
func isFormatA(m map[string]interface{}) bool {
	_, hasDoctor := m["doctor"]
	_, hasPrescription := m["prescription"]
	if hasDoctor || hasPrescription {
		return true
	}
	// "patient" alone is ambiguous: format A carries it as an object,
	// the legacy schema as a plain string.
	_, isObject := m["patient"].(map[string]interface{})
	return isObject
}

// convertFormatA maps the extractor schema onto the legacy schema the rest
// of the finalize path consumes.
func convertFormatA(m map[string]interface{}) map[string]interface{} {
	doctorName := ""
	switch doctor := m["doctor"].(type) {
	case string:
		doctorName = doctor
	case map[string]interface{}:
		doctorName = firstString(doctor, "name")
	}

	patientName := ""
	switch patient := m["patient"].(type) {
	case string:
		patientName = patient
	case map[string]interface{}:
		patientName = firstString(patient, "name")
	}

	medicaments := []interface{}{}
	if prescription, ok := m["prescription"].([]interface{}); ok {
		for _, item := range prescription {
			entry, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			medicaments = append(medicaments, map[string]interface{}{
				"nom":       firstString(entry, "medicament", "name", "nom"),
				"dosage":    firstString(entry, "dosage"),
				"posologie": firstString(entry, "posologie", "frequency", "frequence"),
				"duree":     firstString(entry, "duration", "duree"),
			})
		}
	}

	converted := map[string]interface{}{
		"medecin":     doctorName,
		"patient":     patientName,
		"medicaments": medicaments,
		"texte_brut":  firstString(m, "rawText", "text"),
	}
	// Carry the appointment shapes through for rdv derivation.
	for _, key := range []string{"rdv", "appointments"} {
		if v, ok := m[key]; ok {
			converted[key] = v
		}
	}
	return converted
}

// legacyMedications maps the legacy medicaments array onto the stored shape.
func legacyMedications(structured map[string]interface{}) []entities.Medication {
	meds := []entities.Medication{}
	list, ok := structured["medicaments"].([]interface{})
	if !ok {
		return meds
	}
	for _, item := range list {
		med, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		meds = append(meds, entities.Medication{
			Name:      firstString(med, "nom"),
			Dosage:    firstString(med, "dosage"),
			Frequency: firstString(med, "posologie"),
			Duration:  firstString(med, "duree"),
		})
	}
	return meds
}

// finalizeRdv prefers the canonical rdv and falls back to the first legacy
// appointment, with a generic title when none survived.
func finalizeRdv(normalized entities.Canonical) *entities.RDV {
	if normalized.Rdv != nil {
		rdv := *normalized.Rdv
		return &rdv
	}
	if len(normalized.Appointments) == 0 {
		return nil
	}
	rdv := normalized.Appointments[0]
	if rdv.AppointmentTitle == "" {
		rdv.AppointmentTitle = "Rendez-vous médical"
	}
	return &rdv
}
