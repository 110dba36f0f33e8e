package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/medicalia/ordonnances-api/aiclient"
	"github.com/medicalia/ordonnances-api/ocrclient"
	"github.com/medicalia/ordonnances-api/ordonnance/entities"
)

const sampleOCRText = "Dr Martin\nDoliprane 1000mg matin et soir"

func ocrPhotoRequestBody() *strings.Reader {
	return strings.NewReader(`{"base64":"` + strings.Repeat("A", 200) + `"}`)
}

func TestOCRPhotoStructuredByAI(t *testing.T) {
	f := newFixture(t)
	f.ocr.text = sampleOCRText
	f.ocr.meta = entities.OCRMeta{UsedPreprocess: true, ScoreOCR: 0.2}
	f.structurer.configured = true
	f.structurer.doc = map[string]interface{}{
		"doctor":  map[string]interface{}{"name": "Dr Martin", "speciality": "", "rpps": ""},
		"patient": map[string]interface{}{"name": "Jean Dupont", "birthDate": ""},
		"prescription": []interface{}{
			map[string]interface{}{"medicament": "Doliprane", "dosage": "1000mg", "posologie": "matin et soir", "duration": ""},
		},
		"additionalInstructions": "",
		"issueDate":              "",
		"confidenceScore":        0.9,
		"source":                 "OCR",
	}

	rec := httptest.NewRecorder()
	f.handler.OCRPhoto(rec, httptest.NewRequest(http.MethodPost, "/ocr-photo", ocrPhotoRequestBody()))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)

	doctor := body["doctor"].(map[string]interface{})
	if doctor["name"] != "Dr Martin" {
		t.Errorf("doctor.name = %v", doctor["name"])
	}
	medicaments := body["medicaments"].([]interface{})
	if len(medicaments) != 1 {
		t.Fatalf("medicaments = %v", medicaments)
	}
	if medicaments[0].(map[string]interface{})["name"] != "Doliprane" {
		t.Errorf("medicament name = %v", medicaments[0])
	}
	meta := body["meta"].(map[string]interface{})
	if meta["usedPreprocess"] != true {
		t.Errorf("meta.usedPreprocess = %v, want true", meta["usedPreprocess"])
	}
	if f.structurer.calls != 1 {
		t.Errorf("structurer calls = %d, want 1", f.structurer.calls)
	}
}

func TestOCRPhotoInvalidAIShapeFallsBack(t *testing.T) {
	f := newFixture(t)
	f.ocr.text = sampleOCRText
	f.structurer.configured = true
	f.structurer.err = aiclient.ErrInvalidShape

	rec := httptest.NewRecorder()
	f.handler.OCRPhoto(rec, httptest.NewRequest(http.MethodPost, "/ocr-photo", ocrPhotoRequestBody()))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)

	// The deterministic analyzer found the doctor and the medication, so
	// the confidence comes from the raw text, not the AI payload.
	doctor := body["doctor"].(map[string]interface{})
	if name := doctor["name"].(string); !strings.Contains(name, "Martin") {
		t.Errorf("doctor.name = %q, want Martin from the analyzer", name)
	}
	if score := body["confidenceScore"].(float64); score <= 0 {
		t.Errorf("confidenceScore = %v, want > 0", score)
	}
}

func TestOCRPhotoUnconfiguredAIUsesAnalyzer(t *testing.T) {
	f := newFixture(t)
	f.ocr.text = sampleOCRText
	f.structurer.configured = false

	rec := httptest.NewRecorder()
	f.handler.OCRPhoto(rec, httptest.NewRequest(http.MethodPost, "/ocr-photo", ocrPhotoRequestBody()))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if f.structurer.calls != 0 {
		t.Errorf("structurer calls = %d, want 0", f.structurer.calls)
	}
}

func TestOCRPhotoTimeout(t *testing.T) {
	f := newFixture(t)
	f.ocr.err = ocrclient.ErrTimeout

	rec := httptest.NewRecorder()
	f.handler.OCRPhoto(rec, httptest.NewRequest(http.MethodPost, "/ocr-photo", ocrPhotoRequestBody()))

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "MISTRAL_TIMEOUT" {
		t.Errorf("error = %v, want MISTRAL_TIMEOUT", body["error"])
	}
}

func TestOCRPhotoProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.ocr.err = ocrclient.ErrOCRFailed

	rec := httptest.NewRecorder()
	f.handler.OCRPhoto(rec, httptest.NewRequest(http.MethodPost, "/ocr-photo", ocrPhotoRequestBody()))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "OCR_FAILED" {
		t.Errorf("error = %v, want OCR_FAILED", body["error"])
	}
}

func TestOCRPhotoEmptyText(t *testing.T) {
	f := newFixture(t)
	f.ocr.text = "   "

	rec := httptest.NewRecorder()
	f.handler.OCRPhoto(rec, httptest.NewRequest(http.MethodPost, "/ocr-photo", ocrPhotoRequestBody()))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "EMPTY_OCR_TEXT" {
		t.Errorf("error = %v, want EMPTY_OCR_TEXT", body["error"])
	}
}

func TestOCRPhotoInvalidPayload(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handler.OCRPhoto(rec, httptest.NewRequest(http.MethodPost, "/ocr-photo",
		strings.NewReader(`{"base64":"too-short"}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "INVALID_PAYLOAD" {
		t.Errorf("error = %v, want INVALID_PAYLOAD", body["error"])
	}
}

func TestOCRPhotoMissingOCRKey(t *testing.T) {
	f := newFixture(t)
	f.cfg.MistralAPIKey = ""

	rec := httptest.NewRecorder()
	f.handler.OCRPhoto(rec, httptest.NewRequest(http.MethodPost, "/ocr-photo", ocrPhotoRequestBody()))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "MISSING_API_KEY" {
		t.Errorf("error = %v, want MISSING_API_KEY", body["error"])
	}
}
