package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/medicalia/ordonnances-api/config"
	"github.com/medicalia/ordonnances-api/health"
	"github.com/medicalia/ordonnances-api/ordonnance/entities"
	"github.com/medicalia/ordonnances-api/qrtoken"
	"github.com/medicalia/ordonnances-api/store"
)

type stubOCR struct {
	text string
	meta entities.OCRMeta
	err  error
}

func (s *stubOCR) OCRWithFallback(ctx context.Context, base64Image, mimeType string) (string, entities.OCRMeta, error) {
	return s.text, s.meta, s.err
}

type stubStructurer struct {
	doc        map[string]interface{}
	err        error
	configured bool
	calls      int
}

func (s *stubStructurer) Structure(ctx context.Context, text string) (map[string]interface{}, error) {
	s.calls++
	return s.doc, s.err
}

func (s *stubStructurer) Configured() bool { return s.configured }

type stubSummarizer struct {
	summary    string
	err        error
	configured bool
}

func (s *stubSummarizer) Summarize(ctx context.Context, factsText string) (string, error) {
	return s.summary, s.err
}

func (s *stubSummarizer) Configured() bool { return s.configured }

// fixture bundles a handler with the stubs and stores behind it so tests
// can adjust behavior per case.
type fixture struct {
	handler    *Handler
	cfg        *config.Config
	records    *store.OrdonnanceStore
	deliveries *store.DeliveryStore
	passports  *store.PassportCache
	ocr        *stubOCR
	structurer *stubStructurer
	summarizer *stubSummarizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{
		Port:             "8000",
		Address:          "127.0.0.1",
		MistralAPIKey:    "test-mistral-key",
		OpenAIAPIKey:     "test-openai-key",
		QRSecret:         "test-qr-secret",
		PublicWebBaseURL: "http://localhost:8000",
	}

	ordSigner, err := qrtoken.New(cfg.QRSecret)
	if err != nil {
		t.Fatalf("qrtoken.New: %v", err)
	}
	passportSigner, err := qrtoken.New(cfg.PassportSecret())
	if err != nil {
		t.Fatalf("qrtoken.New: %v", err)
	}

	f := &fixture{
		cfg:        cfg,
		records:    store.NewOrdonnanceStore(),
		deliveries: store.NewDeliveryStore(),
		passports:  store.NewPassportCache(),
		ocr:        &stubOCR{},
		structurer: &stubStructurer{},
		summarizer: &stubSummarizer{},
	}
	f.handler = New(cfg, Deps{
		Ordonnances:    f.records,
		Deliveries:     f.deliveries,
		Passports:      f.passports,
		OCR:            f.ocr,
		Structurer:     f.structurer,
		Summarizer:     f.summarizer,
		Health:         health.NewHealthChecker(f.records, f.deliveries, f.passports, true, true),
		OrdSigner:      ordSigner,
		PassportSigner: passportSigner,
	})
	return f
}

// withURLParam attaches a chi route parameter to the request context.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

func TestPing(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handler.Ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "OK" {
		t.Errorf("status field = %v, want OK", body["status"])
	}
}

func TestRoot(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handler.Root(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "BACKEND OK" {
		t.Errorf("body = %q, want BACKEND OK", rec.Body.String())
	}
}

func TestVersionReportsLoadedSecrets(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handler.Version(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	body := decodeBody(t, rec)
	if body["ok"] != true {
		t.Fatalf("ok = %v, want true", body["ok"])
	}
	if body["service"] != "ordonnances-api" {
		t.Errorf("service = %v", body["service"])
	}
	if body["qrSecretLoaded"] != true || body["passportSecretLoaded"] != true {
		t.Errorf("secret flags = %v / %v, want true / true",
			body["qrSecretLoaded"], body["passportSecretLoaded"])
	}
}

func TestHealthHealthy(t *testing.T) {
	f := newFixture(t)
	f.records.Create(store.NewOrdonnanceInput{RawText: "Doliprane"})

	rec := httptest.NewRecorder()
	f.handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("data missing: %v", body)
	}
	if data["ordonnances"] != float64(1) {
		t.Errorf("ordonnances count = %v, want 1", data["ordonnances"])
	}
}

func TestFavicon(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handler.Favicon(rec, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestRespondWithJSONSetsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithJSON(rec, http.StatusTeapot, map[string]string{"hello": "world"})

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type = %q", ct)
	}
}
