// Package handlers provides HTTP request handlers for the ordonnances API
// endpoints: prescription ingestion (PDF, raw text, photo OCR), QR token
// issuance and resolution, AI medical summaries and delivery orders.
// Handlers receive their collaborators through the Deps struct so tests can
// swap stores and upstream clients.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/medicalia/ordonnances-api/config"
	"github.com/medicalia/ordonnances-api/interfaces"
	"github.com/medicalia/ordonnances-api/logging"
	"github.com/medicalia/ordonnances-api/qrtoken"
)

// Build tags reported by health and summary endpoints so the mobile team
// can confirm which server generation answered.
const (
	buildTag         = "AI_SUMMARY_V2_INLINE"
	summaryBuildTag  = "AI_SUMMARY_OPENAI_V2"
	passportBuildTag = "AI_SUMMARY_V2"
)

// Deps bundles everything the handlers need. OrdSigner must be set;
// PassportSigner may be nil when no passport secret is configured, the
// passport routes then answer PASSPORT_SECRET_MISSING.
type Deps struct {
	Ordonnances    interfaces.OrdonnanceStore
	Deliveries     interfaces.DeliveryStore
	Passports      interfaces.PassportCache
	OCR            interfaces.OCRProvider
	Structurer     interfaces.Structurer
	Summarizer     interfaces.Summarizer
	Health         interfaces.HealthChecker
	OrdSigner      *qrtoken.Signer
	PassportSigner *qrtoken.Signer
}

// Handler carries the injected dependencies for every route.
type Handler struct {
	cfg            *config.Config
	ordonnances    interfaces.OrdonnanceStore
	deliveries     interfaces.DeliveryStore
	passports      interfaces.PassportCache
	ocr            interfaces.OCRProvider
	structurer     interfaces.Structurer
	summarizer     interfaces.Summarizer
	health         interfaces.HealthChecker
	ordSigner      *qrtoken.Signer
	passportSigner *qrtoken.Signer

	webhookClient *http.Client
	extractPDF    func(data []byte) (string, error)
}

// New creates a handler set with the given configuration and dependencies.
func New(cfg *config.Config, deps Deps) *Handler {
	return &Handler{
		cfg:            cfg,
		ordonnances:    deps.Ordonnances,
		deliveries:     deps.Deliveries,
		passports:      deps.Passports,
		ocr:            deps.OCR,
		structurer:     deps.Structurer,
		summarizer:     deps.Summarizer,
		health:         deps.Health,
		ordSigner:      deps.OrdSigner,
		passportSigner: deps.PassportSigner,
		webhookClient:  &http.Client{Timeout: 60 * time.Second},
		extractPDF:     extractPDFText,
	}
}

// RespondWithJSON writes a JSON response with the standard headers.
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(data)
}

// respondFail writes the {success:false} error shape used by the ordonnance
// ingestion routes.
func respondFail(w http.ResponseWriter, code int, errCode, message string) {
	RespondWithJSON(w, code, map[string]interface{}{
		"success": false,
		"error":   errCode,
		"message": message,
	})
}

// respondNotOK writes the {ok:false} error shape used by the QR, passport,
// summary and delivery routes.
func respondNotOK(w http.ResponseWriter, code int, errCode, message string) {
	RespondWithJSON(w, code, map[string]interface{}{
		"ok":      false,
		"error":   errCode,
		"message": message,
	})
}

// Root answers the bare domain, mostly for uptime probes.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("BACKEND OK"))
}

// Favicon silences browser favicon probes.
func (h *Handler) Favicon(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// Ping is the trivial liveness endpoint.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// Health reports store and upstream readiness through the health checker.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status, details, httpStatus := h.health.HealthCheck()
	RespondWithJSON(w, httpStatus, map[string]interface{}{
		"status":      status,
		"timestamp":   time.Now().UnixMilli(),
		"serverBuild": buildTag,
		"data":        details,
	})
}

// Version reports the build tag and which signing secrets are loaded,
// without exposing the secrets themselves.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":                   true,
		"service":              "ordonnances-api",
		"serverBuild":          buildTag,
		"timestamp":            time.Now().UnixMilli(),
		"passportSecretLoaded": h.cfg.PassportSecret() != "",
		"qrSecretLoaded":       h.cfg.QRSecret != "",
	})
}
