package ocrclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/medicalia/ordonnances-api/logging"
)

// DefaultPreprocessTimeout bounds the external preprocessing call.
const DefaultPreprocessTimeout = 30 * time.Second

// Preprocessor calls an external image-cleanup microservice. It is strictly
// best-effort: every failure mode returns the original image.
type Preprocessor struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

func NewPreprocessor(baseURL string) *Preprocessor {
	return &Preprocessor{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    DefaultPreprocessTimeout,
	}
}

type preprocessRequest struct {
	Base64 string `json:"base64"`
}

type preprocessResponse struct {
	Success bool   `json:"success"`
	Base64  string `json:"base64"`
	Error   string `json:"error"`
}

// Preprocess returns the cleaned image, or the original when the service is
// not configured, unreachable, slow or answers with anything unexpected.
func (p *Preprocessor) Preprocess(ctx context.Context, base64Image string) string {
	if p == nil || p.baseURL == "" {
		return base64Image
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	body, err := json.Marshal(preprocessRequest{Base64: base64Image})
	if err != nil {
		return base64Image
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/preprocess", bytes.NewReader(body))
	if err != nil {
		return base64Image
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		logging.Warn("Image preprocessing unavailable", "error", err)
		return base64Image
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logging.Warn("Image preprocessing rejected request", "status", resp.StatusCode)
		return base64Image
	}

	var decoded preprocessResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return base64Image
	}
	if !decoded.Success || decoded.Base64 == "" {
		logging.Warn("Image preprocessing returned no image", "error", decoded.Error)
		return base64Image
	}
	return decoded.Base64
}
