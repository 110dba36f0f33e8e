// Package ocrclient talks to the Mistral vision endpoint to read
// handwritten French prescriptions, with an optional external preprocessing
// pass and a second attempt on the untouched image when the first read is
// too short.
package ocrclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultEndpoint is the Mistral chat completions URL.
	DefaultEndpoint = "https://api.mistral.ai/v1/chat/completions"

	// Model is the vision-capable model used for OCR.
	Model = "mistral-large-latest"

	ocrPrompt = "Extrais le texte de cette ordonnance médicale française. Retourne uniquement le texte brut sans commentaire."

	// MinAcceptableLength is the trimmed-text length below which a
	// preprocessed-image read is not trusted.
	MinAcceptableLength = 80

	// DefaultOCRTimeout bounds each OCR attempt.
	DefaultOCRTimeout = 60 * time.Second
)

// ErrTimeout reports that the OCR provider did not answer within the
// attempt budget. Callers translate it to a 504.
var ErrTimeout = errors.New("ocr provider timed out")

// Client drives OCR attempts against the provider.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
}

func New(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{},
		timeout:    DefaultOCRTimeout,
	}
}

// attemptStatus is the three-way result of one bounded OCR attempt. The
// orchestrator transitions on it explicitly instead of unwinding errors.
type attemptStatus int

const (
	attemptSuccess attemptStatus = iota
	attemptSoftFailure
	attemptTimeout
)

type attemptResult struct {
	status attemptStatus
	text   string
	reason string
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// DataURL strips any data-URL prefix from the base64 payload and rebuilds a
// clean one for the given mime type.
func DataURL(base64Image, mimeType string) string {
	data := base64Image
	if strings.HasPrefix(base64Image, "data:") {
		if idx := strings.Index(base64Image, ","); idx != -1 {
			data = base64Image[idx+1:]
		}
	}
	return "data:" + mimeType + ";base64," + data
}

// attempt runs one OCR call against the provider within the attempt budget.
func (c *Client) attempt(ctx context.Context, imageDataURL string) attemptResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: ocrPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: imageDataURL}},
			},
		}},
	})
	if err != nil {
		return attemptResult{status: attemptSoftFailure, reason: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return attemptResult{status: attemptSoftFailure, reason: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return attemptResult{status: attemptTimeout, reason: "deadline exceeded"}
		}
		return attemptResult{status: attemptSoftFailure, reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return attemptResult{
			status: attemptSoftFailure,
			reason: fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
		}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return attemptResult{status: attemptSoftFailure, reason: err.Error()}
	}
	if len(decoded.Choices) == 0 {
		return attemptResult{status: attemptSuccess, text: ""}
	}
	return attemptResult{status: attemptSuccess, text: decoded.Choices[0].Message.Content}
}

// ScoreOCR normalizes text length into a rough quality proxy, treating 500
// characters as excellent.
func ScoreOCR(text string) float64 {
	score := float64(len(strings.TrimSpace(text))) / 500
	if score > 1 {
		return 1
	}
	return score
}
