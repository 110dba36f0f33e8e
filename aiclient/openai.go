// Package aiclient talks to the OpenAI chat completions API for two jobs:
// structuring raw prescription text into the canonical document shape, and
// producing a short factual summary of a patient's prescriptions. Both jobs
// have deterministic fallbacks, so every call here is allowed to fail.
package aiclient

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
	// DefaultEndpoint is the OpenAI chat completions URL.
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"

	// StructuringModel structures OCR text into the canonical document.
	StructuringModel = "gpt-4o"

	// SummaryModel writes the medical summary text.
	SummaryModel = "gpt-4o-mini"

	// Temperature keeps both jobs close to deterministic.
	Temperature = 0.1

	// DefaultTimeout bounds a single completion call.
	DefaultTimeout = 60 * time.Second
)

// ErrNoAPIKey reports that the client was built without a key. Callers go
// straight to their fallback path.
var ErrNoAPIKey = errors.New("openai api key not configured")

// Client is a thin OpenAI chat completions client.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	sleep      func(time.Duration)
}

func New(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		sleep:      time.Sleep,
	}
}

// Configured reports whether the client holds an API key.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Temperature    float64         `json:"temperature"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete runs one chat completion within the call budget and returns the
// trimmed assistant message.
func (c *Client) complete(ctx context.Context, request chatRequest) (string, error) {
	if !c.Configured() {
		return "", ErrNoAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(request)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("openai status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("openai response has no choices")
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}
