package ocrclient

import (
	"context"
	"errors"
	"strings"

	"github.com/medicalia/ordonnances-api/logging"
	"github.com/medicalia/ordonnances-api/ordonnance/entities"
)

// ErrOCRFailed reports that the fallback attempt itself failed, which is
// the only unrecoverable outcome of the orchestration.
var ErrOCRFailed = errors.New("ocr failed on both attempts")

// Orchestrator chains preprocessing and the two OCR attempts.
type Orchestrator struct {
	client       *Client
	preprocessor *Preprocessor
}

func NewOrchestrator(client *Client, preprocessor *Preprocessor) *Orchestrator {
	return &Orchestrator{client: client, preprocessor: preprocessor}
}

// OCRWithFallback reads the image in at most two attempts. The first runs
// on the preprocessed image and is only accepted when the trimmed text
// reaches MinAcceptableLength; the second runs on the original image and is
// accepted at any length. Preprocessing failures never surface, a failed
// second attempt does.
func (o *Orchestrator) OCRWithFallback(ctx context.Context, base64Image, mimeType string) (string, entities.OCRMeta, error) {
	preprocessed := o.preprocessor.Preprocess(ctx, base64Image)
	usedPreprocess := preprocessed != base64Image

	meta := entities.OCRMeta{UsedPreprocess: usedPreprocess}

	primary := o.client.attempt(ctx, DataURL(preprocessed, mimeType))
	switch primary.status {
	case attemptSuccess:
		if len(strings.TrimSpace(primary.text)) >= MinAcceptableLength {
			meta.ScoreOCR = ScoreOCR(primary.text)
			return primary.text, meta, nil
		}
		logging.Info("OCR result too short, retrying with original image",
			"length", len(strings.TrimSpace(primary.text)))
	case attemptTimeout:
		logging.Warn("OCR attempt timed out, retrying with original image")
	case attemptSoftFailure:
		logging.Warn("OCR attempt failed, retrying with original image", "reason", primary.reason)
	}

	fallback := o.client.attempt(ctx, DataURL(base64Image, mimeType))
	meta.Fallback = true
	switch fallback.status {
	case attemptSuccess:
		meta.ScoreOCR = ScoreOCR(fallback.text)
		return fallback.text, meta, nil
	case attemptTimeout:
		return "", meta, ErrTimeout
	default:
		return "", meta, errors.Join(ErrOCRFailed, errors.New(fallback.reason))
	}
}
