package aiclient

import (
	"context"
	"errors"
	"time"

	"github.com/medicalia/ordonnances-api/logging"
)

const summarySystemPrompt = `Tu fais une synthèse factuelle des ordonnances et infos déclarées. Aucun diagnostic, aucun conseil médical, aucune interprétation clinique. Tu peux reformuler et regrouper. Statut organisationnel possible: PLANIFIE si scheduledAt présent, sinon A_FAIRE. N'invente rien. Réponds uniquement par un texte simple en français, 2 à 5 phrases max.`

// summaryMaxRetries is the number of retries after a first failed call.
const summaryMaxRetries = 2

// Summarize asks the model for a short factual summary of the facts block.
// Failed calls are retried with a linear backoff of one second per attempt.
// An empty answer counts as a failure.
func (c *Client) Summarize(ctx context.Context, factsText string) (string, error) {
	request := chatRequest{
		Model:       SummaryModel,
		Temperature: Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: "Fais une synthèse simple et utile à partir de ces faits:\n\n" + factsText},
		},
	}

	var lastErr error
	for attempt := 1; attempt <= summaryMaxRetries+1; attempt++ {
		summary, err := c.complete(ctx, request)
		if err == nil && summary == "" {
			err = errors.New("summary answer is empty")
		}
		if err == nil {
			return summary, nil
		}

		lastErr = err
		logging.Warn("Medical summary attempt failed",
			"attempt", attempt,
			"maxAttempts", summaryMaxRetries+1,
			"error", err)
		if attempt <= summaryMaxRetries {
			c.sleep(time.Duration(attempt) * time.Second)
		}
	}
	return "", lastErr
}
