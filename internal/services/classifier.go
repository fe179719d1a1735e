package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"rallybot/internal/models"
)

// Classifier asks an OpenAI-style chat-completions endpoint to pick one
// category for an event description. Classification is best-effort: any
// failure, including missing configuration, degrades to CategoryOther
// and is never surfaced as an error.
type Classifier struct {
	endpoint string
	secret   string
	client   *http.Client
}

func NewClassifier(endpoint, secret string) *Classifier {
	return &Classifier{
		endpoint: endpoint,
		secret:   secret,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages              []chatMessage `json:"messages"`
	Stream                bool          `json:"stream"`
	IncludeFunctionsInfo  bool          `json:"include_functions_info"`
	IncludeRetrievalInfo  bool          `json:"include_retrieval_info"`
	IncludeGuardrailsInfo bool          `json:"include_guardrails_info"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Classifier) Classify(ctx context.Context, text string) models.Category {
	if c.endpoint == "" || c.secret == "" {
		log.Println("AI endpoint/secret not set, defaulting to 'other' category")
		return models.CategoryOther
	}

	labels := make([]string, len(models.Categories))
	for i, cat := range models.Categories {
		labels[i] = string(cat)
	}
	allowed := strings.Join(labels, ", ")

	messages := []chatMessage{
		{Role: "user", Content: fmt.Sprintf("%s\n\n%s?", text, allowed)},
	}

	answer, err := c.complete(ctx, messages)
	if err != nil {
		log.Printf("Warning: classification request failed, defaulting to 'other': %v", err)
		return models.CategoryOther
	}

	category := models.Category(strings.ToLower(strings.TrimSpace(answer)))
	if category.Valid() {
		return category
	}

	// One corrective re-prompt with the invalid answer appended; no
	// retries beyond that.
	log.Printf("invalid category %q, retrying...", category)
	messages = append(messages,
		chatMessage{Role: "assistant", Content: answer},
		chatMessage{Role: "user", Content: fmt.Sprintf(
			"%s is not a valid answer. select the best category from the following list: %s",
			category, allowed)},
	)

	answer, err = c.complete(ctx, messages)
	if err != nil {
		log.Printf("Warning: classification retry failed, defaulting to 'other': %v", err)
		return models.CategoryOther
	}

	category = models.Category(strings.ToLower(strings.TrimSpace(answer)))
	if !category.Valid() {
		return models.CategoryOther
	}
	return category
}

func (c *Classifier) complete(ctx context.Context, messages []chatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{Messages: messages})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := c.endpoint + "/api/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat request returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
