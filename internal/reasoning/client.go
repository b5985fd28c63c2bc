package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agentpulse/engine/internal/domain"
)

// Client calls a chat-completion style reasoning endpoint and returns the
// raw generated text. Callers own the response-shape expectation and the
// neutral-default fallback when parsing fails.
type Client struct {
	spec       ProviderSpec
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the given provider.
func NewClient(spec ProviderSpec, apiKey string) *Client {
	return &Client{
		spec:   spec,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt and returns the generated text.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	reqBody := completionRequest{
		Model: c.spec.Model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.spec.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.WrapAgentError(domain.ErrReasoningFailed.Code, "completion call", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", domain.WrapAgentError(domain.ErrReasoningFailed.Code, "read completion response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.WrapAgentError(domain.ErrReasoningFailed.Code,
			fmt.Sprintf("completion status %d", resp.StatusCode), nil)
	}

	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", domain.WrapAgentError(domain.ErrReasoningMalformed.Code, "decode completion response", err)
	}
	if len(parsed.Choices) == 0 {
		return "", domain.ErrReasoningMalformed
	}
	return parsed.Choices[0].Message.Content, nil
}
