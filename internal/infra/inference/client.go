// Package inference provides the HTTP client for the chat-completions
// inference collaborator.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lenderlens/lenderlens/internal/app/classification"
	domain "github.com/lenderlens/lenderlens/internal/domain/classification"
)

// Client calls an OpenAI-compatible chat completions endpoint in JSON mode so
// responses are guaranteed machine-parseable. Call deadlines come from the
// caller's context.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

var _ classification.InferenceClient = (*Client)(nil)

// NewClient creates an inference client for the given endpoint and API key.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// verdictDTO matches the JSON schema the system prompt demands.
type verdictDTO struct {
	IsLenderBroker  bool     `json:"is_mca_lender_broker"`
	BusinessModel   string   `json:"business_model"`
	Confidence      float64  `json:"confidence"`
	PrimaryServices []string `json:"primary_services"`
	Evidence        []string `json:"evidence"`
	ExclusionReason *string  `json:"exclusion_reason"`
}

// Classify sends the extracted content to the inference service and parses
// the structured verdict. A response that is not valid verdict JSON is an
// error; the pipeline treats it as a terminal item failure.
func (c *Client) Classify(ctx context.Context, req classification.InferenceRequest) (domain.Verdict, error) {
	payload := chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Here's the extracted website text:\n\n\"\"\"\n%s\n\"\"\"\n\nPlease analyze it.", req.Content)},
		},
		Temperature: 0.1,
	}
	payload.ResponseFormat.Type = "json_object"

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("encoding inference request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("building inference request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("calling inference service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return domain.Verdict{}, fmt.Errorf("inference service returned %d: %s", resp.StatusCode, resp.Status)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Verdict{}, fmt.Errorf("decoding inference response: %w", err)
	}
	if len(out.Choices) == 0 {
		return domain.Verdict{}, fmt.Errorf("inference response contained no choices")
	}

	raw := []byte(out.Choices[0].Message.Content)

	var dto verdictDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return domain.Verdict{}, fmt.Errorf("malformed verdict payload: %w", err)
	}

	verdict := domain.Verdict{
		IsLenderBroker:  dto.IsLenderBroker,
		BusinessModel:   dto.BusinessModel,
		Confidence:      dto.Confidence,
		PrimaryServices: dto.PrimaryServices,
		Evidence:        dto.Evidence,
		Raw:             json.RawMessage(raw),
	}
	if dto.ExclusionReason != nil {
		verdict.ExclusionReason = *dto.ExclusionReason
	}

	return verdict, nil
}
