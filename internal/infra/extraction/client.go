// Package extraction provides the HTTP client for the web-content-extraction
// collaborator.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client talks to the extraction service, which accepts a URL and returns the
// visible text of the page. Call deadlines come from the caller's context;
// the client itself sets none.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates an extraction client for the given service endpoint.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{},
	}
}

type extractRequest struct {
	URL string `json:"url"`
}

type extractResponse struct {
	Text string `json:"text"`
}

// Extract fetches the extracted text for a website.
func (c *Client) Extract(ctx context.Context, url string) (string, error) {
	body, err := json.Marshal(extractRequest{URL: url})
	if err != nil {
		return "", fmt.Errorf("encoding extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling extraction service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("extraction service returned %d: %s", resp.StatusCode, resp.Status)
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding extraction response: %w", err)
	}

	return out.Text, nil
}
