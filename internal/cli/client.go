package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bugx/internal/docs"
)

const clientTimeout = 30 * time.Second

// apiClient talks to a running BugX server
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

// envelope matches the server's success and error responses
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string      `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	} `json:"error"`
}

func (c *CLI) client() *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(c.serverURL, "/"),
		httpClient: &http.Client{Timeout: clientTimeout},
	}
}

func (a *apiClient) get(ctx context.Context, path string, out interface{}) error {
	return a.do(ctx, http.MethodGet, path, out)
}

func (a *apiClient) post(ctx context.Context, path string, out interface{}) error {
	return a.do(ctx, http.MethodPost, path, out)
}

// do sends a request and decodes the data field into out. A response that
// carries data is decoded even with a non-2xx status: /health answers 503
// with a full report when a diagnostic fails.
func (a *apiClient) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "bugx-cli/"+docs.APIVersion)
	req.Header.Set("X-Client-Version", docs.APIVersion)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", a.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unexpected response from %s %s (status %d)", method, path, resp.StatusCode)
	}
	if env.Error != nil {
		return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("empty response from %s %s (status %d)", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
