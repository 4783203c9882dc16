package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	checkTimeout  = 30 * time.Second
	configTimeout = 5 * time.Second

	// Summaries shorter than this are not worth sending for the fast path.
	minSummaryLength = 50
)

var _ Checker = (*Client)(nil)

// Client is the HTTP implementation of the similarity collaborator.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.Mutex
	threshold *float64
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: checkTimeout},
	}
}

// Check submits content for a check-and-remember duplicate verdict.
func (c *Client) Check(ctx context.Context, content, summary string) (*Verdict, error) {
	return c.check(ctx, "/check", content, summary)
}

// CheckOnly checks for a duplicate without persisting the content on the
// service side.
func (c *Client) CheckOnly(ctx context.Context, content, summary string) (*Verdict, error) {
	return c.check(ctx, "/check_only", content, summary)
}

func (c *Client) check(ctx context.Context, path, content, summary string) (*Verdict, error) {
	payload := checkRequest{Content: content}
	if len(strings.TrimSpace(summary)) > minSummaryLength {
		payload.Summary = summary
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode check request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create check request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("similarity service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("similarity service error: %d %s", resp.StatusCode, resp.Status)
	}

	var raw checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode check response: %w", err)
	}

	verdict := &Verdict{
		Similarity: raw.Similarity,
		ChromaID:   raw.ChromaID,
	}
	if verdict.ChromaID == "" {
		verdict.ChromaID = raw.ParentID
	}
	// Older service builds answer with is_duplicate instead of duplicate.
	switch {
	case raw.Duplicate != nil:
		verdict.Duplicate = *raw.Duplicate
	case raw.IsDuplicate != nil:
		verdict.Duplicate = *raw.IsDuplicate
	}

	return verdict, nil
}

// DeleteBatch removes all embeddings stored under the given base identifiers.
func (c *Client) DeleteBatch(ctx context.Context, parentIDs []string) error {
	if len(parentIDs) == 0 {
		return nil
	}

	unique := make([]string, 0, len(parentIDs))
	seen := make(map[string]bool, len(parentIDs))
	for _, id := range parentIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	body, err := json.Marshal(deleteBatchRequest{ParentIDs: unique})
	if err != nil {
		return fmt.Errorf("failed to encode delete request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/delete_batch", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create delete request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("similarity service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("similarity service error: %d %s", resp.StatusCode, resp.Status)
	}

	var result deleteBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode delete response: %w", err)
	}
	if result.Status != "ok" {
		return fmt.Errorf("similarity service rejected delete: status %q", result.Status)
	}

	return nil
}

// Config fetches the collaborator's configuration.
func (c *Client) Config(ctx context.Context) (*ServiceConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, configTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/config", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create config request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("similarity service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("similarity service error: %d %s", resp.StatusCode, resp.Status)
	}

	var config ServiceConfig
	if err := json.NewDecoder(resp.Body).Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config response: %w", err)
	}

	return &config, nil
}

// Threshold returns the duplicate-similarity threshold, lazily fetched from
// /config and cached. Values outside (0, 1] mean the threshold is unset and
// are reported as -1.
func (c *Client) Threshold(ctx context.Context) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.threshold != nil {
		return *c.threshold
	}

	value := -1.0
	if config, err := c.Config(ctx); err == nil {
		if config.Threshold > 0 && config.Threshold <= 1 {
			value = config.Threshold
		}
	}

	c.threshold = &value
	return value
}

// Health probes the collaborator's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, configTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("similarity service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("similarity service unhealthy: %d %s", resp.StatusCode, resp.Status)
	}

	return nil
}

// Debug returns the collaborator's introspection payload as-is.
func (c *Client) Debug(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/debug", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create debug request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("similarity service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("similarity service error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read debug response: %w", err)
	}

	return json.RawMessage(body), nil
}
