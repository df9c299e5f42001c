package perception

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

	"taleweaver/internal/config"
	"taleweaver/internal/logging"
)

// ValidateProbeInput is the throwaway prompt sent to the token-count
// endpoint when checking an API key.
const ValidateProbeInput = "Test request to validate API key."

// Client calls the completion endpoint. One Client is shared by the
// narration and scene pipelines; the key can be swapped at runtime when
// the .env watcher picks up a change.
type Client struct {
	mu              sync.Mutex
	apiKey          string
	baseURL         string
	model           string
	effort          string
	httpClient      *http.Client
	validateTimeout time.Duration
	lastRequest     time.Time
}

// NewClient creates a client from resolved configuration and key.
func NewClient(cfg *config.Config, apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: cfg.API.BaseURL,
		model:   cfg.Model.Name,
		effort:  cfg.Model.ReasoningEffort,
		httpClient: &http.Client{
			Timeout: cfg.GetRequestTimeout(),
		},
		validateTimeout: cfg.GetValidateTimeout(),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// SetAPIKey replaces the key for subsequent requests.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

// Complete sends the input items and extracts assistant text. A nil
// error with Extraction.OK == false means the model answered without
// usable text; the caller decides whether to retry. Errors cover
// transport failures, non-2xx statuses, and unparseable bodies.
func (c *Client) Complete(ctx context.Context, input []Item, maxTokens int) (Extraction, error) {
	// Centralized timeout: apply the client timeout unless the caller
	// already set a deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	c.mu.Lock()
	apiKey := c.apiKey
	// Pace successive requests so a narration call and a scene call
	// fired together do not hit the endpoint in the same instant.
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	if apiKey == "" {
		logging.PerceptionError("Complete: API key not configured")
		return Extraction{}, fmt.Errorf("API key not configured")
	}

	logging.PerceptionDebug("Complete: model=%s items=%d max_tokens=%d", c.model, len(input), maxTokens)
	startTime := time.Now()

	reqBody := responsesRequest{
		Model:           c.model,
		Input:           input,
		MaxOutputTokens: maxTokens,
		Text:            textOptions{Format: textFormat{Type: "text"}},
		Reasoning:       reasoningOptions{Effort: c.effort},
		Include:         []string{"reasoning.encrypted_content"},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Extraction{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return Extraction{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.PerceptionError("Complete: request failed: %v", err)
		logging.Audit().LLMCall(c.model, time.Since(startTime).Milliseconds(), false, err.Error())
		return Extraction{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Extraction{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
		logging.PerceptionError("Complete: %v", apiErr)
		logging.Audit().LLMCall(c.model, time.Since(startTime).Milliseconds(), false, apiErr.Error())
		return Extraction{}, apiErr
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Extraction{}, fmt.Errorf("failed to parse response: %w", err)
	}

	ex := extractResponse(envelope)
	logging.PerceptionDebug("Complete: ok=%v text_len=%d items=%d diag=%s",
		ex.OK, len(ex.Text), len(ex.Items), ex.Diagnostics)
	logging.Audit().LLMCall(c.model, time.Since(startTime).Milliseconds(), true, "")
	return ex, nil
}

// ValidateKey checks a candidate key against the token-count probe
// endpoint. The probe bills nothing and fails fast on bad credentials.
func (c *Client) ValidateKey(ctx context.Context, key string) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.validateTimeout)
		defer cancel()
	}

	reqBody := validateRequest{Model: c.model, Input: ValidateProbeInput}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.baseURL, "/") + "/input_tokens"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		logging.PerceptionDebug("ValidateKey: key accepted")
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	message := extractAPIErrorMessage(string(body))
	logging.PerceptionWarn("ValidateKey: rejected with %s", resp.Status)
	return &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: message}
}
