// Package controlplane provides a typed HTTP client for the fixed set of
// control-plane endpoints an agent talks to (see spec.md §4.4, §6).
package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mbc-net/ai-support-agent/common/retry"
	"github.com/mbc-net/ai-support-agent/common/trace"
	"github.com/mbc-net/ai-support-agent/internal/command"
	"github.com/mbc-net/ai-support-agent/internal/sysinfo"
)

const (
	requestTimeout   = 10 * time.Second
	maxResponseBytes = 10 << 20 // 10 MiB, generous enough for project-config bodies
	retryMaxAttempts = 3
	retryBaseDelay   = 1 * time.Second
)

// Client is an HTTP client for one project's control-plane endpoint,
// authenticated with that project's bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for the given base URL (e.g. "https://api.example.com")
// and bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{},
	}
}

// RegisterRequest is the body for POST /api/agent/register.
type RegisterRequest struct {
	ProjectCode string `json:"projectCode"`
	Hostname    string `json:"hostname"`
	OS          string `json:"os"`
	Arch        string `json:"arch"`
}

// RegisterResponse is returned by POST /api/agent/register.
type RegisterResponse struct {
	AgentID          string `json:"agentId"`
	TransportMode    string `json:"transportMode"` // "realtime" | "polling"
	RealtimeEndpoint string `json:"realtimeEndpoint,omitempty"`
	RealtimeAPIKey   string `json:"realtimeApiKey,omitempty"`
	TenantCode       string `json:"tenantCode,omitempty"`
}

// HeartbeatRequest is the body for POST /api/agent/heartbeat.
type HeartbeatRequest struct {
	AgentID            string       `json:"agentId"`
	SystemInfo         sysinfo.Info `json:"systemInfo"`
	AvailableChatModes []string     `json:"availableChatModes"`
	ActiveChatMode     string       `json:"activeChatMode"`
}

// HeartbeatResponse is returned by POST /api/agent/heartbeat.
type HeartbeatResponse struct {
	ConfigHash string `json:"configHash,omitempty"`
}

// PendingCommand is one entry in the GET /api/agent/commands/pending response.
type PendingCommand struct {
	CommandID string       `json:"commandId"`
	Type      command.Type `json:"type"`
}

// ProjectConfigResponse mirrors the server-side project config snapshot
// (spec.md §3).
type ProjectConfigResponse struct {
	ConfigHash    string          `json:"configHash"`
	Project       json.RawMessage `json:"project"`
	Agent         json.RawMessage `json:"agent"`
	AWS           json.RawMessage `json:"aws,omitempty"`
	Databases     json.RawMessage `json:"databases,omitempty"`
	Documentation json.RawMessage `json:"documentation,omitempty"`
}

// Register calls POST /api/agent/register.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.post(ctx, "/api/agent/register", req, &resp)
	}); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &resp, nil
}

// Heartbeat calls POST /api/agent/heartbeat.
func (c *Client) Heartbeat(ctx context.Context, req HeartbeatRequest) (*HeartbeatResponse, error) {
	var resp HeartbeatResponse
	if err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.post(ctx, "/api/agent/heartbeat", req, &resp)
	}); err != nil {
		return nil, fmt.Errorf("heartbeat: %w", err)
	}
	return &resp, nil
}

// PendingCommands calls GET /api/agent/commands/pending.
func (c *Client) PendingCommands(ctx context.Context) ([]PendingCommand, error) {
	var resp []PendingCommand
	if err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.get(ctx, "/api/agent/commands/pending", &resp)
	}); err != nil {
		return nil, fmt.Errorf("pending commands: %w", err)
	}
	return resp, nil
}

// CommandDetail calls GET /api/agent/commands/{id}.
func (c *Client) CommandDetail(ctx context.Context, id string) (*command.Command, error) {
	var resp command.Command
	if err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.get(ctx, "/api/agent/commands/"+id, &resp)
	}); err != nil {
		return nil, fmt.Errorf("command detail %s: %w", id, err)
	}
	return &resp, nil
}

// SubmitResult calls POST /api/agent/commands/{id}/result. It is safe to
// call twice for the same command ID: the control plane is assumed
// idempotent (spec.md §8).
func (c *Client) SubmitResult(ctx context.Context, id string, result command.CommandResult) error {
	if err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.post(ctx, "/api/agent/commands/"+id+"/result", result, nil)
	}); err != nil {
		return fmt.Errorf("submit result %s: %w", id, err)
	}
	return nil
}

// SubmitChunk calls POST /api/agent/commands/{id}/chunks.
func (c *Client) SubmitChunk(ctx context.Context, id string, chunk command.ChatChunk) error {
	if err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.post(ctx, "/api/agent/commands/"+id+"/chunks", chunk, nil)
	}); err != nil {
		return fmt.Errorf("submit chunk %s: %w", id, err)
	}
	return nil
}

// Version calls GET /api/agent/version?channel=<channel>.
func (c *Client) Version(ctx context.Context, channel string) (string, error) {
	var resp struct {
		Version string `json:"version"`
	}
	if err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.get(ctx, "/api/agent/version?channel="+channel, &resp)
	}); err != nil {
		return "", fmt.Errorf("version: %w", err)
	}
	return resp.Version, nil
}

// ConnectionStatus calls POST /api/agent/connection-status.
func (c *Client) ConnectionStatus(ctx context.Context, connected bool) error {
	body := map[string]bool{"connected": connected}
	if err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.post(ctx, "/api/agent/connection-status", body, nil)
	}); err != nil {
		return fmt.Errorf("connection status: %w", err)
	}
	return nil
}

// Config calls GET /api/agent/config.
func (c *Client) Config(ctx context.Context) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.get(ctx, "/api/agent/config", &resp)
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return resp, nil
}

// ProjectConfig calls GET /api/agent/project-config.
func (c *Client) ProjectConfig(ctx context.Context) (*ProjectConfigResponse, error) {
	var resp ProjectConfigResponse
	if err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.get(ctx, "/api/agent/project-config", &resp)
	}); err != nil {
		return nil, fmt.Errorf("project config: %w", err)
	}
	return &resp, nil
}

// AWSCredentials calls GET /api/agent/aws-credentials?accountId=....
func (c *Client) AWSCredentials(ctx context.Context, accountID string) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.get(ctx, "/api/agent/aws-credentials?accountId="+accountID, &resp)
	}); err != nil {
		return nil, fmt.Errorf("aws credentials: %w", err)
	}
	return resp, nil
}

// withRetry wraps fn with the client's retry policy: up to 3 attempts,
// retrying on network error, 408, 429, or any 5xx, base delay 1s doubled
// each attempt with jitter uniform in [0.5, 1.0] of that delay.
func (c *Client) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	cfg := retry.Config{
		MaxAttempts:  retryMaxAttempts,
		InitialDelay: retryBaseDelay,
		MaxDelay:     retryBaseDelay * 8,
		ShouldRetry:  isRetryable,
		Jitter:       true,
	}
	return retry.Do(ctx, cfg, func() error {
		return fn(ctx)
	})
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		if se.code == http.StatusRequestTimeout || se.code == http.StatusTooManyRequests {
			return true
		}
		return se.code >= 500
	}
	// Network-level errors (no HTTP status) are retried.
	return true
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.code, e.body)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setCommonHeaders(req)
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setCommonHeaders(req)
	return c.do(req, out)
}

func (c *Client) setCommonHeaders(req *http.Request) {
	if traceID := trace.FromContext(req.Context()); traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()
	req = req.WithContext(ctx)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &statusError{code: resp.StatusCode, body: string(body)}
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
