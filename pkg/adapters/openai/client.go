// Package openai is a model client for OpenAI-compatible chat completion
// endpoints.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/dsflow/internal/logging"
	"github.com/aretw0/dsflow/internal/retry"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "https://api.openai.com/v1"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// StatusError is a non-2xx reply from the endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat completion: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether the status is transient.
func (e *StatusError) IsRetryable() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode == http.StatusConflict,
		e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode >= 500:
		return true
	}
	return false
}

// Client completes prompts against one model.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature *float64
	httpClient  *http.Client
	policy      retry.Policy
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the endpoint root, e.g. http://localhost:11434/v1.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = &t
	}
}

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithRetryPolicy overrides retry.DefaultPolicy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		policy:     retry.DefaultPolicy(),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the prompt and returns the first choice, retrying
// transient failures under the client's policy.
func (c *Client) Complete(ctx context.Context, prompt ports.Prompt) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    buildMessages(prompt),
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	policy := c.policy
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		c.logger.Warn("retrying chat completion", "model", c.model, "attempt", attempt, "delay", delay, "err", err)
	}
	return retry.Do(ctx, policy, func(ctx context.Context) (string, error) {
		return c.send(ctx, payload)
	})
}

func (c *Client) send(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat completion: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	return out.Choices[0].Message.Content, nil
}

func buildMessages(p ports.Prompt) []chatMessage {
	msgs := make([]chatMessage, 0, len(p.History)+2)
	if p.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: p.System})
	}
	for _, m := range p.History {
		role := string(m.Role)
		if role == "" {
			role = string(domain.RoleAssistant)
		}
		msgs = append(msgs, chatMessage{Role: role, Content: m.Content})
	}
	if p.User != "" {
		msgs = append(msgs, chatMessage{Role: "user", Content: p.User})
	}
	return msgs
}

// Provider serves one client per step, honoring per-step model overrides.
type Provider struct {
	base    *Client
	clients map[domain.StepID]*Client
}

// NewProvider builds clients for every step. overrides maps step IDs to
// model names; steps without an override use the base client.
func NewProvider(overrides map[domain.StepID]string, opts ...Option) *Provider {
	p := &Provider{base: New(opts...), clients: map[domain.StepID]*Client{}}
	for step, model := range overrides {
		if model == "" {
			continue
		}
		c := *p.base
		c.model = model
		p.clients[step] = &c
	}
	return p
}

func (p *Provider) ForStep(step domain.StepID) ports.ModelClient {
	if c, ok := p.clients[step]; ok {
		return c
	}
	return p.base
}
