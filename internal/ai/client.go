// Package ai is a small client for the Anthropic Messages API used to
// generate short digest texts such as subject lines.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-haiku-4-5-20251001"
	apiVersion     = "2023-06-01"
	maxTokens      = 256
	maxContentLen  = 2000
	systemPrompt   = "You are an expert news writer. Reply with the requested text only, without preamble."
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("ai: not configured")
	// ErrEmptyResponse is returned when the API answers without text.
	ErrEmptyResponse = errors.New("ai: empty response")
)

// APIError is a non-200 answer from the API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ai: API %d: %s", e.Status, e.Body)
}

// Result is the generated text.
type Result struct {
	Content string
	Model   string
}

// Client calls the Messages endpoint, paced by a token bucket.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// Config holds the client settings. RPS <= 0 disables pacing.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	RPS     float64
	Timeout time.Duration
}

// New returns a client, or ErrNotConfigured when cfg has no API key.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	return &Client{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: lim,
	}, nil
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// GenerateSummary asks the model for text about title given content.
// Content longer than 2000 characters is cut.
func (c *Client) GenerateSummary(ctx context.Context, title, content string) (Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}
	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages:  []message{{Role: "user", Content: buildPrompt(title, content)}},
	})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("ai: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Result{}, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var mr messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return Result{}, fmt.Errorf("ai: decode: %w", err)
	}
	var sb strings.Builder
	for _, part := range mr.Content {
		if part.Type == "" || part.Type == "text" {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return Result{}, ErrEmptyResponse
	}
	model := mr.Model
	if model == "" {
		model = c.model
	}
	return Result{Content: text, Model: model}, nil
}

func buildPrompt(title, content string) string {
	if utf8.RuneCountInString(content) > maxContentLen {
		content = string([]rune(content)[:maxContentLen])
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return content
	}
	return title + "\n\n" + content
}
