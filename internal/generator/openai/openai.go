// Package openai is a chat completions client for OpenAI-compatible endpoints
// (OpenAI, Ollama, vLLM, LM Studio) implementing domain.Generator.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"rag/internal/domain"
	"rag/internal/generator/prompt"
	"rag/internal/logger"
)

// Config configures the client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	// Temperature is sent unless a call overrides it.
	Temperature float64
	MaxTokens   int
	// RequestsPerSecond paces outgoing requests; 0 disables pacing.
	RequestsPerSecond float64
	SystemPrompt      string
}

// Client talks to POST {BaseURL}/chat/completions.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	system      string
	maxRetries  int
	client      *http.Client
	limiter     *rate.Limiter

	// streamClient bounds only the wait for response headers; ctx governs the body.
	streamClient *http.Client
	// backoff returns the wait before retry attempt+1; replaced in tests.
	backoff func(attempt int) time.Duration
}

// StatusError is a non-retryable HTTP failure.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat completions failed: status %d: %s", e.Code, e.Body)
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("openai: invalid base url %q: %w", cfg.BaseURL, domain.ErrConfiguration)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		system:      cfg.SystemPrompt,
		maxRetries:  cfg.MaxRetries,
		client:      &http.Client{Timeout: cfg.Timeout},
		backoff:     retryDelay,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout
	c.streamClient = &http.Client{Transport: transport}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

func (c *Client) Model() string { return c.model }

// Initialize has nothing to set up; a missing key is only reported for the
// public OpenAI endpoint since local servers usually accept none.
func (c *Client) Initialize(ctx context.Context) error {
	if c.apiKey == "" && strings.Contains(c.baseURL, "api.openai.com") {
		return fmt.Errorf("openai: missing API key: %w", domain.ErrConfiguration)
	}
	return nil
}

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Stream      bool             `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *Client) request(query string, docs []domain.RetrievalResult, opts domain.GenerateOptions, stream bool) chatRequest {
	temp := c.temperature
	if opts.Temperature != nil {
		temp = *opts.Temperature
	}
	return chatRequest{
		Model:       c.model,
		Messages:    prompt.Messages(query, docs, opts, c.system),
		Temperature: temp,
		MaxTokens:   c.maxTokens,
		Stream:      stream,
	}
}

// Generate returns the complete answer.
func (c *Client) Generate(ctx context.Context, query string, docs []domain.RetrievalResult, opts domain.GenerateOptions) (string, error) {
	resp, err := c.do(ctx, c.request(query, docs, opts, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openai: no choices returned")
	}
	return out.Choices[0].Message.Content, nil
}

// GenerateStream returns the answer as server-sent deltas.
func (c *Client) GenerateStream(ctx context.Context, query string, docs []domain.RetrievalResult, opts domain.GenerateOptions) (<-chan domain.StreamChunk, error) {
	resp, err := c.do(ctx, c.request(query, docs, opts, true))
	if err != nil {
		return nil, err
	}
	ch := make(chan domain.StreamChunk)
	go readStream(ctx, resp.Body, ch)
	return ch, nil
}

func readStream(ctx context.Context, body io.ReadCloser, ch chan<- domain.StreamChunk) {
	defer body.Close()
	defer close(ch)

	send := func(chunk domain.StreamChunk) bool {
		select {
		case ch <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}
			var chunk streamChunk
			if jsonErr := json.Unmarshal([]byte(data), &chunk); jsonErr != nil {
				logger.Debug("openai: skipping malformed stream line: %v", jsonErr)
			} else if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				if !send(domain.StreamChunk{Content: chunk.Choices[0].Delta.Content}) {
					return
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				send(domain.StreamChunk{Err: fmt.Errorf("openai: read stream: %w", err)})
			}
			return
		}
	}
}

// do sends body, retrying transport errors, 429 and 5xx with backoff.
// The caller owns the returned response body.
func (c *Client) do(ctx context.Context, body chatRequest) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}
	endpoint := c.baseURL + "/chat/completions"

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("openai: retry %d/%d after %v", attempt, c.maxRetries, lastErr)
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("openai: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		client := c.client
		if body.Stream {
			req.Header.Set("Accept", "text/event-stream")
			client = c.streamClient
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if attempt == c.maxRetries {
				break
			}
			if err := sleep(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			wait := c.backoff(attempt)
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
				wait = time.Duration(secs) * time.Second
			}
			lastErr = statusError(resp)
			if attempt == c.maxRetries {
				break
			}
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}
		if resp.StatusCode >= 300 {
			return nil, statusError(resp)
		}
		return resp, nil
	}
	return nil, fmt.Errorf("openai: giving up after %d attempts: %w", c.maxRetries+1, lastErr)
}

func statusError(resp *http.Response) error {
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		attempt = 5
	}
	// exponential backoff capped at 5s
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
