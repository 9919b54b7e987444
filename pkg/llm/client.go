// Package llm talks to the hosted language model API and routes calls across model tiers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/jwalitptl/careops-api/pkg/circuitbreaker"
)

var ErrEmptyReply = errors.New("llm: empty reply")

// Request is a single prompt/response exchange
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response is the text the model produced plus accounting data
type Response struct {
	Text         string
	Model        string
	Tier         Tier
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
}

// Completer sends one request to one model
type Completer interface {
	Complete(ctx context.Context, model string, req Request) (*Response, error)
}

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// Client is an OpenAI-compatible chat completions client
type Client struct {
	http   *resty.Client
	cb     *circuitbreaker.CircuitBreaker
	logger *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		http: client,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "llm",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		logger: logger,
	}
}

func (c *Client) Complete(ctx context.Context, model string, req Request) (*Response, error) {
	body := chatRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})

	var out chatResponse
	var apiErr apiError
	start := time.Now()

	err := c.cb.Execute(func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(&out).
			SetError(&apiErr).
			Post("/chat/completions")
		if err != nil {
			return fmt.Errorf("llm request failed: %w", err)
		}
		if resp.IsError() {
			msg := apiErr.Error.Message
			if msg == "" {
				msg = resp.Status()
			}
			return fmt.Errorf("llm returned %d: %s", resp.StatusCode(), msg)
		}
		return nil
	})
	latency := time.Since(start)
	if err != nil {
		c.logger.Error("LLM call failed",
			zap.String("model", model),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
		return nil, err
	}

	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyReply
	}

	used := out.Model
	if used == "" {
		used = model
	}
	c.logger.Debug("LLM call completed",
		zap.String("model", used),
		zap.Int("input_tokens", out.Usage.PromptTokens),
		zap.Int("output_tokens", out.Usage.CompletionTokens),
		zap.Duration("latency", latency),
	)

	return &Response{
		Text:         out.Choices[0].Message.Content,
		Model:        used,
		InputTokens:  out.Usage.PromptTokens,
		OutputTokens: out.Usage.CompletionTokens,
		Latency:      latency,
	}, nil
}
