// Package edgefn invokes hosted edge functions under /functions/v1.
package edgefn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/jwalitptl/careops-api/pkg/circuitbreaker"
	"github.com/jwalitptl/careops-api/pkg/format"
)

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// Client posts camelCase JSON bodies and hands back snake_case results
type Client struct {
	http   *resty.Client
	cb     *circuitbreaker.CircuitBreaker
	logger *zap.Logger
}

// SkillResult is the reply shape of skill functions
type SkillResult struct {
	Result         json.RawMessage
	Model          string
	ResponseTimeMs int64
}

type skillEnvelope struct {
	Result   json.RawMessage `json:"result"`
	Metadata struct {
		Model          string `json:"model"`
		ResponseTimeMs int64  `json:"response_time_ms"`
	} `json:"metadata"`
	Error string `json:"error"`
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
		client.SetHeader("apikey", cfg.APIKey)
	}

	return &Client{
		http: client,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "edge-functions",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		logger: logger,
	}
}

// Invoke posts body to the named function and decodes the reply into out.
// Body keys are sent as camelCase and reply keys are converted to snake_case.
func (c *Client) Invoke(ctx context.Context, name string, body interface{}, out interface{}) error {
	payload, err := reshape(body, format.KeysToCamel)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", name, err)
	}

	var raw []byte
	start := time.Now()
	err = c.cb.Execute(func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(payload).
			Post("/functions/v1/" + url.PathEscape(name))
		if err != nil {
			return fmt.Errorf("edge function %s: %w", name, err)
		}
		if resp.IsError() {
			return fmt.Errorf("edge function %s returned %d: %s", name, resp.StatusCode(), truncate(resp.String(), 200))
		}
		raw = resp.Body()
		return nil
	})
	if err != nil {
		c.logger.Error("Edge function call failed",
			zap.String("function", name),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		return err
	}

	c.logger.Debug("Edge function call completed",
		zap.String("function", name),
		zap.Duration("latency", time.Since(start)),
	)

	if out == nil || len(raw) == 0 {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode %s reply: %w", name, err)
	}
	snake, err := json.Marshal(format.KeysToSnake(decoded))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(snake, out); err != nil {
		return fmt.Errorf("decode %s reply: %w", name, err)
	}
	return nil
}

// InvokeSkill calls a skill function with the standard request shape
func (c *Client) InvokeSkill(ctx context.Context, skill, tenantID, patientID string, input interface{}) (*SkillResult, error) {
	body := map[string]interface{}{
		"patient_id": patientID,
		"tenant_id":  tenantID,
		"context":    input,
	}

	var env skillEnvelope
	if err := c.Invoke(ctx, skill, body, &env); err != nil {
		return nil, err
	}
	if env.Error != "" {
		return nil, fmt.Errorf("edge function %s: %s", skill, env.Error)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil, fmt.Errorf("edge function %s: empty result", skill)
	}
	return &SkillResult{
		Result:         env.Result,
		Model:          env.Metadata.Model,
		ResponseTimeMs: env.Metadata.ResponseTimeMs,
	}, nil
}

func reshape(body interface{}, fn func(interface{}) interface{}) (interface{}, error) {
	if body == nil {
		return map[string]interface{}{}, nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	return fn(generic), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
