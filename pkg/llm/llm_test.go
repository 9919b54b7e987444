package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "small-model", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "score this", body.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"small-model-2024","choices":[{"message":{"role":"assistant","content":"{\"score\":40}"}}],"usage":{"prompt_tokens":12,"completion_tokens":5}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key-123"}, nil)
	resp, err := c.Complete(context.Background(), "small-model", Request{System: "be terse", Prompt: "score this"})
	require.NoError(t, err)
	assert.Equal(t, `{"score":40}`, resp.Text)
	assert.Equal(t, "small-model-2024", resp.Model)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 5, resp.OutputTokens)
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"context too long","type":"invalid_request"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}, nil).Complete(context.Background(), "m", Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context too long")
}

func TestClientEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}, nil).Complete(context.Background(), "m", Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrEmptyReply)
}

type scriptedCompleter struct {
	failures map[string]error
	calls    []string
}

func (s *scriptedCompleter) Complete(_ context.Context, model string, _ Request) (*Response, error) {
	s.calls = append(s.calls, model)
	if err := s.failures[model]; err != nil {
		return nil, err
	}
	return &Response{Text: "ok"}, nil
}

var testModels = []Model{
	{Tier: TierPremium, Name: "large", CostPer1K: 0.015},
	{Tier: TierEconomy, Name: "small", CostPer1K: 0.0003},
	{Tier: TierStandard, Name: "medium", CostPer1K: 0.003},
}

func TestRouterPicksCheapestEligibleTier(t *testing.T) {
	c := &scriptedCompleter{}
	r := NewRouter(c, testModels, nil)

	resp, err := r.Complete(context.Background(), TierStandard, Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "medium", resp.Model)
	assert.Equal(t, TierStandard, resp.Tier)
	assert.Equal(t, []string{"medium"}, c.calls)
}

func TestRouterEscalatesOnFailure(t *testing.T) {
	c := &scriptedCompleter{failures: map[string]error{"small": errors.New("timeout")}}
	r := NewRouter(c, testModels, nil)

	resp, err := r.Complete(context.Background(), TierEconomy, Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "medium", resp.Model)
	assert.Equal(t, []string{"small", "medium"}, c.calls)
}

func TestRouterAllFail(t *testing.T) {
	boom := errors.New("down")
	c := &scriptedCompleter{failures: map[string]error{"medium": boom, "large": boom}}
	r := NewRouter(c, testModels, nil)

	_, err := r.Complete(context.Background(), TierStandard, Request{Prompt: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestRouterNoModel(t *testing.T) {
	r := NewRouter(&scriptedCompleter{}, []Model{{Tier: TierEconomy, Name: "small"}}, nil)
	_, err := r.Complete(context.Background(), TierPremium, Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestModelCost(t *testing.T) {
	m := Model{CostPer1K: 0.002}
	assert.InDelta(t, 0.003, m.Cost(1000, 500), 1e-9)
}
