package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Tier orders models by capability and cost
type Tier string

const (
	TierEconomy  Tier = "economy"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

var tierRank = map[Tier]int{
	TierEconomy:  0,
	TierStandard: 1,
	TierPremium:  2,
}

var ErrNoModel = errors.New("llm: no model configured for the requested tier")

// Valid reports whether t is a known tier
func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// Model binds a tier to a concrete model name
type Model struct {
	Tier      Tier
	Name      string
	CostPer1K float64
}

// Cost estimates the cost of a call in the model's currency units
func (m Model) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens+outputTokens) / 1000 * m.CostPer1K
}

// Router picks the cheapest configured model at or above the requested tier
// and escalates to the next tier when a call fails.
type Router struct {
	completer Completer
	models    []Model
	logger    *zap.Logger
}

func NewRouter(completer Completer, models []Model, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	sorted := make([]Model, 0, len(models))
	for _, m := range models {
		if m.Name != "" && m.Tier.Valid() {
			sorted = append(sorted, m)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := tierRank[sorted[i].Tier], tierRank[sorted[j].Tier]
		if ri != rj {
			return ri < rj
		}
		return sorted[i].CostPer1K < sorted[j].CostPer1K
	})
	return &Router{completer: completer, models: sorted, logger: logger}
}

// Candidates returns the models eligible for min, cheapest first
func (r *Router) Candidates(min Tier) []Model {
	var out []Model
	for _, m := range r.models {
		if tierRank[m.Tier] >= tierRank[min] {
			out = append(out, m)
		}
	}
	return out
}

// Complete runs req against the candidates for min until one succeeds
func (r *Router) Complete(ctx context.Context, min Tier, req Request) (*Response, error) {
	if !min.Valid() {
		min = TierStandard
	}
	candidates := r.Candidates(min)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoModel, min)
	}

	var lastErr error
	for i, m := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := r.completer.Complete(ctx, m.Name, req)
		if err == nil {
			resp.Tier = m.Tier
			if resp.Model == "" {
				resp.Model = m.Name
			}
			return resp, nil
		}
		lastErr = err
		if i+1 < len(candidates) {
			r.logger.Warn("escalating model tier",
				zap.String("from", m.Name),
				zap.String("to", candidates[i+1].Name),
				zap.Error(err),
			)
		}
	}
	return nil, fmt.Errorf("all models failed for tier %s: %w", min, lastErr)
}
