// Package skills wraps the hosted language model behind clinical helpers.
// Every output is flagged for clinician review.
package skills

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
	"github.com/jwalitptl/careops-api/internal/service"
	"github.com/jwalitptl/careops-api/internal/tenancy"
	"github.com/jwalitptl/careops-api/pkg/edgefn"
	apperrors "github.com/jwalitptl/careops-api/pkg/errors"
	"github.com/jwalitptl/careops-api/pkg/llm"
	"github.com/jwalitptl/careops-api/pkg/metrics"
	"github.com/jwalitptl/careops-api/pkg/validator"
)

const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// Completer routes a prompt to a model tier
type Completer interface {
	Complete(ctx context.Context, min llm.Tier, req llm.Request) (*llm.Response, error)
}

// RemoteInvoker runs a skill as an edge function
type RemoteInvoker interface {
	InvokeSkill(ctx context.Context, skill, tenantID, patientID string, input interface{}) (*edgefn.SkillResult, error)
}

type Config struct {
	Mode             string
	AccuracyTracking bool
	MaxTokens        int
}

type Service struct {
	router      Completer
	remote      RemoteInvoker
	predictions repository.PredictionRepository
	config      Config
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

func NewService(router Completer, remote RemoteInvoker, predictions repository.PredictionRepository, config Config, m *metrics.Metrics, logger *zap.Logger) *Service {
	if config.Mode == "" {
		config.Mode = ModeLocal
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 2048
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		router:      router,
		remote:      remote,
		predictions: predictions,
		config:      config,
		metrics:     m,
		logger:      logger.Named("skills"),
		now:         time.Now,
	}
}

// Call describes one skill invocation
type Call struct {
	Skill     string
	Tier      llm.Tier
	TenantID  uuid.UUID
	PatientID *uuid.UUID
	// Input is sent as context in remote mode and hashed for tracking
	Input  interface{}
	System string
	Prompt string
}

// Reply is the JSON object a skill produced
type Reply struct {
	JSON    string
	Model   string
	Latency time.Duration
}

// Run executes c locally or remotely. A reply without JSON returns ErrNoJSON
// together with the partial reply so callers can fall back.
func (s *Service) Run(ctx context.Context, c Call) (*Reply, error) {
	start := s.now()
	reply, err := s.run(ctx, c)
	latency := s.now().Sub(start)

	modelName := "unknown"
	if reply != nil && reply.Model != "" {
		modelName = reply.Model
	}
	if s.metrics != nil {
		s.metrics.SkillCalls.WithLabelValues(c.Skill, modelName).Inc()
		s.metrics.SkillLatency.WithLabelValues(c.Skill, modelName).Observe(latency.Seconds())
		if err != nil {
			s.metrics.SkillFailures.WithLabelValues(c.Skill).Inc()
		}
	}
	if reply != nil && reply.Latency == 0 {
		reply.Latency = latency
	}

	if err != nil {
		if errors.Is(err, ErrNoJSON) {
			s.logger.Warn("Skill reply had no JSON",
				zap.String("skill", c.Skill),
				zap.String("model", modelName))
			return reply, err
		}
		s.logger.Error("Skill call failed",
			zap.String("skill", c.Skill),
			zap.String("mode", s.config.Mode),
			zap.Duration("latency", latency),
			zap.Error(err))
		if s.config.Mode == ModeRemote {
			return nil, apperrors.External("edge function "+c.Skill, err)
		}
		return nil, apperrors.AI(c.Skill+" model call failed", err)
	}
	return reply, nil
}

func (s *Service) run(ctx context.Context, c Call) (*Reply, error) {
	if s.config.Mode == ModeRemote {
		if s.remote == nil {
			return nil, errors.New("remote skills are not configured")
		}
		patient := ""
		if c.PatientID != nil {
			patient = c.PatientID.String()
		}
		res, err := s.remote.InvokeSkill(ctx, c.Skill, c.TenantID.String(), patient, c.Input)
		if err != nil {
			return nil, err
		}
		reply := &Reply{
			Model:   res.Model,
			Latency: time.Duration(res.ResponseTimeMs) * time.Millisecond,
		}
		if !json.Valid(res.Result) || len(res.Result) == 0 || res.Result[0] != '{' {
			return reply, ErrNoJSON
		}
		reply.JSON = string(res.Result)
		return reply, nil
	}

	if s.router == nil {
		return nil, errors.New("language model is not configured")
	}
	resp, err := s.router.Complete(ctx, c.Tier, llm.Request{
		System:      c.System,
		Prompt:      c.Prompt,
		MaxTokens:   s.config.MaxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, err
	}
	reply := &Reply{Model: resp.Model, Latency: resp.Latency}
	obj, err := ExtractJSON(resp.Text)
	if err != nil {
		return reply, err
	}
	reply.JSON = obj
	return reply, nil
}

// Track stores the output for later review when accuracy tracking is on.
// Failures are logged and never fail the skill call.
func (s *Service) Track(ctx context.Context, c Call, reply *Reply, output interface{}, conf *float64) *uuid.UUID {
	if !s.config.AccuracyTracking || s.predictions == nil {
		return nil
	}
	raw, err := json.Marshal(output)
	if err != nil {
		s.logger.Warn("Failed to encode prediction output", zap.String("skill", c.Skill), zap.Error(err))
		return nil
	}

	p := &model.AIPrediction{
		ID:             uuid.New(),
		TenantID:       c.TenantID,
		Skill:          c.Skill,
		PatientID:      c.PatientID,
		InputHash:      InputHash(c.Input),
		Output:         raw,
		Confidence:     conf,
		RequiresReview: true,
	}
	if reply != nil {
		p.Model = reply.Model
		p.ResponseTimeMs = reply.Latency.Milliseconds()
	}
	if err := s.predictions.Create(ctx, p); err != nil {
		s.logger.Warn("Failed to store prediction", zap.String("skill", c.Skill), zap.Error(err))
		return nil
	}
	return &p.ID
}

// InputHash fingerprints an input without storing it
func InputHash(input interface{}) string {
	raw, err := json.Marshal(input)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func (s *Service) RecordReview(ctx context.Context, tenantID, predictionID uuid.UUID, req model.ReviewPredictionRequest) (*model.AIPrediction, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	reviewer := tenancy.Actor(ctx)
	if reviewer == uuid.Nil {
		return nil, apperrors.Unauthorized(errors.New("a reviewer is required"))
	}

	p, err := s.predictions.Get(ctx, tenantID, predictionID)
	if err != nil {
		return nil, service.RepoError("prediction", "get prediction", err)
	}
	if p.ReviewOutcome != nil {
		return nil, apperrors.Conflict("prediction has already been reviewed")
	}

	at := s.now().UTC()
	if err := s.predictions.RecordReview(ctx, tenantID, predictionID, reviewer, req.Outcome, at); err != nil {
		return nil, service.RepoError("prediction", "record review", err)
	}
	outcome := req.Outcome
	p.ReviewedBy = &reviewer
	p.ReviewOutcome = &outcome
	p.ReviewedAt = &at
	return p, nil
}

func (s *Service) GetSkillAccuracy(ctx context.Context, tenantID uuid.UUID, skill string) (*model.SkillAccuracy, error) {
	if !KnownSkill(skill) {
		return nil, apperrors.NotFound("skill", nil)
	}
	acc, err := s.predictions.Accuracy(ctx, tenantID, skill)
	if err != nil {
		return nil, service.RepoError("prediction", "skill accuracy", err)
	}
	acc.Skill = skill
	return acc, nil
}

var knownSkills = map[string]bool{
	model.SkillFallRisk:     true,
	model.SkillCarePlan:     true,
	model.SkillBillingCodes: true,
	model.SkillHL7Interpret: true,
	model.SkillBedForecast:  true,
	model.SkillDischarge:    true,
	model.SkillBedMatch:     true,
}

func KnownSkill(name string) bool { return knownSkills[name] }

func validate(v interface{}) error {
	return validator.New().Validate(v)
}
