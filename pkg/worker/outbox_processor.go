package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
	"github.com/jwalitptl/careops-api/pkg/messaging"
	"github.com/jwalitptl/careops-api/pkg/metrics"
)

// EventChannelPrefix is the redis channel family outbox events are fanned out on
const EventChannelPrefix = "events"

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

func (c OutboxProcessorConfig) validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("batch size must be greater than 0")
	case c.PollInterval <= 0:
		return fmt.Errorf("poll interval must be greater than 0")
	case c.RetryAttempts <= 0:
		return fmt.Errorf("retry attempts must be greater than 0")
	case c.RetryDelay <= 0:
		return fmt.Errorf("retry delay must be greater than 0")
	}
	return nil
}

type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Publisher
	config  OutboxProcessorConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Publisher,
	config OutboxProcessorConfig,
	logger *zap.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger.Named("outbox"),
		metrics: metrics,
	}, nil
}

// Start polls the outbox until ctx is cancelled
func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("starting outbox processor",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error("failed to process events", zap.Error(err))
			}
		}
	}
}

// ProcessBatch delivers one locked batch and returns how many events were published
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	batch, err := p.repo.LockPending(ctx, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}

	published := 0
	for _, event := range batch.Events() {
		if err := p.processEvent(ctx, batch, event); err != nil {
			p.logger.Warn("failed to publish event",
				zap.String("event_id", event.ID.String()),
				zap.String("event_type", event.EventType),
				zap.Error(err))
			continue
		}
		published++
	}

	if err := batch.Commit(); err != nil {
		_ = batch.Rollback()
		return published, fmt.Errorf("failed to commit outbox batch: %w", err)
	}

	if pending, err := p.repo.CountPending(ctx); err == nil {
		p.metrics.OutboxQueueSize.Set(float64(pending))
	}
	return published, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, batch repository.OutboxBatch, event *model.OutboxEvent) error {
	msg := messaging.Message{
		Type:     event.EventType,
		TenantID: event.TenantID.String(),
		Payload:  json.RawMessage(event.Payload),
	}
	channel := messaging.TenantChannel(EventChannelPrefix, event.TenantID.String())

	attempt := 0
	err := retry(ctx, p.config.RetryAttempts, p.config.RetryDelay, func() error {
		if attempt > 0 {
			p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		}
		attempt++
		return p.broker.Publish(ctx, channel, msg)
	})

	if err != nil {
		p.metrics.OutboxEventsFailed.Inc()
		if markErr := batch.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
			p.logger.Error("failed to update event status", zap.Error(markErr))
		}
		return err
	}

	p.metrics.OutboxEventsProcessed.Inc()
	return batch.MarkProcessed(ctx, event.ID)
}

// retry runs fn up to attempts times, sleeping delay between failures
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
