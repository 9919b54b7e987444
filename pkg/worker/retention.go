package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jwalitptl/careops-api/internal/repository"
)

// RetentionCleaner prunes processed outbox events and expired audit logs
type RetentionCleaner struct {
	audit           repository.AuditRepository
	outbox          repository.OutboxRepository
	retentionDays   int
	outboxRetention time.Duration
	logger          *zap.Logger
	now             func() time.Time
}

func NewRetentionCleaner(audit repository.AuditRepository, outbox repository.OutboxRepository, retentionDays int, outboxRetention time.Duration, logger *zap.Logger) *RetentionCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionCleaner{
		audit:           audit,
		outbox:          outbox,
		retentionDays:   retentionDays,
		outboxRetention: outboxRetention,
		logger:          logger.Named("retention"),
		now:             time.Now,
	}
}

// Run deletes everything past retention. A zero retention keeps rows forever.
func (w *RetentionCleaner) Run(ctx context.Context) {
	now := w.now().UTC()

	if w.outboxRetention > 0 {
		n, err := w.outbox.DeleteProcessedBefore(ctx, now.Add(-w.outboxRetention))
		if err != nil {
			w.logger.Error("outbox cleanup failed", zap.Error(err))
		} else if n > 0 {
			w.logger.Info("deleted processed outbox events", zap.Int64("count", n))
		}
	}

	if w.retentionDays > 0 {
		n, err := w.audit.Cleanup(ctx, now.AddDate(0, 0, -w.retentionDays))
		if err != nil {
			w.logger.Error("audit cleanup failed", zap.Error(err))
		} else if n > 0 {
			w.logger.Info("deleted audit logs", zap.Int64("count", n))
		}
	}
}
