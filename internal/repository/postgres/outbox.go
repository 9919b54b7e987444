package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		return insertEvents(ctx, tx, []*model.OutboxEvent{event})
	})
}

// LockPending opens a transaction holding row locks on the claimed events.
// Concurrent workers skip locked rows, so an event is delivered by one worker at a time.
func (r *outboxRepository) LockPending(ctx context.Context, limit int) (repository.OutboxBatch, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `
		SELECT id, tenant_id, event_type, payload, status, error_message, retry_count,
			created_at, processed_at, updated_at
		FROM outbox_events
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	var events []*model.OutboxEvent
	if err := tx.SelectContext(ctx, &events, query, string(model.OutboxStatusPending), limit); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to lock pending events: %w", err)
	}
	return &outboxBatch{tx: tx, events: events}, nil
}

func (r *outboxRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM outbox_events WHERE status = $1`, string(model.OutboxStatusPending),
	); err != nil {
		return 0, fmt.Errorf("failed to count pending events: %w", err)
	}
	return n, nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM outbox_events
		WHERE status = $1 AND processed_at < $2
	`, string(model.OutboxStatusProcessed), before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return result.RowsAffected()
}

type outboxBatch struct {
	tx     *sqlx.Tx
	events []*model.OutboxEvent
}

func (b *outboxBatch) Events() []*model.OutboxEvent {
	return b.events
}

func (b *outboxBatch) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	_, err := b.tx.ExecContext(ctx, `
		UPDATE outbox_events
		SET status = $1, error_message = NULL, processed_at = $2, updated_at = $2
		WHERE id = $3
	`, string(model.OutboxStatusProcessed), now, id)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (b *outboxBatch) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := b.tx.ExecContext(ctx, `
		UPDATE outbox_events
		SET status = $1, error_message = $2, retry_count = retry_count + 1, updated_at = $3
		WHERE id = $4
	`, string(model.OutboxStatusFailed), reason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}
	return nil
}

func (b *outboxBatch) Commit() error {
	return b.tx.Commit()
}

func (b *outboxBatch) Rollback() error {
	return b.tx.Rollback()
}
