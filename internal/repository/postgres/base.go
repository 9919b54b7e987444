package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

const insertOutboxQuery = `
	INSERT INTO outbox_events (
		id, tenant_id, event_type, payload, status, retry_count, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, 0, $6, $6)
`

// insertEvents writes outbox events in the caller's transaction
func insertEvents(ctx context.Context, tx *sqlx.Tx, events []*model.OutboxEvent) error {
	for _, evt := range events {
		if evt == nil {
			continue
		}
		if evt.Payload == nil {
			return errors.New("event payload cannot be nil")
		}
		if evt.ID == uuid.Nil {
			evt.ID = uuid.New()
		}
		evt.Status = string(model.OutboxStatusPending)
		evt.CreatedAt = time.Now().UTC()
		evt.UpdatedAt = evt.CreatedAt

		if _, err := tx.ExecContext(ctx, insertOutboxQuery,
			evt.ID, evt.TenantID, evt.EventType, []byte(evt.Payload), evt.Status, evt.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to create outbox event: %w", err)
		}
	}
	return nil
}

// notFound maps sql.ErrNoRows to repository.ErrNotFound
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

// expectOne maps a zero row update to err
func expectOne(res sql.Result, err error) error {
	rows, rerr := res.RowsAffected()
	if rerr != nil {
		return fmt.Errorf("failed to get rows affected: %w", rerr)
	}
	if rows == 0 {
		return err
	}
	return nil
}

// whereBuilder accumulates positional predicates
type whereBuilder struct {
	clauses []string
	args    []interface{}
}

func (w *whereBuilder) add(clause string, arg interface{}) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *whereBuilder) sql() string {
	out := ""
	for _, c := range w.clauses {
		out += " AND " + c
	}
	return out
}
