package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
)

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, tenant_id, actor_id, action, entity_type, entity_id, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	metadata := []byte(log.Metadata)
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}

	if _, err := r.db.ExecContext(ctx, query,
		log.ID, log.TenantID, log.ActorID, log.Action, log.EntityType, log.EntityID, metadata, log.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func auditWhere(tenantID uuid.UUID, filter model.AuditFilter) *whereBuilder {
	w := &whereBuilder{args: []interface{}{tenantID}}
	if filter.EntityType != "" {
		w.add("entity_type = $%d", filter.EntityType)
	}
	if filter.EntityID != nil {
		w.add("entity_id = $%d", *filter.EntityID)
	}
	if filter.ActorID != nil {
		w.add("actor_id = $%d", *filter.ActorID)
	}
	if filter.From != nil {
		w.add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		w.add("created_at <= $%d", *filter.To)
	}
	return w
}

func (r *auditRepository) List(ctx context.Context, tenantID uuid.UUID, filter model.AuditFilter) ([]*model.AuditLog, error) {
	w := auditWhere(tenantID, filter)

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	w.args = append(w.args, limit)
	page := fmt.Sprintf("LIMIT $%d", len(w.args))
	if filter.Offset > 0 {
		w.args = append(w.args, filter.Offset)
		page += fmt.Sprintf(" OFFSET $%d", len(w.args))
	}

	query := fmt.Sprintf(`SELECT id, tenant_id, actor_id, action, entity_type, entity_id, metadata, created_at
		FROM audit_logs WHERE tenant_id = $1%s ORDER BY created_at DESC %s`, w.sql(), page)

	var logs []*model.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}

func (r *auditRepository) Count(ctx context.Context, tenantID uuid.UUID, filter model.AuditFilter) (int, error) {
	w := auditWhere(tenantID, filter)
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM audit_logs WHERE tenant_id = $1`+w.sql(), w.args...); err != nil {
		return 0, fmt.Errorf("failed to count audit logs: %w", err)
	}
	return n, nil
}

func (r *auditRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	return result.RowsAffected()
}
