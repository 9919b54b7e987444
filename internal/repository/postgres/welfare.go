package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
)

type welfareCheckRepository struct {
	BaseRepository
}

func NewWelfareCheckRepository(base BaseRepository) repository.WelfareCheckRepository {
	return &welfareCheckRepository{base}
}

const welfareColumns = `id, tenant_id, patient_id, patient_name, last_known_address, phone, reason,
	risk_level, details, agency_name, agency_case_number, officer_name, status, outcome,
	requested_by, requested_at, dispatched_at, completed_at, created_at, updated_at`

func (r *welfareCheckRepository) Create(ctx context.Context, w *model.WelfareCheck, events ...*model.OutboxEvent) error {
	query := `
		INSERT INTO welfare_checks (` + welfareColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	now := time.Now().UTC()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.CreatedAt = now
	w.UpdatedAt = now
	if w.RequestedAt.IsZero() {
		w.RequestedAt = now
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, query,
			w.ID, w.TenantID, w.PatientID, w.PatientName, w.LastKnownAddress, w.Phone, w.Reason,
			w.RiskLevel, w.Details, w.AgencyName, w.AgencyCaseNumber, w.OfficerName, w.Status, w.Outcome,
			w.RequestedBy, w.RequestedAt, w.DispatchedAt, w.CompletedAt, w.CreatedAt, w.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create welfare check: %w", err)
		}
		return insertEvents(ctx, tx, events)
	})
}

func (r *welfareCheckRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*model.WelfareCheck, error) {
	query := `SELECT ` + welfareColumns + ` FROM welfare_checks WHERE tenant_id = $1 AND id = $2`

	var w model.WelfareCheck
	if err := r.db.GetContext(ctx, &w, query, tenantID, id); err != nil {
		return nil, fmt.Errorf("failed to get welfare check: %w", notFound(err))
	}
	return &w, nil
}

func (r *welfareCheckRepository) List(ctx context.Context, tenantID uuid.UUID, filter model.WelfareFilter) ([]*model.WelfareCheck, error) {
	w := &whereBuilder{args: []interface{}{tenantID}}
	if filter.Status != "" {
		w.add("status = $%d", filter.Status)
	}
	if filter.RiskLevel != "" {
		w.add("risk_level = $%d", filter.RiskLevel)
	}

	query := `SELECT ` + welfareColumns + ` FROM welfare_checks WHERE tenant_id = $1` + w.sql()
	if filter.OpenOnly {
		query += ` AND status IN ('requested', 'dispatched', 'on_scene')`
	}
	query += ` ORDER BY requested_at DESC`

	var checks []*model.WelfareCheck
	if err := r.db.SelectContext(ctx, &checks, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list welfare checks: %w", err)
	}
	return checks, nil
}

func (r *welfareCheckRepository) Update(ctx context.Context, w *model.WelfareCheck, from model.WelfareStatus, events ...*model.OutboxEvent) error {
	query := `
		UPDATE welfare_checks
		SET status = $1, agency_name = $2, agency_case_number = $3, officer_name = $4,
			outcome = $5, dispatched_at = $6, completed_at = $7, updated_at = $8
		WHERE tenant_id = $9 AND id = $10 AND status = $11
	`
	w.UpdatedAt = time.Now().UTC()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query,
			w.Status, w.AgencyName, w.AgencyCaseNumber, w.OfficerName,
			w.Outcome, w.DispatchedAt, w.CompletedAt, w.UpdatedAt,
			w.TenantID, w.ID, from,
		)
		if err != nil {
			return fmt.Errorf("failed to update welfare check: %w", err)
		}
		if err := expectOne(res, repository.ErrStale); err != nil {
			return err
		}
		return insertEvents(ctx, tx, events)
	})
}

func (r *welfareCheckRepository) CountOpen(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM welfare_checks
		WHERE tenant_id = $1 AND status IN ('requested', 'dispatched', 'on_scene')
	`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to count welfare checks: %w", err)
	}
	return n, nil
}
