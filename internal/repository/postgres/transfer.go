package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
)

type transferRepository struct {
	BaseRepository
}

func NewTransferRepository(base BaseRepository) repository.TransferRepository {
	return &transferRepository{base}
}

const transferColumns = `id, tenant_id, patient_id, patient_name, direction, origin_facility,
	destination_facility, requesting_physician, accepting_physician, diagnosis, reason, priority,
	level_of_care, transport_mode, status, assigned_bed_id, decline_reason, requested_at,
	accepted_at, completed_at, escalated, escalated_at, created_at, updated_at`

func (r *transferRepository) Create(ctx context.Context, t *model.TransferRequest, events ...*model.OutboxEvent) error {
	query := `
		INSERT INTO transfer_requests (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24)
	`
	now := time.Now().UTC()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.RequestedAt.IsZero() {
		t.RequestedAt = now
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, query,
			t.ID, t.TenantID, t.PatientID, t.PatientName, t.Direction, t.OriginFacility,
			t.DestinationFacility, t.RequestingPhysician, t.AcceptingPhysician, t.Diagnosis, t.Reason, t.Priority,
			t.LevelOfCare, t.TransportMode, t.Status, t.AssignedBedID, t.DeclineReason, t.RequestedAt,
			t.AcceptedAt, t.CompletedAt, t.Escalated, t.EscalatedAt, t.CreatedAt, t.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create transfer: %w", err)
		}
		return insertEvents(ctx, tx, events)
	})
}

func (r *transferRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*model.TransferRequest, error) {
	query := `SELECT ` + transferColumns + ` FROM transfer_requests WHERE tenant_id = $1 AND id = $2`

	var t model.TransferRequest
	if err := r.db.GetContext(ctx, &t, query, tenantID, id); err != nil {
		return nil, fmt.Errorf("failed to get transfer: %w", notFound(err))
	}
	return &t, nil
}

func (r *transferRepository) List(ctx context.Context, tenantID uuid.UUID, filter model.TransferFilter) ([]*model.TransferRequest, error) {
	w := &whereBuilder{args: []interface{}{tenantID}}
	if filter.Status != "" {
		w.add("status = $%d", filter.Status)
	}
	if filter.Priority != "" {
		w.add("priority = $%d", filter.Priority)
	}
	if filter.Direction != "" {
		w.add("direction = $%d", filter.Direction)
	}

	query := `SELECT ` + transferColumns + ` FROM transfer_requests WHERE tenant_id = $1` + w.sql() +
		` ORDER BY requested_at DESC`

	var transfers []*model.TransferRequest
	if err := r.db.SelectContext(ctx, &transfers, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	return transfers, nil
}

func (r *transferRepository) Update(ctx context.Context, t *model.TransferRequest, from model.TransferStatus, events ...*model.OutboxEvent) error {
	query := `
		UPDATE transfer_requests
		SET status = $1, accepting_physician = $2, assigned_bed_id = $3, decline_reason = $4,
			accepted_at = $5, completed_at = $6, escalated = $7, escalated_at = $8, updated_at = $9
		WHERE tenant_id = $10 AND id = $11 AND status = $12
	`
	t.UpdatedAt = time.Now().UTC()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query,
			t.Status, t.AcceptingPhysician, t.AssignedBedID, t.DeclineReason,
			t.AcceptedAt, t.CompletedAt, t.Escalated, t.EscalatedAt, t.UpdatedAt,
			t.TenantID, t.ID, from,
		)
		if err != nil {
			return fmt.Errorf("failed to update transfer: %w", err)
		}
		if err := expectOne(res, repository.ErrStale); err != nil {
			return err
		}
		return insertEvents(ctx, tx, events)
	})
}

func (r *transferRepository) ListUnescalatedPending(ctx context.Context, tenantID uuid.UUID) ([]*model.TransferRequest, error) {
	query := `SELECT ` + transferColumns + ` FROM transfer_requests
		WHERE tenant_id = $1 AND status = $2 AND NOT escalated
		ORDER BY requested_at`

	var transfers []*model.TransferRequest
	if err := r.db.SelectContext(ctx, &transfers, query, tenantID, model.TransferStatusPending); err != nil {
		return nil, fmt.Errorf("failed to list pending transfers: %w", err)
	}
	return transfers, nil
}

func (r *transferRepository) Metrics(ctx context.Context, tenantID uuid.UUID) (*model.TransferMetrics, error) {
	var rows []struct {
		Status model.TransferStatus `db:"status"`
		Count  int                  `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS count FROM transfer_requests WHERE tenant_id = $1 GROUP BY status`,
		tenantID,
	); err != nil {
		return nil, fmt.Errorf("failed to count transfers: %w", err)
	}

	var agg struct {
		Escalated   int             `db:"escalated"`
		AvgAccepted sql.NullFloat64 `db:"avg_accept_minutes"`
	}
	if err := r.db.GetContext(ctx, &agg, `
		SELECT COUNT(*) FILTER (WHERE escalated) AS escalated,
			AVG(EXTRACT(EPOCH FROM (accepted_at - requested_at)) / 60)
				FILTER (WHERE accepted_at IS NOT NULL) AS avg_accept_minutes
		FROM transfer_requests WHERE tenant_id = $1
	`, tenantID); err != nil {
		return nil, fmt.Errorf("failed to aggregate transfers: %w", err)
	}

	m := &model.TransferMetrics{ByStatus: make(map[model.TransferStatus]int)}
	for _, row := range rows {
		m.ByStatus[row.Status] = row.Count
		m.Total += row.Count
	}
	m.Escalated = agg.Escalated
	if agg.AvgAccepted.Valid {
		m.AverageAcceptanceMinutes = agg.AvgAccepted.Float64
	}
	return m, nil
}
