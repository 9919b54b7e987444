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

type tenantRepository struct {
	BaseRepository
}

func NewTenantRepository(base BaseRepository) repository.TenantRepository {
	return &tenantRepository{base}
}

func (r *tenantRepository) ListActive(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM tenants WHERE active ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return ids, nil
}

type unitRepository struct {
	BaseRepository
}

func NewUnitRepository(base BaseRepository) repository.UnitRepository {
	return &unitRepository{base}
}

const unitColumns = `id, tenant_id, name, code, floor, unit_type, total_beds, created_at, updated_at`

func (r *unitRepository) List(ctx context.Context, tenantID uuid.UUID) ([]*model.Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM units WHERE tenant_id = $1 ORDER BY floor, name`

	var units []*model.Unit
	if err := r.db.SelectContext(ctx, &units, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	return units, nil
}

func (r *unitRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM units WHERE tenant_id = $1 AND id = $2`

	var unit model.Unit
	if err := r.db.GetContext(ctx, &unit, query, tenantID, id); err != nil {
		return nil, fmt.Errorf("failed to get unit: %w", notFound(err))
	}
	return &unit, nil
}

type bedRepository struct {
	BaseRepository
}

func NewBedRepository(base BaseRepository) repository.BedRepository {
	return &bedRepository{base}
}

const bedColumns = `id, tenant_id, unit_id, bed_number, status, bed_type, patient_id,
	isolation_capable, telemetry_capable, last_status_change, expected_discharge_at,
	notes, created_at, updated_at`

func (r *bedRepository) Create(ctx context.Context, bed *model.Bed, events ...*model.OutboxEvent) error {
	query := `
		INSERT INTO beds (
			id, tenant_id, unit_id, bed_number, status, bed_type, patient_id,
			isolation_capable, telemetry_capable, last_status_change, expected_discharge_at,
			notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	now := time.Now().UTC()
	if bed.ID == uuid.Nil {
		bed.ID = uuid.New()
	}
	bed.CreatedAt = now
	bed.UpdatedAt = now
	bed.LastStatusChange = now

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, query,
			bed.ID, bed.TenantID, bed.UnitID, bed.BedNumber, bed.Status, bed.BedType, bed.PatientID,
			bed.IsolationCapable, bed.TelemetryCapable, bed.LastStatusChange, bed.ExpectedDischargeAt,
			bed.Notes, bed.CreatedAt, bed.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create bed: %w", err)
		}
		return insertEvents(ctx, tx, events)
	})
}

func (r *bedRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Bed, error) {
	query := `SELECT ` + bedColumns + ` FROM beds WHERE tenant_id = $1 AND id = $2`

	var bed model.Bed
	if err := r.db.GetContext(ctx, &bed, query, tenantID, id); err != nil {
		return nil, fmt.Errorf("failed to get bed: %w", notFound(err))
	}
	return &bed, nil
}

func (r *bedRepository) List(ctx context.Context, tenantID uuid.UUID, filter model.BedFilter) ([]*model.Bed, error) {
	w := &whereBuilder{args: []interface{}{tenantID}}
	if filter.UnitID != nil {
		w.add("unit_id = $%d", *filter.UnitID)
	}
	if filter.Status != "" {
		w.add("status = $%d", filter.Status)
	}
	if filter.BedType != "" {
		w.add("bed_type = $%d", filter.BedType)
	}

	query := `SELECT ` + bedColumns + ` FROM beds WHERE tenant_id = $1` + w.sql() + ` ORDER BY unit_id, bed_number`

	var beds []*model.Bed
	if err := r.db.SelectContext(ctx, &beds, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list beds: %w", err)
	}
	return beds, nil
}

func (r *bedRepository) UpdateStatus(ctx context.Context, bed *model.Bed, from model.BedStatus, events ...*model.OutboxEvent) error {
	query := `
		UPDATE beds
		SET status = $1, patient_id = $2, expected_discharge_at = $3, notes = $4,
			last_status_change = $5, updated_at = $5
		WHERE tenant_id = $6 AND id = $7 AND status = $8
	`
	bed.UpdatedAt = time.Now().UTC()
	bed.LastStatusChange = bed.UpdatedAt

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query,
			bed.Status, bed.PatientID, bed.ExpectedDischargeAt, bed.Notes,
			bed.UpdatedAt, bed.TenantID, bed.ID, from,
		)
		if err != nil {
			return fmt.Errorf("failed to update bed status: %w", err)
		}
		if err := expectOne(res, repository.ErrStale); err != nil {
			return err
		}
		return insertEvents(ctx, tx, events)
	})
}

func (r *bedRepository) CountByStatus(ctx context.Context, tenantID uuid.UUID) ([]model.BedStatusCount, error) {
	query := `
		SELECT u.id AS unit_id, u.name AS unit_name, COALESCE(b.status, '') AS status, COUNT(b.id) AS count
		FROM units u
		LEFT JOIN beds b ON b.unit_id = u.id AND b.tenant_id = u.tenant_id
		WHERE u.tenant_id = $1
		GROUP BY u.id, u.name, b.status
		ORDER BY u.name
	`
	var counts []model.BedStatusCount
	if err := r.db.SelectContext(ctx, &counts, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to count beds: %w", err)
	}
	return counts, nil
}
