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

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

const appointmentColumns = `id, tenant_id, patient_id, provider_id, department, appointment_type,
	start_time, end_time, status, notes, cancel_reason, created_at, updated_at`

func (r *appointmentRepository) Create(ctx context.Context, a *model.Appointment, events ...*model.OutboxEvent) error {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	now := time.Now().UTC()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = now
	a.UpdatedAt = now

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, query,
			a.ID, a.TenantID, a.PatientID, a.ProviderID, a.Department, a.AppointmentType,
			a.StartTime, a.EndTime, a.Status, a.Notes, a.CancelReason, a.CreatedAt, a.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create appointment: %w", err)
		}
		return insertEvents(ctx, tx, events)
	})
}

func (r *appointmentRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE tenant_id = $1 AND id = $2`

	var a model.Appointment
	if err := r.db.GetContext(ctx, &a, query, tenantID, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", notFound(err))
	}
	return &a, nil
}

func (r *appointmentRepository) List(ctx context.Context, tenantID uuid.UUID, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	w := &whereBuilder{args: []interface{}{tenantID}}
	if filter.ProviderID != nil {
		w.add("provider_id = $%d", *filter.ProviderID)
	}
	if filter.PatientID != nil {
		w.add("patient_id = $%d", *filter.PatientID)
	}
	if filter.Status != "" {
		w.add("status = $%d", filter.Status)
	}
	if filter.From != nil {
		w.add("end_time > $%d", *filter.From)
	}
	if filter.To != nil {
		w.add("start_time < $%d", *filter.To)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE tenant_id = $1` + w.sql() +
		` ORDER BY start_time ASC`

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) Update(ctx context.Context, a *model.Appointment, from model.AppointmentStatus, events ...*model.OutboxEvent) error {
	query := `
		UPDATE appointments
		SET start_time = $1, end_time = $2, status = $3, notes = $4, cancel_reason = $5, updated_at = $6
		WHERE tenant_id = $7 AND id = $8 AND status = $9
	`
	a.UpdatedAt = time.Now().UTC()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query,
			a.StartTime, a.EndTime, a.Status, a.Notes, a.CancelReason, a.UpdatedAt,
			a.TenantID, a.ID, from,
		)
		if err != nil {
			return fmt.Errorf("failed to update appointment: %w", err)
		}
		if err := expectOne(res, repository.ErrStale); err != nil {
			return err
		}
		return insertEvents(ctx, tx, events)
	})
}

func (r *appointmentRepository) HasConflict(ctx context.Context, tenantID, providerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE tenant_id = $1
			AND provider_id = $2
			AND status NOT IN ('cancelled', 'no_show')
			AND start_time < $4
			AND end_time > $3
			AND ($5::uuid IS NULL OR id <> $5)
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, tenantID, providerID, start, end, excludeID); err != nil {
		return false, fmt.Errorf("failed to check appointment conflicts: %w", err)
	}
	return exists, nil
}

func (r *appointmentRepository) ListProviderSchedules(ctx context.Context, tenantID, providerID uuid.UUID, day time.Weekday) ([]*model.ProviderSchedule, error) {
	query := `
		SELECT id, tenant_id, provider_id, day_of_week, start_minute, end_minute, slot_minutes
		FROM provider_schedules
		WHERE tenant_id = $1 AND provider_id = $2 AND day_of_week = $3
		ORDER BY start_minute
	`
	var schedules []*model.ProviderSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, tenantID, providerID, int(day)); err != nil {
		return nil, fmt.Errorf("failed to list provider schedules: %w", err)
	}
	return schedules, nil
}

func (r *appointmentRepository) CountBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM appointments
		WHERE tenant_id = $1 AND start_time >= $2 AND start_time < $3
		AND status NOT IN ('cancelled', 'no_show')
	`, tenantID, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return n, nil
}
