package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careops-api/internal/model"
)

var (
	// ErrNotFound is returned when no row matches the tenant and id
	ErrNotFound = errors.New("record not found")
	// ErrStale is returned when a status guarded update matched no row
	ErrStale = errors.New("record was modified concurrently")
)

// All repository interfaces in one file. Every tenant scoped lookup takes the
// tenant id from the authenticated claims.
type (
	TenantRepository interface {
		ListActive(ctx context.Context) ([]uuid.UUID, error)
	}

	UnitRepository interface {
		List(ctx context.Context, tenantID uuid.UUID) ([]*model.Unit, error)
		Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Unit, error)
	}

	BedRepository interface {
		Create(ctx context.Context, bed *model.Bed, events ...*model.OutboxEvent) error
		Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Bed, error)
		List(ctx context.Context, tenantID uuid.UUID, filter model.BedFilter) ([]*model.Bed, error)
		// UpdateStatus persists bed state only while the stored status still equals from
		UpdateStatus(ctx context.Context, bed *model.Bed, from model.BedStatus, events ...*model.OutboxEvent) error
		CountByStatus(ctx context.Context, tenantID uuid.UUID) ([]model.BedStatusCount, error)
	}

	TransferRepository interface {
		Create(ctx context.Context, t *model.TransferRequest, events ...*model.OutboxEvent) error
		Get(ctx context.Context, tenantID, id uuid.UUID) (*model.TransferRequest, error)
		List(ctx context.Context, tenantID uuid.UUID, filter model.TransferFilter) ([]*model.TransferRequest, error)
		Update(ctx context.Context, t *model.TransferRequest, from model.TransferStatus, events ...*model.OutboxEvent) error
		ListUnescalatedPending(ctx context.Context, tenantID uuid.UUID) ([]*model.TransferRequest, error)
		Metrics(ctx context.Context, tenantID uuid.UUID) (*model.TransferMetrics, error)
	}

	WelfareCheckRepository interface {
		Create(ctx context.Context, w *model.WelfareCheck, events ...*model.OutboxEvent) error
		Get(ctx context.Context, tenantID, id uuid.UUID) (*model.WelfareCheck, error)
		List(ctx context.Context, tenantID uuid.UUID, filter model.WelfareFilter) ([]*model.WelfareCheck, error)
		Update(ctx context.Context, w *model.WelfareCheck, from model.WelfareStatus, events ...*model.OutboxEvent) error
		CountOpen(ctx context.Context, tenantID uuid.UUID) (int, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, a *model.Appointment, events ...*model.OutboxEvent) error
		Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, tenantID uuid.UUID, filter model.AppointmentFilter) ([]*model.Appointment, error)
		Update(ctx context.Context, a *model.Appointment, from model.AppointmentStatus, events ...*model.OutboxEvent) error
		// HasConflict reports an active appointment of the provider overlapping [start, end)
		HasConflict(ctx context.Context, tenantID, providerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)
		ListProviderSchedules(ctx context.Context, tenantID, providerID uuid.UUID, day time.Weekday) ([]*model.ProviderSchedule, error)
		CountBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (int, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, n *model.Notification) error
		Update(ctx context.Context, n *model.Notification) error
		Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Notification, error)
		ListDueRetries(ctx context.Context, now time.Time, limit int) ([]*model.Notification, error)
		ListForUser(ctx context.Context, tenantID, userID uuid.UUID, unreadOnly bool, limit int) ([]*model.Notification, error)
		MarkRead(ctx context.Context, tenantID, id, userID uuid.UUID, at time.Time) error
	}

	PredictionRepository interface {
		Create(ctx context.Context, p *model.AIPrediction) error
		Get(ctx context.Context, tenantID, id uuid.UUID) (*model.AIPrediction, error)
		RecordReview(ctx context.Context, tenantID, id, reviewer uuid.UUID, outcome model.ReviewOutcome, at time.Time) error
		Accuracy(ctx context.Context, tenantID uuid.UUID, skill string) (*model.SkillAccuracy, error)
	}

	ForecastRepository interface {
		Create(ctx context.Context, f *model.BedForecast, events ...*model.OutboxEvent) error
		Latest(ctx context.Context, tenantID uuid.UUID, horizonHours int) (*model.BedForecast, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// LockPending claims up to limit pending events until the batch is committed
		LockPending(ctx context.Context, limit int) (OutboxBatch, error)
		CountPending(ctx context.Context) (int, error)
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	OutboxBatch interface {
		Events() []*model.OutboxEvent
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
		Commit() error
		Rollback() error
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, tenantID uuid.UUID, filter model.AuditFilter) ([]*model.AuditLog, error)
		Count(ctx context.Context, tenantID uuid.UUID, filter model.AuditFilter) (int, error)
		Cleanup(ctx context.Context, before time.Time) (int64, error)
	}
)

// Repositories bundles one implementation of every repository
type Repositories struct {
	Tenants       TenantRepository
	Units         UnitRepository
	Beds          BedRepository
	Transfers     TransferRepository
	WelfareChecks WelfareCheckRepository
	Appointments  AppointmentRepository
	Notifications NotificationRepository
	Predictions   PredictionRepository
	Forecasts     ForecastRepository
	Outbox        OutboxRepository
	Audit         AuditRepository
}
