package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/careops-api/internal/repository"
)

// NewRepositories builds every postgres backed repository on db
func NewRepositories(db *sqlx.DB) *repository.Repositories {
	base := NewBaseRepository(db)
	return &repository.Repositories{
		Tenants:       NewTenantRepository(base),
		Units:         NewUnitRepository(base),
		Beds:          NewBedRepository(base),
		Transfers:     NewTransferRepository(base),
		WelfareChecks: NewWelfareCheckRepository(base),
		Appointments:  NewAppointmentRepository(base),
		Notifications: NewNotificationRepository(base),
		Predictions:   NewPredictionRepository(base),
		Forecasts:     NewForecastRepository(base),
		Outbox:        NewOutboxRepository(base),
		Audit:         NewAuditRepository(base),
	}
}
