package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCheckedIn AppointmentStatus = "checked_in"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

// Active appointments hold their slot
func (s AppointmentStatus) Active() bool {
	return s != AppointmentStatusCancelled && s != AppointmentStatusNoShow
}

type AppointmentType string

const (
	AppointmentTypeNewPatient AppointmentType = "new_patient"
	AppointmentTypeFollowUp   AppointmentType = "follow_up"
	AppointmentTypeProcedure  AppointmentType = "procedure"
	AppointmentTypeTelehealth AppointmentType = "telehealth"
	AppointmentTypeUrgent     AppointmentType = "urgent"
)

type Appointment struct {
	Base
	PatientID       uuid.UUID         `db:"patient_id" json:"patient_id"`
	ProviderID      uuid.UUID         `db:"provider_id" json:"provider_id"`
	Department      string            `db:"department" json:"department"`
	AppointmentType AppointmentType   `db:"appointment_type" json:"appointment_type"`
	StartTime       time.Time         `db:"start_time" json:"start_time"`
	EndTime         time.Time         `db:"end_time" json:"end_time"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Notes           string            `db:"notes" json:"notes,omitempty"`
	CancelReason    *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
}

type CreateAppointmentRequest struct {
	PatientID       uuid.UUID       `json:"patient_id" validate:"required"`
	ProviderID      uuid.UUID       `json:"provider_id" validate:"required"`
	Department      string          `json:"department" validate:"required,max=100"`
	AppointmentType AppointmentType `json:"appointment_type" validate:"required,oneof=new_patient follow_up procedure telehealth urgent"`
	StartTime       time.Time       `json:"start_time" validate:"required"`
	EndTime         time.Time       `json:"end_time" validate:"required,gtfield=StartTime"`
	Notes           string          `json:"notes" validate:"max=1000"`
}

type RescheduleAppointmentRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// TimeSlot is a half-open interval [Start, End)
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals intersect
func (t TimeSlot) Overlaps(o TimeSlot) bool {
	return t.Start.Before(o.End) && o.Start.Before(t.End)
}

// ProviderSchedule is a recurring weekly working window, minutes after local midnight
type ProviderSchedule struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	TenantID    uuid.UUID    `db:"tenant_id" json:"tenant_id"`
	ProviderID  uuid.UUID    `db:"provider_id" json:"provider_id"`
	DayOfWeek   time.Weekday `db:"day_of_week" json:"day_of_week"`
	StartMinute int          `db:"start_minute" json:"start_minute"`
	EndMinute   int          `db:"end_minute" json:"end_minute"`
	SlotMinutes int          `db:"slot_minutes" json:"slot_minutes"`
}

type AppointmentFilter struct {
	ProviderID *uuid.UUID
	PatientID  *uuid.UUID
	Status     AppointmentStatus
	From       *time.Time
	To         *time.Time
}
