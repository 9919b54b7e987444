package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
	"github.com/jwalitptl/careops-api/internal/service"
	"github.com/jwalitptl/careops-api/internal/service/audit"
	"github.com/jwalitptl/careops-api/internal/tenancy"
	apperrors "github.com/jwalitptl/careops-api/pkg/errors"
	"github.com/jwalitptl/careops-api/pkg/event"
	"github.com/jwalitptl/careops-api/pkg/logger"
	"github.com/jwalitptl/careops-api/pkg/validator"
)

// Booking window rules
const (
	MinDuration = 15 * time.Minute
	MaxDuration = 4 * time.Hour
	MinLeadTime = time.Hour
	MaxLeadTime = 90 * 24 * time.Hour

	defaultSlotMinutes = 30
)

// Notifier reaches the patient or provider about booking changes
type Notifier interface {
	NotifyUser(ctx context.Context, tenantID, userID uuid.UUID, priority model.NotificationPriority, category, subject, content string) error
}

type Service struct {
	repo     repository.AppointmentRepository
	notifier Notifier
	auditor  *audit.Service
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(repo repository.AppointmentRepository, notifier Notifier, auditor *audit.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		auditor:  auditor,
		logger:   log.With("appointment"),
		now:      time.Now,
	}
}

func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, req model.CreateAppointmentRequest) (*model.Appointment, error) {
	if err := validator.New().Validate(req); err != nil {
		return nil, err
	}
	if err := s.checkWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if err := s.checkConflict(ctx, tenantID, req.ProviderID, req.StartTime, req.EndTime, nil); err != nil {
		return nil, err
	}

	a := &model.Appointment{
		PatientID:       req.PatientID,
		ProviderID:      req.ProviderID,
		Department:      req.Department,
		AppointmentType: req.AppointmentType,
		StartTime:       req.StartTime.UTC(),
		EndTime:         req.EndTime.UTC(),
		Status:          model.AppointmentStatusScheduled,
		Notes:           req.Notes,
	}
	a.ID = uuid.New()
	a.TenantID = tenantID

	evt, err := event.New(tenantID, model.EventAppointmentCreated, a)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.repo.Create(ctx, a, evt); err != nil {
		return nil, service.RepoError("appointment", "create appointment", err)
	}

	s.auditor.Record(ctx, tenantID, model.AuditActionCreate, model.AuditEntityAppointment, a.ID, nil)
	s.notify(ctx, a, "Appointment scheduled",
		fmt.Sprintf("%s appointment in %s on %s", a.AppointmentType, a.Department, a.StartTime.Format(time.RFC1123)))
	return a, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Appointment, error) {
	a, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, service.RepoError("appointment", "get appointment", err)
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return nil, apperrors.BadRequest("to must be after from", nil)
	}
	out, err := s.repo.List(ctx, tenantID, filter)
	return out, service.RepoError("appointment", "list appointments", err)
}

func (s *Service) Reschedule(ctx context.Context, tenantID, id uuid.UUID, req model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	if err := validator.New().Validate(req); err != nil {
		return nil, err
	}
	a, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AppointmentStatusScheduled && a.Status != model.AppointmentStatusConfirmed {
		return nil, apperrors.Conflict("only scheduled or confirmed appointments can be rescheduled")
	}
	if err := s.checkWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if err := s.checkConflict(ctx, tenantID, a.ProviderID, req.StartTime, req.EndTime, &a.ID); err != nil {
		return nil, err
	}

	before := *a
	from := a.Status
	a.StartTime = req.StartTime.UTC()
	a.EndTime = req.EndTime.UTC()
	// a moved appointment needs confirming again
	a.Status = model.AppointmentStatusScheduled

	evt, err := event.New(tenantID, model.EventAppointmentRescheduled, map[string]interface{}{
		"appointment_id": a.ID,
		"previous_start": before.StartTime,
		"start_time":     a.StartTime,
		"end_time":       a.EndTime,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.repo.Update(ctx, a, from, evt); err != nil {
		return nil, service.RepoError("appointment", "reschedule appointment", err)
	}

	s.auditor.Record(ctx, tenantID, model.AuditActionUpdate, model.AuditEntityAppointment, a.ID, &audit.LogOptions{
		Before: &before,
		After:  a,
		Fields: []string{"start_time", "end_time", "status"},
	})
	s.notify(ctx, a, "Appointment rescheduled", "Your appointment moved to "+a.StartTime.Format(time.RFC1123))
	return a, nil
}

func (s *Service) Cancel(ctx context.Context, tenantID, id uuid.UUID, req model.CancelAppointmentRequest) (*model.Appointment, error) {
	if err := validator.New().Validate(req); err != nil {
		return nil, err
	}
	a, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	switch a.Status {
	case model.AppointmentStatusCompleted, model.AppointmentStatusCancelled:
		return nil, apperrors.Conflict("appointment is already " + string(a.Status))
	}

	reason := req.Reason
	a.CancelReason = &reason
	a, err = s.setStatus(ctx, a, model.AppointmentStatusCancelled, reason)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, a, "Appointment cancelled", "Your appointment on "+a.StartTime.Format(time.RFC1123)+" was cancelled")
	return a, nil
}

func (s *Service) Confirm(ctx context.Context, tenantID, id uuid.UUID) (*model.Appointment, error) {
	return s.move(ctx, tenantID, id, model.AppointmentStatusConfirmed, model.AppointmentStatusScheduled)
}

func (s *Service) CheckIn(ctx context.Context, tenantID, id uuid.UUID) (*model.Appointment, error) {
	return s.move(ctx, tenantID, id, model.AppointmentStatusCheckedIn,
		model.AppointmentStatusScheduled, model.AppointmentStatusConfirmed)
}

func (s *Service) MarkNoShow(ctx context.Context, tenantID, id uuid.UUID) (*model.Appointment, error) {
	return s.move(ctx, tenantID, id, model.AppointmentStatusNoShow,
		model.AppointmentStatusScheduled, model.AppointmentStatusConfirmed)
}

func (s *Service) Complete(ctx context.Context, tenantID, id uuid.UUID) (*model.Appointment, error) {
	return s.move(ctx, tenantID, id, model.AppointmentStatusCompleted, model.AppointmentStatusCheckedIn)
}

// GetAvailableSlots expands the provider's schedule for the weekday of date
// and drops slots overlapping active bookings. Slots are in date's location.
func (s *Service) GetAvailableSlots(ctx context.Context, tenantID, providerID uuid.UUID, date time.Time) ([]model.TimeSlot, error) {
	loc := date.Location()
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)

	schedules, err := s.repo.ListProviderSchedules(ctx, tenantID, providerID, day.Weekday())
	if err != nil {
		return nil, service.RepoError("schedule", "list provider schedules", err)
	}
	slots := []model.TimeSlot{}
	if len(schedules) == 0 {
		return slots, nil
	}

	from, to := day, day.AddDate(0, 0, 1)
	booked, err := s.repo.List(ctx, tenantID, model.AppointmentFilter{ProviderID: &providerID, From: &from, To: &to})
	if err != nil {
		return nil, service.RepoError("appointment", "list appointments", err)
	}
	busy := make([]model.TimeSlot, 0, len(booked))
	for _, a := range booked {
		if a.Status.Active() {
			busy = append(busy, model.TimeSlot{Start: a.StartTime, End: a.EndTime})
		}
	}

	earliest := s.now().Add(MinLeadTime)
	for _, ps := range schedules {
		step := ps.SlotMinutes
		if step <= 0 {
			step = defaultSlotMinutes
		}
		for m := ps.StartMinute; m+step <= ps.EndMinute; m += step {
			slot := model.TimeSlot{
				Start: wallClock(day, m),
				End:   wallClock(day, m+step),
			}
			if slot.Start.Before(earliest) || overlapsAny(slot, busy) {
				continue
			}
			slots = append(slots, slot)
		}
	}
	return slots, nil
}

// wallClock is minute m of day in day's zone, so DST shifts keep the clock time
func wallClock(day time.Time, m int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, m, 0, 0, day.Location())
}

func overlapsAny(slot model.TimeSlot, busy []model.TimeSlot) bool {
	for _, b := range busy {
		if slot.Overlaps(b) {
			return true
		}
	}
	return false
}

func (s *Service) checkWindow(start, end time.Time) error {
	d := end.Sub(start)
	if d < MinDuration || d > MaxDuration {
		return apperrors.BadRequest("appointment must last between 15 minutes and 4 hours", nil)
	}
	now := s.now()
	if start.Before(now.Add(MinLeadTime)) {
		return apperrors.BadRequest("appointment must start at least 1 hour from now", nil)
	}
	if start.After(now.Add(MaxLeadTime)) {
		return apperrors.BadRequest("appointment cannot be booked more than 90 days ahead", nil)
	}
	return nil
}

func (s *Service) checkConflict(ctx context.Context, tenantID, providerID uuid.UUID, start, end time.Time, exclude *uuid.UUID) error {
	conflict, err := s.repo.HasConflict(ctx, tenantID, providerID, start, end, exclude)
	if err != nil {
		return service.RepoError("appointment", "check appointment conflict", err)
	}
	if conflict {
		return apperrors.Conflict("provider already has an appointment in that time")
	}
	return nil
}

func (s *Service) move(ctx context.Context, tenantID, id uuid.UUID, to model.AppointmentStatus, allowed ...model.AppointmentStatus) (*model.Appointment, error) {
	a, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	ok := false
	for _, st := range allowed {
		if a.Status == st {
			ok = true
			break
		}
	}
	if !ok {
		return nil, apperrors.Conflict(fmt.Sprintf("appointment cannot move from %s to %s", a.Status, to))
	}
	return s.setStatus(ctx, a, to, "")
}

func (s *Service) setStatus(ctx context.Context, a *model.Appointment, to model.AppointmentStatus, reason string) (*model.Appointment, error) {
	from := a.Status
	a.Status = to

	var actorID *uuid.UUID
	if actor := tenancy.Actor(ctx); actor != uuid.Nil {
		actorID = &actor
	}
	evt, err := event.New(a.TenantID, model.EventAppointmentStatusChange, event.StatusChange{
		EntityID: a.ID,
		From:     string(from),
		To:       string(to),
		ActorID:  actorID,
		Reason:   reason,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.repo.Update(ctx, a, from, evt); err != nil {
		return nil, service.RepoError("appointment", "update appointment", err)
	}

	s.auditor.Record(ctx, a.TenantID, model.AuditActionStatus, model.AuditEntityAppointment, a.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"from": from, "to": to},
	})
	return a, nil
}

// notify is best effort, the booking change is already committed
func (s *Service) notify(ctx context.Context, a *model.Appointment, subject, content string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyUser(ctx, a.TenantID, a.PatientID, model.PriorityNormal, "appointment", subject, content); err != nil {
		s.logger.Warn("appointment notification failed",
			"appointment_id", a.ID.String(),
			"error", err.Error())
	}
}
