package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository/memory"
	"github.com/jwalitptl/careops-api/internal/service/audit"
	apperrors "github.com/jwalitptl/careops-api/pkg/errors"
)

type stubNotifier struct {
	err      error
	subjects []string
}

func (n *stubNotifier) NotifyUser(_ context.Context, _, _ uuid.UUID, _ model.NotificationPriority, _, subject, _ string) error {
	n.subjects = append(n.subjects, subject)
	return n.err
}

// Monday 2026-03-02 08:00 UTC
var clock = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc        *Service
	store      *memory.Store
	notifier   *stubNotifier
	tenantID   uuid.UUID
	providerID uuid.UUID
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	notifier := &stubNotifier{}
	svc := NewService(store.Appointments(), notifier, audit.NewService(store.Audit(), nil), nil)
	svc.now = func() time.Time { return clock }
	return &fixture{svc: svc, store: store, notifier: notifier, tenantID: uuid.New(), providerID: uuid.New()}
}

func (f *fixture) request(start time.Time, d time.Duration) model.CreateAppointmentRequest {
	return model.CreateAppointmentRequest{
		PatientID:       uuid.New(),
		ProviderID:      f.providerID,
		Department:      "Cardiology",
		AppointmentType: model.AppointmentTypeFollowUp,
		StartTime:       start,
		EndTime:         start.Add(d),
	}
}

func (f *fixture) book(t *testing.T, start time.Time, d time.Duration) *model.Appointment {
	t.Helper()
	a, err := f.svc.Create(context.Background(), f.tenantID, f.request(start, d))
	require.NoError(t, err)
	return a
}

func TestCreate_Validation(t *testing.T) {
	f := setup(t)
	tomorrow := clock.Add(24 * time.Hour)

	tests := []struct {
		name  string
		start time.Time
		d     time.Duration
		code  apperrors.ErrorCode
	}{
		{name: "ok", start: tomorrow, d: 30 * time.Minute},
		{name: "too short", start: tomorrow, d: 10 * time.Minute, code: apperrors.ErrInvalidInput},
		{name: "too long", start: tomorrow, d: 5 * time.Hour, code: apperrors.ErrInvalidInput},
		{name: "too soon", start: clock.Add(30 * time.Minute), d: 30 * time.Minute, code: apperrors.ErrInvalidInput},
		{name: "too far out", start: clock.Add(91 * 24 * time.Hour), d: 30 * time.Minute, code: apperrors.ErrInvalidInput},
		{name: "exactly one hour ahead", start: clock.Add(time.Hour), d: 15 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), f.tenantID, f.request(tt.start, tt.d))
			if tt.code != "" {
				assert.Equal(t, tt.code, apperrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCreate_Conflict(t *testing.T) {
	f := setup(t)
	start := clock.Add(48 * time.Hour)
	f.book(t, start, time.Hour)

	_, err := f.svc.Create(context.Background(), f.tenantID, f.request(start.Add(30*time.Minute), time.Hour))
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))

	// half-open intervals: back to back is fine
	f.book(t, start.Add(time.Hour), 30*time.Minute)
	assert.Equal(t, []string{model.EventAppointmentCreated, model.EventAppointmentCreated}, f.store.EventTypes())
}

func TestCancelledSlotCanBeRebooked(t *testing.T) {
	f := setup(t)
	start := clock.Add(48 * time.Hour)
	a := f.book(t, start, time.Hour)

	_, err := f.svc.Cancel(context.Background(), f.tenantID, a.ID, model.CancelAppointmentRequest{Reason: "Patient request"})
	require.NoError(t, err)
	_, err = f.svc.Cancel(context.Background(), f.tenantID, a.ID, model.CancelAppointmentRequest{Reason: "again"})
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))

	f.book(t, start, time.Hour)
}

func TestReschedule_ExcludesSelf(t *testing.T) {
	f := setup(t)
	start := clock.Add(48 * time.Hour)
	a := f.book(t, start, time.Hour)
	_, err := f.svc.Confirm(context.Background(), f.tenantID, a.ID)
	require.NoError(t, err)

	moved, err := f.svc.Reschedule(context.Background(), f.tenantID, a.ID, model.RescheduleAppointmentRequest{
		StartTime: start.Add(30 * time.Minute),
		EndTime:   start.Add(90 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, start.Add(30*time.Minute), moved.StartTime)
	assert.Equal(t, model.AppointmentStatusScheduled, moved.Status)

	logs := f.store.AuditLogs()
	require.NotEmpty(t, logs)
	assert.Contains(t, string(logs[len(logs)-1].Metadata), "start_time")
}

func TestReschedule_ConflictWithOther(t *testing.T) {
	f := setup(t)
	start := clock.Add(48 * time.Hour)
	a := f.book(t, start, time.Hour)
	f.book(t, start.Add(2*time.Hour), time.Hour)

	_, err := f.svc.Reschedule(context.Background(), f.tenantID, a.ID, model.RescheduleAppointmentRequest{
		StartTime: start.Add(2*time.Hour + 15*time.Minute),
		EndTime:   start.Add(3 * time.Hour),
	})
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))
}

func TestStatusFlow(t *testing.T) {
	f := setup(t)
	a := f.book(t, clock.Add(24*time.Hour), time.Hour)
	ctx := context.Background()

	_, err := f.svc.Complete(ctx, f.tenantID, a.ID)
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))

	_, err = f.svc.CheckIn(ctx, f.tenantID, a.ID)
	require.NoError(t, err)
	done, err := f.svc.Complete(ctx, f.tenantID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, done.Status)

	_, err = f.svc.Cancel(ctx, f.tenantID, a.ID, model.CancelAppointmentRequest{Reason: "late"})
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))
	_, err = f.svc.MarkNoShow(ctx, f.tenantID, a.ID)
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))
}

func TestNotificationFailureDoesNotFailBooking(t *testing.T) {
	f := setup(t)
	f.notifier.err = errors.New("smtp down")

	a := f.book(t, clock.Add(24*time.Hour), time.Hour)
	assert.Equal(t, model.AppointmentStatusScheduled, a.Status)
	assert.Equal(t, []string{"Appointment scheduled"}, f.notifier.subjects)
}

func TestGetAvailableSlots(t *testing.T) {
	f := setup(t)
	day := clock.AddDate(0, 0, 1) // Tuesday
	f.store.AddSchedule(&model.ProviderSchedule{
		TenantID:    f.tenantID,
		ProviderID:  f.providerID,
		DayOfWeek:   time.Tuesday,
		StartMinute: 9 * 60,
		EndMinute:   11 * 60,
		SlotMinutes: 30,
	})
	nine := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, time.UTC)
	f.book(t, nine.Add(30*time.Minute), 45*time.Minute)

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.tenantID, f.providerID, day)
	require.NoError(t, err)
	assert.Equal(t, []model.TimeSlot{
		{Start: nine, End: nine.Add(30 * time.Minute)},
		{Start: nine.Add(90 * time.Minute), End: nine.Add(2 * time.Hour)},
	}, slots)
}

func TestGetAvailableSlots_KeepsWallClockOnDSTDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	f := setup(t)
	// clocks spring forward at 02:00 on Sunday 2026-03-08
	day := time.Date(2026, 3, 8, 0, 0, 0, 0, ny)
	f.store.AddSchedule(&model.ProviderSchedule{
		TenantID:    f.tenantID,
		ProviderID:  f.providerID,
		DayOfWeek:   time.Sunday,
		StartMinute: 9 * 60,
		EndMinute:   10 * 60,
		SlotMinutes: 30,
	})

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.tenantID, f.providerID, day)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "09:00", slots[0].Start.Format("15:04"))
	assert.Equal(t, "09:30", slots[0].End.Format("15:04"))
	assert.Equal(t, "09:30", slots[1].Start.Format("15:04"))
	assert.Equal(t, time.Date(2026, 3, 8, 13, 0, 0, 0, time.UTC), slots[0].Start.UTC())
}

func TestGetAvailableSlots_NoSchedule(t *testing.T) {
	f := setup(t)

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.tenantID, f.providerID, clock)
	require.NoError(t, err)
	assert.Empty(t, slots)
}
