package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
	"github.com/jwalitptl/careops-api/internal/repository/memory"
	"github.com/jwalitptl/careops-api/internal/service/audit"
	"github.com/jwalitptl/careops-api/internal/service/bed"
	"github.com/jwalitptl/careops-api/internal/tenancy"
	apperrors "github.com/jwalitptl/careops-api/pkg/errors"
	"github.com/jwalitptl/careops-api/pkg/metrics"
)

type notice struct {
	role     string
	priority model.NotificationPriority
	subject  string
}

type stubNotifier struct {
	sent []notice
}

func (n *stubNotifier) NotifyRole(_ context.Context, _ uuid.UUID, role string, priority model.NotificationPriority, _, subject, _ string) error {
	n.sent = append(n.sent, notice{role: role, priority: priority, subject: subject})
	return nil
}

type fixture struct {
	svc      *Service
	beds     *bed.Service
	store    *memory.Store
	notifier *stubNotifier
	tenantID uuid.UUID
	unitID   uuid.UUID
	ctx      context.Context
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	tenantID := uuid.New()
	unit := &model.Unit{Name: "ICU", Code: "ICU", UnitType: model.UnitTypeICU}
	unit.TenantID = tenantID
	store.AddUnit(unit)

	auditor := audit.NewService(store.Audit(), nil)
	m := metrics.New("test")
	beds := bed.NewService(store.Units(), store.Beds(), auditor, m)
	notifier := &stubNotifier{}

	return &fixture{
		svc:      NewService(store.Transfers(), beds, notifier, auditor, Config{}, m, nil),
		beds:     beds,
		store:    store,
		notifier: notifier,
		tenantID: tenantID,
		unitID:   unit.ID,
		ctx:      tenancy.WithIdentity(context.Background(), tenancy.Identity{TenantID: tenantID, UserID: uuid.New(), Role: "transfer_center"}),
	}
}

func validRequest(priority model.TransferPriority) model.CreateTransferRequest {
	return model.CreateTransferRequest{
		PatientID:           uuid.New(),
		PatientName:         "Jordan Rivera",
		Direction:           model.TransferInbound,
		OriginFacility:      "County General",
		DestinationFacility: "University Medical Center",
		RequestingPhysician: "Dr. Okafor",
		Diagnosis:           "STEMI",
		Reason:              "Cath lab unavailable",
		Priority:            priority,
		LevelOfCare:         model.LevelOfCareICU,
		TransportMode:       model.TransportCriticalCare,
	}
}

func (f *fixture) create(t *testing.T, priority model.TransferPriority) *model.TransferRequest {
	t.Helper()
	tr, err := f.svc.Create(f.ctx, f.tenantID, validRequest(priority))
	require.NoError(t, err)
	return tr
}

func TestCreate(t *testing.T) {
	f := setup(t)

	tr := f.create(t, model.TransferPriorityUrgent)
	assert.Equal(t, model.TransferStatusPending, tr.Status)
	assert.False(t, tr.RequestedAt.IsZero())
	assert.Equal(t, []string{model.EventTransferCreated}, f.store.EventTypes())

	list, err := f.svc.List(f.ctx, f.tenantID, model.TransferFilter{Status: model.TransferStatusPending})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreate_InvalidEnum(t *testing.T) {
	f := setup(t)
	req := validRequest("whenever")

	_, err := f.svc.Create(f.ctx, f.tenantID, req)
	assert.Equal(t, apperrors.ErrInvalidInput, apperrors.CodeOf(err))
}

func TestLifecycle_InboundTakesReservedBed(t *testing.T) {
	f := setup(t)
	b, err := f.beds.CreateBed(f.ctx, f.tenantID, model.CreateBedRequest{UnitID: f.unitID, BedNumber: "ICU-1", BedType: model.BedTypeICU})
	require.NoError(t, err)
	tr := f.create(t, model.TransferPriorityCritical)

	tr, err = f.svc.Accept(f.ctx, f.tenantID, tr.ID, model.AcceptTransferRequest{AcceptingPhysician: "Dr. Chen"})
	require.NoError(t, err)
	require.NotNil(t, tr.AcceptedAt)

	tr, err = f.svc.AssignBed(f.ctx, f.tenantID, tr.ID, model.AssignTransferBedRequest{BedID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, model.TransferStatusBedAssigned, tr.Status)

	reserved, err := f.beds.GetBed(f.ctx, f.tenantID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BedStatusReserved, reserved.Status)

	_, err = f.svc.MarkInTransit(f.ctx, f.tenantID, tr.ID)
	require.NoError(t, err)
	tr, err = f.svc.Complete(f.ctx, f.tenantID, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransferStatusCompleted, tr.Status)
	assert.NotNil(t, tr.CompletedAt)

	occupied, err := f.beds.GetBed(f.ctx, f.tenantID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BedStatusOccupied, occupied.Status)
	assert.Equal(t, tr.PatientID, *occupied.PatientID)
}

func TestAssignBed_UnavailableBed(t *testing.T) {
	f := setup(t)
	b, err := f.beds.CreateBed(f.ctx, f.tenantID, model.CreateBedRequest{UnitID: f.unitID, BedNumber: "ICU-2"})
	require.NoError(t, err)
	_, err = f.beds.UpdateBedStatus(f.ctx, f.tenantID, b.ID, model.UpdateBedStatusRequest{Status: model.BedStatusCleaning})
	require.NoError(t, err)

	tr := f.create(t, model.TransferPriorityUrgent)
	_, err = f.svc.Accept(f.ctx, f.tenantID, tr.ID, model.AcceptTransferRequest{AcceptingPhysician: "Dr. Chen"})
	require.NoError(t, err)

	_, err = f.svc.AssignBed(f.ctx, f.tenantID, tr.ID, model.AssignTransferBedRequest{BedID: b.ID})
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))

	got, err := f.svc.Get(f.ctx, f.tenantID, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransferStatusAccepted, got.Status)
}

func TestCancel_FreesReservedBed(t *testing.T) {
	f := setup(t)
	b, err := f.beds.CreateBed(f.ctx, f.tenantID, model.CreateBedRequest{UnitID: f.unitID, BedNumber: "ICU-3"})
	require.NoError(t, err)
	tr := f.create(t, model.TransferPriorityRoutine)
	_, err = f.svc.Accept(f.ctx, f.tenantID, tr.ID, model.AcceptTransferRequest{AcceptingPhysician: "Dr. Chen"})
	require.NoError(t, err)
	_, err = f.svc.AssignBed(f.ctx, f.tenantID, tr.ID, model.AssignTransferBedRequest{BedID: b.ID})
	require.NoError(t, err)

	_, err = f.svc.Cancel(f.ctx, f.tenantID, tr.ID)
	require.NoError(t, err)

	got, err := f.beds.GetBed(f.ctx, f.tenantID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BedStatusAvailable, got.Status)
}

// staleUpdates fails the write into one target status, as a concurrent
// change to the transfer row would
type staleUpdates struct {
	repository.TransferRepository
	failTo model.TransferStatus
}

func (r *staleUpdates) Update(ctx context.Context, t *model.TransferRequest, from model.TransferStatus, events ...*model.OutboxEvent) error {
	if t.Status == r.failTo {
		return repository.ErrStale
	}
	return r.TransferRepository.Update(ctx, t, from, events...)
}

func (f *fixture) withStaleUpdates(to model.TransferStatus) {
	auditor := audit.NewService(f.store.Audit(), nil)
	repo := &staleUpdates{TransferRepository: f.store.Transfers(), failTo: to}
	f.svc = NewService(repo, f.beds, f.notifier, auditor, Config{}, metrics.New("test"), nil)
}

func TestAssignBed_FailedUpdateFreesBed(t *testing.T) {
	f := setup(t)
	b, err := f.beds.CreateBed(f.ctx, f.tenantID, model.CreateBedRequest{UnitID: f.unitID, BedNumber: "ICU-4"})
	require.NoError(t, err)
	tr := f.create(t, model.TransferPriorityUrgent)
	_, err = f.svc.Accept(f.ctx, f.tenantID, tr.ID, model.AcceptTransferRequest{AcceptingPhysician: "Dr. Chen"})
	require.NoError(t, err)

	f.withStaleUpdates(model.TransferStatusBedAssigned)
	_, err = f.svc.AssignBed(f.ctx, f.tenantID, tr.ID, model.AssignTransferBedRequest{BedID: b.ID})
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))

	got, err := f.beds.GetBed(f.ctx, f.tenantID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BedStatusAvailable, got.Status)
	assert.Nil(t, got.PatientID)

	current, err := f.svc.Get(f.ctx, f.tenantID, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransferStatusAccepted, current.Status)
	assert.Nil(t, current.AssignedBedID)
}

func TestComplete_FailedUpdateKeepsReservation(t *testing.T) {
	f := setup(t)
	b, err := f.beds.CreateBed(f.ctx, f.tenantID, model.CreateBedRequest{UnitID: f.unitID, BedNumber: "ICU-5"})
	require.NoError(t, err)
	tr := f.create(t, model.TransferPriorityUrgent)
	_, err = f.svc.Accept(f.ctx, f.tenantID, tr.ID, model.AcceptTransferRequest{AcceptingPhysician: "Dr. Chen"})
	require.NoError(t, err)
	_, err = f.svc.AssignBed(f.ctx, f.tenantID, tr.ID, model.AssignTransferBedRequest{BedID: b.ID})
	require.NoError(t, err)
	_, err = f.svc.MarkInTransit(f.ctx, f.tenantID, tr.ID)
	require.NoError(t, err)

	f.withStaleUpdates(model.TransferStatusCompleted)
	_, err = f.svc.Complete(f.ctx, f.tenantID, tr.ID)
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))

	got, err := f.beds.GetBed(f.ctx, f.tenantID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BedStatusReserved, got.Status)
	require.NotNil(t, got.PatientID)
	assert.Equal(t, tr.PatientID, *got.PatientID)
}

func TestInvalidTransitions(t *testing.T) {
	f := setup(t)
	tr := f.create(t, model.TransferPriorityRoutine)

	_, err := f.svc.MarkInTransit(f.ctx, f.tenantID, tr.ID)
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))

	_, err = f.svc.Decline(f.ctx, f.tenantID, tr.ID, model.DeclineTransferRequest{})
	assert.Equal(t, apperrors.ErrInvalidInput, apperrors.CodeOf(err))

	declined, err := f.svc.Decline(f.ctx, f.tenantID, tr.ID, model.DeclineTransferRequest{Reason: "No ICU capacity"})
	require.NoError(t, err)
	assert.Equal(t, "No ICU capacity", *declined.DeclineReason)

	_, err = f.svc.Accept(f.ctx, f.tenantID, tr.ID, model.AcceptTransferRequest{AcceptingPhysician: "Dr. Chen"})
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))
	_, err = f.svc.Cancel(f.ctx, f.tenantID, tr.ID)
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))
}

func TestNeedsEscalation(t *testing.T) {
	f := setup(t)
	requested := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		priority model.TransferPriority
		waited   time.Duration
		want     bool
	}{
		{model.TransferPriorityCritical, 2 * time.Hour, false},
		{model.TransferPriorityCritical, 2*time.Hour + time.Minute, true},
		{model.TransferPriorityEmergent, 3 * time.Hour, false},
		{model.TransferPriorityEmergent, 5 * time.Hour, true},
		{model.TransferPriorityUrgent, 8*time.Hour + time.Second, true},
		{model.TransferPriorityRoutine, 23 * time.Hour, false},
		{model.TransferPriorityRoutine, 25 * time.Hour, true},
	}
	for _, tt := range tests {
		tr := &model.TransferRequest{Priority: tt.priority, Status: model.TransferStatusPending, RequestedAt: requested}
		assert.Equal(t, tt.want, f.svc.NeedsEscalation(tr, requested.Add(tt.waited)), "%s after %s", tt.priority, tt.waited)
	}

	accepted := &model.TransferRequest{Priority: model.TransferPriorityCritical, Status: model.TransferStatusAccepted, RequestedAt: requested}
	assert.False(t, f.svc.NeedsEscalation(accepted, requested.Add(48*time.Hour)))
}

func TestEscalateOverdue(t *testing.T) {
	f := setup(t)
	critical := f.create(t, model.TransferPriorityCritical)
	f.create(t, model.TransferPriorityRoutine)

	f.svc.now = func() time.Time { return critical.RequestedAt.Add(3 * time.Hour) }

	n, err := f.svc.EscalateOverdue(context.Background(), f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "transfer_center", f.notifier.sent[0].role)
	assert.Equal(t, model.PriorityCritical, f.notifier.sent[0].priority)

	got, err := f.svc.Get(f.ctx, f.tenantID, critical.ID)
	require.NoError(t, err)
	assert.True(t, got.Escalated)
	assert.NotNil(t, got.EscalatedAt)

	// already escalated transfers are not picked up again
	n, err = f.svc.EscalateOverdue(context.Background(), f.tenantID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetTransferMetrics(t *testing.T) {
	f := setup(t)
	tr := f.create(t, model.TransferPriorityUrgent)
	f.create(t, model.TransferPriorityRoutine)

	accepted := tr.RequestedAt.Add(30 * time.Minute)
	f.svc.now = func() time.Time { return accepted }
	_, err := f.svc.Accept(f.ctx, f.tenantID, tr.ID, model.AcceptTransferRequest{AcceptingPhysician: "Dr. Chen"})
	require.NoError(t, err)

	m, err := f.svc.GetTransferMetrics(f.ctx, f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Total)
	assert.Equal(t, 1, m.ByStatus[model.TransferStatusPending])
	assert.Equal(t, 1, m.ByStatus[model.TransferStatusAccepted])
	assert.InDelta(t, 30, m.AverageAcceptanceMinutes, 0.01)
}
