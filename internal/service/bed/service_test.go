package bed

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository/memory"
	"github.com/jwalitptl/careops-api/internal/service/audit"
	"github.com/jwalitptl/careops-api/internal/tenancy"
	apperrors "github.com/jwalitptl/careops-api/pkg/errors"
	"github.com/jwalitptl/careops-api/pkg/metrics"
)

type fixture struct {
	svc      *Service
	store    *memory.Store
	tenantID uuid.UUID
	unit     *model.Unit
	ctx      context.Context
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	m := metrics.New("test")
	tenantID := uuid.New()

	unit := &model.Unit{Name: "4 West", Code: "4W", Floor: 4, UnitType: model.UnitTypeMedSurg, TotalBeds: 2}
	unit.TenantID = tenantID
	store.AddUnit(unit)

	ctx := tenancy.WithIdentity(context.Background(), tenancy.Identity{
		TenantID: tenantID,
		UserID:   uuid.New(),
		Role:     "charge_nurse",
	})
	return &fixture{
		svc:      NewService(store.Units(), store.Beds(), audit.NewService(store.Audit(), nil), m),
		store:    store,
		tenantID: tenantID,
		unit:     unit,
		ctx:      ctx,
	}
}

func (f *fixture) bed(t *testing.T, number string) *model.Bed {
	t.Helper()
	b, err := f.svc.CreateBed(f.ctx, f.tenantID, model.CreateBedRequest{UnitID: f.unit.ID, BedNumber: number})
	require.NoError(t, err)
	return b
}

func TestCreateBed_Defaults(t *testing.T) {
	f := setup(t)

	b := f.bed(t, "401A")
	assert.Equal(t, model.BedStatusAvailable, b.Status)
	assert.Equal(t, model.BedTypeStandard, b.BedType)
	assert.Equal(t, f.tenantID, b.TenantID)
	require.Len(t, f.store.AuditLogs(), 1)
	assert.Equal(t, model.AuditActionCreate, f.store.AuditLogs()[0].Action)
}

func TestCreateBed_UnknownUnit(t *testing.T) {
	f := setup(t)

	_, err := f.svc.CreateBed(f.ctx, f.tenantID, model.CreateBedRequest{UnitID: uuid.New(), BedNumber: "1"})
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

func TestCreateBed_OtherTenantUnit(t *testing.T) {
	f := setup(t)

	_, err := f.svc.CreateBed(f.ctx, uuid.New(), model.CreateBedRequest{UnitID: f.unit.ID, BedNumber: "1"})
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

func TestCreateBed_MissingNumber(t *testing.T) {
	f := setup(t)

	_, err := f.svc.CreateBed(f.ctx, f.tenantID, model.CreateBedRequest{UnitID: f.unit.ID})
	assert.Equal(t, apperrors.ErrInvalidInput, apperrors.CodeOf(err))
}

func TestAssignAndRelease(t *testing.T) {
	f := setup(t)
	b := f.bed(t, "402")
	patientID := uuid.New()

	occupied, err := f.svc.AssignPatient(f.ctx, f.tenantID, b.ID, model.AssignPatientRequest{PatientID: patientID})
	require.NoError(t, err)
	assert.Equal(t, model.BedStatusOccupied, occupied.Status)
	require.NotNil(t, occupied.PatientID)
	assert.Equal(t, patientID, *occupied.PatientID)

	_, err = f.svc.AssignPatient(f.ctx, f.tenantID, b.ID, model.AssignPatientRequest{PatientID: uuid.New()})
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))

	released, err := f.svc.ReleaseBed(f.ctx, f.tenantID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BedStatusCleaning, released.Status)
	assert.Nil(t, released.PatientID)

	_, err = f.svc.ReleaseBed(f.ctx, f.tenantID, b.ID)
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))

	assert.Equal(t, []string{model.EventBedStatusChanged, model.EventBedStatusChanged}, f.store.EventTypes())
}

func TestReservedBedTakesOnlyItsPatient(t *testing.T) {
	f := setup(t)
	b := f.bed(t, "403")
	patientID := uuid.New()

	reserved, err := f.svc.ReserveBed(f.ctx, f.tenantID, b.ID, patientID)
	require.NoError(t, err)
	assert.Equal(t, model.BedStatusReserved, reserved.Status)

	_, err = f.svc.AssignPatient(f.ctx, f.tenantID, b.ID, model.AssignPatientRequest{PatientID: uuid.New()})
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))

	occupied, err := f.svc.AssignPatient(f.ctx, f.tenantID, b.ID, model.AssignPatientRequest{PatientID: patientID})
	require.NoError(t, err)
	assert.Equal(t, model.BedStatusOccupied, occupied.Status)
}

func TestUpdateBedStatus(t *testing.T) {
	f := setup(t)
	b := f.bed(t, "404")

	tests := []struct {
		name   string
		prep   func()
		status model.BedStatus
		code   apperrors.ErrorCode
	}{
		{name: "available to cleaning", status: model.BedStatusCleaning},
		{name: "cleaning to available", status: model.BedStatusAvailable},
		{name: "unknown status", status: "broken", code: apperrors.ErrInvalidInput},
		{name: "cannot occupy directly", status: model.BedStatusOccupied, code: apperrors.ErrConflict},
		{name: "cannot reserve directly", status: model.BedStatusReserved, code: apperrors.ErrConflict},
		{
			name: "occupied must be released",
			prep: func() {
				_, err := f.svc.AssignPatient(f.ctx, f.tenantID, b.ID, model.AssignPatientRequest{PatientID: uuid.New()})
				require.NoError(t, err)
			},
			status: model.BedStatusAvailable,
			code:   apperrors.ErrConflict,
		},
		{name: "occupied to maintenance", status: model.BedStatusMaintenance, code: apperrors.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.prep != nil {
				tt.prep()
			}
			got, err := f.svc.UpdateBedStatus(f.ctx, f.tenantID, b.ID, model.UpdateBedStatusRequest{Status: tt.status})
			if tt.code != "" {
				assert.Equal(t, tt.code, apperrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
		})
	}
}

func TestUpdateBedStatus_ReservedCannotBeBlocked(t *testing.T) {
	f := setup(t)
	b := f.bed(t, "405")
	_, err := f.svc.ReserveBed(f.ctx, f.tenantID, b.ID, uuid.New())
	require.NoError(t, err)

	_, err = f.svc.UpdateBedStatus(f.ctx, f.tenantID, b.ID, model.UpdateBedStatusRequest{Status: model.BedStatusBlocked})
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))
}

func TestGetCensus(t *testing.T) {
	f := setup(t)
	empty := &model.Unit{Name: "ICU", Code: "ICU", UnitType: model.UnitTypeICU}
	empty.TenantID = f.tenantID
	f.store.AddUnit(empty)

	a, b := f.bed(t, "1"), f.bed(t, "2")
	f.bed(t, "3")
	_, err := f.svc.AssignPatient(f.ctx, f.tenantID, a.ID, model.AssignPatientRequest{PatientID: uuid.New()})
	require.NoError(t, err)
	_, err = f.svc.UpdateBedStatus(f.ctx, f.tenantID, b.ID, model.UpdateBedStatusRequest{Status: model.BedStatusMaintenance})
	require.NoError(t, err)

	census, err := f.svc.GetCensus(f.ctx, f.tenantID)
	require.NoError(t, err)
	require.Len(t, census.Units, 2)

	var west, icu model.UnitCensus
	for _, u := range census.Units {
		if u.UnitID == f.unit.ID {
			west = u
		} else {
			icu = u
		}
	}
	assert.Equal(t, 3, west.Total)
	assert.Equal(t, 1, west.Occupied)
	assert.Equal(t, 1, west.Available)
	assert.Equal(t, 1, west.BlockedOrMaintenance)
	assert.InDelta(t, 1.0/3, west.OccupancyRate, 1e-9)
	assert.Equal(t, model.CapacityNormal, west.CapacityStatus)

	assert.Zero(t, icu.Total)
	assert.Zero(t, icu.OccupancyRate)
	assert.Equal(t, model.CapacityNormal, icu.CapacityStatus)

	assert.Equal(t, 3, census.Total.Total)
}

func TestCapacityFor(t *testing.T) {
	tests := []struct {
		rate float64
		want model.CapacityStatus
	}{
		{0, model.CapacityNormal},
		{0.70, model.CapacityNormal},
		{0.71, model.CapacityModerate},
		{0.85, model.CapacityModerate},
		{0.86, model.CapacityHigh},
		{0.95, model.CapacityHigh},
		{0.96, model.CapacityCritical},
		{1, model.CapacityCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CapacityFor(tt.rate), "rate %v", tt.rate)
	}
}

func TestGetBed_OtherTenant(t *testing.T) {
	f := setup(t)
	b := f.bed(t, "406")

	_, err := f.svc.GetBed(f.ctx, uuid.New(), b.ID)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

func TestCancelReservation(t *testing.T) {
	f := setup(t)
	b := f.bed(t, "407")
	patientID := uuid.New()
	_, err := f.svc.ReserveBed(f.ctx, f.tenantID, b.ID, patientID)
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelReservation(f.ctx, f.tenantID, b.ID, uuid.New()))
	got, err := f.svc.GetBed(f.ctx, f.tenantID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BedStatusReserved, got.Status)

	require.NoError(t, f.svc.CancelReservation(f.ctx, f.tenantID, b.ID, patientID))
	got, err = f.svc.GetBed(f.ctx, f.tenantID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BedStatusAvailable, got.Status)
	assert.Nil(t, got.PatientID)
}
