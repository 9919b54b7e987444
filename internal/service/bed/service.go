package bed

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
	"github.com/jwalitptl/careops-api/internal/service"
	"github.com/jwalitptl/careops-api/internal/service/audit"
	"github.com/jwalitptl/careops-api/internal/tenancy"
	apperrors "github.com/jwalitptl/careops-api/pkg/errors"
	"github.com/jwalitptl/careops-api/pkg/event"
	"github.com/jwalitptl/careops-api/pkg/metrics"
	"github.com/jwalitptl/careops-api/pkg/validator"
)

// Capacity thresholds on occupancy rate
const (
	CriticalOccupancy = 0.95
	HighOccupancy     = 0.85
	ModerateOccupancy = 0.70
)

type Service struct {
	units   repository.UnitRepository
	beds    repository.BedRepository
	auditor *audit.Service
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(units repository.UnitRepository, beds repository.BedRepository, auditor *audit.Service, m *metrics.Metrics) *Service {
	return &Service{
		units:   units,
		beds:    beds,
		auditor: auditor,
		metrics: m,
		now:     time.Now,
	}
}

func (s *Service) ListUnits(ctx context.Context, tenantID uuid.UUID) ([]*model.Unit, error) {
	units, err := s.units.List(ctx, tenantID)
	return units, service.RepoError("unit", "list units", err)
}

func (s *Service) GetUnit(ctx context.Context, tenantID, id uuid.UUID) (*model.Unit, error) {
	unit, err := s.units.Get(ctx, tenantID, id)
	if err != nil {
		return nil, service.RepoError("unit", "get unit", err)
	}
	return unit, nil
}

func (s *Service) ListBeds(ctx context.Context, tenantID uuid.UUID, filter model.BedFilter) ([]*model.Bed, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.BadRequest("status has an unsupported value", nil)
	}
	if filter.BedType != "" && !filter.BedType.Valid() {
		return nil, apperrors.BadRequest("bed_type has an unsupported value", nil)
	}
	beds, err := s.beds.List(ctx, tenantID, filter)
	return beds, service.RepoError("bed", "list beds", err)
}

func (s *Service) GetBed(ctx context.Context, tenantID, id uuid.UUID) (*model.Bed, error) {
	bed, err := s.beds.Get(ctx, tenantID, id)
	if err != nil {
		return nil, service.RepoError("bed", "get bed", err)
	}
	return bed, nil
}

func (s *Service) CreateBed(ctx context.Context, tenantID uuid.UUID, req model.CreateBedRequest) (*model.Bed, error) {
	if err := validator.New().Validate(req); err != nil {
		return nil, err
	}
	if _, err := s.units.Get(ctx, tenantID, req.UnitID); err != nil {
		return nil, service.RepoError("unit", "get unit", err)
	}

	bed := &model.Bed{
		UnitID:           req.UnitID,
		BedNumber:        req.BedNumber,
		Status:           req.Status,
		BedType:          req.BedType,
		IsolationCapable: req.IsolationCapable,
		TelemetryCapable: req.TelemetryCapable,
		Notes:            req.Notes,
	}
	bed.TenantID = tenantID
	if bed.Status == "" {
		bed.Status = model.BedStatusAvailable
	}
	if bed.BedType == "" {
		bed.BedType = model.BedTypeStandard
	}
	if bed.Status == model.BedStatusOccupied || bed.Status == model.BedStatusReserved {
		return nil, apperrors.BadRequest("a new bed cannot start occupied or reserved", nil)
	}

	if err := s.beds.Create(ctx, bed); err != nil {
		return nil, service.RepoError("bed", "create bed", err)
	}
	s.auditor.Record(ctx, tenantID, model.AuditActionCreate, model.AuditEntityBed, bed.ID, nil)
	return bed, nil
}

// UpdateBedStatus covers housekeeping and facilities changes. Occupancy moves
// through AssignPatient, ReserveBed and ReleaseBed.
func (s *Service) UpdateBedStatus(ctx context.Context, tenantID, bedID uuid.UUID, req model.UpdateBedStatusRequest) (*model.Bed, error) {
	if err := validator.New().Validate(req); err != nil {
		return nil, err
	}
	if !req.Status.Valid() {
		return nil, apperrors.BadRequest("status has an unsupported value", nil)
	}

	bed, err := s.GetBed(ctx, tenantID, bedID)
	if err != nil {
		return nil, err
	}
	if bed.Status == req.Status && bed.Notes == req.Notes {
		return bed, nil
	}

	switch {
	case bed.Status == model.BedStatusOccupied && req.Status != model.BedStatusOccupied:
		return nil, apperrors.Conflict("an occupied bed must be released before its status changes")
	case req.Status == model.BedStatusOccupied && bed.Status != model.BedStatusOccupied:
		return nil, apperrors.Conflict("assign a patient to occupy a bed")
	case req.Status == model.BedStatusReserved && bed.Status != model.BedStatusReserved:
		return nil, apperrors.Conflict("beds are reserved through a transfer")
	case bed.PatientID != nil && holdsNoPatient(req.Status):
		return nil, apperrors.Conflict("bed is holding a patient")
	}

	from := bed.Status
	bed.Status = req.Status
	bed.Notes = req.Notes
	return bed, s.persist(ctx, bed, from)
}

// AssignPatient occupies an available bed, or a bed reserved for the same patient
func (s *Service) AssignPatient(ctx context.Context, tenantID, bedID uuid.UUID, req model.AssignPatientRequest) (*model.Bed, error) {
	if err := validator.New().Validate(req); err != nil {
		return nil, err
	}
	bed, err := s.GetBed(ctx, tenantID, bedID)
	if err != nil {
		return nil, err
	}

	switch bed.Status {
	case model.BedStatusAvailable:
	case model.BedStatusReserved:
		if bed.PatientID != nil && *bed.PatientID != req.PatientID {
			return nil, apperrors.Conflict("bed is reserved for another patient")
		}
	default:
		return nil, apperrors.Conflict("bed is " + string(bed.Status) + " and cannot take a patient")
	}

	from := bed.Status
	patientID := req.PatientID
	bed.Status = model.BedStatusOccupied
	bed.PatientID = &patientID
	bed.ExpectedDischargeAt = req.ExpectedDischargeAt
	return bed, s.persist(ctx, bed, from)
}

// ReserveBed holds an available bed for an incoming patient
func (s *Service) ReserveBed(ctx context.Context, tenantID, bedID, patientID uuid.UUID) (*model.Bed, error) {
	bed, err := s.GetBed(ctx, tenantID, bedID)
	if err != nil {
		return nil, err
	}
	if bed.Status != model.BedStatusAvailable {
		return nil, apperrors.Conflict("bed is " + string(bed.Status) + " and cannot be reserved")
	}

	bed.Status = model.BedStatusReserved
	bed.PatientID = &patientID
	return bed, s.persist(ctx, bed, model.BedStatusAvailable)
}

// CancelReservation frees a bed held for patientID. A bed no longer reserved
// for that patient is left untouched.
func (s *Service) CancelReservation(ctx context.Context, tenantID, bedID, patientID uuid.UUID) error {
	bed, err := s.GetBed(ctx, tenantID, bedID)
	if err != nil {
		return err
	}
	if bed.Status != model.BedStatusReserved || bed.PatientID == nil || *bed.PatientID != patientID {
		return nil
	}

	bed.Status = model.BedStatusAvailable
	bed.PatientID = nil
	return s.persist(ctx, bed, model.BedStatusReserved)
}

// RevertAssignment puts a bed occupied by patientID back to reserved for
// them. Any other bed state is left untouched.
func (s *Service) RevertAssignment(ctx context.Context, tenantID, bedID, patientID uuid.UUID) error {
	bed, err := s.GetBed(ctx, tenantID, bedID)
	if err != nil {
		return err
	}
	if bed.Status != model.BedStatusOccupied || bed.PatientID == nil || *bed.PatientID != patientID {
		return nil
	}

	bed.Status = model.BedStatusReserved
	bed.ExpectedDischargeAt = nil
	return s.persist(ctx, bed, model.BedStatusOccupied)
}

// ReleaseBed discharges the patient and sends the bed to cleaning
func (s *Service) ReleaseBed(ctx context.Context, tenantID, bedID uuid.UUID) (*model.Bed, error) {
	bed, err := s.GetBed(ctx, tenantID, bedID)
	if err != nil {
		return nil, err
	}
	if bed.Status != model.BedStatusOccupied {
		return nil, apperrors.Conflict("only an occupied bed can be released")
	}

	bed.Status = model.BedStatusCleaning
	bed.PatientID = nil
	bed.ExpectedDischargeAt = nil
	return bed, s.persist(ctx, bed, model.BedStatusOccupied)
}

func (s *Service) GetCensus(ctx context.Context, tenantID uuid.UUID) (*model.Census, error) {
	counts, err := s.beds.CountByStatus(ctx, tenantID)
	if err != nil {
		return nil, service.RepoError("bed", "count beds", err)
	}

	census := BuildCensus(counts)
	if s.metrics != nil {
		for _, u := range census.Units {
			s.metrics.BedOccupancy.WithLabelValues(tenantID.String(), u.UnitName).Set(u.OccupancyRate)
		}
	}
	return census, nil
}

// BuildCensus folds per unit status counts into unit and hospital totals
func BuildCensus(counts []model.BedStatusCount) *model.Census {
	census := &model.Census{Units: []model.UnitCensus{}}
	index := make(map[uuid.UUID]int)

	for _, c := range counts {
		i, ok := index[c.UnitID]
		if !ok {
			i = len(census.Units)
			index[c.UnitID] = i
			census.Units = append(census.Units, model.UnitCensus{UnitID: c.UnitID, UnitName: c.UnitName})
		}
		addCount(&census.Units[i], c.Status, c.Count)
		addCount(&census.Total, c.Status, c.Count)
	}

	for i := range census.Units {
		finalize(&census.Units[i])
	}
	census.Total.UnitName = "Hospital"
	finalize(&census.Total)
	return census
}

func addCount(u *model.UnitCensus, status model.BedStatus, n int) {
	if status == "" {
		return
	}
	u.Total += n
	switch status {
	case model.BedStatusOccupied:
		u.Occupied += n
	case model.BedStatusAvailable:
		u.Available += n
	case model.BedStatusCleaning:
		u.Cleaning += n
	case model.BedStatusReserved:
		u.Reserved += n
	case model.BedStatusBlocked, model.BedStatusMaintenance:
		u.BlockedOrMaintenance += n
	}
}

func finalize(u *model.UnitCensus) {
	if u.Total > 0 {
		u.OccupancyRate = float64(u.Occupied) / float64(u.Total)
	}
	u.CapacityStatus = CapacityFor(u.OccupancyRate)
}

// CapacityFor classifies an occupancy rate
func CapacityFor(rate float64) model.CapacityStatus {
	switch {
	case rate > CriticalOccupancy:
		return model.CapacityCritical
	case rate > HighOccupancy:
		return model.CapacityHigh
	case rate > ModerateOccupancy:
		return model.CapacityModerate
	default:
		return model.CapacityNormal
	}
}

func holdsNoPatient(s model.BedStatus) bool {
	return s == model.BedStatusAvailable || s == model.BedStatusMaintenance || s == model.BedStatusBlocked
}

func (s *Service) persist(ctx context.Context, bed *model.Bed, from model.BedStatus) error {
	actor := tenancy.Actor(ctx)
	evt, err := event.New(bed.TenantID, model.EventBedStatusChanged, model.BedStatusChange{
		BedID:     bed.ID,
		UnitID:    bed.UnitID,
		From:      from,
		To:        bed.Status,
		PatientID: bed.PatientID,
		ChangedBy: actor,
		ChangedAt: s.now().UTC(),
	})
	if err != nil {
		return apperrors.Internal(err)
	}

	if err := s.beds.UpdateStatus(ctx, bed, from, evt); err != nil {
		return service.RepoError("bed", "update bed", err)
	}

	s.auditor.Record(ctx, bed.TenantID, model.AuditActionStatus, model.AuditEntityBed, bed.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"from": from, "to": bed.Status},
	})
	return nil
}
