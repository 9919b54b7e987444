package transfer

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
	"github.com/jwalitptl/careops-api/pkg/format"
	"github.com/jwalitptl/careops-api/pkg/logger"
	"github.com/jwalitptl/careops-api/pkg/metrics"
	"github.com/jwalitptl/careops-api/pkg/validator"
)

// BedReserver is the part of bed management a transfer drives
type BedReserver interface {
	ReserveBed(ctx context.Context, tenantID, bedID, patientID uuid.UUID) (*model.Bed, error)
	AssignPatient(ctx context.Context, tenantID, bedID uuid.UUID, req model.AssignPatientRequest) (*model.Bed, error)
	CancelReservation(ctx context.Context, tenantID, bedID, patientID uuid.UUID) error
	RevertAssignment(ctx context.Context, tenantID, bedID, patientID uuid.UUID) error
}

type Notifier interface {
	NotifyRole(ctx context.Context, tenantID uuid.UUID, role string, priority model.NotificationPriority, category, subject, content string) error
}

// Config holds the time a pending transfer may wait per priority before escalation
type Config struct {
	Critical time.Duration
	Emergent time.Duration
	Urgent   time.Duration
	Routine  time.Duration
	// NotifyRole receives escalation notices
	NotifyRole string
}

func DefaultConfig() Config {
	return Config{
		Critical:   2 * time.Hour,
		Emergent:   4 * time.Hour,
		Urgent:     8 * time.Hour,
		Routine:    24 * time.Hour,
		NotifyRole: "transfer_center",
	}
}

func (c Config) threshold(p model.TransferPriority) time.Duration {
	switch p {
	case model.TransferPriorityCritical:
		return c.Critical
	case model.TransferPriorityEmergent:
		return c.Emergent
	case model.TransferPriorityUrgent:
		return c.Urgent
	default:
		return c.Routine
	}
}

type Service struct {
	repo     repository.TransferRepository
	beds     BedReserver
	notifier Notifier
	auditor  *audit.Service
	config   Config
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(
	repo repository.TransferRepository,
	beds BedReserver,
	notifier Notifier,
	auditor *audit.Service,
	config Config,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	def := DefaultConfig()
	if config.Critical <= 0 {
		config.Critical = def.Critical
	}
	if config.Emergent <= 0 {
		config.Emergent = def.Emergent
	}
	if config.Urgent <= 0 {
		config.Urgent = def.Urgent
	}
	if config.Routine <= 0 {
		config.Routine = def.Routine
	}
	if config.NotifyRole == "" {
		config.NotifyRole = def.NotifyRole
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:     repo,
		beds:     beds,
		notifier: notifier,
		auditor:  auditor,
		config:   config,
		metrics:  m,
		logger:   log.With("transfer"),
		now:      time.Now,
	}
}

func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, req model.CreateTransferRequest) (*model.TransferRequest, error) {
	if err := validator.New().Validate(req); err != nil {
		return nil, err
	}

	t := &model.TransferRequest{
		PatientID:           req.PatientID,
		PatientName:         req.PatientName,
		Direction:           req.Direction,
		OriginFacility:      req.OriginFacility,
		DestinationFacility: req.DestinationFacility,
		RequestingPhysician: req.RequestingPhysician,
		Diagnosis:           req.Diagnosis,
		Reason:              req.Reason,
		Priority:            req.Priority,
		LevelOfCare:         req.LevelOfCare,
		TransportMode:       req.TransportMode,
		Status:              model.TransferStatusPending,
		RequestedAt:         s.now().UTC(),
	}
	t.ID = uuid.New()
	t.TenantID = tenantID

	evt, err := event.New(tenantID, model.EventTransferCreated, t)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.repo.Create(ctx, t, evt); err != nil {
		return nil, service.RepoError("transfer", "create transfer", err)
	}

	s.auditor.Record(ctx, tenantID, model.AuditActionCreate, model.AuditEntityTransfer, t.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"priority": t.Priority, "direction": t.Direction},
	})
	return t, nil
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter model.TransferFilter) ([]*model.TransferRequest, error) {
	out, err := s.repo.List(ctx, tenantID, filter)
	return out, service.RepoError("transfer", "list transfers", err)
}

func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*model.TransferRequest, error) {
	t, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, service.RepoError("transfer", "get transfer", err)
	}
	return t, nil
}

func (s *Service) Accept(ctx context.Context, tenantID, id uuid.UUID, req model.AcceptTransferRequest) (*model.TransferRequest, error) {
	if err := validator.New().Validate(req); err != nil {
		return nil, err
	}
	return s.transition(ctx, tenantID, id, model.TransferStatusAccepted, "", func(t *model.TransferRequest) error {
		physician := req.AcceptingPhysician
		now := s.now().UTC()
		t.AcceptingPhysician = &physician
		t.AcceptedAt = &now
		return nil
	}, nil)
}

func (s *Service) Decline(ctx context.Context, tenantID, id uuid.UUID, req model.DeclineTransferRequest) (*model.TransferRequest, error) {
	if err := validator.New().Validate(req); err != nil {
		return nil, err
	}
	return s.transition(ctx, tenantID, id, model.TransferStatusDeclined, req.Reason, func(t *model.TransferRequest) error {
		reason := req.Reason
		t.DeclineReason = &reason
		return nil
	}, nil)
}

// AssignBed reserves the bed for the transferring patient
func (s *Service) AssignBed(ctx context.Context, tenantID, id uuid.UUID, req model.AssignTransferBedRequest) (*model.TransferRequest, error) {
	if err := validator.New().Validate(req); err != nil {
		return nil, err
	}
	return s.transition(ctx, tenantID, id, model.TransferStatusBedAssigned, "", func(t *model.TransferRequest) error {
		if _, err := s.beds.ReserveBed(ctx, tenantID, req.BedID, t.PatientID); err != nil {
			return err
		}
		bedID := req.BedID
		t.AssignedBedID = &bedID
		return nil
	}, func(t *model.TransferRequest) error {
		return s.beds.CancelReservation(ctx, tenantID, req.BedID, t.PatientID)
	})
}

func (s *Service) MarkInTransit(ctx context.Context, tenantID, id uuid.UUID) (*model.TransferRequest, error) {
	return s.transition(ctx, tenantID, id, model.TransferStatusInTransit, "", nil, nil)
}

// Complete closes the transfer. An inbound patient takes the reserved bed.
func (s *Service) Complete(ctx context.Context, tenantID, id uuid.UUID) (*model.TransferRequest, error) {
	return s.transition(ctx, tenantID, id, model.TransferStatusCompleted, "", func(t *model.TransferRequest) error {
		if t.Direction == model.TransferInbound && t.AssignedBedID != nil {
			if _, err := s.beds.AssignPatient(ctx, tenantID, *t.AssignedBedID, model.AssignPatientRequest{PatientID: t.PatientID}); err != nil {
				return err
			}
		}
		now := s.now().UTC()
		t.CompletedAt = &now
		return nil
	}, func(t *model.TransferRequest) error {
		if t.Direction != model.TransferInbound || t.AssignedBedID == nil {
			return nil
		}
		return s.beds.RevertAssignment(ctx, tenantID, *t.AssignedBedID, t.PatientID)
	})
}

func (s *Service) Cancel(ctx context.Context, tenantID, id uuid.UUID) (*model.TransferRequest, error) {
	t, err := s.transition(ctx, tenantID, id, model.TransferStatusCancelled, "", nil, nil)
	if err != nil {
		return nil, err
	}
	if t.AssignedBedID != nil {
		if err := s.beds.CancelReservation(ctx, tenantID, *t.AssignedBedID, t.PatientID); err != nil {
			s.logger.Error(err, "failed to free reserved bed",
				"transfer_id", t.ID.String(),
				"bed_id", t.AssignedBedID.String())
		}
	}
	return t, nil
}

// NeedsEscalation reports a pending transfer that has waited past its priority threshold
func (s *Service) NeedsEscalation(t *model.TransferRequest, now time.Time) bool {
	if t.Status != model.TransferStatusPending || t.Escalated {
		return false
	}
	return now.Sub(t.RequestedAt) > s.config.threshold(t.Priority)
}

// EscalateOverdue flags overdue pending transfers and alerts the transfer center.
// It returns how many transfers were escalated.
func (s *Service) EscalateOverdue(ctx context.Context, tenantID uuid.UUID) (int, error) {
	pending, err := s.repo.ListUnescalatedPending(ctx, tenantID)
	if err != nil {
		return 0, service.RepoError("transfer", "list pending transfers", err)
	}

	now := s.now().UTC()
	escalated := 0
	for _, t := range pending {
		if !s.NeedsEscalation(t, now) {
			continue
		}
		waited := now.Sub(t.RequestedAt)
		t.Escalated = true
		t.EscalatedAt = &now

		evt, err := event.New(tenantID, model.EventTransferEscalated, map[string]interface{}{
			"transfer_id":    t.ID,
			"priority":       t.Priority,
			"waited_minutes": int(waited.Minutes()),
		})
		if err != nil {
			return escalated, apperrors.Internal(err)
		}
		if err := s.repo.Update(ctx, t, model.TransferStatusPending, evt); err != nil {
			// accepted or declined since the sweep started
			s.logger.Warn("skipping escalation", "transfer_id", t.ID.String(), "error", err.Error())
			continue
		}
		escalated++
		if s.metrics != nil {
			s.metrics.TransfersEscalated.Inc()
		}

		if s.notifier != nil {
			subject := fmt.Sprintf("%s transfer waiting %s", t.Priority, format.Duration(waited))
			content := fmt.Sprintf("Transfer of %s from %s was requested %s and is still pending.",
				t.PatientName, t.OriginFacility, format.Relative(t.RequestedAt, now))
			if err := s.notifier.NotifyRole(ctx, tenantID, s.config.NotifyRole, escalationPriority(t.Priority), "transfer_escalation", subject, content); err != nil {
				s.logger.Error(err, "failed to send escalation notice", "transfer_id", t.ID.String())
			}
		}
	}
	return escalated, nil
}

func (s *Service) GetTransferMetrics(ctx context.Context, tenantID uuid.UUID) (*model.TransferMetrics, error) {
	m, err := s.repo.Metrics(ctx, tenantID)
	if err != nil {
		return nil, service.RepoError("transfer", "transfer metrics", err)
	}
	return m, nil
}

// transition loads the transfer, checks the move is allowed, applies mutate and
// persists guarded on the loaded status.
// transition applies mutate, then writes the transfer. When the write fails,
// undo reverses whatever bed change mutate made.
func (s *Service) transition(ctx context.Context, tenantID, id uuid.UUID, to model.TransferStatus, reason string, mutate, undo func(*model.TransferRequest) error) (*model.TransferRequest, error) {
	t, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	from := t.Status
	if !from.CanTransition(to) {
		return nil, apperrors.Conflict(fmt.Sprintf("transfer cannot move from %s to %s", from, to))
	}

	if mutate != nil {
		if err := mutate(t); err != nil {
			return nil, err
		}
	}
	t.Status = to

	var actorID *uuid.UUID
	if actor := tenancy.Actor(ctx); actor != uuid.Nil {
		actorID = &actor
	}
	evt, err := event.New(tenantID, model.EventTransferStatusChanged, event.StatusChange{
		EntityID: t.ID,
		From:     string(from),
		To:       string(to),
		ActorID:  actorID,
		Reason:   reason,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.repo.Update(ctx, t, from, evt); err != nil {
		if undo != nil {
			if uerr := undo(t); uerr != nil {
				s.logger.Error(uerr, "failed to undo bed change",
					"transfer_id", t.ID.String(),
					"to", string(to))
			} else {
				s.logger.Warn("Bed change undone after failed transfer update",
					"transfer_id", t.ID.String(),
					"to", string(to))
			}
		}
		return nil, service.RepoError("transfer", "update transfer", err)
	}

	s.auditor.Record(ctx, tenantID, model.AuditActionStatus, model.AuditEntityTransfer, t.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"from": from, "to": to},
	})
	return t, nil
}

func escalationPriority(p model.TransferPriority) model.NotificationPriority {
	switch p {
	case model.TransferPriorityCritical, model.TransferPriorityEmergent:
		return model.PriorityCritical
	default:
		return model.PriorityHigh
	}
}
