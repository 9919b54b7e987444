package welfare

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

// Screening thresholds
const (
	MissedAppointmentsAlone = 2
	MissedAppointments      = 3
	NoContactDays           = 14
)

type Notifier interface {
	NotifyRole(ctx context.Context, tenantID uuid.UUID, role string, priority model.NotificationPriority, category, subject, content string) error
}

type Service struct {
	repo       repository.WelfareCheckRepository
	notifier   Notifier
	auditor    *audit.Service
	notifyRole string
	logger     *logger.Logger
	now        func() time.Time
}

// NewService wires the welfare check workflow. notifyRole receives alerts for
// high and critical requests.
func NewService(repo repository.WelfareCheckRepository, notifier Notifier, auditor *audit.Service, notifyRole string, log *logger.Logger) *Service {
	if notifyRole == "" {
		notifyRole = "social_worker_on_call"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:       repo,
		notifier:   notifier,
		auditor:    auditor,
		notifyRole: notifyRole,
		logger:     log.With("welfare"),
		now:        time.Now,
	}
}

// NeedsWelfareCheck applies the screening rules in order of severity
func NeedsWelfareCheck(f model.RiskFactors) model.WelfareScreening {
	switch {
	case f.SuicidalIdeation:
		return model.WelfareScreening{Needed: true, Reason: model.WelfareReasonSuicideRisk, RiskLevel: model.RiskCritical}
	case f.Eloped:
		return model.WelfareScreening{Needed: true, Reason: model.WelfareReasonEloped, RiskLevel: model.RiskHigh}
	case f.LeftAMA && f.HighRiskMedications:
		return model.WelfareScreening{Needed: true, Reason: model.WelfareReasonLeftAMA, RiskLevel: model.RiskHigh}
	case f.MissedAppointments >= MissedAppointments,
		f.MissedAppointments >= MissedAppointmentsAlone && f.LivesAlone:
		return model.WelfareScreening{Needed: true, Reason: model.WelfareReasonMissedAppointments, RiskLevel: model.RiskModerate}
	case f.DaysSinceContact >= NoContactDays && f.LivesAlone:
		return model.WelfareScreening{Needed: true, Reason: model.WelfareReasonNoContact, RiskLevel: model.RiskModerate}
	default:
		return model.WelfareScreening{}
	}
}

func (s *Service) Screen(f model.RiskFactors) (model.WelfareScreening, error) {
	if err := validator.New().Validate(f); err != nil {
		return model.WelfareScreening{}, err
	}
	return NeedsWelfareCheck(f), nil
}

func (s *Service) Request(ctx context.Context, tenantID uuid.UUID, req model.CreateWelfareCheckRequest) (*model.WelfareCheck, error) {
	if err := validator.New().Validate(req); err != nil {
		return nil, err
	}

	w := &model.WelfareCheck{
		PatientID:        req.PatientID,
		PatientName:      req.PatientName,
		LastKnownAddress: req.LastKnownAddress,
		Phone:            req.Phone,
		Reason:           req.Reason,
		RiskLevel:        req.RiskLevel,
		Details:          req.Details,
		Status:           model.WelfareStatusRequested,
		RequestedBy:      tenancy.Actor(ctx),
		RequestedAt:      s.now().UTC(),
	}
	w.ID = uuid.New()
	w.TenantID = tenantID

	evt, err := event.New(tenantID, model.EventWelfareRequested, map[string]interface{}{
		"welfare_check_id": w.ID,
		"patient_id":       w.PatientID,
		"reason":           w.Reason,
		"risk_level":       w.RiskLevel,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.repo.Create(ctx, w, evt); err != nil {
		return nil, service.RepoError("welfare check", "create welfare check", err)
	}
	s.auditor.Record(ctx, tenantID, model.AuditActionCreate, model.AuditEntityWelfareCheck, w.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"reason": w.Reason, "risk_level": w.RiskLevel},
	})

	if w.RiskLevel.Elevated() && s.notifier != nil {
		priority := model.PriorityHigh
		if w.RiskLevel == model.RiskCritical {
			priority = model.PriorityCritical
		}
		subject := fmt.Sprintf("%s risk welfare check requested", w.RiskLevel)
		content := fmt.Sprintf("Welfare check for %s (%s): %s", w.PatientName, w.Reason, w.Details)
		if err := s.notifier.NotifyRole(ctx, tenantID, s.notifyRole, priority, "welfare_check", subject, content); err != nil {
			s.logger.Error(err, "failed to notify on-call social worker", "welfare_check_id", w.ID.String())
		}
	}
	return w, nil
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter model.WelfareFilter) ([]*model.WelfareCheck, error) {
	out, err := s.repo.List(ctx, tenantID, filter)
	return out, service.RepoError("welfare check", "list welfare checks", err)
}

func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*model.WelfareCheck, error) {
	w, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, service.RepoError("welfare check", "get welfare check", err)
	}
	return w, nil
}

func (s *Service) Dispatch(ctx context.Context, tenantID, id uuid.UUID, req model.DispatchWelfareCheckRequest) (*model.WelfareCheck, error) {
	if err := validator.New().Validate(req); err != nil {
		return nil, err
	}
	return s.transition(ctx, tenantID, id, model.WelfareStatusDispatched, func(w *model.WelfareCheck) {
		agency := req.AgencyName
		now := s.now().UTC()
		w.AgencyName = &agency
		if req.AgencyCaseNumber != "" {
			caseNumber := req.AgencyCaseNumber
			w.AgencyCaseNumber = &caseNumber
		}
		w.DispatchedAt = &now
	})
}

func (s *Service) MarkOnScene(ctx context.Context, tenantID, id uuid.UUID, req model.OnSceneRequest) (*model.WelfareCheck, error) {
	if err := validator.New().Validate(req); err != nil {
		return nil, err
	}
	return s.transition(ctx, tenantID, id, model.WelfareStatusOnScene, func(w *model.WelfareCheck) {
		officer := req.OfficerName
		w.OfficerName = &officer
	})
}

func (s *Service) Complete(ctx context.Context, tenantID, id uuid.UUID, req model.CompleteWelfareCheckRequest) (*model.WelfareCheck, error) {
	if err := validator.New().Validate(req); err != nil {
		return nil, err
	}
	return s.transition(ctx, tenantID, id, model.WelfareStatusCompleted, s.closeWith(req.Outcome))
}

func (s *Service) MarkUnableToLocate(ctx context.Context, tenantID, id uuid.UUID, req model.CompleteWelfareCheckRequest) (*model.WelfareCheck, error) {
	outcome := req.Outcome
	if outcome == "" {
		outcome = "patient could not be located"
	}
	return s.transition(ctx, tenantID, id, model.WelfareStatusUnableToLocate, s.closeWith(outcome))
}

func (s *Service) Cancel(ctx context.Context, tenantID, id uuid.UUID) (*model.WelfareCheck, error) {
	return s.transition(ctx, tenantID, id, model.WelfareStatusCancelled, func(w *model.WelfareCheck) {
		now := s.now().UTC()
		w.CompletedAt = &now
	})
}

func (s *Service) closeWith(outcome string) func(*model.WelfareCheck) {
	return func(w *model.WelfareCheck) {
		now := s.now().UTC()
		w.Outcome = &outcome
		w.CompletedAt = &now
	}
}

func (s *Service) transition(ctx context.Context, tenantID, id uuid.UUID, to model.WelfareStatus, mutate func(*model.WelfareCheck)) (*model.WelfareCheck, error) {
	w, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	from := w.Status
	if !from.CanTransition(to) {
		return nil, apperrors.Conflict(fmt.Sprintf("welfare check cannot move from %s to %s", from, to))
	}
	mutate(w)
	w.Status = to

	var actorID *uuid.UUID
	if actor := tenancy.Actor(ctx); actor != uuid.Nil {
		actorID = &actor
	}
	evt, err := event.New(tenantID, model.EventWelfareStatusChanged, event.StatusChange{
		EntityID: w.ID,
		From:     string(from),
		To:       string(to),
		ActorID:  actorID,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.repo.Update(ctx, w, from, evt); err != nil {
		return nil, service.RepoError("welfare check", "update welfare check", err)
	}

	s.auditor.Record(ctx, tenantID, model.AuditActionStatus, model.AuditEntityWelfareCheck, w.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"from": from, "to": to},
	})
	return w, nil
}
