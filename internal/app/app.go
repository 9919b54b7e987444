// Package app wires repositories and clients into the domain services.
package app

import (
	"go.uber.org/zap"

	"github.com/jwalitptl/careops-api/internal/config"
	"github.com/jwalitptl/careops-api/internal/email"
	appointmenth "github.com/jwalitptl/careops-api/internal/handler/appointment"
	audith "github.com/jwalitptl/careops-api/internal/handler/audit"
	bedh "github.com/jwalitptl/careops-api/internal/handler/bed"
	dashboardh "github.com/jwalitptl/careops-api/internal/handler/dashboard"
	notificationh "github.com/jwalitptl/careops-api/internal/handler/notification"
	optimizerh "github.com/jwalitptl/careops-api/internal/handler/optimizer"
	skillsh "github.com/jwalitptl/careops-api/internal/handler/skills"
	transferh "github.com/jwalitptl/careops-api/internal/handler/transfer"
	welfareh "github.com/jwalitptl/careops-api/internal/handler/welfare"
	"github.com/jwalitptl/careops-api/internal/repository"
	"github.com/jwalitptl/careops-api/internal/router"
	"github.com/jwalitptl/careops-api/internal/service/appointment"
	"github.com/jwalitptl/careops-api/internal/service/audit"
	"github.com/jwalitptl/careops-api/internal/service/bed"
	"github.com/jwalitptl/careops-api/internal/service/dashboard"
	"github.com/jwalitptl/careops-api/internal/service/notification"
	"github.com/jwalitptl/careops-api/internal/service/optimizer"
	"github.com/jwalitptl/careops-api/internal/service/skills"
	"github.com/jwalitptl/careops-api/internal/service/transfer"
	"github.com/jwalitptl/careops-api/internal/service/welfare"
	"github.com/jwalitptl/careops-api/pkg/logger"
	"github.com/jwalitptl/careops-api/pkg/messaging"
	"github.com/jwalitptl/careops-api/pkg/metrics"
)

// Deps are the collaborators built by a main. Nil clients disable the
// channels or modes that need them.
type Deps struct {
	Repos     *repository.Repositories
	Completer skills.Completer
	Remote    skills.RemoteInvoker
	Edge      notification.EdgeInvoker
	Email     email.Service
	Broker    messaging.Publisher
	Metrics   *metrics.Metrics
	Log       *logger.Logger
	Zap       *zap.Logger
}

type Services struct {
	Audit         *audit.Service
	Beds          *bed.Service
	Transfers     *transfer.Service
	Welfare       *welfare.Service
	Appointments  *appointment.Service
	Notifications *notification.Service
	Skills        *skills.Service
	Optimizer     *optimizer.Service
	Dashboard     *dashboard.Service
}

func NewServices(cfg *config.Config, d Deps) *Services {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Zap == nil {
		d.Zap = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New("careops")
	}
	r := d.Repos

	auditor := audit.NewService(r.Audit, d.Log)
	notifications := notification.NewService(r.Notifications, d.Email, d.Broker, d.Edge, notification.Config{
		MaxAttempts:  cfg.Notifications.MaxAttempts,
		RetryBackoff: cfg.Notifications.RetryBackoff,
	}, d.Metrics, d.Log)
	beds := bed.NewService(r.Units, r.Beds, auditor, d.Metrics)
	transfers := transfer.NewService(r.Transfers, beds, notifications, auditor, transfer.Config{
		Critical:   cfg.Transfer.EscalateCritical,
		Emergent:   cfg.Transfer.EscalateEmergent,
		Urgent:     cfg.Transfer.EscalateUrgent,
		Routine:    cfg.Transfer.EscalateRoutine,
		NotifyRole: cfg.Notifications.TransferCenterRole,
	}, d.Metrics, d.Log)
	skillSvc := skills.NewService(d.Completer, d.Remote, r.Predictions, skills.Config{
		Mode:             cfg.Skills.Mode,
		AccuracyTracking: cfg.Skills.AccuracyTracking,
		MaxTokens:        cfg.LLM.MaxTokens,
	}, d.Metrics, d.Zap)

	return &Services{
		Audit:         auditor,
		Beds:          beds,
		Transfers:     transfers,
		Welfare:       welfare.NewService(r.WelfareChecks, notifications, auditor, cfg.Notifications.SocialWorkerRole, d.Log),
		Appointments:  appointment.NewService(r.Appointments, notifications, auditor, d.Log),
		Notifications: notifications,
		Skills:        skillSvc,
		Optimizer:     optimizer.NewService(r.Beds, r.Transfers, r.Forecasts, skillSvc, d.Log),
		Dashboard: dashboard.NewService(beds, r.Transfers, r.WelfareChecks, r.Appointments, dashboard.Config{
			CacheTTL:     cfg.Dashboard.CacheTTL,
			PollInterval: cfg.Dashboard.PollInterval,
		}, d.Log),
	}
}

// Handlers returns the tenant scoped API handlers
func (s *Services) Handlers() []router.Handler {
	return []router.Handler{
		bedh.NewHandler(s.Beds),
		transferh.NewHandler(s.Transfers),
		welfareh.NewHandler(s.Welfare),
		appointmenth.NewHandler(s.Appointments),
		notificationh.NewHandler(s.Notifications),
		skillsh.NewHandler(s.Skills),
		optimizerh.NewHandler(s.Optimizer),
		dashboardh.NewHandler(s.Dashboard),
	}
}

// AuditHandler serves the role restricted audit trail
func (s *Services) AuditHandler() router.Handler {
	return audith.NewHandler(s.Audit)
}
