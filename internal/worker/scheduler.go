// Package worker runs the periodic jobs of the worker process.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
	"github.com/jwalitptl/careops-api/internal/tenancy"
	"github.com/jwalitptl/careops-api/pkg/logger"
)

// ForecastHorizonHours is the horizon of the scheduled capacity forecast
const ForecastHorizonHours = 24

// jobTimeout bounds one run of any job
const jobTimeout = 5 * time.Minute

type Forecaster interface {
	ForecastCapacity(ctx context.Context, tenantID uuid.UUID, req model.ForecastRequest) (*model.BedForecast, error)
}

type Escalator interface {
	EscalateOverdue(ctx context.Context, tenantID uuid.UUID) (int, error)
}

type Retrier interface {
	RetryDue(ctx context.Context, now time.Time) (int, error)
}

type Cleaner interface {
	Run(ctx context.Context)
}

type Schedule struct {
	Forecast          string
	Escalation        string
	NotificationRetry string
	Cleanup           string
}

type Jobs struct {
	Tenants    repository.TenantRepository
	Forecaster Forecaster
	Escalator  Escalator
	Retrier    Retrier
	Cleaner    Cleaner
}

// Scheduler runs Jobs on cron specs. Runs of the same job never overlap.
type Scheduler struct {
	cron   *cron.Cron
	jobs   Jobs
	logger *logger.Logger
	now    func() time.Time
}

func NewScheduler(schedule Schedule, jobs Jobs, log *logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.Nop()
	}
	s := &Scheduler{
		jobs:   jobs,
		logger: log.With("scheduler"),
		now:    time.Now,
	}
	s.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{s.logger}), cron.SkipIfStillRunning(cronLogger{s.logger})))

	entries := []struct {
		name string
		spec string
		run  func(context.Context)
		ok   bool
	}{
		{"forecast", schedule.Forecast, s.ForecastAll, jobs.Forecaster != nil && jobs.Tenants != nil},
		{"escalation", schedule.Escalation, s.EscalateAll, jobs.Escalator != nil && jobs.Tenants != nil},
		{"notification_retry", schedule.NotificationRetry, s.RetryNotifications, jobs.Retrier != nil},
		{"cleanup", schedule.Cleanup, s.Cleanup, jobs.Cleaner != nil},
	}
	for _, e := range entries {
		if e.spec == "" || !e.ok {
			continue
		}
		run := e.run
		jl := s.logger.WithFields(map[string]interface{}{"job": e.name})
		if _, err := s.cron.AddFunc(e.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			start := time.Now()
			run(ctx)
			jl.Debug("Job finished", "duration", time.Since(start).String())
		}); err != nil {
			return nil, fmt.Errorf("invalid %s schedule %q: %w", e.name, e.spec, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// forEachTenant runs fn under a system identity for every active tenant
func (s *Scheduler) forEachTenant(ctx context.Context, job string, fn func(ctx context.Context, tenantID uuid.UUID) error) {
	tenants, err := s.jobs.Tenants.ListActive(ctx)
	if err != nil {
		s.logger.Error(err, "Failed to list tenants", "job", job)
		return
	}
	for _, tenantID := range tenants {
		if ctx.Err() != nil {
			return
		}
		tctx := tenancy.WithIdentity(ctx, tenancy.Identity{TenantID: tenantID, Role: "system"})
		if err := fn(tctx, tenantID); err != nil {
			s.logger.Error(err, "Job failed for tenant", "job", job, "tenant_id", tenantID.String())
		}
	}
}

func (s *Scheduler) ForecastAll(ctx context.Context) {
	s.forEachTenant(ctx, "forecast", func(ctx context.Context, tenantID uuid.UUID) error {
		_, err := s.jobs.Forecaster.ForecastCapacity(ctx, tenantID, model.ForecastRequest{HorizonHours: ForecastHorizonHours})
		return err
	})
}

func (s *Scheduler) EscalateAll(ctx context.Context) {
	s.forEachTenant(ctx, "escalation", func(ctx context.Context, tenantID uuid.UUID) error {
		n, err := s.jobs.Escalator.EscalateOverdue(ctx, tenantID)
		if n > 0 {
			s.logger.Info("Escalated overdue transfers", "tenant_id", tenantID.String(), "count", n)
		}
		return err
	})
}

func (s *Scheduler) RetryNotifications(ctx context.Context) {
	n, err := s.jobs.Retrier.RetryDue(ctx, s.now())
	if err != nil {
		s.logger.Error(err, "Notification retry failed")
		return
	}
	if n > 0 {
		s.logger.Info("Redelivered notifications", "count", n)
	}
}

func (s *Scheduler) Cleanup(ctx context.Context) {
	s.jobs.Cleaner.Run(ctx)
}

// cronLogger adapts the zerolog wrapper to cron.Logger
type cronLogger struct {
	l *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(err, msg, keysAndValues...)
}
