// Package dashboard assembles the polled operations summary.
package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
	"github.com/jwalitptl/careops-api/internal/service"
	"github.com/jwalitptl/careops-api/pkg/logger"
)

const DefaultPollInterval = 30 * time.Second

type CensusReader interface {
	GetCensus(ctx context.Context, tenantID uuid.UUID) (*model.Census, error)
}

type Config struct {
	// CacheTTL defaults to PollInterval
	CacheTTL     time.Duration
	PollInterval time.Duration
}

type Service struct {
	census       CensusReader
	transfers    repository.TransferRepository
	welfare      repository.WelfareCheckRepository
	appointments repository.AppointmentRepository
	cache        *cache.Cache
	poll         time.Duration
	log          *logger.Logger
	now          func() time.Time
}

func NewService(census CensusReader, transfers repository.TransferRepository, welfare repository.WelfareCheckRepository,
	appointments repository.AppointmentRepository, config Config, log *logger.Logger) *Service {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = config.PollInterval
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		census:       census,
		transfers:    transfers,
		welfare:      welfare,
		appointments: appointments,
		cache:        cache.New(config.CacheTTL, 2*config.CacheTTL),
		poll:         config.PollInterval,
		log:          log.With("dashboard"),
		now:          time.Now,
	}
}

// Summary returns the tenant's overview, cached for one TTL
func (s *Service) Summary(ctx context.Context, tenantID uuid.UUID) (*model.DashboardSummary, error) {
	key := tenantID.String()
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.DashboardSummary), nil
	}

	census, err := s.census.GetCensus(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	metrics, err := s.transfers.Metrics(ctx, tenantID)
	if err != nil {
		return nil, service.RepoError("transfer", "transfer metrics", err)
	}
	open, err := s.welfare.CountOpen(ctx, tenantID)
	if err != nil {
		return nil, service.RepoError("welfare check", "count open welfare checks", err)
	}

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := s.appointments.CountBetween(ctx, tenantID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, service.RepoError("appointment", "count appointments", err)
	}

	byStatus := metrics.ByStatus
	if byStatus == nil {
		byStatus = map[model.TransferStatus]int{}
	}
	summary := &model.DashboardSummary{
		Census:              census,
		TransfersByStatus:   byStatus,
		EscalatedTransfers:  metrics.Escalated,
		OpenWelfareChecks:   open,
		AppointmentsToday:   today,
		GeneratedAt:         now.UTC(),
		PollIntervalSeconds: int(s.poll / time.Second),
		Labels:              model.Badges(labelValues(census, byStatus)...),
	}
	s.cache.SetDefault(key, summary)
	s.log.Debug("Dashboard summary rebuilt", "tenant_id", key)
	return summary, nil
}

var bedStatuses = []model.BedStatus{
	model.BedStatusAvailable, model.BedStatusOccupied, model.BedStatusCleaning,
	model.BedStatusReserved, model.BedStatusMaintenance, model.BedStatusBlocked,
}

func labelValues(census *model.Census, byStatus map[model.TransferStatus]int) []string {
	values := make([]string, 0, len(bedStatuses)+len(byStatus)+len(census.Units)+1)
	for _, st := range bedStatuses {
		values = append(values, string(st))
	}
	for st := range byStatus {
		values = append(values, string(st))
	}
	values = append(values, string(census.Total.CapacityStatus))
	for _, u := range census.Units {
		values = append(values, string(u.CapacityStatus))
	}
	return values
}

// Invalidate drops a tenant's cached summary
func (s *Service) Invalidate(tenantID uuid.UUID) {
	s.cache.Delete(tenantID.String())
}
