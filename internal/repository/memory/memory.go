// Package memory holds map backed repositories used by service tests and local tooling.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
)

// Store is a single in-memory database shared by all repositories it returns
type Store struct {
	mu sync.Mutex

	tenants       []uuid.UUID
	units         map[uuid.UUID]*model.Unit
	beds          map[uuid.UUID]*model.Bed
	transfers     map[uuid.UUID]*model.TransferRequest
	welfare       map[uuid.UUID]*model.WelfareCheck
	appointments  map[uuid.UUID]*model.Appointment
	schedules     []*model.ProviderSchedule
	notifications map[uuid.UUID]*model.Notification
	predictions   map[uuid.UUID]*model.AIPrediction
	forecasts     []*model.BedForecast
	audit         []*model.AuditLog

	// Events collects every outbox event written alongside a state change
	Events []*model.OutboxEvent
}

func NewStore() *Store {
	return &Store{
		units:         make(map[uuid.UUID]*model.Unit),
		beds:          make(map[uuid.UUID]*model.Bed),
		transfers:     make(map[uuid.UUID]*model.TransferRequest),
		welfare:       make(map[uuid.UUID]*model.WelfareCheck),
		appointments:  make(map[uuid.UUID]*model.Appointment),
		notifications: make(map[uuid.UUID]*model.Notification),
		predictions:   make(map[uuid.UUID]*model.AIPrediction),
	}
}

func (s *Store) record(events []*model.OutboxEvent) {
	for _, e := range events {
		if e != nil {
			s.Events = append(s.Events, e)
		}
	}
}

// EventTypes lists recorded outbox event types in write order
func (s *Store) EventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.Events))
	for _, e := range s.Events {
		out = append(out, e.EventType)
	}
	return out
}

func (s *Store) AddTenant(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants = append(s.tenants, id)
}

func (s *Store) AddUnit(u *model.Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := *u
	s.units[u.ID] = &cp
}

func (s *Store) AddSchedule(ps *model.ProviderSchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ps.ID == uuid.Nil {
		ps.ID = uuid.New()
	}
	cp := *ps
	s.schedules = append(s.schedules, &cp)
}

func (s *Store) AuditLogs() []*model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.AuditLog(nil), s.audit...)
}

func (s *Store) Tenants() repository.TenantRepository             { return tenantRepo{s} }
func (s *Store) Units() repository.UnitRepository                 { return unitRepo{s} }
func (s *Store) Beds() repository.BedRepository                   { return bedRepo{s} }
func (s *Store) Transfers() repository.TransferRepository         { return transferRepo{s} }
func (s *Store) WelfareChecks() repository.WelfareCheckRepository { return welfareRepo{s} }
func (s *Store) Appointments() repository.AppointmentRepository   { return appointmentRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s} }
func (s *Store) Predictions() repository.PredictionRepository     { return predictionRepo{s} }
func (s *Store) Forecasts() repository.ForecastRepository         { return forecastRepo{s} }
func (s *Store) Audit() repository.AuditRepository                { return auditRepo{s} }

// Repositories exposes the store as a repository set. The store keeps no
// outbox table; events are recorded for EventTypes instead.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Tenants:       s.Tenants(),
		Units:         s.Units(),
		Beds:          s.Beds(),
		Transfers:     s.Transfers(),
		WelfareChecks: s.WelfareChecks(),
		Appointments:  s.Appointments(),
		Notifications: s.Notifications(),
		Predictions:   s.Predictions(),
		Forecasts:     s.Forecasts(),
		Audit:         s.Audit(),
	}
}

type tenantRepo struct{ s *Store }

func (r tenantRepo) ListActive(context.Context) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]uuid.UUID(nil), r.s.tenants...), nil
}

type unitRepo struct{ s *Store }

func (r unitRepo) List(_ context.Context, tenantID uuid.UUID) ([]*model.Unit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Unit
	for _, u := range r.s.units {
		if u.TenantID == tenantID {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r unitRepo) Get(_ context.Context, tenantID, id uuid.UUID) (*model.Unit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.units[id]
	if !ok || u.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type bedRepo struct{ s *Store }

func (r bedRepo) Create(_ context.Context, bed *model.Bed, events ...*model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if bed.ID == uuid.Nil {
		bed.ID = uuid.New()
	}
	now := time.Now().UTC()
	bed.CreatedAt, bed.UpdatedAt, bed.LastStatusChange = now, now, now
	cp := *bed
	r.s.beds[bed.ID] = &cp
	r.s.record(events)
	return nil
}

func (r bedRepo) Get(_ context.Context, tenantID, id uuid.UUID) (*model.Bed, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.beds[id]
	if !ok || b.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r bedRepo) List(_ context.Context, tenantID uuid.UUID, f model.BedFilter) ([]*model.Bed, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Bed
	for _, b := range r.s.beds {
		if b.TenantID != tenantID ||
			(f.UnitID != nil && b.UnitID != *f.UnitID) ||
			(f.Status != "" && b.Status != f.Status) ||
			(f.BedType != "" && b.BedType != f.BedType) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UnitID != out[j].UnitID {
			return out[i].UnitID.String() < out[j].UnitID.String()
		}
		return out[i].BedNumber < out[j].BedNumber
	})
	return out, nil
}

func (r bedRepo) UpdateStatus(_ context.Context, bed *model.Bed, from model.BedStatus, events ...*model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.beds[bed.ID]
	if !ok || cur.TenantID != bed.TenantID || cur.Status != from {
		return repository.ErrStale
	}
	bed.UpdatedAt = time.Now().UTC()
	bed.LastStatusChange = bed.UpdatedAt
	cp := *bed
	r.s.beds[bed.ID] = &cp
	r.s.record(events)
	return nil
}

func (r bedRepo) CountByStatus(_ context.Context, tenantID uuid.UUID) ([]model.BedStatusCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.BedStatusCount
	for _, u := range r.s.units {
		if u.TenantID != tenantID {
			continue
		}
		byStatus := make(map[model.BedStatus]int)
		for _, b := range r.s.beds {
			if b.TenantID == tenantID && b.UnitID == u.ID {
				byStatus[b.Status]++
			}
		}
		if len(byStatus) == 0 {
			// mirrors the LEFT JOIN row of an empty unit
			out = append(out, model.BedStatusCount{UnitID: u.ID, UnitName: u.Name})
			continue
		}
		for status, n := range byStatus {
			out = append(out, model.BedStatusCount{UnitID: u.ID, UnitName: u.Name, Status: status, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UnitName != out[j].UnitName {
			return out[i].UnitName < out[j].UnitName
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}
