package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
)

type transferRepo struct{ s *Store }

func (r transferRepo) Create(_ context.Context, t *model.TransferRequest, events ...*model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.RequestedAt.IsZero() {
		t.RequestedAt = now
	}
	cp := *t
	r.s.transfers[t.ID] = &cp
	r.s.record(events)
	return nil
}

func (r transferRepo) Get(_ context.Context, tenantID, id uuid.UUID) (*model.TransferRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transfers[id]
	if !ok || t.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r transferRepo) List(_ context.Context, tenantID uuid.UUID, f model.TransferFilter) ([]*model.TransferRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.TransferRequest
	for _, t := range r.s.transfers {
		if t.TenantID != tenantID ||
			(f.Status != "" && t.Status != f.Status) ||
			(f.Priority != "" && t.Priority != f.Priority) ||
			(f.Direction != "" && t.Direction != f.Direction) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (r transferRepo) Update(_ context.Context, t *model.TransferRequest, from model.TransferStatus, events ...*model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.transfers[t.ID]
	if !ok || cur.TenantID != t.TenantID || cur.Status != from {
		return repository.ErrStale
	}
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	r.s.transfers[t.ID] = &cp
	r.s.record(events)
	return nil
}

func (r transferRepo) ListUnescalatedPending(_ context.Context, tenantID uuid.UUID) ([]*model.TransferRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.TransferRequest
	for _, t := range r.s.transfers {
		if t.TenantID == tenantID && t.Status == model.TransferStatusPending && !t.Escalated {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

func (r transferRepo) Metrics(_ context.Context, tenantID uuid.UUID) (*model.TransferMetrics, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m := &model.TransferMetrics{ByStatus: make(map[model.TransferStatus]int)}
	var acceptedMinutes float64
	var accepted int
	for _, t := range r.s.transfers {
		if t.TenantID != tenantID {
			continue
		}
		m.Total++
		m.ByStatus[t.Status]++
		if t.Escalated {
			m.Escalated++
		}
		if t.AcceptedAt != nil {
			accepted++
			acceptedMinutes += t.AcceptedAt.Sub(t.RequestedAt).Minutes()
		}
	}
	if accepted > 0 {
		m.AverageAcceptanceMinutes = acceptedMinutes / float64(accepted)
	}
	return m, nil
}

type welfareRepo struct{ s *Store }

func (r welfareRepo) Create(_ context.Context, w *model.WelfareCheck, events ...*model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	now := time.Now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now
	if w.RequestedAt.IsZero() {
		w.RequestedAt = now
	}
	cp := *w
	r.s.welfare[w.ID] = &cp
	r.s.record(events)
	return nil
}

func (r welfareRepo) Get(_ context.Context, tenantID, id uuid.UUID) (*model.WelfareCheck, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.welfare[id]
	if !ok || w.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (r welfareRepo) List(_ context.Context, tenantID uuid.UUID, f model.WelfareFilter) ([]*model.WelfareCheck, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.WelfareCheck
	for _, w := range r.s.welfare {
		if w.TenantID != tenantID ||
			(f.Status != "" && w.Status != f.Status) ||
			(f.RiskLevel != "" && w.RiskLevel != f.RiskLevel) ||
			(f.OpenOnly && !w.Status.Open()) {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (r welfareRepo) Update(_ context.Context, w *model.WelfareCheck, from model.WelfareStatus, events ...*model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.welfare[w.ID]
	if !ok || cur.TenantID != w.TenantID || cur.Status != from {
		return repository.ErrStale
	}
	w.UpdatedAt = time.Now().UTC()
	cp := *w
	r.s.welfare[w.ID] = &cp
	r.s.record(events)
	return nil
}

func (r welfareRepo) CountOpen(_ context.Context, tenantID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, w := range r.s.welfare {
		if w.TenantID == tenantID && w.Status.Open() {
			n++
		}
	}
	return n, nil
}

type appointmentRepo struct{ s *Store }

func (r appointmentRepo) Create(_ context.Context, a *model.Appointment, events ...*model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	r.s.appointments[a.ID] = &cp
	r.s.record(events)
	return nil
}

func (r appointmentRepo) Get(_ context.Context, tenantID, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok || a.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r appointmentRepo) List(_ context.Context, tenantID uuid.UUID, f model.AppointmentFilter) ([]*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Appointment
	for _, a := range r.s.appointments {
		if a.TenantID != tenantID ||
			(f.ProviderID != nil && a.ProviderID != *f.ProviderID) ||
			(f.PatientID != nil && a.PatientID != *f.PatientID) ||
			(f.Status != "" && a.Status != f.Status) ||
			(f.From != nil && !a.EndTime.After(*f.From)) ||
			(f.To != nil && !a.StartTime.Before(*f.To)) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r appointmentRepo) Update(_ context.Context, a *model.Appointment, from model.AppointmentStatus, events ...*model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.appointments[a.ID]
	if !ok || cur.TenantID != a.TenantID || cur.Status != from {
		return repository.ErrStale
	}
	a.UpdatedAt = time.Now().UTC()
	cp := *a
	r.s.appointments[a.ID] = &cp
	r.s.record(events)
	return nil
}

func (r appointmentRepo) HasConflict(_ context.Context, tenantID, providerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := model.TimeSlot{Start: start, End: end}
	for _, a := range r.s.appointments {
		if a.TenantID != tenantID || a.ProviderID != providerID || !a.Status.Active() {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if want.Overlaps(model.TimeSlot{Start: a.StartTime, End: a.EndTime}) {
			return true, nil
		}
	}
	return false, nil
}

func (r appointmentRepo) ListProviderSchedules(_ context.Context, tenantID, providerID uuid.UUID, day time.Weekday) ([]*model.ProviderSchedule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ProviderSchedule
	for _, ps := range r.s.schedules {
		if ps.TenantID == tenantID && ps.ProviderID == providerID && ps.DayOfWeek == day {
			cp := *ps
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartMinute < out[j].StartMinute })
	return out, nil
}

func (r appointmentRepo) CountBetween(_ context.Context, tenantID uuid.UUID, from, to time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, a := range r.s.appointments {
		if a.TenantID == tenantID && a.Status.Active() && !a.StartTime.Before(from) && a.StartTime.Before(to) {
			n++
		}
	}
	return n, nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(_ context.Context, n *model.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	now := time.Now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now
	cp := *n
	r.s.notifications[n.ID] = &cp
	return nil
}

func (r notificationRepo) Update(_ context.Context, n *model.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.notifications[n.ID]
	if !ok || cur.TenantID != n.TenantID {
		return repository.ErrNotFound
	}
	n.UpdatedAt = time.Now().UTC()
	cp := *n
	cp.ReadAt = cur.ReadAt
	r.s.notifications[n.ID] = &cp
	return nil
}

func (r notificationRepo) Get(_ context.Context, tenantID, id uuid.UUID) (*model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok || n.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (r notificationRepo) ListDueRetries(_ context.Context, now time.Time, limit int) ([]*model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Notification
	for _, n := range r.s.notifications {
		if n.Status == model.NotificationStatusRetrying && n.NextRetryAt != nil && !n.NextRetryAt.After(now) {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRetryAt.Before(*out[j].NextRetryAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r notificationRepo) ListForUser(_ context.Context, tenantID, userID uuid.UUID, unreadOnly bool, limit int) ([]*model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Notification
	for _, n := range r.s.notifications {
		if n.TenantID != tenantID || n.UserID == nil || *n.UserID != userID {
			continue
		}
		if unreadOnly && n.ReadAt != nil {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r notificationRepo) MarkRead(_ context.Context, tenantID, id, userID uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok || n.TenantID != tenantID || n.UserID == nil || *n.UserID != userID {
		return repository.ErrNotFound
	}
	if n.ReadAt == nil {
		n.ReadAt = &at
	}
	return nil
}

type predictionRepo struct{ s *Store }

func (r predictionRepo) Create(_ context.Context, p *model.AIPrediction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now().UTC()
	cp := *p
	r.s.predictions[p.ID] = &cp
	return nil
}

func (r predictionRepo) Get(_ context.Context, tenantID, id uuid.UUID) (*model.AIPrediction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.predictions[id]
	if !ok || p.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r predictionRepo) RecordReview(_ context.Context, tenantID, id, reviewer uuid.UUID, outcome model.ReviewOutcome, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.predictions[id]
	if !ok || p.TenantID != tenantID {
		return repository.ErrNotFound
	}
	p.ReviewedBy = &reviewer
	p.ReviewOutcome = &outcome
	p.ReviewedAt = &at
	return nil
}

func (r predictionRepo) Accuracy(_ context.Context, tenantID uuid.UUID, skill string) (*model.SkillAccuracy, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	acc := &model.SkillAccuracy{Skill: skill}
	for _, p := range r.s.predictions {
		if p.TenantID != tenantID || p.Skill != skill || p.ReviewOutcome == nil {
			continue
		}
		acc.Reviewed++
		switch *p.ReviewOutcome {
		case model.ReviewAccepted:
			acc.Accepted++
		case model.ReviewModified:
			acc.Modified++
		case model.ReviewRejected:
			acc.Rejected++
		}
	}
	if acc.Reviewed > 0 {
		acc.Accuracy = float64(acc.Accepted) / float64(acc.Reviewed)
	}
	return acc, nil
}

type forecastRepo struct{ s *Store }

func (r forecastRepo) Create(_ context.Context, f *model.BedForecast, events ...*model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	f.CreatedAt = time.Now().UTC()
	cp := *f
	r.s.forecasts = append(r.s.forecasts, &cp)
	r.s.record(events)
	return nil
}

func (r forecastRepo) Latest(_ context.Context, tenantID uuid.UUID, horizonHours int) (*model.BedForecast, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := len(r.s.forecasts) - 1; i >= 0; i-- {
		f := r.s.forecasts[i]
		if f.TenantID == tenantID && f.HorizonHours == horizonHours {
			cp := *f
			cp.RequiresReview = true
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

type auditRepo struct{ s *Store }

func (r auditRepo) Create(_ context.Context, log *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	cp := *log
	r.s.audit = append(r.s.audit, &cp)
	return nil
}

func auditMatches(l *model.AuditLog, tenantID uuid.UUID, f model.AuditFilter) bool {
	return l.TenantID == tenantID &&
		(f.EntityType == "" || l.EntityType == f.EntityType) &&
		(f.EntityID == nil || l.EntityID == *f.EntityID) &&
		(f.ActorID == nil || l.ActorID == *f.ActorID) &&
		(f.From == nil || !l.CreatedAt.Before(*f.From)) &&
		(f.To == nil || !l.CreatedAt.After(*f.To))
}

// List returns newest first
func (r auditRepo) List(_ context.Context, tenantID uuid.UUID, f model.AuditFilter) ([]*model.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.AuditLog
	skipped := 0
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		l := r.s.audit[i]
		if !auditMatches(l, tenantID, f) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		cp := *l
		out = append(out, &cp)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (r auditRepo) Count(_ context.Context, tenantID uuid.UUID, f model.AuditFilter) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, l := range r.s.audit {
		if auditMatches(l, tenantID, f) {
			n++
		}
	}
	return n, nil
}

func (r auditRepo) Cleanup(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.audit[:0]
	var n int64
	for _, l := range r.s.audit {
		if l.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	r.s.audit = kept
	return n, nil
}
