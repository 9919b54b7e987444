package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
	"github.com/jwalitptl/careops-api/internal/service"
	"github.com/jwalitptl/careops-api/internal/tenancy"
	"github.com/jwalitptl/careops-api/pkg/event"
	"github.com/jwalitptl/careops-api/pkg/logger"
)

type Service struct {
	repo   repository.AuditRepository
	logger *logger.Logger
}

func NewService(repo repository.AuditRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, logger: log.With("audit")}
}

type LogOptions struct {
	// Before and After are diffed over Fields into a "changes" metadata entry
	Before   interface{}
	After    interface{}
	Fields   []string
	Metadata map[string]interface{}
}

// Log writes an audit entry for the actor carried by ctx
func (s *Service) Log(ctx context.Context, tenantID uuid.UUID, action, entityType string, entityID uuid.UUID, opts *LogOptions) error {
	metadata := map[string]interface{}{}
	if opts != nil {
		for k, v := range opts.Metadata {
			metadata[k] = v
		}
		if opts.Before != nil && opts.After != nil {
			if changes := event.Changes(opts.Before, opts.After, opts.Fields); len(changes) > 0 {
				metadata["changes"] = changes
			}
		}
	}

	raw, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	return s.repo.Create(ctx, &model.AuditLog{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ActorID:    tenancy.Actor(ctx),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   raw,
		CreatedAt:  time.Now().UTC(),
	})
}

// Record is Log for callers that must not fail once the state change is committed
func (s *Service) Record(ctx context.Context, tenantID uuid.UUID, action, entityType string, entityID uuid.UUID, opts *LogOptions) {
	if s == nil {
		return
	}
	if err := s.Log(ctx, tenantID, action, entityType, entityID, opts); err != nil {
		s.logger.Error(err, "failed to write audit log",
			"tenant_id", tenantID.String(),
			"entity_type", entityType,
			"entity_id", entityID.String(),
			"action", action)
	}
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter model.AuditFilter) ([]*model.AuditLog, error) {
	logs, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, service.RepoError("audit log", "list audit logs", err)
	}
	return logs, nil
}

// Page lists one page of matching entries and the total match count
func (s *Service) Page(ctx context.Context, tenantID uuid.UUID, filter model.AuditFilter, page model.Pagination) ([]*model.AuditLog, int, error) {
	page.Normalize()
	filter.Limit, filter.Offset = page.PageSize, page.Offset()
	logs, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, service.RepoError("audit log", "list audit logs", err)
	}
	total, err := s.repo.Count(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, service.RepoError("audit log", "count audit logs", err)
	}
	return logs, total, nil
}
