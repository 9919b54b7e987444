package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	TenantID   uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	ActorID    uuid.UUID       `json:"actor_id" db:"actor_id"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	Metadata   json.RawMessage `json:"metadata" db:"metadata"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionStatus = "status_change"
	AuditActionReview = "review"

	// Entity types
	AuditEntityBed          = "bed"
	AuditEntityTransfer     = "transfer"
	AuditEntityWelfareCheck = "welfare_check"
	AuditEntityAppointment  = "appointment"
	AuditEntityPrediction   = "ai_prediction"
)

type AuditFilter struct {
	EntityType string
	EntityID   *uuid.UUID
	ActorID    *uuid.UUID
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}
