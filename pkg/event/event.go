package event

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/careops-api/internal/model"
)

// New builds an outbox event; it is persisted by the repository in the same
// transaction as the state change it describes.
func New(tenantID uuid.UUID, eventType string, payload interface{}) (*model.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &model.OutboxEvent{
		ID:        uuid.New(),
		TenantID:  tenantID,
		EventType: eventType,
		Payload:   data,
		Status:    string(model.OutboxStatusPending),
	}, nil
}

// StatusChange is the common payload of *.status_changed events
type StatusChange struct {
	EntityID uuid.UUID  `json:"entity_id"`
	From     string     `json:"from"`
	To       string     `json:"to"`
	ActorID  *uuid.UUID `json:"actor_id,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}
