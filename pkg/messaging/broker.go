package messaging

import (
	"context"
	"fmt"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Publisher defines the interface for publishing messages
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

type Message struct {
	Type     string      `json:"type"`
	TenantID string      `json:"tenant_id"`
	Payload  interface{} `json:"payload"`
}

// TenantChannel scopes a channel per tenant, e.g. notifications:<tenant>
func TenantChannel(prefix, tenantID string) string {
	return fmt.Sprintf("%s:%s", prefix, tenantID)
}
