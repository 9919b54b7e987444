// Package tenancy carries the authenticated tenant and actor through a request context.
package tenancy

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

type Identity struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Role     string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Actor returns the acting user, uuid.Nil for system jobs
func Actor(ctx context.Context) uuid.UUID {
	id, _ := FromContext(ctx)
	return id.UserID
}
