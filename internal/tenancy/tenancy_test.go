package tenancy

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIdentityRoundTrip(t *testing.T) {
	id := Identity{TenantID: uuid.New(), UserID: uuid.New(), Role: "charge_nurse"}
	ctx := WithIdentity(context.Background(), id)

	got, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, id, got)
	assert.Equal(t, id.UserID, Actor(ctx))
}

func TestActor_SystemContext(t *testing.T) {
	assert.Equal(t, uuid.Nil, Actor(context.Background()))
}
