package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository/memory"
	"github.com/jwalitptl/careops-api/internal/tenancy"
)

func TestLog_RecordsActorAndChanges(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Audit(), nil)

	tenantID, actorID, bedID := uuid.New(), uuid.New(), uuid.New()
	ctx := tenancy.WithIdentity(context.Background(), tenancy.Identity{TenantID: tenantID, UserID: actorID})

	before := model.Bed{Status: model.BedStatusOccupied}
	after := model.Bed{Status: model.BedStatusCleaning}

	err := svc.Log(ctx, tenantID, model.AuditActionStatus, model.AuditEntityBed, bedID, &LogOptions{
		Before:   before,
		After:    after,
		Fields:   []string{"status"},
		Metadata: map[string]interface{}{"source": "release"},
	})
	require.NoError(t, err)

	logs := store.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, actorID, logs[0].ActorID)
	assert.Equal(t, bedID, logs[0].EntityID)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(logs[0].Metadata, &meta))
	assert.Equal(t, "release", meta["source"])
	assert.Contains(t, meta, "changes")
}

func TestRecord_NilServiceIsNoop(t *testing.T) {
	var svc *Service
	assert.NotPanics(t, func() {
		svc.Record(context.Background(), uuid.New(), "x", "y", uuid.New(), nil)
	})
}

func TestPage(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Audit(), nil)
	tenantID := uuid.New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Log(ctx, tenantID, model.AuditActionCreate, model.AuditEntityBed, uuid.New(), nil))
	}
	require.NoError(t, svc.Log(ctx, uuid.New(), model.AuditActionCreate, model.AuditEntityBed, uuid.New(), nil))

	logs, total, err := svc.Page(ctx, tenantID, model.AuditFilter{}, model.Pagination{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, logs, 2)

	logs, _, err = svc.Page(ctx, tenantID, model.AuditFilter{}, model.Pagination{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
