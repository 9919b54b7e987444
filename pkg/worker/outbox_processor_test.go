package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
	"github.com/jwalitptl/careops-api/pkg/messaging"
	redisbroker "github.com/jwalitptl/careops-api/pkg/messaging/redis"
	"github.com/jwalitptl/careops-api/pkg/metrics"
)

type fakeBatch struct {
	events    []*model.OutboxEvent
	processed []uuid.UUID
	failed    map[uuid.UUID]string
	committed bool
}

func (b *fakeBatch) Events() []*model.OutboxEvent { return b.events }

func (b *fakeBatch) MarkProcessed(_ context.Context, id uuid.UUID) error {
	b.processed = append(b.processed, id)
	return nil
}

func (b *fakeBatch) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	b.failed[id] = reason
	return nil
}

func (b *fakeBatch) Commit() error   { b.committed = true; return nil }
func (b *fakeBatch) Rollback() error { return nil }

type fakeOutboxRepo struct {
	batch   *fakeBatch
	deleted time.Time
}

func (r *fakeOutboxRepo) Create(context.Context, *model.OutboxEvent) error { return nil }

func (r *fakeOutboxRepo) LockPending(context.Context, int) (repository.OutboxBatch, error) {
	return r.batch, nil
}

func (r *fakeOutboxRepo) CountPending(context.Context) (int, error) { return 0, nil }

func (r *fakeOutboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.deleted = before
	return 3, nil
}

type flakyPublisher struct {
	mu       sync.Mutex
	failures map[string]int
	calls    []string
}

func (p *flakyPublisher) Publish(_ context.Context, channel string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg := message.(messaging.Message)
	p.calls = append(p.calls, channel)
	if p.failures[msg.Type] > 0 {
		p.failures[msg.Type]--
		return errors.New("broker unavailable")
	}
	return nil
}

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}
}

func newEvent(eventType string) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		EventType: eventType,
		Payload:   json.RawMessage(`{"ok":true}`),
	}
}

func TestNewOutboxProcessor_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 0
	_, err := NewOutboxProcessor(&fakeOutboxRepo{}, &flakyPublisher{}, cfg, nil, metrics.New("test"))
	assert.Error(t, err)
}

func TestProcessBatch_RetriesThenMarks(t *testing.T) {
	recovered := newEvent(model.EventTransferCreated)
	broken := newEvent(model.EventWelfareRequested)
	batch := &fakeBatch{events: []*model.OutboxEvent{recovered, broken}, failed: map[uuid.UUID]string{}}

	pub := &flakyPublisher{failures: map[string]int{
		model.EventTransferCreated:  2,
		model.EventWelfareRequested: 5,
	}}
	p, err := NewOutboxProcessor(&fakeOutboxRepo{batch: batch}, pub, testConfig(), nil, metrics.New("test"))
	require.NoError(t, err)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, []uuid.UUID{recovered.ID}, batch.processed)
	assert.Equal(t, "broker unavailable", batch.failed[broken.ID])
	assert.True(t, batch.committed)
	assert.Len(t, pub.calls, 6)
	assert.Equal(t, "events:"+recovered.TenantID.String(), pub.calls[0])
}

func TestProcessBatch_PublishesToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	broker := redisbroker.NewFromClient(client, nil)
	defer broker.Close()

	evt := newEvent(model.EventBedStatusChanged)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := broker.Subscribe(ctx, messaging.TenantChannel(EventChannelPrefix, evt.TenantID.String()))
	require.NoError(t, err)

	batch := &fakeBatch{events: []*model.OutboxEvent{evt}, failed: map[uuid.UUID]string{}}
	p, err := NewOutboxProcessor(&fakeOutboxRepo{batch: batch}, broker, testConfig(), nil, metrics.New("test"))
	require.NoError(t, err)

	_, err = p.ProcessBatch(ctx)
	require.NoError(t, err)

	select {
	case raw := <-sub:
		var msg struct {
			Type     string          `json:"type"`
			TenantID string          `json:"tenant_id"`
			Payload  json.RawMessage `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, model.EventBedStatusChanged, msg.Type)
		assert.Equal(t, evt.TenantID.String(), msg.TenantID)
		assert.JSONEq(t, `{"ok":true}`, string(msg.Payload))
	case <-ctx.Done():
		t.Fatal("event was not published")
	}
}

type fakeAuditRepo struct {
	before time.Time
}

func (r *fakeAuditRepo) Create(context.Context, *model.AuditLog) error { return nil }

func (r *fakeAuditRepo) List(context.Context, uuid.UUID, model.AuditFilter) ([]*model.AuditLog, error) {
	return nil, nil
}

func (r *fakeAuditRepo) Count(context.Context, uuid.UUID, model.AuditFilter) (int, error) {
	return 0, nil
}

func (r *fakeAuditRepo) Cleanup(_ context.Context, before time.Time) (int64, error) {
	r.before = before
	return 1, nil
}

func TestRetentionCleaner_Run(t *testing.T) {
	audit := &fakeAuditRepo{}
	outbox := &fakeOutboxRepo{}
	now := time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC)

	c := NewRetentionCleaner(audit, outbox, 30, 7*24*time.Hour, nil)
	c.now = func() time.Time { return now }
	c.Run(context.Background())

	assert.Equal(t, now.AddDate(0, 0, -30), audit.before)
	assert.Equal(t, now.Add(-7*24*time.Hour), outbox.deleted)
}
