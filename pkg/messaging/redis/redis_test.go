package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/careops-api/pkg/messaging"
)

func newTestBroker(t *testing.T) *RedisBroker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewFromClient(client, nil)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestRedisBrokerPublishSubscribe(t *testing.T) {
	b := newTestBroker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	channel := messaging.TenantChannel("notifications", "tenant-1")
	msgs, err := b.Subscribe(ctx, channel)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, channel, messaging.Message{
		Type:     "bed.status_changed",
		TenantID: "tenant-1",
		Payload:  map[string]string{"bed_id": "b1"},
	}))

	select {
	case raw := <-msgs:
		assert.Contains(t, string(raw), `"type":"bed.status_changed"`)
		assert.Contains(t, string(raw), `"bed_id":"b1"`)
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestRedisBrokerPing(t *testing.T) {
	b := newTestBroker(t)
	assert.NoError(t, b.Ping(context.Background()))
}

func TestNewRedisBrokerInvalidURL(t *testing.T) {
	_, err := NewRedisBroker(Config{URL: "not a url"}, nil)
	assert.Error(t, err)
}
