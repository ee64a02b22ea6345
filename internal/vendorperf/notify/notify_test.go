package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func sampleEvent() AlertEvent {
	cat := entity.MetricQuality
	return EventFromAlert(&entity.PerformanceAlert{
		ID:             "alert-001",
		TenantID:       "tenant-a",
		VendorID:       "vendor-1",
		AlertType:      entity.AlertTypeThresholdBreach,
		Severity:       entity.SeverityCritical,
		MetricCategory: &cat,
		Message:        "Quality acceptance 65.0% is below 70%",
		CreatedAt:      time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	})
}

func TestRedisPublisher_PublishesOnTenantChannel(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()

	pub := NewRedisPublisher(client, "")
	sub := client.Subscribe(ctx, pub.Channel("tenant-a"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, sampleEvent()))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "vendorperf:alerts:tenant-a", msg.Channel)

	var got AlertEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "alert-001", got.AlertID)
	assert.Equal(t, entity.SeverityCritical, got.Severity)
	assert.Equal(t, entity.MetricQuality, *got.MetricCategory)
}

func TestRedisPublisher_ServerDown(t *testing.T) {
	mr, client := newRedis(t)
	mr.Close()

	err := NewRedisPublisher(client, "").Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alert-001")
}

func TestHub_DeliversToTenantOnly(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a := &Client{ID: "c1", TenantID: "tenant-a", Events: make(chan Event, 1)}
	b := &Client{ID: "c2", TenantID: "tenant-b", Events: make(chan Event, 1)}
	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 2, hub.ClientCount())

	require.NoError(t, hub.Publish(context.Background(), sampleEvent()))

	select {
	case ev := <-a.Events:
		assert.Equal(t, "alert_created", ev.EventType)
		assert.Contains(t, ev.Data, "alert-001")
	default:
		t.Fatal("tenant-a client got no event")
	}
	assert.Len(t, b.Events, 0)

	hub.Unregister("c1")
	hub.Unregister("c2")
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	c := &Client{ID: "c1", TenantID: "tenant-a", Events: make(chan Event, 1)}
	hub.Register(c)

	require.NoError(t, hub.Publish(context.Background(), sampleEvent()))
	require.NoError(t, hub.Publish(context.Background(), sampleEvent()))
	assert.Len(t, c.Events, 1)
}

func TestRelay_ForwardsRedisEventsToHub(t *testing.T) {
	_, client := newRedis(t)
	hub := NewHub(zap.NewNop())
	c := &Client{ID: "c1", TenantID: "tenant-a", Events: make(chan Event, 4)}
	hub.Register(c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Relay(ctx, client, "", hub, zap.NewNop()) }()

	pub := NewRedisPublisher(client, "")
	require.Eventually(t, func() bool {
		n, err := client.PubSubNumPat(context.Background()).Result()
		return err == nil && n > 0
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, pub.Publish(context.Background(), sampleEvent()))

	select {
	case ev := <-c.Events:
		assert.Contains(t, ev.Data, "alert-001")
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not forward the event")
	}

	cancel()
	require.NoError(t, <-done)
}

type failing struct{ calls int }

func (f *failing) Publish(context.Context, AlertEvent) error {
	f.calls++
	return errors.New("sink down")
}

func TestMulti_TriesEverySink(t *testing.T) {
	first, second := &failing{}, &failing{}
	hub := NewHub(nil)
	c := &Client{ID: "c1", TenantID: "tenant-a", Events: make(chan Event, 1)}
	hub.Register(c)

	err := Multi{first, hub, second}.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Len(t, c.Events, 1)

	require.NoError(t, Nop{}.Publish(context.Background(), sampleEvent()))
}
