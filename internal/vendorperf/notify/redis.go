package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannelPrefix 告警事件频道前缀，完整频道为 prefix:tenantID
const DefaultChannelPrefix = "vendorperf:alerts"

// RedisPublisher publishes alert events on a per-tenant Redis channel.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher 创建Redis发布器
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel 租户频道名
func (p *RedisPublisher) Channel(tenantID string) string {
	return p.prefix + ":" + tenantID
}

func (p *RedisPublisher) Publish(ctx context.Context, ev AlertEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal alert event: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(ev.TenantID), payload).Err(); err != nil {
		return fmt.Errorf("publish alert event %s: %w", ev.AlertID, err)
	}
	return nil
}

// Relay subscribes to every tenant channel and forwards the events into the
// hub, so that SSE clients of every instance see alerts created anywhere.
// It returns when ctx is cancelled.
func Relay(ctx context.Context, client *redis.Client, prefix string, hub *Hub, logger *zap.Logger) error {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	sub := client.PSubscribe(ctx, prefix+":*")
	defer sub.Close()

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", prefix, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev AlertEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn("drop malformed alert event",
					zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			if ev.TenantID == "" {
				ev.TenantID = strings.TrimPrefix(msg.Channel, prefix+":")
			}
			hub.Publish(ctx, ev)
		}
	}
}
