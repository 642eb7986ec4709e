package publisher

import (
	"context"
	"fmt"

	rediscommon "wisefido-health/internal/common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DefaultAlertEventsStream 默认事件流
const DefaultAlertEventsStream = "health:events:alerts"

// RedisStreamPublisher 发布事件到 Redis Streams
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewRedisStreamPublisher 创建 Redis Streams 发布器
func NewRedisStreamPublisher(client *redis.Client, stream string, logger *zap.Logger) *RedisStreamPublisher {
	if stream == "" {
		stream = DefaultAlertEventsStream
	}
	return &RedisStreamPublisher{
		client: client,
		stream: stream,
		logger: logger,
	}
}

// Publish 发布事件
// 消息格式：type=<eventType>, data=<Event json>, timestamp=<unix>
func (p *RedisStreamPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	id, err := rediscommon.PublishJSONToStream(ctx, p.client, p.stream, eventType, NewEvent(eventType, payload))
	if err != nil {
		return fmt.Errorf("failed to publish %s to stream %s: %w", eventType, p.stream, err)
	}
	p.logger.Debug("Published event",
		zap.String("stream", p.stream),
		zap.String("event_type", eventType),
		zap.String("message_id", id),
	)
	return nil
}

// Close Redis 客户端由调用方管理
func (p *RedisStreamPublisher) Close() error {
	return nil
}

var _ Publisher = (*RedisStreamPublisher)(nil)
