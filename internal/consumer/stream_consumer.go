package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	rediscommon "wisefido-health/internal/common/redis"
	"wisefido-health/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamConfig Redis Streams 消费配置
type StreamConfig struct {
	Stream    string
	Group     string
	Consumer  string
	BatchSize int64
	Block     time.Duration
	// RetryInterval 重新处理 pending 消息的间隔
	RetryInterval time.Duration
}

// StreamConsumer 从 Redis Streams 读取体征读数
type StreamConsumer struct {
	cfg         StreamConfig
	redisClient *redis.Client
	handler     ReadingHandler
	logger      *zap.Logger
	now         func() time.Time
}

// NewStreamConsumer 创建 Streams 读数消费者
func NewStreamConsumer(cfg StreamConfig, redisClient *redis.Client, handler ReadingHandler, logger *zap.Logger) *StreamConsumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = 2 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 30 * time.Second
	}
	return &StreamConsumer{
		cfg:         cfg,
		redisClient: redisClient,
		handler:     handler,
		logger:      logger,
		now:         time.Now,
	}
}

// Start 创建消费者组并循环消费，直到 ctx 取消
func (c *StreamConsumer) Start(ctx context.Context) error {
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, c.cfg.Stream, c.cfg.Group); err != nil {
		return err
	}

	c.logger.Info("Stream consumer started",
		zap.String("stream", c.cfg.Stream),
		zap.String("consumer_group", c.cfg.Group),
		zap.String("consumer_name", c.cfg.Consumer),
	)

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second
	var lastRetry time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// 启动时及每隔 RetryInterval 先处理上次失败留下的消息
		if c.now().Sub(lastRetry) >= c.cfg.RetryInterval {
			if _, err := c.RetryPending(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("Failed to retry pending messages",
					zap.String("stream", c.cfg.Stream),
					zap.Error(err),
				)
			}
			lastRetry = c.now()
		}

		if _, err := c.ConsumeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to consume stream",
				zap.String("stream", c.cfg.Stream),
				zap.Error(err),
				zap.Duration("backoff", backoffDuration),
			)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoffDuration):
				backoffDuration *= 2
				if backoffDuration > maxBackoff {
					backoffDuration = maxBackoff
				}
			}
			continue
		}
		backoffDuration = time.Second
	}
}

// ConsumeOnce 读取一批新消息并处理，返回已确认的消息数
// 处理成功或读数非法的消息被确认；其他失败留在 pending 列表中，由 RetryPending 重新处理
func (c *StreamConsumer) ConsumeOnce(ctx context.Context) (int, error) {
	messages, err := rediscommon.ReadFromStream(ctx, c.redisClient, c.cfg.Stream, c.cfg.Group, c.cfg.Consumer, c.cfg.BatchSize, c.cfg.Block)
	if err != nil {
		return 0, fmt.Errorf("failed to read from stream %s: %w", c.cfg.Stream, err)
	}
	return c.handleBatch(ctx, messages)
}

// RetryPending 重新处理本消费者已投递但未确认的消息，返回已确认的消息数
func (c *StreamConsumer) RetryPending(ctx context.Context) (int, error) {
	messages, err := rediscommon.ReadPendingFromStream(ctx, c.redisClient, c.cfg.Stream, c.cfg.Group, c.cfg.Consumer, c.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to read pending from stream %s: %w", c.cfg.Stream, err)
	}
	if len(messages) > 0 {
		c.logger.Info("Retrying pending messages",
			zap.String("stream", c.cfg.Stream),
			zap.Int("count", len(messages)),
		)
	}
	return c.handleBatch(ctx, messages)
}

func (c *StreamConsumer) handleBatch(ctx context.Context, messages []rediscommon.StreamMessage) (int, error) {
	var ack []string
	for _, msg := range messages {
		if len(msg.Values) == 0 {
			// 消息已被 XTRIM/XDEL 删除
			ack = append(ack, msg.ID)
			continue
		}
		if err := c.processMessage(ctx, msg); err != nil {
			if errors.Is(err, models.ErrValidation) {
				c.logger.Warn("Drop invalid reading",
					zap.String("message_id", msg.ID),
					zap.Error(err),
				)
				ack = append(ack, msg.ID)
				continue
			}
			c.logger.Error("Failed to process message",
				zap.String("stream", c.cfg.Stream),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			continue
		}
		ack = append(ack, msg.ID)
	}

	if err := rediscommon.AckMessages(ctx, c.redisClient, c.cfg.Stream, c.cfg.Group, ack...); err != nil {
		return 0, fmt.Errorf("failed to ack messages: %w", err)
	}
	return len(ack), nil
}

// processMessage 处理单条消息
// 支持 data=<json>（PublishJSONToStream 格式）或直接以字段形式写入
func (c *StreamConsumer) processMessage(ctx context.Context, msg rediscommon.StreamMessage) error {
	var payload []byte
	if data, ok := msg.Values["data"].(string); ok {
		payload = []byte(data)
	} else {
		fields, err := flatFields(msg.Values)
		if err != nil {
			return err
		}
		payload = fields
	}

	reading, err := ParseReading(payload, "", c.now())
	if err != nil {
		return err
	}
	if reading.ReadingID == "" {
		// 重试时同一消息得到同一读数ID，存储按ID去重
		reading.ReadingID = MessageReadingID(c.cfg.Stream, msg.ID)
	}
	return c.handler(ctx, reading)
}

// MessageReadingID 由 stream 消息ID派生的读数ID
func MessageReadingID(stream, messageID string) string {
	return stream + ":" + messageID
}

// flatFields 将字符串字段转为 JSON（数值字段按数字解析）
func flatFields(values map[string]interface{}) ([]byte, error) {
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		s, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		switch k {
		case "systolic", "diastolic", "heart_rate", "glucose", "temperature":
			var f float64
			if err := json.Unmarshal([]byte(s), &f); err != nil {
				return nil, &models.ValidationError{Field: k, Reason: fmt.Sprintf("not a number: %q", s)}
			}
			out[k] = f
		case "recorded_at":
			out[k] = json.RawMessage(quoteIfNeeded(s))
		default:
			out[k] = s
		}
	}
	return json.Marshal(out)
}

// quoteIfNeeded unix 秒保持数字，其余按字符串
func quoteIfNeeded(s string) string {
	var n int64
	if err := json.Unmarshal([]byte(s), &n); err == nil {
		return s
	}
	b, _ := json.Marshal(s)
	return string(b)
}
