package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqttcommon "wisefido-health/internal/common/mqtt"
	"wisefido-health/internal/models"

	"go.uber.org/zap"
)

// Subscriber MQTT 订阅接口（由 common/mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTTConsumer 从 MQTT 接收体征读数
type MQTTConsumer struct {
	subscriber Subscriber
	topic      string
	qos        byte
	handler    ReadingHandler
	logger     *zap.Logger
	now        func() time.Time
}

// NewMQTTConsumer 创建 MQTT 读数消费者
func NewMQTTConsumer(subscriber Subscriber, topic string, qos byte, handler ReadingHandler, logger *zap.Logger) *MQTTConsumer {
	return &MQTTConsumer{
		subscriber: subscriber,
		topic:      topic,
		qos:        qos,
		handler:    handler,
		logger:     logger,
		now:        time.Now,
	}
}

// Start 订阅主题并阻塞直到 ctx 取消
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if c.topic == "" {
		return fmt.Errorf("readings MQTT topic not configured")
	}

	if err := c.subscriber.Subscribe(c.topic, c.qos, func(topic string, payload []byte) error {
		return c.handleMessage(ctx, topic, payload)
	}); err != nil {
		return fmt.Errorf("failed to subscribe to readings topic: %w", err)
	}

	c.logger.Info("MQTT consumer started", zap.String("topic", c.topic))

	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (c *MQTTConsumer) Stop() error {
	if c.topic != "" {
		if err := c.subscriber.Unsubscribe(c.topic); err != nil {
			c.logger.Error("Failed to unsubscribe", zap.Error(err))
			return err
		}
	}
	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 解析并处理一条读数
// 非法读数记录 Warn 后丢弃
func (c *MQTTConsumer) handleMessage(ctx context.Context, topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	reading, err := ParseReading(payload, patientFromTopic(topic), c.now())
	if err != nil {
		c.logger.Warn("Drop malformed reading", zap.String("topic", topic), zap.Error(err))
		return nil
	}

	if err := c.handler(ctx, reading); err != nil {
		if errors.Is(err, models.ErrValidation) {
			c.logger.Warn("Reading rejected",
				zap.String("patient_id", reading.PatientID),
				zap.Error(err),
			)
			return nil
		}
		return fmt.Errorf("failed to process reading: %w", err)
	}
	return nil
}
