package service

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	mqttcommon "wisefido-health/internal/common/mqtt"
	"wisefido-health/internal/config"
	"wisefido-health/internal/consumer"
	"wisefido-health/internal/models"
	"wisefido-health/internal/publisher"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthService_MemoryBackend(t *testing.T) {
	os.Clearenv()
	os.Setenv("STORE_BACKEND", "memory")
	os.Setenv("ALERT_PUBLISHER", "none")
	os.Setenv("STREAM_ENABLED", "false")
	os.Setenv("SCHEDULE_TICK_SECONDS", "1")
	defer os.Clearenv()

	cfg, err := config.Load()
	require.NoError(t, err)

	svc, err := NewHealthService(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer svc.Stop()
	require.NotNil(t, svc.Monitor())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, svc.Start(ctx))
}

func TestHealthService_StreamToAlertEvents(t *testing.T) {
	mr := miniredis.RunT(t)

	os.Clearenv()
	os.Setenv("STORE_BACKEND", "memory")
	os.Setenv("REDIS_ADDR", mr.Addr())
	os.Setenv("ALERT_PUBLISHER", "redis")
	os.Setenv("STREAM_ENABLED", "true")
	defer os.Clearenv()

	cfg, err := config.Load()
	require.NoError(t, err)

	svc, err := NewHealthService(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer svc.Stop()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	payload, err := json.Marshal(map[string]interface{}{
		"patient_id":  "patient-1",
		"recorded_at": time.Now().UTC().Format(time.RFC3339),
		"systolic":    170,
	})
	require.NoError(t, err)
	require.NoError(t, client.XAdd(context.Background(), &redis.XAddArgs{
		Stream: cfg.Ingest.ReadingsStream,
		Values: map[string]interface{}{"data": string(payload)},
	}).Err())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, svc.Start(ctx))

	alerts, err := svc.Monitor().ListAlerts(context.Background(), "patient-1", models.AlertStatusActive)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)

	events, err := client.XRange(context.Background(), cfg.Events.Stream, "-", "+").Result()
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, publisher.EventAlertRaised, events[0].Values["type"])
}

func TestNewHealthService_RedisUnavailable(t *testing.T) {
	os.Clearenv()
	os.Setenv("STORE_BACKEND", "memory")
	os.Setenv("REDIS_ADDR", "127.0.0.1:1")
	defer os.Clearenv()

	cfg, err := config.Load()
	require.NoError(t, err)

	_, err = NewHealthService(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

type unsubscribeRecorder struct {
	topics []string
}

func (r *unsubscribeRecorder) Subscribe(string, byte, mqttcommon.MessageHandler) error {
	return nil
}

func (r *unsubscribeRecorder) Unsubscribe(topics ...string) error {
	r.topics = append(r.topics, topics...)
	return nil
}

func TestHealthService_StopUnsubscribesMQTT(t *testing.T) {
	sub := &unsubscribeRecorder{}
	svc := &HealthService{logger: zap.NewNop()}
	svc.mqttSub = consumer.NewMQTTConsumer(sub, "health/readings/+", 1, svc.handleReading, zap.NewNop())

	require.NoError(t, svc.Stop())
	assert.Equal(t, []string{"health/readings/+"}, sub.topics)
}
