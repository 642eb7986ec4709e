package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqttcommon "wisefido-health/internal/common/mqtt"
	rediscommon "wisefido-health/internal/common/redis"
	"wisefido-health/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var received = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type collector struct {
	mu       sync.Mutex
	readings []*models.VitalReading
	err      error
}

func (c *collector) handle(_ context.Context, reading *models.VitalReading) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.readings = append(c.readings, reading)
	return nil
}

func TestParseReading(t *testing.T) {
	r, err := ParseReading([]byte(`{"patient_id":"p1","recorded_at":"2026-03-10T08:00:00Z","systolic":150,"diastolic":85}`), "", received)
	require.NoError(t, err)
	assert.Equal(t, "p1", r.PatientID)
	assert.Equal(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), r.RecordedAt)
	assert.Equal(t, 150.0, *r.Systolic)
	assert.Nil(t, r.HeartRate)

	r, err = ParseReading([]byte(`{"recorded_at":1773129600,"heart_rate":72}`), "p2", received)
	require.NoError(t, err)
	assert.Equal(t, "p2", r.PatientID)
	assert.Equal(t, time.Unix(1773129600, 0).UTC(), r.RecordedAt)

	r, err = ParseReading([]byte(`{"patient_id":"p1","glucose":90}`), "", received)
	require.NoError(t, err)
	assert.Equal(t, received, r.RecordedAt)

	_, err = ParseReading([]byte(`{not json`), "", received)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = ParseReading([]byte(`{"recorded_at":"yesterday"}`), "", received)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestPatientFromTopic(t *testing.T) {
	assert.Equal(t, "patient-1", patientFromTopic("health/readings/patient-1"))
	assert.Equal(t, "", patientFromTopic("health/readings/"))
	assert.Equal(t, "", patientFromTopic("readings"))
}

type fakeSubscriber struct {
	topic    string
	handler  mqttcommon.MessageHandler
	unsubbed []string
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, handler mqttcommon.MessageHandler) error {
	f.topic = topic
	f.handler = handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) error {
	f.unsubbed = append(f.unsubbed, topics...)
	return nil
}

func TestMQTTConsumer(t *testing.T) {
	sub := &fakeSubscriber{}
	col := &collector{}
	c := NewMQTTConsumer(sub, "health/readings/+", 1, col.handle, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.Start(ctx))
	require.NotNil(t, sub.handler)
	assert.Equal(t, "health/readings/+", sub.topic)

	require.NoError(t, sub.handler("health/readings/patient-7", []byte(`{"heart_rate":120}`)))
	require.Len(t, col.readings, 1)
	assert.Equal(t, "patient-7", col.readings[0].PatientID)

	// 非法报文丢弃，不返回错误
	assert.NoError(t, sub.handler("health/readings/patient-7", []byte(`garbage`)))

	col.err = &models.ValidationError{Field: "heart_rate", Reason: "must be positive"}
	assert.NoError(t, sub.handler("health/readings/patient-7", []byte(`{"heart_rate":-1}`)))

	col.err = errors.New("db down")
	assert.Error(t, sub.handler("health/readings/patient-7", []byte(`{"heart_rate":80}`)))

	require.NoError(t, c.Stop())
	assert.Equal(t, []string{"health/readings/+"}, sub.unsubbed)
}

func TestMQTTConsumer_RequiresTopic(t *testing.T) {
	c := NewMQTTConsumer(&fakeSubscriber{}, "", 1, (&collector{}).handle, zap.NewNop())
	assert.Error(t, c.Start(context.Background()))
}

func setupStream(t *testing.T) (*redis.Client, StreamConfig) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := StreamConfig{Stream: "health:readings", Group: "health-monitor-group", Consumer: "c1", BatchSize: 10, Block: 10 * time.Millisecond}
	require.NoError(t, rediscommon.CreateConsumerGroup(context.Background(), client, cfg.Stream, cfg.Group))
	return client, cfg
}

func TestStreamConsumer_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	client, cfg := setupStream(t)

	_, err := rediscommon.PublishJSONToStream(ctx, client, cfg.Stream, "reading", map[string]interface{}{
		"patient_id":  "p1",
		"recorded_at": "2026-03-10T08:00:00Z",
		"systolic":    150,
	})
	require.NoError(t, err)
	_, err = rediscommon.PublishToStream(ctx, client, cfg.Stream, map[string]interface{}{
		"patient_id":  "p2",
		"recorded_at": int64(1773129600),
		"heart_rate":  72.5,
	})
	require.NoError(t, err)
	_, err = rediscommon.PublishToStream(ctx, client, cfg.Stream, map[string]interface{}{
		"patient_id": "p3",
		"glucose":    "high",
	})
	require.NoError(t, err)

	col := &collector{}
	c := NewStreamConsumer(cfg, client, col.handle, zap.NewNop())

	acked, err := c.ConsumeOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, acked)

	require.Len(t, col.readings, 2)
	assert.Equal(t, "p1", col.readings[0].PatientID)
	assert.Equal(t, 150.0, *col.readings[0].Systolic)
	assert.Equal(t, "p2", col.readings[1].PatientID)
	assert.Equal(t, 72.5, *col.readings[1].HeartRate)
	assert.Equal(t, time.Unix(1773129600, 0).UTC(), col.readings[1].RecordedAt)

	pending, err := client.XPending(ctx, cfg.Stream, cfg.Group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

type flakyHandler struct {
	mu       sync.Mutex
	failures int
	calls    int
	ids      []string
}

func (h *flakyHandler) handle(_ context.Context, reading *models.VitalReading) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.ids = append(h.ids, reading.ReadingID)
	if h.failures > 0 {
		h.failures--
		return errors.New("db down")
	}
	return nil
}

func TestStreamConsumer_FailedMessageIsRetried(t *testing.T) {
	ctx := context.Background()
	client, cfg := setupStream(t)

	firstID, err := rediscommon.PublishJSONToStream(ctx, client, cfg.Stream, "reading", map[string]interface{}{"patient_id": "p1", "heart_rate": 80})
	require.NoError(t, err)

	h := &flakyHandler{failures: 1}
	c := NewStreamConsumer(cfg, client, h.handle, zap.NewNop())

	acked, err := c.ConsumeOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, acked)

	pending, err := client.XPending(ctx, cfg.Stream, cfg.Group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)

	// 新消息不会带出失败的消息
	_, err = rediscommon.PublishJSONToStream(ctx, client, cfg.Stream, "reading", map[string]interface{}{"patient_id": "p2", "heart_rate": 70})
	require.NoError(t, err)
	acked, err = c.ConsumeOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, acked)

	acked, err = c.RetryPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, acked)
	assert.Equal(t, 3, h.calls)

	// 重试得到同一个读数ID
	want := MessageReadingID(cfg.Stream, firstID)
	assert.Equal(t, want, h.ids[0])
	assert.Equal(t, want, h.ids[2])

	pending, err = client.XPending(ctx, cfg.Stream, cfg.Group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)

	acked, err = c.RetryPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, acked)
}

func TestStreamConsumer_StartRetriesPending(t *testing.T) {
	ctx := context.Background()
	client, cfg := setupStream(t)

	_, err := rediscommon.PublishJSONToStream(ctx, client, cfg.Stream, "reading", map[string]interface{}{"patient_id": "p1", "heart_rate": 80})
	require.NoError(t, err)

	h := &flakyHandler{failures: 1}
	c := NewStreamConsumer(cfg, client, h.handle, zap.NewNop())
	_, err = c.ConsumeOnce(ctx)
	require.NoError(t, err)

	runCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	require.NoError(t, c.Start(runCtx))

	pending, err := client.XPending(ctx, cfg.Stream, cfg.Group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
	assert.Equal(t, 2, h.calls)
}

type countingRunner struct {
	mu    sync.Mutex
	calls int
	days  int
	err   error
}

func (r *countingRunner) RunScheduleTick(_ context.Context, lookaheadDays int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.days = lookaheadDays
	return r.err
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestScheduleTicker(t *testing.T) {
	runner := &countingRunner{err: errors.New("transient")}
	ticker := NewScheduleTicker(runner, 5*time.Millisecond, 2, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, ticker.Start(ctx))

	assert.GreaterOrEqual(t, runner.count(), 2)
	assert.Equal(t, 2, runner.days)
}
