package repository

import (
	"context"
	"testing"
	"time"

	"wisefido-health/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingThresholdStore 统计回源次数
type countingThresholdStore struct {
	*MemoryThresholdStore
	gets int
}

func (s *countingThresholdStore) GetActive(ctx context.Context, patientID string, vitalType models.VitalType) (*models.Threshold, error) {
	s.gets++
	return s.MemoryThresholdStore.GetActive(ctx, patientID, vitalType)
}

func setupCachedThresholdStore(t *testing.T) (*miniredis.Miniredis, *countingThresholdStore, *CachedThresholdStore) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backing := &countingThresholdStore{MemoryThresholdStore: NewMemoryThresholdStore()}
	cached := NewCachedThresholdStore(backing, NewRedisKVStore(client), time.Minute, zap.NewNop())
	return mr, backing, cached
}

func TestCachedThresholdStore_CachesHitsAndMisses(t *testing.T) {
	mr, backing, cached := setupCachedThresholdStore(t)
	ctx := context.Background()

	// 未配置也缓存
	th, err := cached.GetActive(ctx, "patient-1", models.VitalGlucose)
	require.NoError(t, err)
	assert.Nil(t, th)
	th, err = cached.GetActive(ctx, "patient-1", models.VitalGlucose)
	require.NoError(t, err)
	assert.Nil(t, th)
	assert.Equal(t, 1, backing.gets)

	val, err := mr.Get("health:threshold:patient-1:Glucose")
	require.NoError(t, err)
	assert.Equal(t, "null", val)
	assert.Equal(t, time.Minute, mr.TTL("health:threshold:patient-1:Glucose"))
}

func TestCachedThresholdStore_SetActiveInvalidates(t *testing.T) {
	mr, backing, cached := setupCachedThresholdStore(t)
	ctx := context.Background()

	_, err := cached.GetActive(ctx, "patient-1", models.VitalGlucose)
	require.NoError(t, err)

	max := 180.0
	require.NoError(t, cached.SetActive(ctx, &models.Threshold{
		PatientID: "patient-1",
		VitalType: models.VitalGlucose,
		Max:       &max,
		SetBy:     "doctor-1",
	}))
	assert.False(t, mr.Exists("health:threshold:patient-1:Glucose"))

	th, err := cached.GetActive(ctx, "patient-1", models.VitalGlucose)
	require.NoError(t, err)
	require.NotNil(t, th)
	assert.Equal(t, 180.0, *th.Max)
	assert.Equal(t, 2, backing.gets)

	// 第二次读取命中缓存
	th, err = cached.GetActive(ctx, "patient-1", models.VitalGlucose)
	require.NoError(t, err)
	assert.Equal(t, 180.0, *th.Max)
	assert.Equal(t, 2, backing.gets)
}

func TestCachedThresholdStore_RedisDownFallsThrough(t *testing.T) {
	mr, backing, cached := setupCachedThresholdStore(t)
	mr.Close()

	th, err := cached.GetActive(context.Background(), "patient-1", models.VitalHeartRate)
	require.NoError(t, err)
	assert.Nil(t, th)
	assert.Equal(t, 1, backing.gets)
}
