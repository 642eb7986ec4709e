package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wisefido-health/internal/models"

	"go.uber.org/zap"
)

// noThreshold 缓存“未配置阈值”的占位值
const noThreshold = "null"

// CachedThresholdStore 带 KV 缓存的阈值存储
// 读：缓存命中直接返回（包括“未配置”），未命中回源并写缓存
// 写：回源写入后删除缓存键
// 缓存故障只记录日志，不影响结果
type CachedThresholdStore struct {
	next   ThresholdStore
	kv     KVStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedThresholdStore 创建带缓存的阈值存储
func NewCachedThresholdStore(next ThresholdStore, kv KVStore, ttl time.Duration, logger *zap.Logger) *CachedThresholdStore {
	return &CachedThresholdStore{
		next:   next,
		kv:     kv,
		ttl:    ttl,
		logger: logger,
	}
}

var _ ThresholdStore = (*CachedThresholdStore)(nil)

func thresholdCacheKey(patientID string, vitalType models.VitalType) string {
	return fmt.Sprintf("health:threshold:%s:%s", patientID, vitalType)
}

func (s *CachedThresholdStore) GetActive(ctx context.Context, patientID string, vitalType models.VitalType) (*models.Threshold, error) {
	key := thresholdCacheKey(patientID, vitalType)

	val, err := s.kv.Get(ctx, key)
	switch {
	case err == nil:
		if val == noThreshold {
			return nil, nil
		}
		var t models.Threshold
		if jsonErr := json.Unmarshal([]byte(val), &t); jsonErr == nil {
			return &t, nil
		}
		s.logger.Warn("Invalid cached threshold, reloading", zap.String("key", key))
	case errors.Is(err, ErrCacheMiss):
	default:
		s.logger.Warn("Threshold cache read failed", zap.String("key", key), zap.Error(err))
	}

	t, err := s.next.GetActive(ctx, patientID, vitalType)
	if err != nil {
		return nil, err
	}

	payload := noThreshold
	if t != nil {
		data, err := json.Marshal(t)
		if err != nil {
			return t, nil
		}
		payload = string(data)
	}
	if err := s.kv.Set(ctx, key, payload, s.ttl); err != nil {
		s.logger.Warn("Threshold cache write failed", zap.String("key", key), zap.Error(err))
	}
	return t, nil
}

func (s *CachedThresholdStore) SetActive(ctx context.Context, threshold *models.Threshold) error {
	if err := s.next.SetActive(ctx, threshold); err != nil {
		return err
	}
	key := thresholdCacheKey(threshold.PatientID, threshold.VitalType)
	if err := s.kv.Del(ctx, key); err != nil {
		s.logger.Warn("Threshold cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}
