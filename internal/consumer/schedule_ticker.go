package consumer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ScheduleRunner 服药计划定时任务
type ScheduleRunner interface {
	RunScheduleTick(ctx context.Context, lookaheadDays int) error
}

// ScheduleTicker 定时生成服药记录并扫描漏服
type ScheduleTicker struct {
	runner        ScheduleRunner
	interval      time.Duration
	lookaheadDays int
	logger        *zap.Logger
}

// NewScheduleTicker 创建定时任务
func NewScheduleTicker(runner ScheduleRunner, interval time.Duration, lookaheadDays int, logger *zap.Logger) *ScheduleTicker {
	if interval <= 0 {
		interval = time.Minute
	}
	if lookaheadDays < 0 {
		lookaheadDays = 0
	}
	return &ScheduleTicker{
		runner:        runner,
		interval:      interval,
		lookaheadDays: lookaheadDays,
		logger:        logger,
	}
}

// Start 立即执行一次，之后按间隔执行，直到 ctx 取消
func (t *ScheduleTicker) Start(ctx context.Context) error {
	t.logger.Info("Schedule ticker started",
		zap.Duration("interval", t.interval),
		zap.Int("lookahead_days", t.lookaheadDays),
	)

	t.RunOnce(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Schedule ticker stopped")
			return nil
		case <-ticker.C:
			t.RunOnce(ctx)
		}
	}
}

// RunOnce 执行一次，失败只记录日志
func (t *ScheduleTicker) RunOnce(ctx context.Context) {
	if err := t.runner.RunScheduleTick(ctx, t.lookaheadDays); err != nil {
		t.logger.Error("Schedule tick failed", zap.Error(err))
	}
}
