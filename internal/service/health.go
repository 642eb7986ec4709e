package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"wisefido-health/internal/common/database"
	mqttcommon "wisefido-health/internal/common/mqtt"
	rediscommon "wisefido-health/internal/common/redis"
	"wisefido-health/internal/config"
	"wisefido-health/internal/consumer"
	"wisefido-health/internal/models"
	"wisefido-health/internal/portalapi"
	"wisefido-health/internal/publisher"
	"wisefido-health/internal/repository"
	"wisefido-health/internal/telemetry"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// HealthService 健康监测服务（整合各层）
type HealthService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client
	mqttSub     *consumer.MQTTConsumer
	publisher   publisher.Publisher
	telemetry   *telemetry.Provider
	monitor     *MonitorService
	logger      *zap.Logger
}

// NewHealthService 创建健康监测服务
func NewHealthService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*HealthService, error) {
	s := &HealthService{config: cfg, logger: logger}

	// 1. 规则
	r, err := cfg.LoadRules()
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	// 2. 指标
	if cfg.Telemetry.Enabled {
		provider, err := telemetry.InitProvider(ctx, telemetry.Config{
			ServiceName:    "wisefido-health",
			ServiceVersion: "1.0.0",
			Environment:    "production",
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		}, logger)
		if err != nil {
			logger.Warn("Service will continue without metrics export", zap.Error(err))
		} else {
			s.telemetry = provider
		}
	}
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	// 3. Redis
	if s.needsRedis() {
		s.redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, s.redisClient); err != nil {
			s.Stop()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
	}

	// 4. Repository 层
	stores, err := s.buildStores(ctx)
	if err != nil {
		s.Stop()
		return nil, err
	}

	// 5. 事件发布
	pub, err := s.buildPublisher()
	if err != nil {
		s.Stop()
		return nil, err
	}
	s.publisher = pub

	s.monitor = NewMonitorService(stores, r, pub, metrics, logger)

	logger.Info("Health service created",
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("publisher", cfg.Events.Publisher),
		zap.Duration("dose_grace_period", r.DoseGracePeriod),
	)
	return s, nil
}

func (s *HealthService) needsRedis() bool {
	cfg := s.config
	return cfg.Ingest.StreamEnabled ||
		cfg.Events.Publisher == config.PublisherRedis ||
		(cfg.ThresholdCacheTTL > 0 && cfg.StoreBackend != config.StoreBackendMemory)
}

// buildStores 按存储后端创建存储
func (s *HealthService) buildStores(ctx context.Context) (Stores, error) {
	cfg := s.config
	if cfg.StoreBackend == config.StoreBackendMemory {
		return Stores{
			Readings:    repository.NewMemoryReadingStore(),
			Thresholds:  repository.NewMemoryThresholdStore(),
			Medications: repository.NewMemoryMedicationStore(),
			Alerts:      repository.NewMemoryAlertStore(),
		}, nil
	}

	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return Stores{}, fmt.Errorf("failed to connect database: %w", err)
	}
	s.db = db
	if err := repository.EnsureSchema(ctx, db); err != nil {
		return Stores{}, fmt.Errorf("failed to ensure schema: %w", err)
	}

	stores := Stores{
		Readings:    repository.NewPostgresReadingStore(db, s.logger),
		Thresholds:  repository.NewPostgresThresholdStore(db, s.logger),
		Medications: repository.NewPostgresMedicationStore(db, s.logger),
		Alerts:      repository.NewPostgresAlertStore(db, s.logger),
	}

	if cfg.StoreBackend == config.StoreBackendPortal {
		portal := portalapi.NewClient(&cfg.Portal, s.logger)
		stores.Readings = portal
		stores.Thresholds = portal
	}

	if cfg.ThresholdCacheTTL > 0 && s.redisClient != nil {
		stores.Thresholds = repository.NewCachedThresholdStore(
			stores.Thresholds,
			repository.NewRedisKVStore(s.redisClient),
			cfg.ThresholdCacheTTL,
			s.logger,
		)
	}
	return stores, nil
}

// buildPublisher 按配置创建事件发布器
func (s *HealthService) buildPublisher() (publisher.Publisher, error) {
	switch s.config.Events.Publisher {
	case config.PublisherRedis:
		return publisher.NewRedisStreamPublisher(s.redisClient, s.config.Events.Stream, s.logger), nil
	case config.PublisherRabbitMQ:
		pub, err := publisher.NewRabbitMQPublisher(&s.config.RabbitMQ, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create rabbitmq publisher: %w", err)
		}
		return pub, nil
	default:
		return publisher.NoopPublisher{}, nil
	}
}

// Monitor 引擎门面
func (s *HealthService) Monitor() *MonitorService {
	return s.monitor
}

// handleReading 消费者回调
func (s *HealthService) handleReading(ctx context.Context, reading *models.VitalReading) error {
	_, err := s.monitor.ProcessReading(ctx, reading)
	return err
}

// Start 启动读数消费者和服药计划定时任务，阻塞直到 ctx 取消或任一组件失败
func (s *HealthService) Start(ctx context.Context) error {
	cfg := s.config
	s.logger.Info("Starting health service",
		zap.Bool("mqtt_enabled", cfg.Ingest.MQTTEnabled),
		zap.Bool("stream_enabled", cfg.Ingest.StreamEnabled),
	)

	runners := map[string]func(context.Context) error{}

	if cfg.Ingest.MQTTEnabled {
		mqttCfg := cfg.MQTT
		client, err := mqttcommon.NewClient(&mqttCfg, s.logger)
		if err != nil {
			return fmt.Errorf("failed to create mqtt client: %w", err)
		}
		s.mqttClient = client
		s.mqttSub = consumer.NewMQTTConsumer(client, cfg.Ingest.MQTTTopic, cfg.MQTT.QoS, s.handleReading, s.logger)
		runners["mqtt_consumer"] = s.mqttSub.Start
	}

	if cfg.Ingest.StreamEnabled {
		streamConsumer := consumer.NewStreamConsumer(consumer.StreamConfig{
			Stream:        cfg.Ingest.ReadingsStream,
			Group:         cfg.Ingest.ConsumerGroup,
			Consumer:      cfg.Ingest.ConsumerName,
			BatchSize:     cfg.Ingest.BatchSize,
			RetryInterval: cfg.Ingest.RetryInterval,
		}, s.redisClient, s.handleReading, s.logger)
		runners["stream_consumer"] = streamConsumer.Start
	}

	ticker := consumer.NewScheduleTicker(s.monitor, cfg.Schedule.TickInterval, cfg.Schedule.LookaheadDays, s.logger)
	runners["schedule_ticker"] = ticker.Start

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, len(runners))
	var wg sync.WaitGroup
	for name, run := range runners {
		wg.Add(1)
		go func(name string, run func(context.Context) error) {
			defer wg.Done()
			if err := run(ctx); err != nil {
				errChan <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}(name, run)
	}
	wg.Wait()
	close(errChan)

	return <-errChan
}

// Stop 停止服务
func (s *HealthService) Stop() error {
	s.logger.Info("Stopping health service")

	if s.mqttSub != nil {
		// 失败已在 MQTTConsumer 中记录，仍继续断开连接
		_ = s.mqttSub.Stop()
	}
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Error("Failed to close publisher", zap.Error(err))
		}
	}

	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(context.Background()); err != nil {
			s.logger.Error("Failed to shutdown telemetry", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Error("Failed to close database", zap.Error(err))
		}
	}

	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Error("Failed to close redis", zap.Error(err))
		}
	}

	return nil
}

var _ consumer.ScheduleRunner = (*MonitorService)(nil)
