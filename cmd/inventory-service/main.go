// cmd/inventory-service/main.go
package main

import (
	"context"

	"eshop/internal/pkg/bootstrap"
	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/ledger"
	"eshop/internal/pkg/lock"
	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/mq"
	"eshop/internal/pkg/persistence"
	"eshop/internal/pkg/redis"
	"eshop/internal/service/inventory/application"
	"eshop/internal/service/inventory/infrastructure"
	"eshop/internal/service/inventory/interfaces"

	"go.opentelemetry.io/otel"
)

const port = 8082

// main 组装根: 创建依赖并启动服务
func main() {
	if err := bootstrap.Init(); err != nil {
		logger.Get().Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.Get()
	cfg := bootstrap.GetCurrentConfig()
	tracer := otel.Tracer(constants.InventoryService)

	db, err := persistence.Open(cfg.Infra.MySQL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open mysql")
	}
	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addrs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize redis client")
	}
	locker, closeLocker, err := lock.New(cfg.Lock, redisClient, cfg.Infra.Zookeeper.Servers)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize locker")
	}
	cache, err := infrastructure.NewRedisStockCache(redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize stock cache")
	}

	service := application.NewInventoryService(
		infrastructure.NewGormStockRepository(db),
		cache,
		ledger.NewGormStore(db),
		locker,
		persistence.NewGormTransactor(db, cfg.Retry),
		cfg.Lock,
		tracer,
	)

	producer := mq.NewProducer(cfg.Infra.Kafka.Brokers)
	failure := mq.NewFailureHandler(producer, cfg.Consumer.MaxRetries, cfg.Consumer.DelayLevels)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: constants.InventoryService,
		Port:        port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			interfaces.NewInventoryHandler(service, tracer).RegisterRoutes(appCtx.Mux)
			appCtx.Consume(constants.ReleaseInventoryTopic, constants.InventoryService,
				interfaces.NewReleaseInventoryHandler(service).Handle, failure)

			appCtx.OnShutdown(func(ctx context.Context) {
				producer.Close()
				closeLocker()
				_ = redisClient.Close()
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			})
		},
	})
}
