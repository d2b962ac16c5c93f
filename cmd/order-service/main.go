// cmd/order-service/main.go
package main

import (
	"context"

	"eshop/internal/pkg/bootstrap"
	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/httpclient"
	"eshop/internal/pkg/ledger"
	"eshop/internal/pkg/lock"
	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/mq"
	"eshop/internal/pkg/outbox"
	"eshop/internal/pkg/persistence"
	"eshop/internal/pkg/redis"
	"eshop/internal/service/order/application"
	"eshop/internal/service/order/domain"
	"eshop/internal/service/order/infrastructure"
	"eshop/internal/service/order/infrastructure/adapter"
	"eshop/internal/service/order/interfaces"

	"go.opentelemetry.io/otel"
)

const port = 8081

// main 组装根: 创建并组装所有依赖项，然后启动应用
func main() {
	if err := bootstrap.Init(); err != nil {
		logger.Get().Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.Get()
	cfg := bootstrap.GetCurrentConfig()
	tracer := otel.Tracer(constants.OrderService)

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
	lackPolicy, err := domain.NewLackPolicy(cfg.Lack.Rule)
	if err != nil {
		log.Fatal().Err(err).Str("rule", cfg.Lack.Rule).Msg("invalid lack rule")
	}

	producer := mq.NewProducer(cfg.Infra.Kafka.Brokers)
	outboxStore := outbox.NewGormStore(db)
	coordinator := outbox.NewCoordinator(outboxStore, producer)
	failure := mq.NewFailureHandler(producer, cfg.Consumer.MaxRetries, cfg.Consumer.DelayLevels)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: constants.OrderService,
		Port:        port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			// 下游服务通过 nacos 发现
			client := httpclient.NewClient(tracer, appCtx.Nacos)

			service := application.NewAfterSaleService(application.Dependencies{
				Orders:      infrastructure.NewGormOrderRepository(db),
				AfterSales:  infrastructure.NewGormAfterSaleRepository(db),
				Ledger:      ledger.NewGormStore(db),
				Locker:      locker,
				Tx:          persistence.NewGormTransactor(db, cfg.Retry),
				Outbox:      coordinator,
				Fulfillment: adapter.NewFulfillHTTPAdapter(client),
				Payment:     adapter.NewPaymentHTTPAdapter(client),
				Coupon:      adapter.NewCouponHTTPAdapter(client),
				Catalog:     adapter.NewCatalogHTTPAdapter(client),
				Notifier:    adapter.NewNotificationKafkaAdapter(producer),
				LackPolicy:  lackPolicy,
				Tracer:      tracer,
			})

			interfaces.NewAfterSaleHandler(service, tracer).RegisterRoutes(appCtx.Mux)
			for topic, handle := range interfaces.NewSagaConsumers(service).Handlers() {
				appCtx.Consume(topic, constants.OrderService, handle, failure)
			}

			relay := outbox.NewRelay(outboxStore, producer, cfg.Outbox)
			checker := outbox.NewChecker(coordinator, outboxStore, cfg.Outbox)
			appCtx.Go("outbox-relay", relay.Run)
			appCtx.Go("outbox-checker", checker.Run)

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
