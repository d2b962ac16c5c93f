// cmd/push-gateway/main.go
package main

import (
	"context"

	"eshop/internal/pkg/bootstrap"
	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/mq"
	"eshop/internal/pkg/redis"
	"eshop/internal/service/push"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

const port = 8088

func main() {
	if err := bootstrap.Init(); err != nil {
		logger.Get().Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.Get()
	cfg := bootstrap.GetCurrentConfig()
	tracer := otel.Tracer(constants.PushGatewayService)
	// 节点 ID 同时作为会话归属与消费组
	nodeID := constants.PushGatewayService + "-" + uuid.New().String()[:8]

	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addrs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize redis client")
	}
	gateway := push.NewGateway(nodeID, push.NewHub(), push.NewRedisSessionStore(redisClient.GetClient()), tracer)

	producer := mq.NewProducer(cfg.Infra.Kafka.Brokers)
	failure := mq.NewFailureHandler(producer, cfg.Consumer.MaxRetries, cfg.Consumer.DelayLevels)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: constants.PushGatewayService,
		Port:        port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			gateway.RegisterRoutes(appCtx.Mux)
			// 每个节点独立的消费组，所有节点都能收到全部通知
			appCtx.Consume(constants.RefundNotificationTopic, nodeID, gateway.HandleRefundNotice, failure)
			appCtx.OnShutdown(func(ctx context.Context) {
				producer.Close()
				_ = redisClient.Close()
			})
		},
	})
}
