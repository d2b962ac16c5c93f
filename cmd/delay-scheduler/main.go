// cmd/delay-scheduler/main.go
package main

import (
	"context"

	"eshop/internal/pkg/bootstrap"
	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/mq"
	"eshop/internal/service/scheduler"

	"go.opentelemetry.io/otel"
)

const port = 8090

func main() {
	if err := bootstrap.Init(); err != nil {
		logger.Get().Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.Get()
	cfg := bootstrap.GetCurrentConfig()
	tracer := otel.Tracer(constants.DelaySchedulerService)

	levels := cfg.Consumer.DelayLevels
	if len(levels) == 0 {
		levels = mq.DefaultDelayLevels
	}
	producer := mq.NewProducer(cfg.Infra.Kafka.Brokers)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: constants.DelaySchedulerService,
		Port:        port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			// 每个延迟级别一个独立的调度器
			for _, level := range levels {
				delay, err := scheduler.ParseLevel(level)
				if err != nil {
					log.Fatal().Err(err).Str("level", level).Msg("invalid delay level")
				}
				reader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, level, constants.DelaySchedulerService+"-"+level)
				s := scheduler.NewScheduler(level, delay, reader, producer, tracer)
				appCtx.Go("scheduler-"+level, s.Run)
				appCtx.OnShutdown(func(ctx context.Context) { _ = reader.Close() })
			}
			appCtx.OnShutdown(func(ctx context.Context) { producer.Close() })
		},
	})
}
