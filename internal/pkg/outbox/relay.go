package outbox

import (
	"context"
	"time"

	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"
)

// Relay 定期扫描已提交但未投递的消息并投递，投递速率受 limiter 限制
type Relay struct {
	store     Store
	broker    Broker
	interval  time.Duration
	batchSize int
	limiter   *rate.Limiter
}

func NewRelay(store Store, broker Broker, cfg Config) *Relay {
	if cfg.RelayInterval <= 0 {
		cfg.RelayInterval = DefaultConfig.RelayInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig.BatchSize
	}
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	return &Relay{
		store:     store,
		broker:    broker,
		interval:  cfg.RelayInterval,
		batchSize: cfg.BatchSize,
		limiter:   rate.NewLimiter(limit, cfg.BatchSize),
	}
}

func (r *Relay) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Dur("interval", r.interval).Msg("✅ Outbox relay started.")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("🛑 Outbox relay stopped.")
			return nil
		case <-ticker.C:
			if _, err := r.ProcessBatch(ctx); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("Outbox relay batch failed")
			}
		}
	}
}

// ProcessBatch 投递一批消息，返回成功条数
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	msgs, err := r.store.FetchUndelivered(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, msg := range msgs {
		if err := r.limiter.Wait(ctx); err != nil {
			return delivered, nil
		}
		msgCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Headers))
		if err := r.broker.Send(msgCtx, msg.Topic, msg.Key, msg.Payload, msg.Headers); err != nil {
			metrics.OutboxRelayTotal.WithLabelValues("failed").Inc()
			logger.Ctx(msgCtx).Warn().Err(err).Str("id", msg.ID).Str("topic", msg.Topic).Msg("Outbox relay delivery failed")
			continue
		}
		if err := r.store.MarkDelivered(ctx, msg.ID); err != nil {
			logger.Ctx(msgCtx).Error().Err(err).Str("id", msg.ID).Msg("Failed to mark outbox message delivered")
			continue
		}
		metrics.OutboxRelayTotal.WithLabelValues("delivered").Inc()
		delivered++
	}
	return delivered, nil
}
