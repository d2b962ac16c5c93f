package outbox

import (
	"context"
	"fmt"
	"time"

	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Checker 回查长时间处于 PENDING 的半消息
type Checker struct {
	coordinator *Coordinator
	store       Store
	delay       time.Duration
	interval    time.Duration
	maxChecks   int
	batchSize   int
	now         func() time.Time
}

func NewChecker(coordinator *Coordinator, store Store, cfg Config) *Checker {
	if cfg.CheckDelay <= 0 {
		cfg.CheckDelay = DefaultConfig.CheckDelay
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultConfig.CheckInterval
	}
	if cfg.MaxChecks <= 0 {
		cfg.MaxChecks = DefaultConfig.MaxChecks
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig.BatchSize
	}
	return &Checker{
		coordinator: coordinator,
		store:       store,
		delay:       cfg.CheckDelay,
		interval:    cfg.CheckInterval,
		maxChecks:   cfg.MaxChecks,
		batchSize:   cfg.BatchSize,
		now:         time.Now,
	}
}

func (c *Checker) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Dur("interval", c.interval).Msg("✅ Outbox checker started.")
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("🛑 Outbox checker stopped.")
			return nil
		case <-ticker.C:
			if err := c.ProcessBatch(ctx); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("Outbox checker batch failed")
			}
		}
	}
}

func (c *Checker) ProcessBatch(ctx context.Context) error {
	msgs, err := c.store.FetchPending(ctx, c.now().Add(-c.delay), c.batchSize)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		msgCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Headers))
		c.checkOne(msgCtx, msg)
	}
	return nil
}

func (c *Checker) checkOne(ctx context.Context, msg *Message) {
	if err := c.store.IncrCheckTimes(ctx, msg.ID); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("id", msg.ID).Msg("failed to increase check times")
		return
	}
	msg.CheckTimes++

	state := c.runCheck(ctx, msg)
	if state == StatePending {
		if msg.CheckTimes < c.maxChecks {
			return
		}
		logger.Ctx(ctx).Error().
			Str("id", msg.ID).
			Str("topic", msg.Topic).
			Str("correlation_id", msg.CorrelationID).
			Int("check_times", msg.CheckTimes).
			Msg("transaction state still unknown after max checks, rolling back")
		state = StateRollback
	}

	ok, err := c.store.Resolve(ctx, msg.ID, state)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("id", msg.ID).Msg("failed to resolve checked message")
		return
	}
	if !ok {
		return
	}
	metrics.OutboxMessagesTotal.WithLabelValues(msg.Topic, "checked_"+string(state)).Inc()
	logger.Ctx(ctx).Info().Str("id", msg.ID).Str("topic", msg.Topic).Str("state", string(state)).Msg("half message resolved by check")

	if state == StateCommit {
		msg.State = StateCommit
		c.coordinator.deliver(ctx, msg)
	}
}

func (c *Checker) runCheck(ctx context.Context, msg *Message) (state TxState) {
	fn, ok := c.coordinator.check(msg.Checker)
	if !ok {
		logger.Ctx(ctx).Error().Str("id", msg.ID).Str("checker", msg.Checker).Msg("no check registered for message")
		return StatePending
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Ctx(ctx).Error().Str("id", msg.ID).Msg(fmt.Sprintf("check panicked: %v", r))
			state = StatePending
		}
	}()
	return fn(ctx, msg)
}
