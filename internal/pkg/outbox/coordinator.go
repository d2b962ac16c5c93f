package outbox

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/metrics"
	"eshop/internal/pkg/persistence"
	"eshop/internal/pkg/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Coordinator 事务消息协调器
type Coordinator struct {
	store  Store
	broker Broker
	tracer trace.Tracer

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

func NewCoordinator(store Store, broker Broker) *Coordinator {
	return &Coordinator{
		store:  store,
		broker: broker,
		tracer: otel.Tracer("outbox"),
		checks: make(map[string]CheckFunc),
	}
}

// RegisterCheck 注册回查函数，消息通过 Checker 字段引用
func (c *Coordinator) RegisterCheck(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

func (c *Coordinator) check(name string) (CheckFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.checks[name]
	return fn, ok
}

// SendInTransaction 发送事务消息。
// 半消息写入失败时返回 ErrSendFailed 且不会执行本地事务；
// 否则返回本地事务的结果，结果写回失败时消息保持 PENDING 交给回查处理。
func (c *Coordinator) SendInTransaction(ctx context.Context, msg *Message, execute LocalTxFunc) (TxState, error) {
	ctx, span := c.tracer.Start(ctx, "outbox.SendInTransaction", trace.WithAttributes(
		attribute.String("messaging.destination", msg.Topic),
		attribute.String("outbox.correlation_id", msg.CorrelationID),
	))
	defer span.End()

	c.prepare(ctx, msg, StatePending)
	if err := c.store.Save(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "half message not stored")
		metrics.OutboxMessagesTotal.WithLabelValues(msg.Topic, "send_failed").Inc()
		return StatePending, ErrSendFailed.Wrap(err)
	}
	span.AddEvent("HalfMessageStored", trace.WithAttributes(attribute.String("outbox.id", msg.ID)))

	state := c.runLocal(ctx, msg, execute)
	span.SetAttributes(attribute.String("outbox.local_state", string(state)))
	metrics.OutboxMessagesTotal.WithLabelValues(msg.Topic, string(state)).Inc()

	if state == StatePending {
		logger.Ctx(ctx).Warn().Str("id", msg.ID).Str("topic", msg.Topic).Msg("local transaction state unknown, leaving it to the checker")
		return state, nil
	}

	ok, err := c.store.Resolve(ctx, msg.ID, state)
	if err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Str("id", msg.ID).Str("state", string(state)).
			Msg("failed to resolve half message, leaving it to the checker")
		return state, nil
	}
	if !ok {
		return c.resolvedElsewhere(ctx, span, msg, state)
	}
	msg.State = state

	if state == StateCommit {
		c.deliver(ctx, msg)
	}
	return state, nil
}

// resolvedElsewhere 回查已经先一步给出了结论，以存储中的状态为准，只有 COMMIT 才投递
func (c *Coordinator) resolvedElsewhere(ctx context.Context, span trace.Span, msg *Message, local TxState) (TxState, error) {
	stored, err := c.store.Find(ctx, msg.ID)
	if err != nil || stored == nil {
		span.AddEvent("HalfMessageUnreadable")
		logger.Ctx(ctx).Error().Err(err).Str("id", msg.ID).Msg("half message missing after resolve miss, not delivering")
		return StatePending, nil
	}
	msg.State = stored.State
	if stored.State != local {
		metrics.OutboxMessagesTotal.WithLabelValues(msg.Topic, "state_conflict").Inc()
		logger.Ctx(ctx).Error().Str("id", msg.ID).Str("local_state", string(local)).Str("stored_state", string(stored.State)).
			Msg("half message resolved by checker with a different state")
	}
	if stored.State == StateCommit && !stored.Delivered {
		c.deliver(ctx, msg)
	}
	return stored.State, nil
}

// Publish 发送不需要本地事务的消息。
// ctx 中带有数据库事务时消息随事务一起提交，由 Relay 投递；否则立即尝试投递。
func (c *Coordinator) Publish(ctx context.Context, msg *Message) error {
	c.prepare(ctx, msg, StateCommit)
	if err := c.store.Save(ctx, msg); err != nil {
		metrics.OutboxMessagesTotal.WithLabelValues(msg.Topic, "send_failed").Inc()
		return ErrSendFailed.Wrap(err)
	}
	metrics.OutboxMessagesTotal.WithLabelValues(msg.Topic, string(StateCommit)).Inc()
	if persistence.TxFromContext(ctx) == nil {
		c.deliver(ctx, msg)
	}
	return nil
}

func (c *Coordinator) prepare(ctx context.Context, msg *Message, state TxState) {
	if msg.ID == "" {
		msg.ID = utils.NewID()
	}
	if msg.Headers == nil {
		msg.Headers = make(map[string]string)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(msg.Headers))
	msg.State = state
	msg.Delivered = false
	msg.CreatedAt = time.Now()
}

// runLocal 执行本地事务，panic 视为回滚
func (c *Coordinator) runLocal(ctx context.Context, msg *Message, execute LocalTxFunc) (state TxState) {
	defer func() {
		if r := recover(); r != nil {
			logger.Ctx(ctx).Error().Str("id", msg.ID).Str("stack", string(debug.Stack())).
				Msg(fmt.Sprintf("local transaction panicked: %v", r))
			state = StateRollback
		}
	}()
	state = execute(ctx)
	switch state {
	case StateCommit, StateRollback, StatePending:
		return state
	default:
		return StatePending
	}
}

// deliver 尽力投递，失败留给 Relay
func (c *Coordinator) deliver(ctx context.Context, msg *Message) {
	if err := c.broker.Send(ctx, msg.Topic, msg.Key, msg.Payload, msg.Headers); err != nil {
		metrics.OutboxRelayTotal.WithLabelValues("deferred").Inc()
		logger.Ctx(ctx).Warn().Err(err).Str("id", msg.ID).Str("topic", msg.Topic).Msg("immediate delivery failed, relay will retry")
		return
	}
	if err := c.store.MarkDelivered(ctx, msg.ID); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("id", msg.ID).Msg("failed to mark message delivered, it may be sent again")
	}
	msg.Delivered = true
	metrics.OutboxRelayTotal.WithLabelValues("delivered").Inc()
}
