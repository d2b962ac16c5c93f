// Package metrics 汇总各组件暴露给 Prometheus 的指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LockAcquireTotal 分布式锁获取次数，result: acquired / busy / error
	LockAcquireTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eshop_lock_acquire_total",
		Help: "Total number of distributed lock acquisitions by backend and result.",
	}, []string{"backend", "result"})

	// StockOperationsTotal 库存操作次数，result 为成功/幂等/错误码
	StockOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eshop_stock_operations_total",
		Help: "Total number of stock ledger operations by operation and result.",
	}, []string{"op", "result"})

	OutboxMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eshop_outbox_messages_total",
		Help: "Total number of outbox messages by topic and resolved state.",
	}, []string{"topic", "state"})

	OutboxRelayTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eshop_outbox_relay_total",
		Help: "Total number of outbox relay deliveries by result.",
	}, []string{"result"})

	// SagaStepsTotal 售后/取消流程各步骤的执行结果
	SagaStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eshop_saga_steps_total",
		Help: "Total number of saga step executions by step and result.",
	}, []string{"step", "result"})

	ConsumerMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eshop_consumer_messages_total",
		Help: "Total number of consumed kafka messages by topic and outcome.",
	}, []string{"topic", "outcome"})
)
