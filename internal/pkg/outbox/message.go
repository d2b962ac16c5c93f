// Package outbox 实现事务消息：先持久化半消息，再执行本地事务，最后按本地事务结果提交或回滚。
//
// 只有 COMMIT 的消息会被投递给消费者；本地事务结果未知(进程崩溃、提交结果写入失败)的半消息
// 由 Checker 定期回查业务状态来决定最终结果。
package outbox

import (
	"context"
	"time"

	"eshop/internal/pkg/bizerr"
)

// TxState 事务消息状态
type TxState string

const (
	StatePending  TxState = "PENDING"
	StateCommit   TxState = "COMMIT"
	StateRollback TxState = "ROLLBACK"
)

// ErrSendFailed 半消息没有写入成功，本地事务没有执行
var ErrSendFailed = bizerr.PublishFailure("MESSAGE_SEND_FAILED", "failed to store half message")

type Message struct {
	ID            string
	Topic         string
	Key           string
	CorrelationID string // 业务主键，回查时使用
	Checker       string // 回查函数名
	Payload       []byte
	Headers       map[string]string
	State         TxState
	Delivered     bool
	CheckTimes    int
	CreatedAt     time.Time
}

// LocalTxFunc 本地事务，返回 COMMIT / ROLLBACK，不确定时返回 PENDING
type LocalTxFunc func(ctx context.Context) TxState

// CheckFunc 回查本地事务结果
type CheckFunc func(ctx context.Context, msg *Message) TxState

// Broker 真正投递消息的通道，由 mq.Producer 实现
type Broker interface {
	Send(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
}

// Config 事务消息配置
type Config struct {
	RelayInterval time.Duration `mapstructure:"relay_interval" yaml:"relay_interval"`
	CheckDelay    time.Duration `mapstructure:"check_delay" yaml:"check_delay"`
	CheckInterval time.Duration `mapstructure:"check_interval" yaml:"check_interval"`
	MaxChecks     int           `mapstructure:"max_checks" yaml:"max_checks"`
	BatchSize     int           `mapstructure:"batch_size" yaml:"batch_size"`
	Rate          float64       `mapstructure:"rate" yaml:"rate"` // 每秒最多投递条数
}

var DefaultConfig = Config{
	RelayInterval: time.Second,
	CheckDelay:    30 * time.Second,
	CheckInterval: 10 * time.Second,
	MaxChecks:     15,
	BatchSize:     100,
	Rate:          500,
}
