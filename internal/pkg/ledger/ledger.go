// Package ledger 记录每个 (资源, 操作) 的执行结果，用于幂等判断。
//
// 条目一旦写入就不会删除；业务状态变更与对应条目在同一个本地事务中提交，
// 重复请求查到终态条目即可直接返回。
package ledger

import (
	"context"
	"encoding/json"
	"time"

	"eshop/internal/pkg/bizerr"
)

// Status 操作状态
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusReleased  Status = "RELEASED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// IsTerminal 终态条目表示操作已经有了结论，重复请求不再执行
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusReleased || s == StatusFailed
}

// ErrDuplicate 同一 (resourceID, operationKey) 已存在
var ErrDuplicate = bizerr.Conflict("OPERATION_LOG_DUPLICATE", "operation already recorded")

type Entry struct {
	ResourceID   string
	OperationKey string
	Status       Status
	Payload      json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store 幂等台账。实现需要在 ctx 携带事务时加入该事务。
type Store interface {
	// Find 不存在时返回 (nil, nil)
	Find(ctx context.Context, resourceID, operationKey string) (*Entry, error)
	// Record 插入条目，唯一键冲突返回 ErrDuplicate
	Record(ctx context.Context, e *Entry) error
	// Transition 条件更新状态，返回是否命中
	Transition(ctx context.Context, resourceID, operationKey string, from, to Status) (bool, error)
}
