package outbox

import (
	"context"
	"time"
)

type Store interface {
	// Save 写入消息，ctx 携带事务时加入该事务
	Save(ctx context.Context, msg *Message) error
	// Resolve 只更新仍为 PENDING 的消息，返回是否命中
	Resolve(ctx context.Context, id string, state TxState) (bool, error)
	// Find 不存在时返回 (nil, nil)
	Find(ctx context.Context, id string) (*Message, error)
	MarkDelivered(ctx context.Context, id string) error
	IncrCheckTimes(ctx context.Context, id string) error
	// FetchUndelivered 已提交未投递的消息，按创建时间排序
	FetchUndelivered(ctx context.Context, limit int) ([]*Message, error)
	// FetchPending 创建时间早于 before 的半消息
	FetchPending(ctx context.Context, before time.Time, limit int) ([]*Message, error)
}
