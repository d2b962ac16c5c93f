package adapter

import (
	"context"
	"encoding/json"

	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/mq"
	"eshop/internal/service/order/domain"

	"github.com/pkg/errors"
)

// NotificationKafkaAdapter 实现了 port.Notifier 接口，通知发到 refund-notifications，由 push-gateway 推送
type NotificationKafkaAdapter struct {
	publisher mq.Publisher
}

func NewNotificationKafkaAdapter(publisher mq.Publisher) *NotificationKafkaAdapter {
	return &NotificationKafkaAdapter{publisher: publisher}
}

func (a *NotificationKafkaAdapter) RefundNotice(ctx context.Context, notice *domain.RefundNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return errors.Wrap(err, "marshal refund notice")
	}
	// 按用户分区，同一个用户的通知保持顺序
	return a.publisher.Send(ctx, constants.RefundNotificationTopic, notice.UserID, payload, nil)
}
