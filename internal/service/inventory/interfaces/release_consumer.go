package interfaces

import (
	"context"
	"encoding/json"

	"eshop/internal/pkg/bizerr"
	"eshop/internal/pkg/logger"
	"eshop/internal/service/inventory/application"
	"eshop/internal/service/inventory/domain"

	"github.com/segmentio/kafka-go"
)

// ReleaseInventoryMessage 取消订单/售后审核通过后发出的释放库存消息
type ReleaseInventoryMessage struct {
	OrderID string             `json:"orderId"`
	Items   []domain.StockLine `json:"items"`
}

// ReleaseInventoryHandler 消费 release-inventory 主题
type ReleaseInventoryHandler struct {
	service *application.InventoryService
}

func NewReleaseInventoryHandler(service *application.InventoryService) *ReleaseInventoryHandler {
	return &ReleaseInventoryHandler{service: service}
}

// Handle 实现 mq.HandlerFunc，返回错误由 FailureHandler 决定重试还是死信
func (h *ReleaseInventoryHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var event ReleaseInventoryMessage
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return bizerr.Validation("INVALID_RELEASE_INVENTORY_MESSAGE", err.Error())
	}

	res, err := h.service.Release(ctx, &application.ReleaseRequest{OrderID: event.OrderID, Items: event.Items})
	if err != nil {
		return err
	}
	logger.Ctx(ctx).Info().
		Str("order_id", event.OrderID).
		Bool("already_processed", res.AlreadyProcessed).
		Msg("release inventory consumed")
	return nil
}
