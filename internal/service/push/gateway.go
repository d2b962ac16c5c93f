package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"eshop/internal/pkg/bizerr"
	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/metrics"
	"eshop/internal/service/order/domain"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Gateway 一个 push-gateway 节点
type Gateway struct {
	nodeID   string
	hub      *Hub
	sessions SessionStore
	tracer   trace.Tracer
}

func NewGateway(nodeID string, hub *Hub, sessions SessionStore, tracer trace.Tracer) *Gateway {
	return &Gateway{nodeID: nodeID, hub: hub, sessions: sessions, tracer: tracer}
}

func (g *Gateway) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", g.ServeWs)
}

// ServeWs 升级连接，登记会话后补发离线通知
func (g *Gateway) ServeWs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
		return
	}

	client := newClient(g.hub, conn, userID)
	g.hub.register(client)
	// 连接的生命周期长于请求，后续操作不使用请求 ctx
	bg := context.WithoutCancel(ctx)
	if err := g.sessions.Bind(bg, userID, g.nodeID); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("bind session failed")
		g.hub.unregister(client)
		client.close()
		_ = conn.Close()
		return
	}
	logger.Ctx(ctx).Info().Str("user_id", userID).Str("node_id", g.nodeID).Msg("client connected")

	go client.writePump()
	go client.readPump(func() {
		if g.hub.unregister(client) {
			client.close()
			if err := g.sessions.Unbind(bg, userID, g.nodeID); err != nil {
				logger.Ctx(bg).Warn().Err(err).Str("user_id", userID).Msg("unbind session failed")
			}
		}
	})

	pending, err := g.sessions.DrainOffline(bg, userID)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("drain offline notices failed")
		return
	}
	for _, payload := range pending {
		client.enqueue(payload)
	}
}

// HandleRefundNotice 消费 refund-notifications。
// 每个节点用自己的消费组收到全部通知，只投递连在本节点上的用户；
// 用户不在线时存为离线消息，由第一个处理到的节点写入。
func (g *Gateway) HandleRefundNotice(ctx context.Context, msg kafka.Message) (err error) {
	ctx, span := g.tracer.Start(ctx, "push.HandleRefundNotice")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var notice domain.RefundNotice
	if err := json.Unmarshal(msg.Value, &notice); err != nil {
		return bizerr.Validation("INVALID_MESSAGE", "refund notice is not valid json").Wrap(err)
	}
	span.SetAttributes(
		attribute.String("user.id", notice.UserID),
		attribute.String("after_sale.id", notice.AfterSaleID),
		attribute.String("notice.channel", notice.Channel),
	)

	if notice.Channel == domain.ChannelSMS {
		// 短信由运营商网关发送，这里只留痕
		logger.Ctx(ctx).Info().Str("user_id", notice.UserID).Str("after_sale_id", notice.AfterSaleID).
			Str("message", notice.Message).Msg("sms refund notice")
		metrics.ConsumerMessagesTotal.WithLabelValues(msg.Topic, "sms").Inc()
		return nil
	}

	if g.hub.Deliver(notice.UserID, msg.Value) {
		span.AddEvent("Delivered")
		metrics.ConsumerMessagesTotal.WithLabelValues(msg.Topic, "delivered").Inc()
		return nil
	}

	node, err := g.sessions.Node(ctx, notice.UserID)
	if err != nil {
		return bizerr.Downstream("SESSION_LOOKUP_FAILED", "lookup push session failed").Wrap(err)
	}
	switch node {
	case "", g.nodeID:
		// 会话指向本节点但连接已经不在，同样按离线处理
		if err := g.sessions.SaveOffline(ctx, notice.UserID, noticeID(msg), msg.Value); err != nil {
			return bizerr.Downstream("SAVE_OFFLINE_FAILED", "save offline notice failed").Wrap(err)
		}
		span.AddEvent("SavedOffline")
		metrics.ConsumerMessagesTotal.WithLabelValues(msg.Topic, "offline").Inc()
	default:
		span.AddEvent("OwnedByOtherNode")
	}
	return nil
}

func noticeID(msg kafka.Message) string {
	return fmt.Sprintf("%s:%d:%d", msg.Topic, msg.Partition, msg.Offset)
}
