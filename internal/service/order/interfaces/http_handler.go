package interfaces

import (
	"net/http"

	"eshop/internal/pkg/bizerr"
	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/tracing"
	"eshop/internal/service/order/application"

	"go.opentelemetry.io/otel/trace"
)

// AfterSaleHandler 订单服务的 HTTP 入口: 取消订单、缺品、售后申请/撤销/审核、退款回调
type AfterSaleHandler struct {
	service *application.AfterSaleService
	tracer  trace.Tracer
}

func NewAfterSaleHandler(service *application.AfterSaleService, tracer trace.Tracer) *AfterSaleHandler {
	return &AfterSaleHandler{service: service, tracer: tracer}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *AfterSaleHandler) RegisterRoutes(mux *http.ServeMux) {
	h.handle(mux, constants.OrderCancelPath, h.cancelOrder)
	h.handle(mux, constants.OrderLackPath, h.lack)
	h.handle(mux, constants.AfterSaleApplyPath, h.applyReturnGoods)
	h.handle(mux, constants.AfterSaleRevokePath, h.revoke)
	h.handle(mux, constants.AfterSaleAuditPath, h.audit)
	h.handle(mux, constants.AfterSaleRefundNotifyPath, h.refundCallback)
}

func (h *AfterSaleHandler) handle(mux *http.ServeMux, path string, fn http.HandlerFunc) {
	mux.Handle(path, tracing.Middleware(h.tracer, constants.OrderService+path, bizerr.Recover(fn)))
}

func (h *AfterSaleHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req application.CancelOrderRequest
	if err := bizerr.DecodeJSON(r, &req); err != nil {
		bizerr.WriteResult(w, r, nil, err)
		return
	}
	res, err := h.service.CancelOrder(r.Context(), &req)
	bizerr.WriteResult(w, r, res, err)
}

func (h *AfterSaleHandler) lack(w http.ResponseWriter, r *http.Request) {
	var req application.LackRequest
	if err := bizerr.DecodeJSON(r, &req); err != nil {
		bizerr.WriteResult(w, r, nil, err)
		return
	}
	res, err := h.service.Lack(r.Context(), &req)
	bizerr.WriteResult(w, r, res, err)
}

func (h *AfterSaleHandler) applyReturnGoods(w http.ResponseWriter, r *http.Request) {
	var req application.ReturnGoodsRequest
	if err := bizerr.DecodeJSON(r, &req); err != nil {
		bizerr.WriteResult(w, r, nil, err)
		return
	}
	res, err := h.service.ApplyReturnGoods(r.Context(), &req)
	bizerr.WriteResult(w, r, res, err)
}

func (h *AfterSaleHandler) revoke(w http.ResponseWriter, r *http.Request) {
	var req application.RevokeAfterSaleRequest
	if err := bizerr.DecodeJSON(r, &req); err != nil {
		bizerr.WriteResult(w, r, nil, err)
		return
	}
	res, err := h.service.RevokeAfterSale(r.Context(), &req)
	bizerr.WriteResult(w, r, res, err)
}

func (h *AfterSaleHandler) audit(w http.ResponseWriter, r *http.Request) {
	var req application.CustomerAuditRequest
	if err := bizerr.DecodeJSON(r, &req); err != nil {
		bizerr.WriteResult(w, r, nil, err)
		return
	}
	res, err := h.service.ReceiveCustomerAudit(r.Context(), &req)
	bizerr.WriteResult(w, r, res, err)
}

func (h *AfterSaleHandler) refundCallback(w http.ResponseWriter, r *http.Request) {
	var req application.RefundCallbackRequest
	if err := bizerr.DecodeJSON(r, &req); err != nil {
		bizerr.WriteResult(w, r, nil, err)
		return
	}
	res, err := h.service.ReceiveRefundCallback(r.Context(), &req)
	bizerr.WriteResult(w, r, res, err)
}
