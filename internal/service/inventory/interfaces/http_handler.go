package interfaces

import (
	"net/http"

	"eshop/internal/pkg/bizerr"
	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/tracing"
	"eshop/internal/service/inventory/application"

	"go.opentelemetry.io/otel/trace"
)

// InventoryHandler 库存服务的 HTTP 入口
type InventoryHandler struct {
	service *application.InventoryService
	tracer  trace.Tracer
}

func NewInventoryHandler(service *application.InventoryService, tracer trace.Tracer) *InventoryHandler {
	return &InventoryHandler{service: service, tracer: tracer}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	h.handle(mux, constants.InventoryDeductPath, h.deduct)
	h.handle(mux, constants.InventoryReleasePath, h.release)
	h.handle(mux, constants.InventoryAddPath, h.add)
	h.handle(mux, constants.InventoryModifyPath, h.modify)
	h.handle(mux, constants.InventorySyncPath, h.sync)
	h.handle(mux, constants.InventoryStockPath, h.stock)
}

func (h *InventoryHandler) handle(mux *http.ServeMux, path string, fn http.HandlerFunc) {
	mux.Handle(path, tracing.Middleware(h.tracer, constants.InventoryService+path, bizerr.Recover(fn)))
}

func (h *InventoryHandler) deduct(w http.ResponseWriter, r *http.Request) {
	var req application.DeductRequest
	if err := bizerr.DecodeJSON(r, &req); err != nil {
		bizerr.WriteResult(w, r, nil, err)
		return
	}
	res, err := h.service.Deduct(r.Context(), &req)
	bizerr.WriteResult(w, r, res, err)
}

func (h *InventoryHandler) release(w http.ResponseWriter, r *http.Request) {
	var req application.ReleaseRequest
	if err := bizerr.DecodeJSON(r, &req); err != nil {
		bizerr.WriteResult(w, r, nil, err)
		return
	}
	res, err := h.service.Release(r.Context(), &req)
	bizerr.WriteResult(w, r, res, err)
}

func (h *InventoryHandler) add(w http.ResponseWriter, r *http.Request) {
	var req application.AddRequest
	if err := bizerr.DecodeJSON(r, &req); err != nil {
		bizerr.WriteResult(w, r, nil, err)
		return
	}
	res, err := h.service.Add(r.Context(), &req)
	bizerr.WriteResult(w, r, res, err)
}

func (h *InventoryHandler) modify(w http.ResponseWriter, r *http.Request) {
	var req application.ModifyRequest
	if err := bizerr.DecodeJSON(r, &req); err != nil {
		bizerr.WriteResult(w, r, nil, err)
		return
	}
	res, err := h.service.Modify(r.Context(), &req)
	bizerr.WriteResult(w, r, res, err)
}

func (h *InventoryHandler) sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.SyncToCache(r.Context(), r.URL.Query().Get("skuCode"))
	bizerr.WriteResult(w, r, res, err)
}

func (h *InventoryHandler) stock(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetStock(r.Context(), r.URL.Query().Get("skuCode"))
	bizerr.WriteResult(w, r, view, err)
}
