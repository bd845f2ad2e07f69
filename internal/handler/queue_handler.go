package handler

import (
	"net/http"

	"offline-cart-sync/internal/domain"
	"offline-cart-sync/internal/service"
	"offline-cart-sync/pkg/response"

	"github.com/gorilla/mux"
)

// QueueHandler exposes the offline queue directly, for inspection and
// manual repair.
type QueueHandler struct {
	queueService *service.QueueService
}

func NewQueueHandler(queueService *service.QueueService) *QueueHandler {
	return &QueueHandler{
		queueService: queueService,
	}
}

func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.queueService.PeekAll(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to read offline cart")
		return
	}

	response.Success(w, &domain.OfflineCartResponse{
		Items: items,
		Count: domain.ItemCount(items),
	})
}

func (h *QueueHandler) Remove(w http.ResponseWriter, r *http.Request) {
	sku := mux.Vars(r)["sku"]
	if sku == "" {
		response.BadRequest(w, "sku is required")
		return
	}

	items, err := h.queueService.Remove(r.Context(), sku)
	if err != nil {
		response.InternalError(w, "Failed to update offline cart")
		return
	}

	response.Success(w, &domain.OfflineCartResponse{
		Items: items,
		Count: domain.ItemCount(items),
	})
}

func (h *QueueHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.queueService.Clear(r.Context()); err != nil {
		response.InternalError(w, "Failed to clear offline cart")
		return
	}

	response.NoContent(w)
}
