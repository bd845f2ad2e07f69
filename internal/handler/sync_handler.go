package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"offline-cart-sync/internal/domain"
	"offline-cart-sync/internal/service"
	"offline-cart-sync/pkg/response"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
)

type SyncHandler struct {
	syncService *service.SyncService
	validate    *validator.Validate
}

func NewSyncHandler(syncService *service.SyncService) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		validate:    validator.New(),
	}
}

// Trigger starts a sync pass. With ?wait=true it blocks and returns the
// pass result.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req domain.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if wait {
		res, err := h.syncService.RunPass(r.Context(), req.CartID)
		if err != nil {
			writeSyncError(w, err)
			return
		}
		response.Success(w, res)
		return
	}

	if err := h.syncService.TriggerSyncFor(req.CartID); err != nil {
		writeSyncError(w, err)
		return
	}

	response.Accepted(w, h.syncService.Status())
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.syncService.Status())
}

func writeSyncError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrOffline):
		response.ServiceUnavailable(w, err.Error())
	case errors.Is(err, service.ErrSyncInFlight):
		response.Conflict(w, err.Error())
	default:
		response.InternalError(w, "Sync failed")
	}
}
