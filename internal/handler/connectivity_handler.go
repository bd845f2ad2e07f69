package handler

import (
	"net/http"

	"offline-cart-sync/internal/connectivity"
	"offline-cart-sync/internal/domain"
	"offline-cart-sync/pkg/response"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
)

type ConnectivityHandler struct {
	controller connectivity.Controller
	validate   *validator.Validate
}

func NewConnectivityHandler(controller connectivity.Controller) *ConnectivityHandler {
	return &ConnectivityHandler{
		controller: controller,
		validate:   validator.New(),
	}
}

func (h *ConnectivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.controller.Status())
}

func (h *ConnectivityHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req domain.SetConnectivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	h.controller.SetMode(req.Mode)
	response.Success(w, h.controller.Status())
}
