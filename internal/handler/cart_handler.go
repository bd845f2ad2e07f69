package handler

import (
	"errors"
	"net/http"

	"offline-cart-sync/internal/domain"
	"offline-cart-sync/internal/service"
	"offline-cart-sync/pkg/response"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
)

type CartHandler struct {
	cartService *service.CartService
	validate    *validator.Validate
}

func NewCartHandler(cartService *service.CartService) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		validate:    validator.New(),
	}
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req domain.AddToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	res, err := h.cartService.AddToCart(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidLineItem):
			response.BadRequest(w, err.Error())
		case errors.Is(err, service.ErrOutOfStock):
			response.Conflict(w, err.Error())
		default:
			response.InternalError(w, "Failed to add item to cart")
		}
		return
	}

	if res.Outcome == domain.OutcomeQueued {
		response.Accepted(w, res)
		return
	}
	response.Created(w, res)
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.cartService.Contents(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to load cart")
		return
	}

	response.Success(w, view)
}
