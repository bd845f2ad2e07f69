package cartserver

import (
	"errors"
	"net/http"

	"offline-cart-sync/pkg/response"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	tok, err := h.service.IssueToken(&req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to issue token")
		return
	}

	response.Success(w, tok)
}

func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.CreateCart(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to create cart")
		return
	}

	response.Created(w, cart.Contents())
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.GetCart(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, cart.Contents())
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	cart, err := h.service.AddItem(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, cart.Contents())
}

func (h *Handler) Stock(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Stock(r.Context(), mux.Vars(r)["sku"])
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, info)
}

func (h *Handler) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req UpsertProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	product, err := h.service.UpsertProduct(r.Context(), mux.Vars(r)["sku"], &req)
	if err != nil {
		response.InternalError(w, "Failed to save product")
		return
	}

	response.Success(w, product)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCartNotFound), errors.Is(err, ErrProductNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrOutOfStock):
		response.Conflict(w, err.Error())
	default:
		response.InternalError(w, "Internal server error")
	}
}
