package handler

import (
	"offline-cart-sync/internal/config"
	"offline-cart-sync/internal/middleware"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Handlers struct {
	Cart         *CartHandler
	Queue        *QueueHandler
	Sync         *SyncHandler
	Connectivity *ConnectivityHandler
	WebSocket    *WebSocketHandler
}

// NewRouter wires the engine API. Health and metrics endpoints are added by
// the caller.
func NewRouter(h *Handlers, cors config.CORSConfig, log *zap.SugaredLogger) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORSMiddleware(cors))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/cart/items", h.Cart.AddItem).Methods("POST", "OPTIONS")
	api.HandleFunc("/cart", h.Cart.Get).Methods("GET", "OPTIONS")

	api.HandleFunc("/offline-cart", h.Queue.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/offline-cart", h.Queue.Clear).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/offline-cart/{sku}", h.Queue.Remove).Methods("DELETE", "OPTIONS")

	api.HandleFunc("/sync", h.Sync.Trigger).Methods("POST", "OPTIONS")
	api.HandleFunc("/sync/status", h.Sync.Status).Methods("GET", "OPTIONS")

	api.HandleFunc("/connectivity", h.Connectivity.Get).Methods("GET", "OPTIONS")
	api.HandleFunc("/connectivity", h.Connectivity.Set).Methods("PUT", "OPTIONS")

	if h.WebSocket != nil {
		r.HandleFunc("/ws", h.WebSocket.HandleConnection)
	}

	return r
}
