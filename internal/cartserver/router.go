package cartserver

import (
	"net/http"

	"offline-cart-sync/internal/config"
	"offline-cart-sync/internal/middleware"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func NewRouter(h *Handler, jwtSecret string, cors config.CORSConfig, log *zap.SugaredLogger) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORSMiddleware(cors))

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auth/token", h.Token).Methods("POST", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(jwtSecret))

	protected.HandleFunc("/carts", h.CreateCart).Methods("POST", "OPTIONS")
	protected.HandleFunc("/carts/{id}", h.GetCart).Methods("GET", "OPTIONS")
	protected.HandleFunc("/carts/{id}/items", h.AddItem).Methods("POST", "OPTIONS")
	protected.HandleFunc("/products/{sku}/stock", h.Stock).Methods("GET", "OPTIONS")
	protected.HandleFunc("/products/{sku}", h.UpsertProduct).Methods("PUT", "OPTIONS")

	r.HandleFunc("/health", healthHandler).Methods("GET")

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"cartserver"}`))
}
