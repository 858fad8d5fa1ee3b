package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires the read API and the WebSocket endpoint.
func NewRouter(h *Handler, hub *Hub) *mux.Router {
	router := mux.NewRouter()

	// CORS middleware: the dashboard frontend is served from elsewhere.
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	api := router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/hosts", h.HandleHosts).Methods("GET")
	api.HandleFunc("/hosts/{id}/metrics", h.HandleHostMetrics).Methods("GET")
	api.HandleFunc("/hosts/{id}/sparklines", h.HandleHostSparklines).Methods("GET")
	api.HandleFunc("/hosts/{id}/containers", h.HandleContainers).Methods("GET")
	api.HandleFunc("/hosts/{id}/containers/top", h.HandleTopContainers).Methods("GET")
	api.HandleFunc("/hosts/{id}/counts", h.HandleContainerCounts).Methods("GET")
	api.HandleFunc("/health", h.HandleHealth).Methods("GET")
	api.HandleFunc("/ws", h.HandleWebSocket(hub)).Methods("GET")

	return router
}
