// Package control exposes the local HTTP surface for operating the kiosk:
// status, reload, and a websocket feed of screen events.
package control

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all HTTP routes.
func (h *Handler) SetupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.Health).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/screen", h.GetScreen).Methods("GET")
	api.HandleFunc("/screen/reload", h.ReloadScreen).Methods("POST", "OPTIONS")
	api.HandleFunc("/screen/events", h.Events).Methods("GET")

	r.Use(corsMiddleware)

	return r
}

// NewServer wraps the router in an http.Server with sane timeouts.
func NewServer(addr string, router *mux.Router) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// corsMiddleware adds CORS headers.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
