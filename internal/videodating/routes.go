// internal/videodating/routes.go

package videodating

import (
	"github.com/gorilla/mux"

	"github.com/pairlink/pairlink-backend/internal/auth"
)

// RegisterRoutes registers the websocket endpoint and the REST surface
func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	// WebSocket endpoint; authenticates inside the handler because
	// browsers send the token as a query parameter on upgrades
	router.HandleFunc("/ws/video-dating", handler.HandleWebSocket).Methods("GET")

	api := router.PathPrefix("/api/v1/video-dating").Subrouter()
	api.Use(authMiddleware.Authenticate)

	api.HandleFunc("/sessions/{id}", handler.GetSession).Methods("GET")
	api.HandleFunc("/queue/stats", handler.GetQueueStats).Methods("GET")
	api.HandleFunc("/matches", handler.CreateMatch).Methods("POST")
}
