// internal/videodating/handlers.go

package videodating

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/pairlink/pairlink-backend/internal/auth"
	"github.com/pairlink/pairlink-backend/internal/common/utils"
	"github.com/pairlink/pairlink-backend/internal/matchmaking"
	"github.com/pairlink/pairlink-backend/internal/session"
)

type Handler struct {
	service        *Service
	hub            *Hub
	authMiddleware *auth.Middleware
	upgrader       websocket.Upgrader
}

func NewHandler(service *Service, hub *Hub, authMiddleware *auth.Middleware, allowedOrigins []string) *Handler {
	return &Handler{
		service:        service,
		hub:            hub,
		authMiddleware: authMiddleware,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleWebSocket authenticates and upgrades the connection. Browsers
// cannot set headers on websocket upgrades, so the token may also arrive
// as a query parameter.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := h.authMiddleware.VerifyRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		return
	}

	client := NewClient(h.hub, conn, userID, h.service)
	client.Start()
}

// GetSession returns a session snapshot. Only its participants may look.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sessionID := mux.Vars(r)["id"]
	sess, err := h.service.SessionByID(sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Session not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}

	if !sess.HasParticipant(userID) {
		utils.RespondWithError(w, http.StatusForbidden, "Not a participant of this session")
		return
	}

	utils.RespondWithData(w, http.StatusOK, sess)
}

// GetQueueStats returns the live queue size and session count
func (h *Handler) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithData(w, http.StatusOK, h.service.Stats())
}

// CreateMatchRequest is the direct pairing request body
type CreateMatchRequest struct {
	PartnerID  string `json:"partnerId" validate:"required"`
	IntentMode string `json:"intentMode" validate:"required,oneof=DATE STUDY FRIEND"`
	WantsVideo bool   `json:"wantsVideo"`
}

// CreateMatch pairs the caller with a chosen partner, bypassing the
// queue. Both users get the usual match:found over their sockets.
func (h *Handler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.service.CreateDirectMatch(userID, req.PartnerID, req.IntentMode, req.WantsVideo)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrParticipantBusy):
			utils.RespondWithError(w, http.StatusConflict, "One of the users is already in a session")
		case errors.Is(err, matchmaking.ErrInvalidPreference):
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid intent mode")
		default:
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	utils.RespondWithData(w, http.StatusCreated, sess)
}
