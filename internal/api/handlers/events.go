package handlers

import (
	"net/http"

	"github.com/video-stream/annotator/internal/api/middleware"
	"github.com/video-stream/annotator/internal/events"
)

type EventsHandler struct {
	hub *events.Hub
}

func NewEventsHandler(hub *events.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream upgrades to a websocket carrying the caller's job and session
// events plus media library changes.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r, middleware.GetSessionID(r))
}
