package api

import (
	"net/http"

	"variogo/pkg/model"
)

// EventSource provides the session event history.
type EventSource interface {
	Events() []model.SessionEvent
}

// EventsHandler handles session event endpoints.
type EventsHandler struct {
	events EventSource
}

// NewEventsHandler creates a new EventsHandler. Returns nil if the source is missing.
func NewEventsHandler(src EventSource) *EventsHandler {
	if src == nil {
		return nil
	}
	return &EventsHandler{events: src}
}

// HandleEvents returns the session events as JSON.
// GET /api/events
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	events := h.events.Events()
	if events == nil {
		events = []model.SessionEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
