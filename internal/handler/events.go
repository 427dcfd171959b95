package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/service"
)

// EventHandler serves event listings and the admin roster.
type EventHandler struct {
	svc  *service.EventService
	errs errorMapper
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc *service.EventService, errs errorMapper) *EventHandler {
	return &EventHandler{svc: svc, errs: errs}
}

// CreateEvent handles POST /admin/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), req)
	if err != nil {
		h.errs.write(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context())
	if err != nil {
		h.errs.write(w, r, err, http.StatusNotFound)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{eventId}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.errs.write(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// ListRegistrations handles GET /admin/events/{eventId}/registrations
// Returns every registration of the event joined with its user.
func (h *EventHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	_, rows, err := h.svc.Roster(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.errs.write(w, r, err, http.StatusNotFound)
		return
	}

	if rows == nil {
		rows = []model.RegistrationRow{}
	}

	writeJSON(w, http.StatusOK, rows)
}
