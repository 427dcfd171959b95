package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/auth"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/service"
)

// RegistrationHandler exposes the registration lifecycle.
type RegistrationHandler struct {
	svc    *service.RegistrationService
	policy auth.Policy
	errs   errorMapper
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(svc *service.RegistrationService, policy auth.Policy, errs errorMapper) *RegistrationHandler {
	return &RegistrationHandler{svc: svc, policy: policy, errs: errs}
}

// Register handles POST /events/{eventId}/register
// The caller registers themselves; the body is ignored.
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())

	reg, err := h.svc.Register(r.Context(), chi.URLParam(r, "eventId"), claims.UserID)
	if err != nil {
		h.errs.write(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusCreated, reg)
}

// Cancel handles POST /registrations/{id}/cancel
func (h *RegistrationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req model.CancelRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	actor := h.policy.Actor(auth.GetClaims(r.Context()))
	reg, err := h.svc.Cancel(r.Context(), actor, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.errs.write(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, reg)
}

// MyRegistration handles GET /registrations/my/{eventId}
// Responds with null when the caller holds no active registration.
func (h *RegistrationHandler) MyRegistration(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())

	reg, err := h.svc.MyRegistration(r.Context(), chi.URLParam(r, "eventId"), claims.UserID)
	if err != nil {
		h.errs.write(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, reg)
}

// Promote handles POST /admin/registrations/{id}/promote
func (h *RegistrationHandler) Promote(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.AdminPromote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errs.write(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Demote handles POST /admin/registrations/{id}/demote
func (h *RegistrationHandler) Demote(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.AdminDemote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errs.write(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, reg)
}

// MarkAttended handles POST /admin/registrations/{id}/mark-attended
func (h *RegistrationHandler) MarkAttended(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.MarkAttendance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errs.write(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, reg)
}

// BulkAttendance handles POST /admin/registrations/bulk-attendance
func (h *RegistrationHandler) BulkAttendance(w http.ResponseWriter, r *http.Request) {
	var req model.BulkAttendanceRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.BulkMarkAttendance(r.Context(), req)
	if err != nil {
		h.errs.write(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
