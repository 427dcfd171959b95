// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/export"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/repository"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/service"
)

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

// decodeJSON decodes the request body into dst. An empty body leaves dst
// untouched when allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	return err
}

// errorMapper turns service errors into HTTP responses.
type errorMapper struct {
	log *slog.Logger
}

// notFoundStatus lets an endpoint answer unresolved ids with a status other
// than 404.
func (m errorMapper) write(w http.ResponseWriter, r *http.Request, err error, notFoundStatus int) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotOwner):
		writeError(w, http.StatusForbidden, "you may only manage your own registrations")
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, notFoundStatus, "resource not found")
	case errors.Is(err, service.ErrAlreadyRegistered),
		errors.Is(err, service.ErrEventFull),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrWaitlistDisabled),
		errors.Is(err, service.ErrOverCapacity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, export.ErrExportUnavailable):
		m.log.Warn("export unavailable", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		m.log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimiddleware.GetReqID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
