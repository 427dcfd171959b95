package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/export"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/service"
)

// ReportHandler serves analytics and roster exports.
type ReportHandler struct {
	analytics *service.AnalyticsService
	events    *service.EventService
	exporter  *export.Exporter
	errs      errorMapper
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(
	analytics *service.AnalyticsService,
	events *service.EventService,
	exporter *export.Exporter,
	errs errorMapper,
) *ReportHandler {
	return &ReportHandler{analytics: analytics, events: events, exporter: exporter, errs: errs}
}

// Analytics handles GET /admin/events/{eventId}/analytics
// An unknown event is a 400 on this endpoint.
func (h *ReportHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	snap, err := h.analytics.EventAnalytics(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.errs.write(w, r, err, http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// Export handles GET /admin/events/{eventId}/export?format=csv|xlsx
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.exporter.Available(format); err != nil {
		h.errs.write(w, r, err, http.StatusNotFound)
		return
	}

	eventID := chi.URLParam(r, "eventId")
	_, rows, err := h.events.Roster(r.Context(), eventID)
	if err != nil {
		h.errs.write(w, r, err, http.StatusNotFound)
		return
	}

	// Render fully before writing headers so a failure still gets a JSON error.
	var buf bytes.Buffer
	if err := h.exporter.Write(&buf, format, rows); err != nil {
		h.errs.write(w, r, err, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(eventID, format)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
