// Package export renders an event's registration roster as CSV or XLSX.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/model"
)

// ErrExportUnavailable is returned when the requested format's writer is
// not enabled in this deployment.
var ErrExportUnavailable = errors.New("export dependency unavailable")

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps a query value to a Format. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename returns the attachment name for an event export.
func Filename(eventID string, f Format) string {
	return fmt.Sprintf("event-%s-attendance.%s", eventID, f)
}

// DateLayout is the short date and time shown in exports.
const DateLayout = "1/2/2006, 3:04 PM"

// Columns is the fixed export column order.
var Columns = []string{
	"Name", "Email", "Phone", "Role", "Tier", "Status", "Waitlist Position",
	"Registered At", "Confirmed At", "Attended At", "Cancelled At", "Cancellation Reason",
}

// record flattens one row into Columns order. Absent values are empty.
func record(r model.RegistrationRow, loc *time.Location) []string {
	pos := ""
	if r.WaitlistPosition != nil {
		pos = strconv.Itoa(*r.WaitlistPosition)
	}
	reason := ""
	if r.CancellationReason != nil {
		reason = *r.CancellationReason
	}
	return []string{
		r.User.Name,
		r.User.Email,
		r.User.Phone,
		r.User.Role,
		r.User.Tier,
		string(r.Status),
		pos,
		formatTime(&r.RegisteredAt, loc),
		formatTime(r.ConfirmedAt, loc),
		formatTime(r.AttendedAt, loc),
		formatTime(r.CancelledAt, loc),
		reason,
	}
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// Exporter renders rosters in the formats enabled for this deployment.
type Exporter struct {
	loc  *time.Location
	xlsx bool
}

// New returns an Exporter formatting timestamps in loc. With xlsx false,
// XLSX requests fail with ErrExportUnavailable.
func New(loc *time.Location, xlsx bool) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{loc: loc, xlsx: xlsx}
}

// Available reports whether f can be produced.
func (e *Exporter) Available(f Format) error {
	if f == FormatXLSX && !e.xlsx {
		return fmt.Errorf("%w: XLSX export is disabled, set EXPORT_XLSX=true to enable it", ErrExportUnavailable)
	}
	return nil
}

// Write renders rows to w in format f.
func (e *Exporter) Write(w io.Writer, f Format, rows []model.RegistrationRow) error {
	if err := e.Available(f); err != nil {
		return err
	}
	if f == FormatXLSX {
		return WriteXLSX(w, rows, e.loc)
	}
	return WriteCSV(w, rows, e.loc)
}

// WriteCSV writes a header line followed by one line per row.
func WriteCSV(w io.Writer, rows []model.RegistrationRow, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(record(r, loc)); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
