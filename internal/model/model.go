// Package model defines the core domain types for event registration and
// waitlisting.
package model

import "time"

// Event represents a registrable event. Capacity is nil for unlimited events.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Capacity    *int       `json:"capacity"`
	HasWaitlist bool       `json:"has_waitlist"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Unlimited reports whether the event has no capacity limit.
func (e *Event) Unlimited() bool {
	return e.Capacity == nil
}

// Status is the lifecycle state of a registration.
type Status string

const (
	StatusConfirmed  Status = "confirmed"
	StatusWaitlisted Status = "waitlisted"
	StatusCancelled  Status = "cancelled"
	StatusAttended   Status = "attended"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusWaitlisted, StatusCancelled, StatusAttended:
		return true
	}
	return false
}

// Active reports whether a registration in this status holds a capacity slot.
func (s Status) Active() bool {
	return s == StatusConfirmed || s == StatusAttended
}

// Registration represents a user's relationship to an event.
type Registration struct {
	ID                     string     `json:"id"`
	EventID                string     `json:"event_id"`
	UserID                 string     `json:"user_id"`
	Status                 Status     `json:"status"`
	WaitlistPosition       *int       `json:"waitlist_position"`
	RegisteredAt           time.Time  `json:"registered_at"`
	ConfirmedAt            *time.Time `json:"confirmed_at"`
	CancelledAt            *time.Time `json:"cancelled_at"`
	AttendedAt             *time.Time `json:"attended_at"`
	PromotedFromWaitlistAt *time.Time `json:"promoted_from_waitlist_at"`
	CancellationReason     *string    `json:"cancellation_reason"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// User is a read-only entry from the user directory.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
	Tier  string `json:"tier"`
}

// RegistrationRow is a registration joined with its user.
type RegistrationRow struct {
	Registration
	User User `json:"user"`
}

// Actor identifies the caller of a service operation.
type Actor struct {
	UserID     string
	Privileged bool
}

// NoticeKind names the transition a notification is about.
type NoticeKind string

const (
	NoticeRegistered NoticeKind = "registered"
	NoticeWaitlisted NoticeKind = "waitlisted"
	NoticePromoted   NoticeKind = "promoted"
	NoticeDemoted    NoticeKind = "demoted"
	NoticeCancelled  NoticeKind = "cancelled"
)

// Notice is emitted after a committed registration transition.
type Notice struct {
	Kind             NoticeKind `json:"kind"`
	RegistrationID   string     `json:"registration_id"`
	EventID          string     `json:"event_id"`
	UserID           string     `json:"user_id"`
	WaitlistPosition *int       `json:"waitlist_position,omitempty"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description"`
	Capacity    *int       `json:"capacity" validate:"omitempty,min=1,max=100000"`
	HasWaitlist bool       `json:"has_waitlist"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

// CancelRequest is the optional body of a cancellation.
type CancelRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=1000"`
}

// BulkAttendanceRequest is the payload for bulk attendance marking.
type BulkAttendanceRequest struct {
	RegistrationIDs []string `json:"registrationIds" validate:"required,min=1,dive,required"`
}

// BulkFailure describes one id that could not be marked attended.
type BulkFailure struct {
	RegistrationID string `json:"registration_id"`
	Error          string `json:"error"`
}

// BulkResult summarises a bulk attendance run.
type BulkResult struct {
	Success bool          `json:"success"`
	Updated int           `json:"updated"`
	Failed  []BulkFailure `json:"failed"`
}

// PromotionResult is returned by an admin promotion.
type PromotionResult struct {
	Registration *Registration `json:"registration"`
	OverCapacity bool          `json:"over_capacity"`
}

// AnalyticsSummary holds the headline counts and rates for an event.
type AnalyticsSummary struct {
	TotalRegistrations  int  `json:"totalRegistrations"`
	Confirmed           int  `json:"confirmed"`
	Waitlisted          int  `json:"waitlisted"`
	Cancelled           int  `json:"cancelled"`
	Attended            int  `json:"attended"`
	CapacityUtilization *int `json:"capacityUtilization"`
	AttendanceRate      int  `json:"attendanceRate"`
	DropOffRate         int  `json:"dropOffRate"`
}

// WaitlistMetrics describes how the waitlist has moved.
type WaitlistMetrics struct {
	AveragePromotionTime *float64 `json:"averagePromotionTime"`
	PromotionRate        int      `json:"promotionRate"`
}

// EventAnalytics is a derived snapshot over all registrations of one event.
type EventAnalytics struct {
	EventID         string           `json:"eventId"`
	Capacity        *int             `json:"capacity"`
	Summary         AnalyticsSummary `json:"summary"`
	ByRole          map[string]int   `json:"byRole"`
	ByTier          map[string]int   `json:"byTier"`
	TimeTrends      map[string]int   `json:"timeTrends"`
	WaitlistMetrics WaitlistMetrics  `json:"waitlistMetrics"`
	GeneratedAt     time.Time        `json:"generatedAt"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
