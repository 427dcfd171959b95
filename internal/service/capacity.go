package service

import "github.com/Shivanand-hulikatti/event-waitlist/internal/model"

// Decision is the outcome of a capacity check for a new registration.
type Decision int

const (
	DecisionRejected Decision = iota
	DecisionConfirmed
	DecisionWaitlisted
)

func (d Decision) String() string {
	switch d {
	case DecisionConfirmed:
		return "confirmed"
	case DecisionWaitlisted:
		return "waitlisted"
	default:
		return "rejected"
	}
}

// Decide reports whether a new registration for event is confirmed,
// waitlisted or rejected, given the number of registrations currently
// holding a slot (confirmed or attended).
func Decide(event model.Event, activeCount int) Decision {
	if event.Unlimited() || activeCount < *event.Capacity {
		return DecisionConfirmed
	}
	if event.HasWaitlist {
		return DecisionWaitlisted
	}
	return DecisionRejected
}

// hasFreeSlot reports whether one more registration can be confirmed.
func hasFreeSlot(event model.Event, activeCount int) bool {
	return event.Unlimited() || activeCount < *event.Capacity
}
