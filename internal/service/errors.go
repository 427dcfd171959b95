package service

import "errors"

// Domain errors. Handlers match them with errors.Is; the wrapped message
// names the specific rule that was violated.
var (
	ErrValidation        = errors.New("validation failed")
	ErrAlreadyRegistered = errors.New("user already has an active registration for this event")
	ErrEventFull         = errors.New("event is at capacity and has no waitlist")
	ErrInvalidTransition = errors.New("invalid registration transition")
	ErrNotOwner          = errors.New("registration does not belong to the caller")
	ErrWaitlistDisabled  = errors.New("event does not have a waitlist")
	ErrOverCapacity      = errors.New("event has no confirmed slot available")
)
