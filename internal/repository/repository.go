// Package repository implements persistence for events, users and
// registrations. The Postgres implementation uses pgx directly (no ORM);
// an in-memory implementation backs local development and tests.
package repository

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateActive is returned when an insert would create a second
// non-cancelled registration for the same (event, user) pair.
var ErrDuplicateActive = errors.New("active registration already exists")

// EventStore persists events.
type EventStore interface {
	Create(ctx context.Context, event *model.Event) error
	List(ctx context.Context) ([]model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
}

// UserDirectory resolves users for joins. ListByIDs omits unknown ids.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	ListByIDs(ctx context.Context, ids []string) (map[string]model.User, error)
}

// RegistrationStore persists registrations. All mutations go through
// WithEventLock so that changes to one event are serialised and applied
// all-or-nothing; unrelated events proceed in parallel.
type RegistrationStore interface {
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error)
	FindActive(ctx context.Context, eventID, userID string) (*model.Registration, error)
	WithEventLock(ctx context.Context, eventID string, fn func(tx EventTx) error) error
}

// EventTx is the view of one event's registrations inside a locked unit of
// work. Writes become visible to other callers only if the enclosing
// WithEventLock callback returns nil.
type EventTx interface {
	Event() model.Event
	Registrations(ctx context.Context) ([]model.Registration, error)
	Insert(ctx context.Context, reg *model.Registration) error
	Update(ctx context.Context, reg *model.Registration) error
}
